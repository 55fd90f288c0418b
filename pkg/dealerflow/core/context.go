package core

type ctxKey string

const (
	CtxKeyEngineId ctxKey = ctxKey("engineId")
	CtxKeyUsername ctxKey = ctxKey("username")
)
