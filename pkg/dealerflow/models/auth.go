package models

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserResponse carries the generated API key, shown only once.
type CreateUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	ApiKey   string `json:"apiKey"`
}

type LoginResponse struct {
	OK bool `json:"ok"`
}
