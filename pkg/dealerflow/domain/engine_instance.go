package domain

import "time"

// EngineInstance is a registered engine process. Instances heartbeat
// last_active so stranded continuations can be repaired after a crash.
type EngineInstance struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Started    time.Time `json:"started"`
	LastActive time.Time `json:"lastActive"`
}
