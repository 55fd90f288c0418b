package models

import (
	"time"
)

// SubmitEventRequest is the payload for submitting a domain event. Validation
// is synchronous; workflow matching and execution happen asynchronously.
type SubmitEventRequest struct {
	TenantID   string         `json:"tenantId"`
	Kind       string         `json:"kind"`
	SubjectID  string         `json:"subjectId"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt *time.Time     `json:"occurredAt,omitempty"`
}

type SubmitEventResponse struct {
	Accepted bool `json:"accepted"`
}
