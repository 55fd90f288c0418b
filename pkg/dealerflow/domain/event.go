package domain

import (
	"fmt"
	"time"
)

// DomainEvent is an occurrence in the surrounding CRM that may trigger
// workflows: a lead was created, a status changed, a message arrived.
type DomainEvent struct {
	TenantID   string         `json:"tenantId"`
	Kind       string         `json:"kind"`
	SubjectID  string         `json:"subjectId"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Validate rejects events that must never reach workflow evaluation.
func (e *DomainEvent) Validate() error {
	if e.TenantID == "" {
		return fmt.Errorf("tenantId is required")
	}
	if e.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if !IsValidTriggerKind(e.Kind) {
		return fmt.Errorf("unknown event kind: %s", e.Kind)
	}
	return nil
}
