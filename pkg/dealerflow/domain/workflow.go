package domain

import (
	"database/sql"
	"time"
)

// Trigger kinds — the closed set of domain events that can start a workflow.
const (
	TriggerRecordCreated        = "record-created"
	TriggerRecordStatusChanged  = "record-status-changed"
	TriggerScoreChanged         = "score-changed"
	TriggerNoResponseTimeout    = "no-response-timeout"
	TriggerAppointmentConfirmed = "appointment-confirmed"
	TriggerAppointmentCancelled = "appointment-cancelled"
	TriggerMessageReceived      = "message-received"
	TriggerTaskCompleted        = "task-completed"
	TriggerDocumentUploaded     = "document-uploaded"
	TriggerCustom               = "custom"
)

var triggerKinds = map[string]bool{
	TriggerRecordCreated:        true,
	TriggerRecordStatusChanged:  true,
	TriggerScoreChanged:         true,
	TriggerNoResponseTimeout:    true,
	TriggerAppointmentConfirmed: true,
	TriggerAppointmentCancelled: true,
	TriggerMessageReceived:      true,
	TriggerTaskCompleted:        true,
	TriggerDocumentUploaded:     true,
	TriggerCustom:               true,
}

func IsValidTriggerKind(kind string) bool {
	return triggerKinds[kind]
}

// Workflow is a tenant-scoped automation rule: when the trigger event
// arrives and all conditions hold, run the actions in order.
type Workflow struct {
	ID             int64             `json:"id"`
	TenantID       string            `json:"tenantId"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Enabled        bool              `json:"enabled"`
	Trigger        string            `json:"trigger"`
	TriggerConfig  map[string]string `json:"triggerConfig,omitempty"`
	Conditions     []Condition       `json:"conditions"`
	Actions        []ActionConfig    `json:"actions"`
	ExecutionCount int               `json:"executionCount"`
	LastExecutedAt sql.NullTime      `json:"-"`
	Created        time.Time         `json:"created"`
	Modified       time.Time         `json:"modified"`
}

// Condition operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpExists      = "exists"
	OpNotExists   = "not_exists"
)

var conditionOperators = map[string]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpContains:    true,
	OpNotContains: true,
	OpExists:      true,
	OpNotExists:   true,
}

func IsValidOperator(op string) bool {
	return conditionOperators[op]
}

// Condition is a single field/operator/value test against the event context.
// Field is a dotted path into the trigger payload, e.g. "lead.score".
// Value is ignored for exists/not_exists.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}
