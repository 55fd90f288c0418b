package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Execution statuses. Transitions only move forward:
// PENDING -> RUNNING -> COMPLETED | FAILED.
const (
	ExecutionPending   = "PENDING"
	ExecutionRunning   = "RUNNING"
	ExecutionCompleted = "COMPLETED"
	ExecutionFailed    = "FAILED"
)

// Action outcomes recorded per execution action.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailed  = "FAILED"
)

// Failure kinds recorded in an action's reason.
const (
	ReasonCycleDetected = "cycle_detected"
)

// WorkflowExecution is one run of a workflow in response to one event.
// TriggerData and Definition are frozen at start; an in-flight run is never
// affected by later edits to its workflow.
type WorkflowExecution struct {
	ID            string         `json:"id"`
	WorkflowID    int64          `json:"workflowId"`
	TenantID      string         `json:"tenantId"`
	SubjectID     string         `json:"subjectId"`
	TriggerData   sql.NullString `json:"-"`
	Definition    sql.NullString `json:"-"`
	Status        string         `json:"status"`
	FailureReason sql.NullString `json:"-"`
	StartedAt     sql.NullTime   `json:"-"`
	CompletedAt   sql.NullTime   `json:"-"`
	Created       time.Time      `json:"created"`
	Modified      time.Time      `json:"modified"`
}

// IsTerminal reports whether the execution has reached a final status.
func (e *WorkflowExecution) IsTerminal() bool {
	return e.Status == ExecutionCompleted || e.Status == ExecutionFailed
}

// GetTriggerData decodes the frozen trigger snapshot.
func (e *WorkflowExecution) GetTriggerData() (*TriggerData, error) {
	td := &TriggerData{}
	if !e.TriggerData.Valid || e.TriggerData.String == "" {
		return td, nil
	}
	if err := json.Unmarshal([]byte(e.TriggerData.String), td); err != nil {
		return nil, err
	}
	return td, nil
}

// GetDefinition decodes the frozen workflow definition the run started with.
func (e *WorkflowExecution) GetDefinition() (*Workflow, error) {
	wf := &Workflow{}
	if err := json.Unmarshal([]byte(e.Definition.String), wf); err != nil {
		return nil, err
	}
	if err := DecodeActionPayloads(wf.Actions); err != nil {
		return nil, err
	}
	return wf, nil
}

// TriggerData is the event context snapshot carried by an execution.
// ChainDepth counts trigger_workflow hops so chains cannot recurse
// unboundedly.
type TriggerData struct {
	Event      DomainEvent `json:"event"`
	ChainDepth int         `json:"chainDepth"`
}

// ExecutionAction is the recorded outcome of one action attempt within an
// execution. (ExecutionID, ActionIndex) is unique; duplicate recordings are
// dropped by the store.
type ExecutionAction struct {
	ID          int64          `json:"-"`
	ExecutionID string         `json:"-"`
	ActionIndex int            `json:"actionIndex"`
	ActionType  string         `json:"actionType"`
	Outcome     string         `json:"outcome"`
	Reason      sql.NullString `json:"-"`
	DateTime    time.Time      `json:"dateTime"`
}

// Continuation is a suspended execution waiting for a delayed action. It is
// claimed by an engine instance, resumed, and deleted once the run moves on.
type Continuation struct {
	ID          int64
	ExecutionID string
	ActionIndex int
	DueTime     time.Time
	EngineID    sql.NullInt64
	Created     time.Time
	Modified    time.Time
}
