package engine

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// ExecutionLedger owns the lifecycle of execution rows: create with frozen
// snapshots, move the status forward, append action results, finalize.
type ExecutionLedger struct {
	executions ExecutionRepo
	workflows  WorkflowRepo
	clock      core.Clock
}

func NewExecutionLedger(executions ExecutionRepo, workflows WorkflowRepo, clock core.Clock) *ExecutionLedger {
	return &ExecutionLedger{executions: executions, workflows: workflows, clock: clock}
}

// Create writes a PENDING execution row with JSON snapshots of the workflow
// definition and the trigger data. From this point on the run is immune to
// edits of the live definition.
func (l *ExecutionLedger) Create(wf *domain.Workflow, data *domain.TriggerData) (*domain.WorkflowExecution, error) {
	definition, err := json.Marshal(wf)
	if err != nil {
		return nil, err
	}
	triggerData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	now := l.clock.Now().UTC()
	ex := &domain.WorkflowExecution{
		ID:          uuid.NewString(),
		WorkflowID:  wf.ID,
		TenantID:    wf.TenantID,
		SubjectID:   data.Event.SubjectID,
		TriggerData: sql.NullString{String: string(triggerData), Valid: true},
		Definition:  sql.NullString{String: string(definition), Valid: true},
		Status:      domain.ExecutionPending,
		Created:     now,
		Modified:    now,
	}
	if err := l.executions.Save(ex); err != nil {
		return nil, err
	}
	return ex, nil
}

// MarkRunning claims the execution for this engine. Exactly one caller wins
// the PENDING to RUNNING transition; the winner also bumps the workflow's
// execution bookkeeping.
func (l *ExecutionLedger) MarkRunning(ex *domain.WorkflowExecution) (bool, error) {
	won, err := l.executions.UpdateStatusGuarded(ex.ID, domain.ExecutionPending, domain.ExecutionRunning)
	if err != nil || !won {
		return won, err
	}
	ex.Status = domain.ExecutionRunning
	if err := l.workflows.MarkExecuted(ex.WorkflowID); err != nil {
		// Bookkeeping only, the run itself proceeds.
		slog.Warn("failed to mark workflow executed", "workflowId", ex.WorkflowID, "error", err)
	}
	return true, nil
}

// RecordActionResult appends one outcome to the action trail. Duplicate
// (execution, index) pairs are ignored at the store, so replays after a
// crash or double wake-up leave exactly one row.
func (l *ExecutionLedger) RecordActionResult(executionID string, actionIndex int, actionType string, outcome Outcome) error {
	result := domain.OutcomeSuccess
	if !outcome.Success {
		result = domain.OutcomeFailed
	}
	action := &domain.ExecutionAction{
		ExecutionID: executionID,
		ActionIndex: actionIndex,
		ActionType:  actionType,
		Outcome:     result,
		DateTime:    l.clock.Now().UTC(),
	}
	if outcome.Reason != "" {
		action.Reason = sql.NullString{String: outcome.Reason, Valid: true}
	}
	return l.executions.InsertActionResult(action)
}

// Finalize stamps the terminal status. A nil failure finalizes COMPLETED,
// anything else finalizes FAILED with the aggregated reason.
func (l *ExecutionLedger) Finalize(ex *domain.WorkflowExecution, failure error) error {
	status := domain.ExecutionCompleted
	reason := sql.NullString{}
	if failure != nil {
		status = domain.ExecutionFailed
		reason = sql.NullString{String: failure.Error(), Valid: true}
	}
	won, err := l.executions.SetFinalized(ex.ID, status, reason)
	if err != nil {
		return err
	}
	if !won {
		slog.Warn("execution already finalized", "executionId", ex.ID)
		return nil
	}
	ex.Status = status
	ex.FailureReason = reason
	return nil
}
