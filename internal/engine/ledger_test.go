package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

func testWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID:       7,
		TenantID: "tenant-a",
		Name:     "greet new leads",
		Enabled:  true,
		Trigger:  domain.TriggerRecordCreated,
		Actions: mustActions(
			domain.ActionConfig{Type: domain.ActionAddTag, Config: []byte(`{"tag":"new"}`)},
		),
	}
}

func testTriggerData() *domain.TriggerData {
	return &domain.TriggerData{
		Event: domain.DomainEvent{
			TenantID:  "tenant-a",
			Kind:      domain.TriggerRecordCreated,
			SubjectID: "lead-1",
			Payload:   map[string]any{"source": "walk-in"},
		},
	}
}

func newTestLedger() (*ExecutionLedger, *memExecutionRepo, *MockWorkflowRepo) {
	executions := newMemExecutionRepo()
	workflows := &MockWorkflowRepo{}
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewExecutionLedger(executions, workflows, clock), executions, workflows
}

func TestLedger_CreateFreezesDefinitionAndTriggerData(t *testing.T) {
	ledger, executions, _ := newTestLedger()

	ex, err := ledger.Create(testWorkflow(), testTriggerData())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ex.Status != domain.ExecutionPending {
		t.Errorf("Expected PENDING, got %s", ex.Status)
	}
	if ex.SubjectID != "lead-1" {
		t.Errorf("Expected subject from event, got %q", ex.SubjectID)
	}

	stored, _ := executions.GetByID(ex.ID)
	def, err := stored.GetDefinition()
	if err != nil {
		t.Fatalf("GetDefinition failed: %v", err)
	}
	if def.ID != 7 || len(def.Actions) != 1 || def.Actions[0].Type != domain.ActionAddTag {
		t.Errorf("Expected frozen definition snapshot, got %+v", def)
	}
	data, err := stored.GetTriggerData()
	if err != nil {
		t.Fatalf("GetTriggerData failed: %v", err)
	}
	if data.Event.SubjectID != "lead-1" || data.ChainDepth != 0 {
		t.Errorf("Expected frozen trigger data, got %+v", data)
	}
}

func TestLedger_MarkRunningIsExclusive(t *testing.T) {
	ledger, _, workflows := newTestLedger()
	marked := 0
	workflows.MarkExecutedFunc = func(id int64) error {
		marked++
		return nil
	}

	ex, _ := ledger.Create(testWorkflow(), testTriggerData())

	won, err := ledger.MarkRunning(ex)
	if err != nil || !won {
		t.Fatalf("Expected first claim to win, got won=%v err=%v", won, err)
	}
	won, err = ledger.MarkRunning(ex)
	if err != nil {
		t.Fatalf("Second claim errored: %v", err)
	}
	if won {
		t.Error("Expected second claim to lose")
	}
	if marked != 1 {
		t.Errorf("Expected workflow bookkeeping exactly once, got %d", marked)
	}
}

func TestLedger_RecordActionResultIsIdempotent(t *testing.T) {
	ledger, executions, _ := newTestLedger()
	ex, _ := ledger.Create(testWorkflow(), testTriggerData())

	if err := ledger.RecordActionResult(ex.ID, 0, domain.ActionAddTag, Succeeded()); err != nil {
		t.Fatalf("RecordActionResult failed: %v", err)
	}
	// Replay of the same index must not duplicate the row.
	if err := ledger.RecordActionResult(ex.ID, 0, domain.ActionAddTag, Failed("late duplicate")); err != nil {
		t.Fatalf("RecordActionResult replay failed: %v", err)
	}

	actions, _ := executions.FindActionsByExecutionID(ex.ID)
	if len(*actions) != 1 {
		t.Fatalf("Expected 1 recorded action, got %d", len(*actions))
	}
	if (*actions)[0].Outcome != domain.OutcomeSuccess {
		t.Errorf("Expected the original outcome to survive the replay")
	}
}

func TestLedger_FinalizeCompletedAndFailed(t *testing.T) {
	ledger, _, _ := newTestLedger()

	ex, _ := ledger.Create(testWorkflow(), testTriggerData())
	ledger.MarkRunning(ex)
	if err := ledger.Finalize(ex, nil); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if ex.Status != domain.ExecutionCompleted {
		t.Errorf("Expected COMPLETED, got %s", ex.Status)
	}

	ex2, _ := ledger.Create(testWorkflow(), testTriggerData())
	ledger.MarkRunning(ex2)
	if err := ledger.Finalize(ex2, errors.New("action 0 (add_tag): boom")); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if ex2.Status != domain.ExecutionFailed {
		t.Errorf("Expected FAILED, got %s", ex2.Status)
	}
	if !ex2.FailureReason.Valid || ex2.FailureReason.String == "" {
		t.Error("Expected a failure reason")
	}
}

func TestLedger_StatusOnlyMovesForward(t *testing.T) {
	ledger, executions, _ := newTestLedger()

	ex, _ := ledger.Create(testWorkflow(), testTriggerData())

	// Finalizing a PENDING execution must not work, it was never claimed.
	if err := ledger.Finalize(ex, nil); err != nil {
		t.Fatalf("Finalize errored: %v", err)
	}
	stored, _ := executions.GetByID(ex.ID)
	if stored.Status != domain.ExecutionPending {
		t.Errorf("Expected PENDING to survive a stray finalize, got %s", stored.Status)
	}

	ledger.MarkRunning(ex)
	ledger.Finalize(ex, nil)

	// A terminal execution cannot go back to RUNNING.
	won, _ := ledger.MarkRunning(ex)
	if won {
		t.Error("Expected terminal execution to reject a new claim")
	}
	stored, _ = executions.GetByID(ex.ID)
	if stored.Status != domain.ExecutionCompleted {
		t.Errorf("Expected COMPLETED to be final, got %s", stored.Status)
	}
}
