package sqllite

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dealerflow/dealerflow/internal/repository"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/test/integration"
)

// A replayed wake-up writes the same (execution, index) pair twice; the trail
// must keep a single row and keep the first outcome.
func TestActionTrailIgnoresDuplicateInserts(t *testing.T) {
	runTestWithSetup(t, func(t *testing.T, db *sql.DB) {
		clock := integration.NewFakeClock(time.Now().UTC().Truncate(time.Millisecond))
		executions := repository.NewExecutionRepository(db, clock)

		first := &domain.ExecutionAction{
			ExecutionID: "exec-replayed",
			ActionIndex: 0,
			ActionType:  domain.ActionChangeStatus,
			Outcome:     domain.OutcomeSuccess,
			DateTime:    clock.Now(),
		}
		if err := executions.InsertActionResult(first); err != nil {
			t.Fatalf("First insert failed: %v", err)
		}

		replay := &domain.ExecutionAction{
			ExecutionID: "exec-replayed",
			ActionIndex: 0,
			ActionType:  domain.ActionChangeStatus,
			Outcome:     domain.OutcomeFailed,
			Reason:      sql.NullString{String: "should never land", Valid: true},
			DateTime:    clock.Now().Add(time.Minute),
		}
		if err := executions.InsertActionResult(replay); err != nil {
			t.Fatalf("Replayed insert failed: %v", err)
		}

		// A different index on the same execution is a fresh row, not a replay.
		second := &domain.ExecutionAction{
			ExecutionID: "exec-replayed",
			ActionIndex: 1,
			ActionType:  domain.ActionAddTag,
			Outcome:     domain.OutcomeSuccess,
			DateTime:    clock.Now(),
		}
		if err := executions.InsertActionResult(second); err != nil {
			t.Fatalf("Second action insert failed: %v", err)
		}

		actions, err := executions.FindActionsByExecutionID("exec-replayed")
		if err != nil {
			t.Fatalf("Failed to read action trail: %v", err)
		}
		if len(*actions) != 2 {
			t.Fatalf("Expected 2 trail rows, got %d", len(*actions))
		}
		if (*actions)[0].ActionIndex != 0 || (*actions)[0].Outcome != domain.OutcomeSuccess {
			t.Errorf("Expected the first outcome to survive the replay, got %+v", (*actions)[0])
		}
		if (*actions)[0].Reason.Valid {
			t.Errorf("Expected no reason on the surviving row, got %q", (*actions)[0].Reason.String)
		}
		if (*actions)[1].ActionIndex != 1 || (*actions)[1].ActionType != domain.ActionAddTag {
			t.Errorf("Unexpected second trail row: %+v", (*actions)[1])
		}
	})
}
