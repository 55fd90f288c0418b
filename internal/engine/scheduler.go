package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// ExecutionScheduler drives a workflow run from start to terminal status,
// suspending on delayed actions and resuming when their continuations come
// due. It also implements WorkflowTrigger for the trigger_workflow action.
type ExecutionScheduler struct {
	ledger        *ExecutionLedger
	dispatcher    *ActionDispatcher
	workflows     WorkflowRepo
	executions    ExecutionRepo
	continuations ContinuationRepo
	evaluator     *Evaluator
	clock         core.Clock
}

func NewExecutionScheduler(
	ledger *ExecutionLedger,
	dispatcher *ActionDispatcher,
	workflows WorkflowRepo,
	executions ExecutionRepo,
	continuations ContinuationRepo,
	evaluator *Evaluator,
	clock core.Clock,
) *ExecutionScheduler {
	return &ExecutionScheduler{
		ledger:        ledger,
		dispatcher:    dispatcher,
		workflows:     workflows,
		executions:    executions,
		continuations: continuations,
		evaluator:     evaluator,
		clock:         clock,
	}
}

// Start creates the ledger row for a matched workflow and runs it from the
// first action. The returned execution is in a terminal status unless the
// run suspended on a delayed action.
func (s *ExecutionScheduler) Start(ctx context.Context, wf *domain.Workflow, data *domain.TriggerData) (*domain.WorkflowExecution, error) {
	ex, err := s.ledger.Create(wf, data)
	if err != nil {
		return nil, err
	}
	won, err := s.ledger.MarkRunning(ex)
	if err != nil {
		return nil, err
	}
	if !won {
		// Someone else picked it up between create and claim; nothing to do.
		return ex, nil
	}
	slog.Info("workflow execution started",
		"executionId", ex.ID, "workflowId", wf.ID, "tenantId", wf.TenantID)

	if err := s.runFrom(ctx, ex, wf, data, 0, false, nil); err != nil {
		return ex, err
	}
	return ex, nil
}

// Advance resumes a suspended execution at the action index recorded in its
// continuation. The due action runs now, then the remainder of the list
// continues as usual. The continuation row is removed once the resume has
// either finished or re-suspended further down the list.
func (s *ExecutionScheduler) Advance(ctx context.Context, c *domain.Continuation) error {
	ex, err := s.executions.GetByID(c.ExecutionID)
	if err != nil {
		return err
	}
	if ex == nil {
		slog.Warn("continuation for missing execution, dropping", "executionId", c.ExecutionID)
		return s.continuations.DeleteByID(c.ID)
	}
	if ex.IsTerminal() {
		slog.Warn("continuation for finished execution, dropping",
			"executionId", ex.ID, "status", ex.Status)
		return s.continuations.DeleteByID(c.ID)
	}

	wf, err := ex.GetDefinition()
	if err != nil {
		return fmt.Errorf("definition snapshot of %s: %w", ex.ID, err)
	}
	data, err := ex.GetTriggerData()
	if err != nil {
		return fmt.Errorf("trigger data of %s: %w", ex.ID, err)
	}

	// Failures recorded before the suspension must survive into the final
	// reason, so re-seed them from the action trail.
	failures, err := s.priorFailures(ex.ID)
	if err != nil {
		return err
	}

	slog.Info("workflow execution resumed",
		"executionId", ex.ID, "actionIndex", c.ActionIndex)

	if err := s.runFrom(ctx, ex, wf, data, c.ActionIndex, true, failures); err != nil {
		return err
	}
	return s.continuations.DeleteByID(c.ID)
}

// TriggerWorkflow starts another workflow of the same tenant, used by the
// trigger_workflow action. A disabled or missing target is an error; target
// conditions that do not hold are a quiet no-op, same as the router.
func (s *ExecutionScheduler) TriggerWorkflow(ctx context.Context, tenantID string, workflowID int64, data *domain.TriggerData) error {
	wf, err := s.workflows.FindByID(tenantID, workflowID)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("workflow %d not found", workflowID)
	}
	if !wf.Enabled {
		return fmt.Errorf("workflow %d is disabled", workflowID)
	}
	if !s.evaluator.EvaluateAll(wf.Conditions, data.Event.Payload) {
		slog.Debug("triggered workflow conditions not met", "workflowId", wf.ID)
		return nil
	}
	_, err = s.Start(ctx, wf, data)
	return err
}

// runFrom executes actions from startIdx. A positive delay suspends the run
// by persisting a continuation, except when we are resuming exactly that
// action, in which case its wait is already over and it executes now.
func (s *ExecutionScheduler) runFrom(
	ctx context.Context,
	ex *domain.WorkflowExecution,
	wf *domain.Workflow,
	data *domain.TriggerData,
	startIdx int,
	resume bool,
	failures *multierror.Error,
) error {
	execCtx := &ExecutionContext{Execution: ex, Definition: wf, TriggerData: data}

	for i := startIdx; i < len(wf.Actions); i++ {
		action := &wf.Actions[i]

		if action.Delay > 0 && !(resume && i == startIdx) {
			c := &domain.Continuation{
				ExecutionID: ex.ID,
				ActionIndex: i,
				DueTime:     s.clock.Now().UTC().Add(time.Duration(action.Delay) * time.Minute),
			}
			if _, err := s.continuations.Save(c); err != nil {
				return fmt.Errorf("suspend %s at action %d: %w", ex.ID, i, err)
			}
			slog.Info("workflow execution suspended",
				"executionId", ex.ID, "actionIndex", i, "dueTime", c.DueTime)
			return nil
		}

		outcome := s.dispatcher.Dispatch(ctx, execCtx, action)
		if err := s.ledger.RecordActionResult(ex.ID, i, action.Type, outcome); err != nil {
			return err
		}
		if !outcome.Success {
			failures = multierror.Append(failures,
				fmt.Errorf("action %d (%s): %s", i, action.Type, outcome.Reason))
		}
	}

	if err := s.ledger.Finalize(ex, failures.ErrorOrNil()); err != nil {
		return err
	}
	slog.Info("workflow execution finished", "executionId", ex.ID, "status", ex.Status)
	return nil
}

// priorFailures rebuilds the failure list from already recorded action rows.
func (s *ExecutionScheduler) priorFailures(executionID string) (*multierror.Error, error) {
	actions, err := s.executions.FindActionsByExecutionID(executionID)
	if err != nil {
		return nil, err
	}
	var failures *multierror.Error
	for _, a := range *actions {
		if a.Outcome == domain.OutcomeFailed {
			reason := ""
			if a.Reason.Valid {
				reason = a.Reason.String
			}
			failures = multierror.Append(failures,
				fmt.Errorf("action %d (%s): %s", a.ActionIndex, a.ActionType, reason))
		}
	}
	return failures, nil
}
