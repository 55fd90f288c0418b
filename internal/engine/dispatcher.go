package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// Outcome is the result of dispatching a single action. Permanent marks
// failures that retrying could never fix, like an unknown action type or a
// detected workflow cycle.
type Outcome struct {
	Success   bool
	Permanent bool
	Reason    string
}

func Succeeded() Outcome {
	return Outcome{Success: true}
}

func Failed(reason string) Outcome {
	return Outcome{Reason: reason}
}

func FailedPermanently(reason string) Outcome {
	return Outcome{Permanent: true, Reason: reason}
}

// ExecutionContext carries the frozen state a handler may need: the ledger
// row, the definition snapshot and the trigger data captured at start.
type ExecutionContext struct {
	Execution   *domain.WorkflowExecution
	Definition  *domain.Workflow
	TriggerData *domain.TriggerData
}

type ActionHandler func(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome

// ActionDispatcher routes actions to their registered handlers and bounds
// each call with a timeout so a slow collaborator cannot wedge a worker.
type ActionDispatcher struct {
	handlers map[string]ActionHandler
	timeout  time.Duration
}

func NewActionDispatcher(timeout time.Duration) *ActionDispatcher {
	return &ActionDispatcher{
		handlers: make(map[string]ActionHandler),
		timeout:  timeout,
	}
}

// Register binds a handler to an action type, replacing any previous
// binding for that type.
func (d *ActionDispatcher) Register(actionType string, handler ActionHandler) {
	d.handlers[actionType] = handler
}

func (d *ActionDispatcher) Dispatch(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	handler, ok := d.handlers[action.Type]
	if !ok {
		return FailedPermanently(fmt.Sprintf("unknown action type: %s", action.Type))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// The handler runs in its own goroutine so a collaborator that ignores
	// the context cannot hold the worker past the deadline. A late result
	// is discarded; the buffered channel lets the goroutine finish.
	done := make(chan Outcome, 1)
	go func() {
		done <- handler(callCtx, execCtx, action)
	}()

	var outcome Outcome
	select {
	case outcome = <-done:
	case <-callCtx.Done():
		outcome = Failed(fmt.Sprintf("action timed out after %s", d.timeout))
	}
	if !outcome.Success {
		slog.Warn("action failed",
			"executionId", execCtx.Execution.ID,
			"actionType", action.Type,
			"permanent", outcome.Permanent,
			"reason", outcome.Reason)
	}
	return outcome
}
