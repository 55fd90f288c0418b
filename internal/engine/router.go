package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// WorkflowStarter is the scheduler as the router sees it.
type WorkflowStarter interface {
	Start(ctx context.Context, wf *domain.Workflow, data *domain.TriggerData) (*domain.WorkflowExecution, error)
}

// TriggerRouter fans a domain event out to the tenant's matching workflows.
// Matching is three gates in order: trigger kind, trigger config
// discriminators, conditions. Nothing is written to the ledger for a
// workflow that fails any gate.
type TriggerRouter struct {
	workflows WorkflowRepo
	starter   WorkflowStarter
	evaluator *Evaluator
}

func NewTriggerRouter(workflows WorkflowRepo, starter WorkflowStarter, evaluator *Evaluator) *TriggerRouter {
	return &TriggerRouter{workflows: workflows, starter: starter, evaluator: evaluator}
}

// Route validates the event and starts every enabled workflow of the
// tenant that matches it. Workflows fail independently: one broken run
// never stops the others. Returns how many executions started.
func (r *TriggerRouter) Route(ctx context.Context, event *domain.DomainEvent) (int, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	workflows, err := r.workflows.FindEnabledByTenantAndTrigger(event.TenantID, event.Kind)
	if err != nil {
		return 0, err
	}

	started := 0
	var errs *multierror.Error
	for i := range *workflows {
		wf := &(*workflows)[i]

		if !matchesTriggerConfig(wf.TriggerConfig, event.Payload) {
			continue
		}
		if !r.evaluator.EvaluateAll(wf.Conditions, event.Payload) {
			slog.Debug("workflow conditions not met",
				"workflowId", wf.ID, "tenantId", wf.TenantID, "kind", event.Kind)
			continue
		}

		data := &domain.TriggerData{Event: *event, ChainDepth: 0}
		if _, err := r.starter.Start(ctx, wf, data); err != nil {
			slog.Error("failed to start workflow",
				"workflowId", wf.ID, "tenantId", wf.TenantID, "error", err)
			errs = multierror.Append(errs, fmt.Errorf("workflow %d: %w", wf.ID, err))
			continue
		}
		started++
	}
	return started, errs.ErrorOrNil()
}

// matchesTriggerConfig checks the per-trigger discriminators, e.g.
// {"fromStatus": "new", "toStatus": "contacted"} for a status change
// trigger. Every configured key must be present in the payload and its
// string form must match exactly. An empty config matches everything.
func matchesTriggerConfig(triggerConfig map[string]string, payload map[string]any) bool {
	for key, want := range triggerConfig {
		value, found := lookupField(payload, key)
		if !found {
			return false
		}
		if fmt.Sprint(value) != want {
			return false
		}
	}
	return true
}
