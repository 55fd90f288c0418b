package engine

import (
	"context"
	"log/slog"
)

// Worker drains the job queue: events get routed, due continuations get
// advanced. A failed advance releases the claim so a later poll can retry.
func Worker(ctx context.Context, id int, m *EngineManager) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker stopping due to context cancel", "worker_id", id)
			return
		case j := <-m.jobs:
			if j.event != nil {
				started, err := m.router.Route(ctx, j.event)
				if err != nil {
					slog.Error("Worker event routing finished with errors",
						"worker_id", id, "tenant_id", j.event.TenantID, "kind", j.event.Kind, "error", err)
				}
				slog.Info("Worker routed event",
					"worker_id", id, "tenant_id", j.event.TenantID, "kind", j.event.Kind, "started", started)
			}
			if j.continuation != nil {
				if err := m.scheduler.Advance(ctx, j.continuation); err != nil {
					slog.Error("Worker failed to advance continuation",
						"worker_id", id, "continuation_id", j.continuation.ID, "error", err)
					if err := m.continuations.Unclaim(j.continuation.ID); err != nil {
						slog.Error("Failed to release continuation after error",
							"continuation_id", j.continuation.ID, "error", err)
					}
				}
			}
		}
	}
}
