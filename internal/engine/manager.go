package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/dealerflow/dealerflow/internal/config"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// ErrQueueFull is returned by SubmitEvent when the job queue has no room;
// the caller decides whether to retry or report back pressure.
var ErrQueueFull = errors.New("engine job queue is full")

// job is one unit of work for the pool: either a freshly submitted event to
// route or a due continuation to resume.
type job struct {
	event        *domain.DomainEvent
	continuation *domain.Continuation
}

// EngineManager owns the background machinery: it registers this engine
// instance, polls the database for due continuations, repairs continuations
// abandoned by dead engines, and feeds a pool of workers.
type EngineManager struct {
	router        *TriggerRouter
	scheduler     *ExecutionScheduler
	continuations ContinuationRepo
	engines       EngineRepo
	clock         core.Clock
	engineID      int64
	jobs          chan job
	wakeup        chan struct{}
}

func NewEngineManager(router *TriggerRouter, scheduler *ExecutionScheduler,
	continuations ContinuationRepo, engines EngineRepo, clock core.Clock) *EngineManager {
	queueSize := config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE)
	if queueSize <= 0 {
		queueSize = 10 // fallback default
	}
	return &EngineManager{
		router:        router,
		scheduler:     scheduler,
		continuations: continuations,
		engines:       engines,
		clock:         clock,
		jobs:          make(chan job, queueSize),
		wakeup:        make(chan struct{}, 1),
	}
}

// StartEngine registers the engine instance, spins up the worker pool and
// blocks polling for due continuations until the context is cancelled.
func (m *EngineManager) StartEngine(ctx context.Context) {
	dur, _ := time.ParseDuration(config.GetSystemSettingString(config.ENGINE_CHECK_DB_INTERVAL))
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	m.registerEngineInstance(ctx)

	go m.startContinuationRepairService(ctx)

	workers := config.GetSystemSettingInteger(config.ENGINE_EXECUTOR_SIZE)
	slog.Info("Starting workflow engine", "workers", workers, "queue_size", cap(m.jobs))
	for i := 0; i < workers; i++ {
		go Worker(ctx, i, m)
	}

	slog.Info("Workflow engine started", "poll_interval", dur.String())

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Workflow engine stopping due to context cancel")
			if m.engineID != 0 {
				if err := m.engines.DeleteByID(m.engineID); err != nil {
					slog.Error("Failed to deregister engine", "engine_id", m.engineID, "error", err)
				}
			}
			return
		case <-ticker.C:
			m.pollDueContinuations(ctx)
		case <-m.wakeup:
			m.pollDueContinuations(ctx)
		}
	}
}

// SubmitEvent validates an incoming event and queues it for routing. The
// caller gets an error only for an invalid event; routing outcomes land in
// the ledger.
func (m *EngineManager) SubmitEvent(event *domain.DomainEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if !event.OccurredAt.IsZero() {
		event.OccurredAt = event.OccurredAt.UTC()
	} else {
		event.OccurredAt = m.clock.Now().UTC()
	}
	// Never block the caller on a full queue; submit stays synchronous.
	select {
	case m.jobs <- job{event: event}:
	default:
		return ErrQueueFull
	}
	// A submit is a good moment to check for due continuations too.
	m.Wakeup()
	return nil
}

func (m *EngineManager) Wakeup() {
	slog.Debug("Wakeup Manager called")
	select {
	case m.wakeup <- struct{}{}:
	default:
	}
}

// pollDueContinuations claims a batch of due continuations and queues them
// for the workers. Claims that lose the compare-and-set race belong to
// another engine and are skipped.
func (m *EngineManager) pollDueContinuations(ctx context.Context) {
	slog.Debug("Polling for due continuations")

	batchSize := config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE)
	if len(m.jobs) >= batchSize {
		slog.Warn("job queue full, skipping continuation poll, possibly long running actions")
		return
	}

	due, err := m.continuations.FindDue(batchSize)
	if err != nil {
		slog.Error("Error fetching due continuations", "error", err)
		return
	}

	for i := range *due {
		c := (*due)[i]
		claimed, err := m.continuations.Claim(&c, m.engineID)
		if err != nil {
			slog.Error("Error claiming continuation", "continuation_id", c.ID, "error", err)
			continue
		}
		if !claimed {
			slog.InfoContext(ctx, "Unable to claim continuation, possibly picked up by another engine",
				"continuation_id", c.ID, "execution_id", c.ExecutionID)
			continue
		}
		slog.InfoContext(ctx, "Queueing due continuation",
			"continuation_id", c.ID, "execution_id", c.ExecutionID, "action_index", c.ActionIndex)
		m.jobs <- job{continuation: &c}
	}
}

// startContinuationRepairService periodically releases continuations whose
// claiming engine has gone quiet, so another engine can pick them up. The
// idempotent action trail makes the re-run safe.
func (m *EngineManager) startContinuationRepairService(ctx context.Context) {
	dur, _ := time.ParseDuration(config.GetSystemSettingString(config.ENGINE_STUCK_CONTINUATIONS_INTERVAL))
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Continuation repair service stopping due to context cancel")
			return
		case <-ticker.C:
			stuck, err := m.continuations.FindStuck(
				config.GetSystemSettingInteger(config.ENGINE_STUCK_REPAIR_AFTER_MINUTES))
			if err != nil {
				slog.Error("Error finding stuck continuations", "error", err)
				continue
			}
			for _, c := range *stuck {
				slog.Warn("Repairing stuck continuation",
					"continuation_id", c.ID, "execution_id", c.ExecutionID, "engine_id", c.EngineID.Int64)
				if err := m.continuations.Unclaim(c.ID); err != nil {
					slog.Error("Failed to release stuck continuation", "continuation_id", c.ID, "error", err)
				}
			}
		}
	}
}

func (m *EngineManager) registerEngineInstance(ctx context.Context) {
	name := config.GetSystemSettingString("DFLOW_ENGINE_NAME")
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			name = "dealerflow-engine"
		} else {
			name = hostname
		}
	}
	instance := &domain.EngineInstance{Name: name}
	id, err := m.engines.Save(instance)
	if err != nil {
		slog.Error("Failed to register engine", "error", err)
		return
	}
	m.engineID = id
	slog.Info("Registered engine", "engine_id", id, "name", name)
	// Heartbeat so the repair service on other engines can tell us apart
	// from the dead.
	hb := time.NewTicker(30 * time.Second)
	go func(engineID int64) {
		for {
			select {
			case <-ctx.Done():
				hb.Stop()
				return
			case <-hb.C:
				if err := m.engines.UpdateLastActive(engineID); err != nil {
					slog.Error("Failed to update engine last_active", "engine_id", engineID, "error", err)
				}
			}
		}
	}(id)
}
