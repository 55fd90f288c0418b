package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

func TestManager_SubmitEventValidates(t *testing.T) {
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewEngineManager(nil, nil, nil, nil, clock)

	if err := m.SubmitEvent(&domain.DomainEvent{Kind: domain.TriggerRecordCreated}); err == nil {
		t.Error("Expected a validation error for a missing tenant")
	}

	event := &domain.DomainEvent{TenantID: "tenant-a", Kind: domain.TriggerRecordCreated, SubjectID: "lead-1"}
	if err := m.SubmitEvent(event); err != nil {
		t.Fatalf("SubmitEvent failed: %v", err)
	}
	if event.OccurredAt.IsZero() {
		t.Error("Expected a default occurred-at timestamp")
	}
}

func TestManager_SubmitEventRejectsWhenQueueFull(t *testing.T) {
	t.Setenv("DFLOW_ENGINE_BATCH_SIZE", "1")
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewEngineManager(nil, nil, nil, nil, clock)

	event := &domain.DomainEvent{TenantID: "tenant-a", Kind: domain.TriggerRecordCreated, SubjectID: "lead-1"}
	if err := m.SubmitEvent(event); err != nil {
		t.Fatalf("First submit failed: %v", err)
	}
	// No workers are draining the queue, the next submit must come back
	// immediately instead of blocking.
	err := m.SubmitEvent(event)
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}
