package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

func testExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Execution: &domain.WorkflowExecution{
			ID:        "exec-1",
			TenantID:  "tenant-a",
			SubjectID: "lead-1",
		},
		TriggerData: &domain.TriggerData{},
	}
}

func TestDispatcher_UnknownActionTypeFailsPermanently(t *testing.T) {
	d := NewActionDispatcher(time.Second)

	outcome := d.Dispatch(context.Background(), testExecutionContext(), &domain.ActionConfig{Type: "launch_rocket"})

	if outcome.Success {
		t.Error("Expected failure for unknown action type")
	}
	if !outcome.Permanent {
		t.Error("Expected unknown action type failure to be permanent")
	}
}

func TestDispatcher_RoutesToRegisteredHandler(t *testing.T) {
	d := NewActionDispatcher(time.Second)
	called := false
	d.Register("custom", func(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
		called = true
		return Succeeded()
	})

	outcome := d.Dispatch(context.Background(), testExecutionContext(), &domain.ActionConfig{Type: "custom"})

	if !called {
		t.Error("Expected handler to be called")
	}
	if !outcome.Success {
		t.Errorf("Expected success, got %+v", outcome)
	}
}

func TestDispatcher_BoundsHandlerWithTimeout(t *testing.T) {
	d := NewActionDispatcher(10 * time.Millisecond)
	d.Register("custom", func(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
		select {
		case <-ctx.Done():
			return Failed(ctx.Err().Error())
		case <-time.After(5 * time.Second):
			return Succeeded()
		}
	})

	outcome := d.Dispatch(context.Background(), testExecutionContext(), &domain.ActionConfig{Type: "custom"})

	if outcome.Success {
		t.Error("Expected timeout failure")
	}
}

func TestDispatcher_TimeoutBoundsHandlerThatIgnoresContext(t *testing.T) {
	// A stuck store call that never looks at the context must not hold the
	// worker past the dispatcher deadline.
	records := &MockRecordStore{
		UpdateStatusFunc: func(tenantID, id, status string) error {
			time.Sleep(500 * time.Millisecond)
			return nil
		},
	}
	d := NewActionDispatcher(20 * time.Millisecond)
	h := NewBuiltinHandlers(records, &MockGateway{}, &MockTrigger{}, core.NewRealClock(), 5)
	h.RegisterAll(d)

	actions := mustActions(domain.ActionConfig{Type: domain.ActionChangeStatus, Config: json.RawMessage(`{"status":"contacted"}`)})

	start := time.Now()
	outcome := d.Dispatch(context.Background(), testExecutionContext(), &actions[0])
	elapsed := time.Since(start)

	if elapsed > 250*time.Millisecond {
		t.Errorf("Expected dispatch to return around the 20ms deadline, took %s", elapsed)
	}
	if outcome.Success {
		t.Error("Expected a failure for the timed out action")
	}
	if outcome.Permanent {
		t.Error("Expected the timeout to be transient")
	}
	if !strings.Contains(outcome.Reason, "timed out") {
		t.Errorf("Expected a timeout reason, got %q", outcome.Reason)
	}
}

func TestBuiltinHandlers_RecordActions(t *testing.T) {
	var gotStatus, gotUser, gotTag string
	var gotDelta int
	records := &MockRecordStore{
		UpdateStatusFunc: func(tenantID, id, status string) error {
			gotStatus = status
			return nil
		},
		AssignUserFunc: func(tenantID, id, userID string) error {
			gotUser = userID
			return nil
		},
		UpdateScoreFunc: func(tenantID, id string, delta int) error {
			gotDelta = delta
			return nil
		},
		AddTagFunc: func(tenantID, id, tag string) error {
			gotTag = tag
			return nil
		},
	}
	d := NewActionDispatcher(time.Second)
	h := NewBuiltinHandlers(records, &MockGateway{}, &MockTrigger{}, core.NewRealClock(), 5)
	h.RegisterAll(d)

	actions := mustActions(
		domain.ActionConfig{Type: domain.ActionChangeStatus, Config: json.RawMessage(`{"status":"contacted"}`)},
		domain.ActionConfig{Type: domain.ActionAssignToUser, Config: json.RawMessage(`{"userId":"sales-7"}`)},
		domain.ActionConfig{Type: domain.ActionUpdateScore, Config: json.RawMessage(`{"delta":-10}`)},
		domain.ActionConfig{Type: domain.ActionAddTag, Config: json.RawMessage(`{"tag":"hot"}`)},
	)
	for i := range actions {
		outcome := d.Dispatch(context.Background(), testExecutionContext(), &actions[i])
		if !outcome.Success {
			t.Fatalf("Expected %s to succeed, got %+v", actions[i].Type, outcome)
		}
	}

	if gotStatus != "contacted" {
		t.Errorf("Expected status contacted, got %q", gotStatus)
	}
	if gotUser != "sales-7" {
		t.Errorf("Expected user sales-7, got %q", gotUser)
	}
	if gotDelta != -10 {
		t.Errorf("Expected delta -10, got %d", gotDelta)
	}
	if gotTag != "hot" {
		t.Errorf("Expected tag hot, got %q", gotTag)
	}
}

func TestBuiltinHandlers_MessagingActionsPublishToChannels(t *testing.T) {
	gateway := &MockGateway{}
	d := NewActionDispatcher(time.Second)
	h := NewBuiltinHandlers(&MockRecordStore{}, gateway, &MockTrigger{}, core.NewRealClock(), 5)
	h.RegisterAll(d)

	actions := mustActions(
		domain.ActionConfig{Type: domain.ActionSendEmail, Config: json.RawMessage(`{"to":"a@b.c","subject":"hi"}`)},
		domain.ActionConfig{Type: domain.ActionSendWhatsApp, Config: json.RawMessage(`{"to":"+263771234567","message":"hello"}`)},
		domain.ActionConfig{Type: domain.ActionSendSMS, Config: json.RawMessage(`{"to":"+263771234567","message":"hello"}`)},
		domain.ActionConfig{Type: domain.ActionNotifyUser, Config: json.RawMessage(`{"userId":"sales-7","message":"lead waiting"}`)},
		domain.ActionConfig{Type: domain.ActionCustom, Config: json.RawMessage(`{"webhook":"https://example.com"}`)},
	)
	for i := range actions {
		outcome := d.Dispatch(context.Background(), testExecutionContext(), &actions[i])
		if !outcome.Success {
			t.Fatalf("Expected %s to succeed, got %+v", actions[i].Type, outcome)
		}
	}

	wantChannels := []string{ChannelEmail, ChannelWhatsApp, ChannelSMS, ChannelNotify, ChannelCustom}
	if len(gateway.Published) != len(wantChannels) {
		t.Fatalf("Expected %d published messages, got %d", len(wantChannels), len(gateway.Published))
	}
	for i, want := range wantChannels {
		if gateway.Published[i].Channel != want {
			t.Errorf("Expected channel %s at %d, got %s", want, i, gateway.Published[i].Channel)
		}
		if gateway.Published[i].Message.TenantID != "tenant-a" {
			t.Errorf("Expected tenant to be stamped on the message")
		}
	}
}

func TestBuiltinHandlers_GatewayFailureIsTransient(t *testing.T) {
	gateway := &MockGateway{FailWith: errors.New("broker unavailable")}
	d := NewActionDispatcher(time.Second)
	h := NewBuiltinHandlers(&MockRecordStore{}, gateway, &MockTrigger{}, core.NewRealClock(), 5)
	h.RegisterAll(d)

	actions := mustActions(domain.ActionConfig{Type: domain.ActionSendSMS, Config: json.RawMessage(`{"message":"x"}`)})
	outcome := d.Dispatch(context.Background(), testExecutionContext(), &actions[0])

	if outcome.Success {
		t.Error("Expected failure when the gateway errors")
	}
	if outcome.Permanent {
		t.Error("Expected gateway failure to be transient")
	}
}

func TestBuiltinHandlers_TriggerWorkflowIncrementsChainDepth(t *testing.T) {
	trigger := &MockTrigger{}
	var gotDepth int
	trigger.TriggerWorkflowFunc = func(ctx context.Context, tenantID string, workflowID int64, data *domain.TriggerData) error {
		gotDepth = data.ChainDepth
		return nil
	}
	d := NewActionDispatcher(time.Second)
	h := NewBuiltinHandlers(&MockRecordStore{}, &MockGateway{}, trigger, core.NewRealClock(), 5)
	h.RegisterAll(d)

	execCtx := testExecutionContext()
	execCtx.TriggerData.ChainDepth = 2
	actions := mustActions(domain.ActionConfig{Type: domain.ActionTriggerWorkflow, Config: json.RawMessage(`{"workflowId":42}`)})

	outcome := d.Dispatch(context.Background(), execCtx, &actions[0])

	if !outcome.Success {
		t.Fatalf("Expected success, got %+v", outcome)
	}
	if len(trigger.Calls) != 1 || trigger.Calls[0] != 42 {
		t.Errorf("Expected workflow 42 to be triggered, got %v", trigger.Calls)
	}
	if gotDepth != 3 {
		t.Errorf("Expected chain depth 3, got %d", gotDepth)
	}
}

func TestBuiltinHandlers_TriggerWorkflowDetectsCycle(t *testing.T) {
	trigger := &MockTrigger{}
	d := NewActionDispatcher(time.Second)
	h := NewBuiltinHandlers(&MockRecordStore{}, &MockGateway{}, trigger, core.NewRealClock(), 5)
	h.RegisterAll(d)

	execCtx := testExecutionContext()
	execCtx.TriggerData.ChainDepth = 5
	actions := mustActions(domain.ActionConfig{Type: domain.ActionTriggerWorkflow, Config: json.RawMessage(`{"workflowId":42}`)})

	outcome := d.Dispatch(context.Background(), execCtx, &actions[0])

	if outcome.Success {
		t.Error("Expected cycle detection failure")
	}
	if !outcome.Permanent {
		t.Error("Expected cycle failure to be permanent")
	}
	if outcome.Reason != domain.ReasonCycleDetected {
		t.Errorf("Expected reason %q, got %q", domain.ReasonCycleDetected, outcome.Reason)
	}
	if len(trigger.Calls) != 0 {
		t.Errorf("Expected no trigger call, got %v", trigger.Calls)
	}
}
