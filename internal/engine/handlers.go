package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// Messaging channels understood by the gateway.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
	ChannelNotify   = "notify"
	ChannelCustom   = "custom"
)

// BuiltinHandlers wires the stock action types to their collaborators.
type BuiltinHandlers struct {
	records       RecordStore
	gateway       MessagingGateway
	trigger       WorkflowTrigger
	clock         core.Clock
	maxChainDepth int
}

func NewBuiltinHandlers(records RecordStore, gateway MessagingGateway, trigger WorkflowTrigger, clock core.Clock, maxChainDepth int) *BuiltinHandlers {
	return &BuiltinHandlers{
		records:       records,
		gateway:       gateway,
		trigger:       trigger,
		clock:         clock,
		maxChainDepth: maxChainDepth,
	}
}

// RegisterAll binds every built-in action type on the dispatcher.
func (h *BuiltinHandlers) RegisterAll(d *ActionDispatcher) {
	d.Register(domain.ActionChangeStatus, h.handleChangeStatus)
	d.Register(domain.ActionAssignToUser, h.handleAssignToUser)
	d.Register(domain.ActionSendEmail, h.handleSendEmail)
	d.Register(domain.ActionSendWhatsApp, h.handleSendWhatsApp)
	d.Register(domain.ActionSendSMS, h.handleSendSMS)
	d.Register(domain.ActionCreateTask, h.handleCreateTask)
	d.Register(domain.ActionAddTag, h.handleAddTag)
	d.Register(domain.ActionUpdateScore, h.handleUpdateScore)
	d.Register(domain.ActionNotifyUser, h.handleNotifyUser)
	d.Register(domain.ActionTriggerWorkflow, h.handleTriggerWorkflow)
	d.Register(domain.ActionCustom, h.handleCustom)
}

func (h *BuiltinHandlers) handleChangeStatus(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.ChangeStatusPayload)
	if !ok {
		return FailedPermanently("change_status: invalid payload")
	}
	if err := h.records.UpdateStatus(execCtx.Execution.TenantID, execCtx.Execution.SubjectID, p.Status); err != nil {
		return Failed(err.Error())
	}
	return Succeeded()
}

func (h *BuiltinHandlers) handleAssignToUser(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.AssignToUserPayload)
	if !ok {
		return FailedPermanently("assign_to_user: invalid payload")
	}
	if err := h.records.AssignUser(execCtx.Execution.TenantID, execCtx.Execution.SubjectID, p.UserID); err != nil {
		return Failed(err.Error())
	}
	return Succeeded()
}

func (h *BuiltinHandlers) handleUpdateScore(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.UpdateScorePayload)
	if !ok {
		return FailedPermanently("update_score: invalid payload")
	}
	if err := h.records.UpdateScore(execCtx.Execution.TenantID, execCtx.Execution.SubjectID, p.Delta); err != nil {
		return Failed(err.Error())
	}
	return Succeeded()
}

func (h *BuiltinHandlers) handleAddTag(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.AddTagPayload)
	if !ok {
		return FailedPermanently("add_tag: invalid payload")
	}
	if err := h.records.AddTag(execCtx.Execution.TenantID, execCtx.Execution.SubjectID, p.Tag); err != nil {
		return Failed(err.Error())
	}
	return Succeeded()
}

func (h *BuiltinHandlers) handleCreateTask(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.CreateTaskPayload)
	if !ok {
		return FailedPermanently("create_task: invalid payload")
	}
	task := &domain.Task{
		TenantID: execCtx.Execution.TenantID,
		LeadID:   execCtx.Execution.SubjectID,
		Title:    p.Title,
		Status:   "open",
	}
	if p.AssignedTo != "" {
		task.AssignedTo = sql.NullString{String: p.AssignedTo, Valid: true}
	}
	if p.DueInDays > 0 {
		task.DueDate = sql.NullTime{Time: h.clock.Now().AddDate(0, 0, p.DueInDays), Valid: true}
	}
	if _, err := h.records.CreateTask(task); err != nil {
		return Failed(err.Error())
	}
	return Succeeded()
}

func (h *BuiltinHandlers) publish(ctx context.Context, execCtx *ExecutionContext, channel string, msg *models.OutboundMessage) Outcome {
	msg.TenantID = execCtx.Execution.TenantID
	msg.SubjectID = execCtx.Execution.SubjectID
	if err := h.gateway.Publish(ctx, channel, msg); err != nil {
		return Failed(err.Error())
	}
	return Succeeded()
}

func (h *BuiltinHandlers) handleSendEmail(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.SendEmailPayload)
	if !ok {
		return FailedPermanently("send_email: invalid payload")
	}
	return h.publish(ctx, execCtx, ChannelEmail, &models.OutboundMessage{
		Recipient:  p.To,
		TemplateID: p.TemplateID,
		Subject:    p.Subject,
		Body:       p.Body,
	})
}

func (h *BuiltinHandlers) handleSendWhatsApp(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.SendWhatsAppPayload)
	if !ok {
		return FailedPermanently("send_whatsapp: invalid payload")
	}
	return h.publish(ctx, execCtx, ChannelWhatsApp, &models.OutboundMessage{
		Recipient:  p.To,
		TemplateID: p.TemplateID,
		Body:       p.Message,
	})
}

func (h *BuiltinHandlers) handleSendSMS(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.SendSMSPayload)
	if !ok {
		return FailedPermanently("send_sms: invalid payload")
	}
	return h.publish(ctx, execCtx, ChannelSMS, &models.OutboundMessage{
		Recipient: p.To,
		Body:      p.Message,
	})
}

func (h *BuiltinHandlers) handleNotifyUser(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.NotifyUserPayload)
	if !ok {
		return FailedPermanently("notify_user: invalid payload")
	}
	return h.publish(ctx, execCtx, ChannelNotify, &models.OutboundMessage{
		Recipient: p.UserID,
		Body:      p.Message,
	})
}

func (h *BuiltinHandlers) handleCustom(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.CustomPayload)
	if !ok {
		return FailedPermanently("custom: invalid payload")
	}
	return h.publish(ctx, execCtx, ChannelCustom, &models.OutboundMessage{
		Payload: map[string]any(*p),
	})
}

// handleTriggerWorkflow starts another workflow in the same tenant, carrying
// the original event forward with an incremented chain depth. Once the depth
// limit is reached the action fails permanently with cycle_detected, so
// mutually triggering workflows cannot loop forever.
func (h *BuiltinHandlers) handleTriggerWorkflow(ctx context.Context, execCtx *ExecutionContext, action *domain.ActionConfig) Outcome {
	p, ok := action.Payload.(*domain.TriggerWorkflowPayload)
	if !ok {
		return FailedPermanently("trigger_workflow: invalid payload")
	}
	depth := 0
	if execCtx.TriggerData != nil {
		depth = execCtx.TriggerData.ChainDepth
	}
	if depth+1 > h.maxChainDepth {
		return FailedPermanently(domain.ReasonCycleDetected)
	}
	var event domain.DomainEvent
	if execCtx.TriggerData != nil {
		event = execCtx.TriggerData.Event
	}
	next := &domain.TriggerData{Event: event, ChainDepth: depth + 1}
	if err := h.trigger.TriggerWorkflow(ctx, execCtx.Execution.TenantID, p.WorkflowID, next); err != nil {
		return Failed(fmt.Sprintf("trigger workflow %d: %v", p.WorkflowID, err))
	}
	return Succeeded()
}
