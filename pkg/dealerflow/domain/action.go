package domain

import (
	"encoding/json"
	"fmt"
)

// Action types.
const (
	ActionChangeStatus    = "change_status"
	ActionAssignToUser    = "assign_to_user"
	ActionSendEmail       = "send_email"
	ActionSendWhatsApp    = "send_whatsapp"
	ActionSendSMS         = "send_sms"
	ActionCreateTask      = "create_task"
	ActionAddTag          = "add_tag"
	ActionUpdateScore     = "update_score"
	ActionNotifyUser      = "notify_user"
	ActionTriggerWorkflow = "trigger_workflow"
	ActionCustom          = "custom"
)

// ActionConfig is one step of a workflow. Config holds the raw JSON
// parameters as stored; Payload is the decoded, typed form filled in at the
// store boundary by DecodePayload.
type ActionConfig struct {
	Type    string          `json:"type"`
	Config  json.RawMessage `json:"config,omitempty"`
	Delay   int             `json:"delay"` // minutes; 0 executes inline
	Payload ActionPayload   `json:"-"`
}

// ActionPayload is the typed configuration of a single action kind.
type ActionPayload interface {
	actionPayload()
}

type ChangeStatusPayload struct {
	Status string `json:"status"`
}

type AssignToUserPayload struct {
	UserID string `json:"userId"`
}

type SendEmailPayload struct {
	To         string `json:"to,omitempty"` // empty means the subject's contact
	TemplateID string `json:"templateId,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
}

type SendWhatsAppPayload struct {
	To         string `json:"to,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	Message    string `json:"message,omitempty"`
}

type SendSMSPayload struct {
	To      string `json:"to,omitempty"`
	Message string `json:"message"`
}

type CreateTaskPayload struct {
	Title      string `json:"title"`
	AssignedTo string `json:"assignedTo,omitempty"`
	DueInDays  int    `json:"dueInDays,omitempty"`
}

type AddTagPayload struct {
	Tag string `json:"tag"`
}

type UpdateScorePayload struct {
	Delta int `json:"delta"`
}

type NotifyUserPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type TriggerWorkflowPayload struct {
	WorkflowID int64 `json:"workflowId"`
}

type CustomPayload map[string]any

func (ChangeStatusPayload) actionPayload()    {}
func (AssignToUserPayload) actionPayload()    {}
func (SendEmailPayload) actionPayload()       {}
func (SendWhatsAppPayload) actionPayload()    {}
func (SendSMSPayload) actionPayload()         {}
func (CreateTaskPayload) actionPayload()      {}
func (AddTagPayload) actionPayload()          {}
func (UpdateScorePayload) actionPayload()     {}
func (NotifyUserPayload) actionPayload()      {}
func (TriggerWorkflowPayload) actionPayload() {}
func (CustomPayload) actionPayload()          {}

// DecodePayload fills Payload from the raw config based on Type. Unknown
// action types are a definition error.
func (a *ActionConfig) DecodePayload() error {
	raw := a.Config
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var payload ActionPayload
	switch a.Type {
	case ActionChangeStatus:
		payload = &ChangeStatusPayload{}
	case ActionAssignToUser:
		payload = &AssignToUserPayload{}
	case ActionSendEmail:
		payload = &SendEmailPayload{}
	case ActionSendWhatsApp:
		payload = &SendWhatsAppPayload{}
	case ActionSendSMS:
		payload = &SendSMSPayload{}
	case ActionCreateTask:
		payload = &CreateTaskPayload{}
	case ActionAddTag:
		payload = &AddTagPayload{}
	case ActionUpdateScore:
		payload = &UpdateScorePayload{}
	case ActionNotifyUser:
		payload = &NotifyUserPayload{}
	case ActionTriggerWorkflow:
		payload = &TriggerWorkflowPayload{}
	case ActionCustom:
		payload = &CustomPayload{}
	default:
		return fmt.Errorf("unknown action type: %s", a.Type)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return fmt.Errorf("decode %s config: %w", a.Type, err)
	}
	a.Payload = payload
	return nil
}

// DecodeActionPayloads decodes every action's config in place.
func DecodeActionPayloads(actions []ActionConfig) error {
	for i := range actions {
		if err := actions[i].DecodePayload(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// ValidateActions checks definition-time invariants: non-empty list,
// known types, non-negative delays.
func ValidateActions(actions []ActionConfig) error {
	if len(actions) == 0 {
		return fmt.Errorf("actions list must not be empty")
	}
	for i := range actions {
		if actions[i].Delay < 0 {
			return fmt.Errorf("action %d: delay must not be negative", i)
		}
		if err := actions[i].DecodePayload(); err != nil {
			return err
		}
	}
	return nil
}
