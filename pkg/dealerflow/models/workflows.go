package models

import (
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// CreateWorkflowRequest is the payload for creating a workflow definition.
type CreateWorkflowRequest struct {
	TenantID      string                `json:"tenantId"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Enabled       bool                  `json:"enabled"`
	Trigger       string                `json:"trigger"`
	TriggerConfig map[string]string     `json:"triggerConfig,omitempty"`
	Conditions    []domain.Condition    `json:"conditions,omitempty"`
	Actions       []domain.ActionConfig `json:"actions"`
}

type CreateWorkflowResponse struct {
	ID int64 `json:"id"`
}

// UpdateWorkflowRequest carries the editable fields of a definition. The
// trigger is immutable once the workflow has executed.
type UpdateWorkflowRequest struct {
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Trigger       string                `json:"trigger"`
	TriggerConfig map[string]string     `json:"triggerConfig,omitempty"`
	Conditions    []domain.Condition    `json:"conditions,omitempty"`
	Actions       []domain.ActionConfig `json:"actions"`
}

type SetWorkflowEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type SetWorkflowEnabledResponse struct {
	OK bool `json:"ok"`
}

// WorkflowApiResponse represents the API view of a workflow definition.
type WorkflowApiResponse struct {
	ID             int64                 `json:"id"`
	TenantID       string                `json:"tenantId"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Enabled        bool                  `json:"enabled"`
	Trigger        string                `json:"trigger"`
	TriggerConfig  map[string]string     `json:"triggerConfig,omitempty"`
	Conditions     []domain.Condition    `json:"conditions,omitempty"`
	Actions        []domain.ActionConfig `json:"actions"`
	ExecutionCount int                   `json:"executionCount"`
	LastExecutedAt time.Time             `json:"lastExecutedAt,omitempty"`
	Created        time.Time             `json:"created"`
	Modified       time.Time             `json:"modified"`
}
