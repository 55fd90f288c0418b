package models

import "time"

// ActionResult is one recorded action outcome within an execution.
type ActionResult struct {
	ActionIndex int       `json:"actionIndex"`
	ActionType  string    `json:"actionType"`
	Reason      string    `json:"reason,omitempty"`
	DateTime    time.Time `json:"dateTime"`
}

// ExecutionApiResponse represents the API view of a workflow execution,
// including the ordered success and failure trails.
type ExecutionApiResponse struct {
	ID              string         `json:"id"`
	WorkflowID      int64          `json:"workflowId"`
	TenantID        string         `json:"tenantId"`
	SubjectID       string         `json:"subjectId"`
	Status          string         `json:"status"`
	TriggerData     map[string]any `json:"triggerData,omitempty"`
	ActionsExecuted []ActionResult `json:"actionsExecuted"`
	ActionsFailed   []ActionResult `json:"actionsFailed"`
	FailureReason   string         `json:"failureReason,omitempty"`
	StartedAt       time.Time      `json:"startedAt,omitempty"`
	CompletedAt     time.Time      `json:"completedAt,omitempty"`
	Created         time.Time      `json:"created"`
}

// SearchExecutionsRequest filters the execution history.
type SearchExecutionsRequest struct {
	TenantID   string `json:"tenantId"`
	WorkflowID int64  `json:"workflowId,omitempty"`
	SubjectID  string `json:"subjectId,omitempty"`
	Status     string `json:"status,omitempty"`
	Limit      int64  `json:"limit,omitempty"`
	Offset     int64  `json:"offset,omitempty"`
}

type SearchExecutionsResponse struct {
	Results    int                    `json:"results"`
	Offset     int64                  `json:"offset"`
	Executions []ExecutionApiResponse `json:"executions"`
}
