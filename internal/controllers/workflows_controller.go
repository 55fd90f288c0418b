package controllers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dealerflow/dealerflow/internal/engine"
	"github.com/dealerflow/dealerflow/internal/util"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// WorkflowStore is the definition CRUD surface the controller needs.
type WorkflowStore interface {
	Save(wf *domain.Workflow) (int64, error)
	Update(wf *domain.Workflow) error
	FindByID(tenantID string, id int64) (*domain.Workflow, error)
	FindAllByTenant(tenantID string) (*[]domain.Workflow, error)
	SetEnabled(tenantID string, id int64, enabled bool) error
	DeleteByID(tenantID string, id int64) error
}

type WorkflowsController struct {
	AuthController
	Workflows WorkflowStore
}

func NewWorkflowsController(workflows WorkflowStore, userRepo engine.UserRepo) *WorkflowsController {
	return &WorkflowsController{
		Workflows: workflows,
		AuthController: AuthController{
			UserRepo: userRepo,
		},
	}
}

func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", c.RequireAuth(c.handleCreateWorkflow))
	mux.HandleFunc("GET /api/workflows", c.RequireAuth(c.handleListWorkflows))
	mux.HandleFunc("GET /api/workflows/{id}", c.RequireAuth(c.handleGetWorkflow))
	mux.HandleFunc("PUT /api/workflows/{id}", c.RequireAuth(c.handleUpdateWorkflow))
	mux.HandleFunc("POST /api/workflows/{id}/enabled", c.RequireAuth(c.handleSetEnabled))
	mux.HandleFunc("DELETE /api/workflows/{id}", c.RequireAuth(c.handleDeleteWorkflow))
}

func workflowToApiResponse(wf *domain.Workflow) models.WorkflowApiResponse {
	resp := models.WorkflowApiResponse{
		ID:             wf.ID,
		TenantID:       wf.TenantID,
		Name:           wf.Name,
		Description:    wf.Description,
		Enabled:        wf.Enabled,
		Trigger:        wf.Trigger,
		TriggerConfig:  wf.TriggerConfig,
		Conditions:     wf.Conditions,
		Actions:        wf.Actions,
		ExecutionCount: wf.ExecutionCount,
		Created:        wf.Created,
		Modified:       wf.Modified,
	}
	if wf.LastExecutedAt.Valid {
		resp.LastExecutedAt = wf.LastExecutedAt.Time
	}
	return resp
}

func validateDefinition(trigger string, actions []domain.ActionConfig) (string, bool) {
	if !domain.IsValidTriggerKind(trigger) {
		return "Unknown trigger kind: " + trigger, false
	}
	if err := domain.ValidateActions(actions); err != nil {
		return err.Error(), false
	}
	return "", true
}

func (c *WorkflowsController) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CreateWorkflowRequest](r)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid workflow data"})
		return
	}
	if req.TenantID == "" || req.Name == "" {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "tenantId and name are required"})
		return
	}
	if msg, ok := validateDefinition(req.Trigger, req.Actions); !ok {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	for i := range req.Conditions {
		if !domain.IsValidOperator(req.Conditions[i].Operator) {
			util.WriteJSONResponse(w, http.StatusBadRequest,
				map[string]string{"error": "Unknown operator: " + req.Conditions[i].Operator})
			return
		}
	}

	now := time.Now().UTC()
	wf := &domain.Workflow{
		TenantID:      req.TenantID,
		Name:          req.Name,
		Description:   req.Description,
		Enabled:       req.Enabled,
		Trigger:       req.Trigger,
		TriggerConfig: req.TriggerConfig,
		Conditions:    req.Conditions,
		Actions:       req.Actions,
		Created:       now,
		Modified:      now,
	}
	id, err := c.Workflows.Save(wf)
	if err != nil {
		slog.Error("Failed to create workflow", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create workflow"})
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, models.CreateWorkflowResponse{ID: id})
}

func (c *WorkflowsController) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "tenantId is required"})
		return
	}
	workflows, err := c.Workflows.FindAllByTenant(tenantID)
	if err != nil {
		slog.Error("Failed to list workflows", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list workflows"})
		return
	}
	resp := make([]models.WorkflowApiResponse, 0, len(*workflows))
	for i := range *workflows {
		resp = append(resp, workflowToApiResponse(&(*workflows)[i]))
	}
	util.WriteJSONResponse(w, http.StatusOK, resp)
}

func (c *WorkflowsController) getWorkflowFromPath(w http.ResponseWriter, r *http.Request) (*domain.Workflow, bool) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "tenantId is required"})
		return nil, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid workflow ID"})
		return nil, false
	}
	wf, err := c.Workflows.FindByID(tenantID, id)
	if err != nil {
		slog.Error("Failed to get workflow", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get workflow"})
		return nil, false
	}
	if wf == nil {
		util.WriteJSONResponse(w, http.StatusNotFound, map[string]string{"error": "Workflow not found"})
		return nil, false
	}
	return wf, true
}

func (c *WorkflowsController) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.getWorkflowFromPath(w, r)
	if !ok {
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, workflowToApiResponse(wf))
}

func (c *WorkflowsController) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.getWorkflowFromPath(w, r)
	if !ok {
		return
	}
	req, err := util.DecodeJSONBody[models.UpdateWorkflowRequest](r)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid workflow data"})
		return
	}
	if msg, ok := validateDefinition(req.Trigger, req.Actions); !ok {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	// The trigger is frozen once the workflow has run; running executions
	// hold their own snapshot, but history would stop making sense if the
	// definition switched to a different trigger under the same id.
	if wf.ExecutionCount > 0 && req.Trigger != wf.Trigger {
		util.WriteJSONResponse(w, http.StatusConflict,
			map[string]string{"error": "Trigger cannot change after the workflow has executed"})
		return
	}

	wf.Name = req.Name
	wf.Description = req.Description
	wf.Trigger = req.Trigger
	wf.TriggerConfig = req.TriggerConfig
	wf.Conditions = req.Conditions
	wf.Actions = req.Actions
	if err := c.Workflows.Update(wf); err != nil {
		slog.Error("Failed to update workflow", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update workflow"})
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, workflowToApiResponse(wf))
}

func (c *WorkflowsController) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.getWorkflowFromPath(w, r)
	if !ok {
		return
	}
	req, err := util.DecodeJSONBody[models.SetWorkflowEnabledRequest](r)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request data"})
		return
	}
	if err := c.Workflows.SetEnabled(wf.TenantID, wf.ID, req.Enabled); err != nil {
		slog.Error("Failed to set workflow enabled", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update workflow"})
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, models.SetWorkflowEnabledResponse{OK: true})
}

func (c *WorkflowsController) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.getWorkflowFromPath(w, r)
	if !ok {
		return
	}
	if err := c.Workflows.DeleteByID(wf.TenantID, wf.ID); err != nil {
		slog.Error("Failed to delete workflow", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete workflow"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
