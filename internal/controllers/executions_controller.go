package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dealerflow/dealerflow/internal/engine"
	"github.com/dealerflow/dealerflow/internal/util"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// ExecutionStore is the read surface over the execution ledger.
type ExecutionStore interface {
	FindByID(tenantID string, id string) (*domain.WorkflowExecution, error)
	FindActionsByExecutionID(executionID string) (*[]domain.ExecutionAction, error)
	SearchExecutions(req *models.SearchExecutionsRequest) (*[]domain.WorkflowExecution, error)
}

type ExecutionsController struct {
	AuthController
	Executions ExecutionStore
}

func NewExecutionsController(executions ExecutionStore, userRepo engine.UserRepo) *ExecutionsController {
	return &ExecutionsController{
		Executions: executions,
		AuthController: AuthController{
			UserRepo: userRepo,
		},
	}
}

func (c *ExecutionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/executions/{id}", c.RequireAuth(c.handleGetExecution))
	mux.HandleFunc("POST /api/executions/search", c.RequireAuth(c.handleSearchExecutions))
}

func executionToApiResponse(ex *domain.WorkflowExecution, actions *[]domain.ExecutionAction) models.ExecutionApiResponse {
	resp := models.ExecutionApiResponse{
		ID:              ex.ID,
		WorkflowID:      ex.WorkflowID,
		TenantID:        ex.TenantID,
		SubjectID:       ex.SubjectID,
		Status:          ex.Status,
		ActionsExecuted: []models.ActionResult{},
		ActionsFailed:   []models.ActionResult{},
		Created:         ex.Created,
	}
	if ex.FailureReason.Valid {
		resp.FailureReason = ex.FailureReason.String
	}
	if ex.StartedAt.Valid {
		resp.StartedAt = ex.StartedAt.Time
	}
	if ex.CompletedAt.Valid {
		resp.CompletedAt = ex.CompletedAt.Time
	}
	if ex.TriggerData.Valid {
		var data map[string]any
		if err := json.Unmarshal([]byte(ex.TriggerData.String), &data); err == nil {
			resp.TriggerData = data
		}
	}
	if actions != nil {
		for _, a := range *actions {
			result := models.ActionResult{
				ActionIndex: a.ActionIndex,
				ActionType:  a.ActionType,
				DateTime:    a.DateTime,
			}
			if a.Reason.Valid {
				result.Reason = a.Reason.String
			}
			if a.Outcome == domain.OutcomeSuccess {
				resp.ActionsExecuted = append(resp.ActionsExecuted, result)
			} else {
				resp.ActionsFailed = append(resp.ActionsFailed, result)
			}
		}
	}
	return resp
}

func (c *ExecutionsController) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "tenantId is required"})
		return
	}
	id := r.PathValue("id")

	ex, err := c.Executions.FindByID(tenantID, id)
	if err != nil {
		slog.Error("Failed to get execution", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get execution"})
		return
	}
	if ex == nil {
		util.WriteJSONResponse(w, http.StatusNotFound, map[string]string{"error": "Execution not found"})
		return
	}

	actions, err := c.Executions.FindActionsByExecutionID(ex.ID)
	if err != nil {
		slog.Error("Failed to get execution actions", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get execution"})
		return
	}

	util.WriteJSONResponse(w, http.StatusOK, executionToApiResponse(ex, actions))
}

func (c *ExecutionsController) handleSearchExecutions(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.SearchExecutionsRequest](r)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid search request"})
		return
	}
	if req.TenantID == "" {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "tenantId is required"})
		return
	}

	executions, err := c.Executions.SearchExecutions(&req)
	if err != nil {
		slog.Error("Failed to search executions", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to search executions"})
		return
	}

	resp := models.SearchExecutionsResponse{
		Results:    len(*executions),
		Offset:     req.Offset,
		Executions: make([]models.ExecutionApiResponse, 0, len(*executions)),
	}
	for i := range *executions {
		// The search listing omits action trails, fetch the execution by
		// id for the full view.
		resp.Executions = append(resp.Executions, executionToApiResponse(&(*executions)[i], nil))
	}
	util.WriteJSONResponse(w, http.StatusOK, resp)
}
