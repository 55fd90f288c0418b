package controllers

import (
	"log/slog"
	"net/http"

	"github.com/dealerflow/dealerflow/internal/engine"
	"github.com/dealerflow/dealerflow/internal/util"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// EngineStore lists engine instances for the status endpoint.
type EngineStore interface {
	GetByLastActive(maxAgeMinutes int) (*[]domain.EngineInstance, error)
}

type EnginesController struct {
	AuthController
	Engines EngineStore
}

func NewEnginesController(engines EngineStore, userRepo engine.UserRepo) *EnginesController {
	return &EnginesController{
		Engines: engines,
		AuthController: AuthController{
			UserRepo: userRepo,
		},
	}
}

func (c *EnginesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/engines", c.RequireAuth(c.handleGetEngines))
}

// handleGetEngines returns the engines with a heartbeat in the last hour.
func (c *EnginesController) handleGetEngines(w http.ResponseWriter, r *http.Request) {
	engines, err := c.Engines.GetByLastActive(60)
	if err != nil {
		slog.Error("Failed to get engines", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get engines"})
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, engines)
}
