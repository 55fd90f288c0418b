package controllers

import (
	"errors"
	"net/http"

	"github.com/dealerflow/dealerflow/internal/engine"
	"github.com/dealerflow/dealerflow/internal/util"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// EventSubmitter is the engine manager as the events endpoint sees it.
type EventSubmitter interface {
	SubmitEvent(event *domain.DomainEvent) error
}

type EventsController struct {
	AuthController
	Manager EventSubmitter
}

func NewEventsController(manager EventSubmitter, userRepo engine.UserRepo) *EventsController {
	return &EventsController{
		Manager: manager,
		AuthController: AuthController{
			UserRepo: userRepo,
		},
	}
}

func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/events", c.RequireAuth(c.handleSubmitEvent))
}

// handleSubmitEvent accepts a domain event for asynchronous routing. A 202
// means the event was valid and queued, not that any workflow matched.
func (c *EventsController) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.SubmitEventRequest](r)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid event data"})
		return
	}

	event := &domain.DomainEvent{
		TenantID:  req.TenantID,
		Kind:      req.Kind,
		SubjectID: req.SubjectID,
		Payload:   req.Payload,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = *req.OccurredAt
	}

	if err := c.Manager.SubmitEvent(event); err != nil {
		if errors.Is(err, engine.ErrQueueFull) {
			util.WriteJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "Engine busy, try again later"})
			return
		}
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	util.WriteJSONResponse(w, http.StatusAccepted, models.SubmitEventResponse{Accepted: true})
}
