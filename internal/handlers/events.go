package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/response"
)

// EventHandler exposes events together with their collaborators, invitations and budget.
type EventHandler struct {
	events      *services.EventService
	invitations *services.InvitationService
	budgets     *services.BudgetService
}

// NewEventHandler constructs an event handler.
func NewEventHandler(events *services.EventService, invitations *services.InvitationService, budgets *services.BudgetService) *EventHandler {
	return &EventHandler{events: events, invitations: invitations, budgets: budgets}
}

type createEventRequest struct {
	Name      string             `json:"name" validate:"required,max=255"`
	Type      string             `json:"type" validate:"max=100"`
	Location  string             `json:"location" validate:"max=255"`
	Notes     string             `json:"notes"`
	StartDate time.Time          `json:"start_date" validate:"required"`
	EndDate   time.Time          `json:"end_date" validate:"required"`
	Status    models.EventStatus `json:"status" validate:"omitempty,oneof=ongoing completed archived"`
}

type updateEventRequest struct {
	Name      *string             `json:"name" validate:"omitempty,min=1,max=255"`
	Type      *string             `json:"type" validate:"omitempty,max=100"`
	Location  *string             `json:"location" validate:"omitempty,max=255"`
	Notes     *string             `json:"notes"`
	StartDate *time.Time          `json:"start_date"`
	EndDate   *time.Time          `json:"end_date"`
	Status    *models.EventStatus `json:"status" validate:"omitempty,oneof=ongoing completed archived"`
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// GET /api/events
func (h *EventHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 20)
	events, total, err := h.events.List(requestContext(c), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, events, response.NewMeta(page, pageSize, total))
}

// POST /api/events
func (h *EventHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createEventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.events.Create(requestContext(c), userID, services.CreateEventInput{
		Name:      req.Name,
		Type:      req.Type,
		Location:  req.Location,
		Notes:     req.Notes,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, event)
}

// GET /api/events/:eventID
func (h *EventHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	event, err := h.events.Get(requestContext(c), param(c, "eventID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, event)
}

// PATCH /api/events/:eventID
func (h *EventHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updateEventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, _, err := h.events.Update(requestContext(c), param(c, "eventID"), userID, services.UpdateEventInput{
		Name:      req.Name,
		Type:      req.Type,
		Location:  req.Location,
		Notes:     req.Notes,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, event)
}

// DELETE /api/events/:eventID
func (h *EventHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.events.Delete(requestContext(c), param(c, "eventID"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GET /api/events/:eventID/collaborators
func (h *EventHandler) Collaborators(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	collaborators, err := h.events.ListCollaborators(requestContext(c), param(c, "eventID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, collaborators)
}

// POST /api/events/:eventID/invite
func (h *EventHandler) Invite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req inviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invitations.Create(requestContext(c), param(c, "eventID"), userID, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// GET /api/events/:eventID/budget
func (h *EventHandler) Budget(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	budget, err := h.budgets.GetForEvent(requestContext(c), param(c, "eventID"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, budget)
}
