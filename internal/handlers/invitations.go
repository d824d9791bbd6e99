package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/response"
)

// InvitationHandler lets invitees inspect and answer an invitation token.
type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type invitationTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// GET /api/invitations/validate?token=
func (h *InvitationHandler) Validate(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, errors.NewBadRequest("token is required"))
		return
	}
	summary, err := h.invitations.Validate(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// POST /api/invitations/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req invitationTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	invitation, err := h.invitations.Accept(requestContext(c), strings.TrimSpace(req.Token), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"message":    "Invitation accepted",
		"event_id":   invitation.EventID,
		"invitation": invitation,
	})
}

// POST /api/invitations/decline
func (h *InvitationHandler) Decline(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req invitationTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	invitation, err := h.invitations.Decline(requestContext(c), strings.TrimSpace(req.Token), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"message":    "Invitation declined",
		"invitation": invitation,
	})
}
