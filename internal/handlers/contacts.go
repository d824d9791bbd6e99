package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/response"
)

// ContactHandler manages the caller's address book.
type ContactHandler struct {
	contacts *services.ContactService
}

func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

type contactRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=255"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
	Notes *string `json:"notes"`
}

func (r contactRequest) input() services.ContactInput {
	return services.ContactInput{Name: r.Name, Email: r.Email, Phone: r.Phone, Notes: r.Notes}
}

// GET /api/contacts
func (h *ContactHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	contacts, err := h.contacts.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	response.Success(c, http.StatusOK, contacts)
}

// POST /api/contacts
func (h *ContactHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req contactRequest
	if !bindAndValidate(c, &req) {
		return
	}
	contact, err := h.contacts.Create(requestContext(c), userID, req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, contact)
}

// GET /api/contacts/:id
func (h *ContactHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	contact, err := h.contacts.Get(requestContext(c), userID, param(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, contact)
}

// PATCH /api/contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req contactRequest
	if !bindAndValidate(c, &req) {
		return
	}
	contact, err := h.contacts.Update(requestContext(c), userID, param(c, "id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, contact)
}

// DELETE /api/contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.contacts.Delete(requestContext(c), userID, param(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
