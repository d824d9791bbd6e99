package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/response"
)

const (
	defaultNotificationPageSize = 20
	maxNotificationPageSize     = 100
)

// NotificationHandler exposes the notification inbox over REST.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type bulkNotificationRequest struct {
	Action          string   `json:"action" validate:"required"`
	NotificationIDs []string `json:"notification_ids"`
}

type notificationActionRequest struct {
	Action string `json:"action" validate:"required,oneof=mark_read mark_unread"`
}

// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := parseIntQuery(c, "page_size", defaultNotificationPageSize)
	if pageSize <= 0 {
		pageSize = defaultNotificationPageSize
	}
	if pageSize > maxNotificationPageSize {
		pageSize = maxNotificationPageSize
	}

	items, total, err := h.service.List(requestContext(c), userID, services.NotificationFilter{
		UnreadOnly: parseBoolQuery(c, "unread_only"),
		ReadOnly:   parseBoolQuery(c, "read_only"),
		Level:      c.Query("level"),
		Search:     c.Query("search"),
		Public:     parseOptionalBoolQuery(c, "public"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, response.NewMeta(page, pageSize, total))
}

// POST /api/notifications
func (h *NotificationHandler) Bulk(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req bulkNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Bulk(requestContext(c), userID, req.Action, req.NotificationIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// DELETE /api/notifications
func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteAll(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// GET /api/notifications/count
func (h *NotificationHandler) Count(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	count, err := h.service.Count(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, count)
}

// GET /api/notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	view, err := h.service.Get(requestContext(c), userID, param(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// POST /api/notifications/:id
func (h *NotificationHandler) Action(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req notificationActionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	id := param(c, "id")
	switch strings.ToLower(req.Action) {
	case services.BulkMarkRead:
		view, err := h.service.MarkRead(requestContext(c), userID, id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, view)
	case services.BulkMarkUnread:
		view, err := h.service.MarkUnread(requestContext(c), userID, id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, view)
	default:
		response.Error(c, errors.NewBadRequest("action must be mark_read or mark_unread"))
	}
}

// DELETE /api/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(requestContext(c), userID, param(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
