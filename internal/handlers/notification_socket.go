package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventnest/eventnest/internal/middleware"
	"github.com/eventnest/eventnest/internal/notifications"
	"github.com/eventnest/eventnest/pkg/logger"
)

// NotificationSocketHandler upgrades requests onto the per-user notification stream.
type NotificationSocketHandler struct {
	stream *notifications.Stream
}

func NewNotificationSocketHandler(stream *notifications.Stream) *NotificationSocketHandler {
	return &NotificationSocketHandler{stream: stream}
}

// GET /ws/notifications
func (h *NotificationSocketHandler) Stream(c *gin.Context) {
	if err := h.stream.HandleRequest(c.Writer, c.Request, middleware.RequestToken(c.Request)); err != nil {
		logger.WithModule("notification_socket").Debug("notification socket upgrade failed", zap.Error(err))
	}
}
