package handlers

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/eventnest/eventnest/internal/auth"
	"github.com/eventnest/eventnest/internal/middleware"
	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/realtime"
	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/metrics"
)

const commentChannel = "comments"

// Error types reported to socket clients. None of them closes the connection.
const (
	socketErrInvalidJSON   = "invalid_json"
	socketErrUnknownType   = "unknown_type"
	socketErrValidation    = "validation_failed"
	socketErrAuthorization = "authorization_failed"
	socketErrNotFound      = "not_found"
	socketErrServer        = "server_error"
	socketErrAuthFailed    = "authentication_failed"
)

// CommentSocketHandler serves the live discussion of an expense.
type CommentSocketHandler struct {
	hub      *realtime.Hub
	tokens   middleware.TokenValidator
	comments *services.CommentService
	typing   *services.TypingService
	log      *zap.Logger
}

// NewCommentSocketHandler constructs the expense comment socket consumer.
func NewCommentSocketHandler(hub *realtime.Hub, tokens middleware.TokenValidator, comments *services.CommentService, typing *services.TypingService) *CommentSocketHandler {
	return &CommentSocketHandler{
		hub:      hub,
		tokens:   tokens,
		comments: comments,
		typing:   typing,
		log:      logger.WithModule("comment_socket"),
	}
}

type commentSocketMessage struct {
	Type     string  `json:"type"`
	IsTyping bool    `json:"is_typing"`
	Content  string  `json:"content"`
	Parent   *string `json:"parent"`
	Comment  *struct {
		Content string  `json:"content"`
		Parent  *string `json:"parent"`
	} `json:"comment"`
}

// commentBody returns the nested comment object when present and the flat fields otherwise.
func (m commentSocketMessage) commentBody() (string, *string) {
	if m.Comment != nil {
		return m.Comment.Content, m.Comment.Parent
	}
	return m.Content, m.Parent
}

// commentSession is the state of one admitted connection.
type commentSession struct {
	conn   *realtime.Conn
	token  string
	target services.Target
	group  string
	member *models.Collaborator
	user   userPayload
}

// GET /ws/expenses/:expenseID/comments
func (h *CommentSocketHandler) Expense(c *gin.Context) {
	conn, err := h.hub.Upgrade(c.Writer, c.Request, commentChannel)
	if err != nil {
		h.log.Debug("comment socket upgrade failed", zap.Error(err))
		return
	}
	ctx := context.WithoutCancel(requestContext(c))

	token := middleware.RequestToken(c.Request)
	if token == "" {
		h.reject(conn, realtime.CloseAuthFailed, socketErrAuthFailed, "authentication failed: no credential")
		return
	}
	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil || strings.TrimSpace(claims.UserID) == "" {
		h.reject(conn, realtime.CloseAuthFailed, socketErrAuthFailed, "authentication failed: invalid credential")
		return
	}

	expenseID := param(c, "expenseID")
	target := services.ExpenseTarget(expenseID)
	member, err := h.comments.Authorize(ctx, target, claims.UserID)
	if err != nil {
		var appErr *errors.AppError
		switch {
		case stdErrors.As(err, &appErr) && appErr.StatusCode == http.StatusNotFound:
			h.reject(conn, realtime.CloseForbidden, socketErrNotFound, "invalid resource")
		case stdErrors.As(err, &appErr) && appErr.StatusCode == http.StatusForbidden:
			h.reject(conn, realtime.CloseForbidden, socketErrAuthorization, "authorization failed")
		default:
			h.log.Error("comment socket authorization", zap.String("expense_id", expenseID), zap.Error(err))
			h.reject(conn, realtime.CloseGeneric, socketErrServer, "server error")
		}
		return
	}

	session := &commentSession{
		conn:   conn,
		token:  token,
		target: target,
		group:  ExpenseCommentGroup(expenseID),
		member: member,
		user:   userPayload{ID: claims.UserID, Username: claims.Username, Email: claims.Email},
	}
	if member.User != nil {
		session.user = newUserPayload(member.User)
	}

	h.hub.Join(session.group, conn)
	h.log.Debug("comment socket connected", zap.String("group", session.group), zap.String("user_id", claims.UserID))
	conn.Send(gin.H{"type": "auth_status", "authenticated": true, "user": session.user})

	defer func() {
		h.hub.Leave(session.group, conn)
		if err := h.typing.Clear(ctx, target, member.ID); err != nil {
			h.log.Warn("clear typing on disconnect", zap.Error(err))
		}
		h.log.Debug("comment socket disconnected", zap.String("group", session.group), zap.String("user_id", claims.UserID))
	}()

	conn.ReadLoop(func(payload []byte) {
		h.handle(ctx, session, payload)
	})
}

func (h *CommentSocketHandler) handle(ctx context.Context, s *commentSession, payload []byte) {
	if _, err := h.tokens.ValidateAccessToken(s.token); err != nil {
		if iauth.IsExpired(err) {
			s.conn.Close(realtime.CloseTokenExpired, "token expired")
			return
		}
		s.conn.Close(realtime.CloseAuthFailed, "authentication failed: invalid credential")
		return
	}

	var msg commentSocketMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		sendSocketError(s.conn, socketErrInvalidJSON, "Invalid JSON format")
		return
	}

	switch msg.Type {
	case "typing":
		status, err := h.typing.SetFor(ctx, s.target, s.member, msg.IsTyping)
		if err != nil {
			h.fail(s, err)
			return
		}
		h.hub.Broadcast(s.group, gin.H{"type": "typing", "user": s.user, "is_typing": status.IsTyping})
	case "comment":
		content, parent := msg.commentBody()
		comment, err := h.comments.Create(ctx, s.target, s.member.UserID, content, parent)
		if err != nil {
			h.fail(s, err)
			return
		}
		h.hub.Broadcast(s.group, gin.H{"type": "comment", "event": "new_comment", "comment": comment})
		s.conn.Send(gin.H{"type": "comment_created", "comment": comment})
		if err := h.typing.Clear(ctx, s.target, s.member.ID); err != nil {
			h.log.Warn("clear typing after comment", zap.Error(err))
		}
	case "get_comments":
		comments, err := h.comments.List(ctx, s.target, s.member.UserID)
		if err != nil {
			h.fail(s, err)
			return
		}
		if comments == nil {
			comments = []models.Comment{}
		}
		s.conn.Send(gin.H{"type": "comments_list", "comments": comments})
	default:
		sendSocketError(s.conn, socketErrUnknownType, "Unknown message type: "+msg.Type)
	}
}

// fail reports err to the sender. Internal errors are logged and masked.
func (h *CommentSocketHandler) fail(s *commentSession, err error) {
	appErr := errors.FromError(err)
	errorType := socketErrServer
	switch appErr.StatusCode {
	case http.StatusBadRequest:
		errorType = socketErrValidation
	case http.StatusForbidden, http.StatusUnauthorized:
		errorType = socketErrAuthorization
	case http.StatusNotFound:
		errorType = socketErrNotFound
	default:
		h.log.Error("comment socket request failed", zap.String("group", s.group), zap.Error(err))
	}
	sendSocketError(s.conn, errorType, appErr.Message)
}

// reject tells the client why it was refused and closes with code.
func (h *CommentSocketHandler) reject(conn *realtime.Conn, code int, errorType, reason string) {
	metrics.RealtimeRejections.WithLabelValues(commentChannel, strconv.Itoa(code)).Inc()
	conn.Send(gin.H{"type": "error", "error_type": errorType, "message": reason, "authenticated": false})
	conn.Close(code, reason)
}

func sendSocketError(conn *realtime.Conn, errorType, message string) {
	conn.Send(gin.H{"type": "error", "error_type": errorType, "message": message})
}
