package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/response"
)

// Broadcaster fans a message out to every socket in a group.
type Broadcaster interface {
	Broadcast(group string, message any)
}

// ExpenseCommentGroup names the realtime group of an expense discussion.
func ExpenseCommentGroup(expenseID string) string {
	return "expense_" + expenseID + "_comments"
}

// CommentHandler exposes expense and task discussions plus typing indicators.
type CommentHandler struct {
	comments *services.CommentService
	typing   *services.TypingService
	tasks    *services.TaskService
	realtime Broadcaster
}

// NewCommentHandler constructs a comment handler. realtime may be nil.
func NewCommentHandler(comments *services.CommentService, typing *services.TypingService, tasks *services.TaskService, realtime Broadcaster) *CommentHandler {
	return &CommentHandler{comments: comments, typing: typing, tasks: tasks, realtime: realtime}
}

type createCommentRequest struct {
	Content string  `json:"content" validate:"required,max=5000"`
	Parent  *string `json:"parent"`
}

type updateCommentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type typingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type typingUser struct {
	User         userPayload `json:"user"`
	IsTyping     bool        `json:"is_typing"`
	LastActivity time.Time   `json:"last_activity"`
}

// GET /api/expenses/:expenseID/comments
func (h *CommentHandler) ListExpense(c *gin.Context) {
	h.list(c, services.ExpenseTarget(param(c, "expenseID")))
}

// POST /api/expenses/:expenseID/comments
func (h *CommentHandler) CreateExpense(c *gin.Context) {
	expenseID := param(c, "expenseID")
	comment, ok := h.create(c, services.ExpenseTarget(expenseID))
	if ok && h.realtime != nil {
		h.realtime.Broadcast(ExpenseCommentGroup(expenseID), gin.H{
			"type":    "comment",
			"event":   "new_comment",
			"comment": comment,
		})
	}
}

// GET /api/events/:eventID/tasks/:taskID/comments
func (h *CommentHandler) ListTask(c *gin.Context) {
	target, ok := h.taskTarget(c)
	if !ok {
		return
	}
	h.list(c, target)
}

// POST /api/events/:eventID/tasks/:taskID/comments
func (h *CommentHandler) CreateTask(c *gin.Context) {
	target, ok := h.taskTarget(c)
	if !ok {
		return
	}
	h.create(c, target)
}

// PATCH /api/comments/:commentID
func (h *CommentHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updateCommentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	comment, err := h.comments.Update(requestContext(c), param(c, "commentID"), userID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, comment)
}

// DELETE /api/comments/:commentID
func (h *CommentHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.comments.Delete(requestContext(c), param(c, "commentID"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// POST /api/expenses/:expenseID/typing
func (h *CommentHandler) SetTyping(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req typingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	expenseID := param(c, "expenseID")
	status, err := h.typing.Set(requestContext(c), services.ExpenseTarget(expenseID), userID, req.IsTyping)
	if err != nil {
		response.Error(c, err)
		return
	}

	var user userPayload
	if status.Collaborator != nil && status.Collaborator.User != nil {
		user = newUserPayload(status.Collaborator.User)
	}
	if h.realtime != nil {
		h.realtime.Broadcast(ExpenseCommentGroup(expenseID), gin.H{
			"type":      "typing",
			"user":      user,
			"is_typing": status.IsTyping,
		})
	}
	response.Success(c, http.StatusOK, typingUser{User: user, IsTyping: status.IsTyping, LastActivity: status.LastActivity})
}

// GET /api/expenses/:expenseID/typing-users
func (h *CommentHandler) TypingUsers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rows, err := h.typing.ListTyping(requestContext(c), services.ExpenseTarget(param(c, "expenseID")), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	users := make([]typingUser, 0, len(rows))
	for _, row := range rows {
		if row.Collaborator == nil || row.Collaborator.User == nil {
			continue
		}
		users = append(users, typingUser{
			User:         newUserPayload(row.Collaborator.User),
			IsTyping:     row.IsTyping,
			LastActivity: row.LastActivity,
		})
	}
	response.Success(c, http.StatusOK, users)
}

func (h *CommentHandler) list(c *gin.Context, target services.Target) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	comments, err := h.comments.List(requestContext(c), target, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	response.Success(c, http.StatusOK, comments)
}

func (h *CommentHandler) create(c *gin.Context, target services.Target) (*models.Comment, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	var req createCommentRequest
	if !bindAndValidate(c, &req) {
		return nil, false
	}
	comment, err := h.comments.Create(requestContext(c), target, userID, req.Content, req.Parent)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	response.Success(c, http.StatusCreated, comment)
	return comment, true
}

// taskTarget checks the task belongs to the event named in the path.
func (h *CommentHandler) taskTarget(c *gin.Context) (services.Target, bool) {
	taskID := param(c, "taskID")
	eventID, err := h.tasks.EventID(requestContext(c), taskID)
	if err != nil {
		response.Error(c, err)
		return services.Target{}, false
	}
	if eventID != param(c, "eventID") {
		response.Error(c, errors.NewNotFound("Task"))
		return services.Target{}, false
	}
	return services.TaskTarget(taskID), true
}
