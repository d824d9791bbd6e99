package api

import (
	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/handlers"
)

func registerAuthRoutes(public *gin.RouterGroup, handler *handlers.AuthHandler) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
	}
}

func registerPublicInvitationRoutes(public *gin.RouterGroup, handler *handlers.InvitationHandler) {
	public.GET("/invitations/validate", handler.Validate)
}

func registerInvitationRoutes(api *gin.RouterGroup, handler *handlers.InvitationHandler) {
	group := api.Group("/invitations")
	{
		group.POST("/accept", handler.Accept)
		group.POST("/decline", handler.Decline)
	}
}

func registerEventRoutes(api *gin.RouterGroup, handler *handlers.EventHandler) {
	group := api.Group("/events")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/:eventID", handler.Get)
		group.PATCH("/:eventID", handler.Update)
		group.DELETE("/:eventID", handler.Delete)
		group.GET("/:eventID/collaborators", handler.Collaborators)
		group.POST("/:eventID/invite", handler.Invite)
		group.GET("/:eventID/budget", handler.Budget)
	}
}

func registerBudgetRoutes(api *gin.RouterGroup, handler *handlers.BudgetHandler, comments *handlers.CommentHandler) {
	budgets := api.Group("/budgets")
	{
		budgets.GET("/:budgetID", handler.Get)
		budgets.PATCH("/:budgetID", handler.Update)
		budgets.POST("/:budgetID/toggle", handler.Toggle)
		budgets.GET("/:budgetID/expenses", handler.ListExpenses)
		budgets.POST("/:budgetID/expenses", handler.CreateExpense)
	}

	expenses := api.Group("/expenses")
	{
		expenses.GET("/:expenseID", handler.GetExpense)
		expenses.PATCH("/:expenseID", handler.UpdateExpense)
		expenses.DELETE("/:expenseID", handler.DeleteExpense)
		expenses.GET("/:expenseID/comments", comments.ListExpense)
		expenses.POST("/:expenseID/comments", comments.CreateExpense)
		expenses.POST("/:expenseID/typing", comments.SetTyping)
		expenses.GET("/:expenseID/typing-users", comments.TypingUsers)
	}
}

func registerTaskRoutes(api *gin.RouterGroup, handler *handlers.TaskHandler, comments *handlers.CommentHandler) {
	group := api.Group("/events/:eventID/tasks")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/assigned", handler.Assigned)
		group.GET("/:taskID", handler.Get)
		group.PATCH("/:taskID", handler.Update)
		group.DELETE("/:taskID", handler.Delete)
		group.PATCH("/:taskID/status", handler.UpdateStatus)
		group.GET("/:taskID/comments", comments.ListTask)
		group.POST("/:taskID/comments", comments.CreateTask)
	}
}

func registerCommentRoutes(api *gin.RouterGroup, handler *handlers.CommentHandler) {
	group := api.Group("/comments")
	{
		group.PATCH("/:commentID", handler.Update)
		group.DELETE("/:commentID", handler.Delete)
	}
}

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.POST("", handler.Bulk)
		group.DELETE("", handler.DeleteAll)
		group.GET("/count", handler.Count)
		group.GET("/:id", handler.Get)
		group.POST("/:id", handler.Action)
		group.DELETE("/:id", handler.Delete)
	}
}

func registerContactRoutes(api *gin.RouterGroup, handler *handlers.ContactHandler) {
	group := api.Group("/contacts")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/:id", handler.Get)
		group.PATCH("/:id", handler.Update)
		group.DELETE("/:id", handler.Delete)
	}
}
