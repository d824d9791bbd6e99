package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventnest/eventnest/internal/handlers"
	"github.com/eventnest/eventnest/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers every route.
// rateStore may be nil, in which case a process-local store is used.
func NewRouter(c *Container, rateStore middleware.RateStore) (*gin.Engine, error) {
	if c == nil {
		return nil, fmt.Errorf("service container must be provided")
	}
	cfg := c.Config
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore(nil)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins))

	if cfg.Monitoring.Health.Enabled {
		health := handlers.NewHealthHandler(c.Health)
		r.GET("/health", health.Ready)
		r.GET("/health/live", health.Live)
		r.GET("/health/ready", health.Ready)
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	limit := middleware.RateLimit(rateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
	requireAuth := middleware.Auth(c.JWT)

	authHandler := handlers.NewAuthHandler(c.Local, c.JWT)
	public := r.Group("/api", limit)
	registerAuthRoutes(public, authHandler)
	registerPublicInvitationRoutes(public, handlers.NewInvitationHandler(c.Invitations))

	api := r.Group("/api", requireAuth, limit)
	api.GET("/auth/me", authHandler.Me)

	comments := handlers.NewCommentHandler(c.Comments, c.Typing, c.Tasks, c.Hub)
	registerEventRoutes(api, handlers.NewEventHandler(c.Events, c.Invitations, c.Budgets))
	registerInvitationRoutes(api, handlers.NewInvitationHandler(c.Invitations))
	registerBudgetRoutes(api, handlers.NewBudgetHandler(c.Budgets, c.Expenses), comments)
	registerTaskRoutes(api, handlers.NewTaskHandler(c.Tasks), comments)
	registerCommentRoutes(api, comments)
	registerNotificationRoutes(api, handlers.NewNotificationHandler(c.Notifications))
	registerContactRoutes(api, handlers.NewContactHandler(c.Contacts))

	// Sockets authenticate themselves so that failures surface as close codes.
	ws := r.Group("/ws")
	ws.GET("/expenses/:expenseID/comments", handlers.NewCommentSocketHandler(c.Hub, c.JWT, c.Comments, c.Typing).Expense)
	ws.GET("/notifications", handlers.NewNotificationSocketHandler(c.Stream).Stream)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
