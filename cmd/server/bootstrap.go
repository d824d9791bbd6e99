package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/api"
	"github.com/eventnest/eventnest/internal/app"
	"github.com/eventnest/eventnest/internal/app/maintenance"
	iauth "github.com/eventnest/eventnest/internal/auth"
	"github.com/eventnest/eventnest/internal/cache"
	"github.com/eventnest/eventnest/internal/database"
	"github.com/eventnest/eventnest/internal/middleware"
	"github.com/eventnest/eventnest/internal/security"
)

const rateStoreDatabase = "database"

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Container *api.Container
	Scheduler *maintenance.Scheduler
	Counters  *cache.DatabaseCounter
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime opens the database, wires services, starts background jobs and builds the router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger, opts ...api.ContainerOption) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	security.NewAuditService(jwtSvc, cfg).Run().Log(log.Named("audit"))

	stack.Container, err = api.NewContainer(stack.DB, cfg, jwtSvc, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Server.RateLimit.Store), rateStoreDatabase) {
		stack.Counters = cache.NewDatabaseCounter(stack.DB, nil)
		stack.RateStore = stack.Counters
	} else {
		stack.RateStore = middleware.NewMemoryRateStore(nil)
	}

	stack.Scheduler = newScheduler(cfg, stack.Container, stack.Counters)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(stack.Container, stack.RateStore)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func newScheduler(cfg *app.Config, c *api.Container, counters *cache.DatabaseCounter) *maintenance.Scheduler {
	opts := []maintenance.Option{
		maintenance.WithReminderSchedule(cfg.Notifications.ReminderSchedule),
		maintenance.WithCleanupSchedule(cfg.Notifications.CleanupSchedule),
		maintenance.WithTypingTTL(cfg.Notifications.TypingTTL),
		maintenance.WithRunRecorder(c.Jobs),
	}
	if counters != nil {
		opts = append(opts, maintenance.WithRateCounters(counters))
	}

	var reminders maintenance.ReminderScanner
	if cfg.Notifications.Enabled {
		reminders = c.Reminders
	}
	return maintenance.NewScheduler(reminders, c.Invitations, c.Typing, opts...)
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	switch {
	case s.Container != nil:
		if err := s.Container.Close(); err != nil {
			log.Warn("failed to release services", zap.Error(err))
		}
	case s.DB != nil:
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(ctx context.Context, cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := dbCfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	log.Info("database connected", zap.String("driver", driver))
	return db, nil
}
