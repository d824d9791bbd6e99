package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/app"
	iauth "github.com/eventnest/eventnest/internal/auth"
	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/internal/monitoring"
	"github.com/eventnest/eventnest/internal/monitoring/checks"
	"github.com/eventnest/eventnest/internal/notifications"
	"github.com/eventnest/eventnest/internal/realtime"
	"github.com/eventnest/eventnest/internal/services"
	"github.com/eventnest/eventnest/pkg/mail"
)

// Container holds the long-lived services shared by the router, the socket consumers
// and the background scheduler.
type Container struct {
	DB     *gorm.DB
	Config *app.Config
	JWT    *iauth.JWTService
	Local  *iauth.LocalAuthenticator
	Mailer mail.Mailer

	Hub        *realtime.Hub
	Store      *notifications.Store
	Stream     *notifications.Stream
	Dispatcher *notifications.Dispatcher
	Reminders  *notifications.ReminderScanner

	Access        *services.AccessService
	Events        *services.EventService
	Invitations   *services.InvitationService
	Budgets       *services.BudgetService
	Expenses      *services.ExpenseService
	Tasks         *services.TaskService
	Comments      *services.CommentService
	Typing        *services.TypingService
	Notifications *services.NotificationService
	Contacts      *services.ContactService

	Jobs   *monitoring.JobTracker
	Health *monitoring.HealthManager
}

type containerOptions struct {
	mailer      mail.Mailer
	clock       func() time.Time
	originCheck func(r *http.Request) bool
}

// ContainerOption customises NewContainer.
type ContainerOption func(*containerOptions)

// WithMailer replaces the SMTP mailer built from configuration.
func WithMailer(m mail.Mailer) ContainerOption {
	return func(o *containerOptions) {
		o.mailer = m
	}
}

// WithClock injects the clock used by time-sensitive services.
func WithClock(clock func() time.Time) ContainerOption {
	return func(o *containerOptions) {
		o.clock = clock
	}
}

// WithOriginCheck overrides the same-host WebSocket origin policy.
func WithOriginCheck(check func(r *http.Request) bool) ContainerOption {
	return func(o *containerOptions) {
		o.originCheck = check
	}
}

// NewContainer wires every service over db.
func NewContainer(db *gorm.DB, cfg *app.Config, jwt *iauth.JWTService, opts ...ContainerOption) (*Container, error) {
	if db == nil {
		return nil, errors.New("container: database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("container: config must be provided")
	}
	if jwt == nil {
		return nil, errors.New("container: jwt service must be provided")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if options.clock == nil {
		options.clock = time.Now
	}

	mailer := options.mailer
	if mailer == nil {
		smtp, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("container: mailer: %w", err)
		}
		mailer = smtp
	}

	localCfg := cfg.Auth.LocalAuthConfig()
	localCfg.Clock = options.clock
	local, err := iauth.NewLocalAuthenticator(db, localCfg)
	if err != nil {
		return nil, err
	}

	c := &Container{DB: db, Config: cfg, JWT: jwt, Local: local, Mailer: mailer}

	var hubOpts []realtime.HubOption
	var streamOpts []notifications.StreamOption
	if options.originCheck != nil {
		hubOpts = append(hubOpts, realtime.WithOriginCheck(options.originCheck))
		streamOpts = append(streamOpts, notifications.WithStreamOriginCheck(options.originCheck))
	}
	c.Hub = realtime.NewHub(hubOpts...)

	if c.Store, err = notifications.NewStore(db); err != nil {
		return nil, err
	}
	if c.Stream, err = notifications.NewStream(c.Store, jwt, streamOpts...); err != nil {
		return nil, err
	}
	if c.Dispatcher, err = notifications.NewDispatcher(db, c.Store,
		notifications.WithMailer(mailer),
		notifications.WithPublisher(c.Stream),
		notifications.WithBaseURL(cfg.Server.BaseURL),
		notifications.WithEnabled(cfg.Notifications.Enabled),
	); err != nil {
		return nil, err
	}
	if c.Reminders, err = notifications.NewReminderScanner(db, c.Dispatcher,
		notifications.WithTolerance(cfg.Notifications.ReminderTolerance),
	); err != nil {
		return nil, err
	}

	if c.Access, err = services.NewAccessService(db); err != nil {
		return nil, err
	}
	if c.Events, err = services.NewEventService(db, c.Access, c.Dispatcher, services.WithEventClock(options.clock)); err != nil {
		return nil, err
	}
	if c.Invitations, err = services.NewInvitationService(db, c.Access, mailer,
		services.WithInvitationBaseURL(cfg.Server.BaseURL),
		services.WithInvitationTTL(cfg.Notifications.InvitationTTL),
		services.WithInvitationClock(options.clock),
	); err != nil {
		return nil, err
	}
	if c.Budgets, err = services.NewBudgetService(db, c.Access); err != nil {
		return nil, err
	}
	if c.Expenses, err = services.NewExpenseService(db, c.Access, c.Dispatcher); err != nil {
		return nil, err
	}
	if c.Tasks, err = services.NewTaskService(db, c.Access, c.Dispatcher); err != nil {
		return nil, err
	}
	if c.Comments, err = services.NewCommentService(db, c.Access, map[models.TargetKind]services.TargetResolver{
		models.TargetExpense: c.Expenses,
		models.TargetTask:    c.Tasks,
	}); err != nil {
		return nil, err
	}
	if c.Typing, err = services.NewTypingService(db, c.Comments,
		services.WithTypingTTL(cfg.Notifications.TypingTTL),
		services.WithTypingClock(options.clock),
	); err != nil {
		return nil, err
	}
	if c.Notifications, err = services.NewNotificationService(db, c.Store, c.Stream); err != nil {
		return nil, err
	}
	if c.Contacts, err = services.NewContactService(db); err != nil {
		return nil, err
	}

	c.Jobs = monitoring.NewJobTracker(options.clock)
	c.Health = monitoring.NewHealthManager()
	c.Health.Register(checks.Database(db, 0))
	c.Health.Register(checks.Realtime(c.Stream))
	c.Health.Register(checks.Maintenance(c.Jobs, 0, options.clock))

	return c, nil
}

// Close disconnects every notification socket and releases the database.
func (c *Container) Close() error {
	var err error
	if c.Stream != nil {
		err = multierr.Append(err, c.Stream.Close())
	}
	if c.DB != nil {
		if sqlDB, dbErr := c.DB.DB(); dbErr != nil {
			err = multierr.Append(err, dbErr)
		} else {
			err = multierr.Append(err, sqlDB.Close())
		}
	}
	return err
}
