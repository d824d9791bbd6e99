package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eventnest/eventnest/internal/notifications"
	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/metrics"
)

const (
	defaultReminderSpec = "0 * * * *"
	defaultCleanupSpec  = "@daily"
	defaultTypingTTL    = 30 * time.Second

	jobReminders = "reminders"
	jobCleanup   = "cleanup"
)

// ReminderScanner emits due-date reminders for the ladder window around now.
type ReminderScanner interface {
	Scan(ctx context.Context, now time.Time) (notifications.ScanResult, error)
}

// ExpiryPurger removes rows that expired before cutoff.
type ExpiryPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// TypingPurger removes typing rows idle since before.
type TypingPurger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// RunRecorder receives the outcome of every scheduled run.
type RunRecorder interface {
	Expect(job string)
	RecordRun(job string, duration time.Duration, err error)
}

// Scheduler runs the reminder scan and the periodic cleanups on cron schedules.
type Scheduler struct {
	reminders   ReminderScanner
	invitations ExpiryPurger
	typing      TypingPurger
	counters    ExpiryPurger
	recorder    RunRecorder
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger
	typingTTL   time.Duration

	reminderSchedule string
	cleanupSchedule  string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock handed to every job.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReminderSchedule overrides the cron specification of the reminder scan.
func WithReminderSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.reminderSchedule = spec
		}
	}
}

// WithCleanupSchedule overrides the cron specification of the invitation and typing cleanup.
func WithCleanupSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.cleanupSchedule = spec
		}
	}
}

// WithTypingTTL sets how long a typing row may stay idle before it is purged.
func WithTypingTTL(ttl time.Duration) Option {
	return func(s *Scheduler) {
		if ttl > 0 {
			s.typingTTL = ttl
		}
	}
}

// WithRateCounters adds shared rate limit counters to the cleanup pass.
func WithRateCounters(counters ExpiryPurger) Option {
	return func(s *Scheduler) {
		s.counters = counters
	}
}

// WithRunRecorder reports cron-triggered runs to recorder.
func WithRunRecorder(recorder RunRecorder) Option {
	return func(s *Scheduler) {
		s.recorder = recorder
	}
}

// NewScheduler constructs a Scheduler. Any nil dependency skips the corresponding job.
func NewScheduler(reminders ReminderScanner, invitations ExpiryPurger, typing TypingPurger, opts ...Option) *Scheduler {
	s := &Scheduler{
		reminders:        reminders,
		invitations:      invitations,
		typing:           typing,
		now:              time.Now,
		typingTTL:        defaultTypingTTL,
		reminderSchedule: defaultReminderSpec,
		cleanupSchedule:  defaultCleanupSpec,
		log:              logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the jobs and launches the cron loop when at least one job exists.
func (s *Scheduler) Start() error {
	cleanup := s.invitations != nil || s.typing != nil || s.counters != nil
	if s.reminders == nil && !cleanup {
		return nil
	}

	if s.reminders != nil {
		if _, err := s.cron.AddFunc(s.reminderSchedule, s.tracked(jobReminders, func(ctx context.Context) error {
			_, err := s.ScanReminders(ctx)
			return err
		})); err != nil {
			return err
		}
	}

	if cleanup {
		if _, err := s.cron.AddFunc(s.cleanupSchedule, s.tracked(jobCleanup, func(ctx context.Context) error {
			_, err := s.Cleanup(ctx)
			return err
		})); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) tracked(job string, fn func(ctx context.Context) error) func() {
	if s.recorder != nil {
		s.recorder.Expect(job)
	}
	return func() {
		start := time.Now()
		err := fn(context.Background())
		if err != nil {
			s.log.Warn("maintenance job failed", zap.String("job", job), zap.Error(err))
		}
		if s.recorder != nil {
			s.recorder.RecordRun(job, time.Since(start), err)
		}
	}
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// ScanReminders runs one reminder pass at the scheduler's current time.
func (s *Scheduler) ScanReminders(ctx context.Context) (notifications.ScanResult, error) {
	if s.reminders == nil {
		return notifications.ScanResult{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := s.reminders.Scan(ctx, s.now())
	if err != nil {
		return result, err
	}
	if result.Sent > 0 {
		s.log.Info("reminders sent",
			zap.Int("checked", result.Checked),
			zap.Int("sent", result.Sent),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// CleanupStats counts the rows removed by one cleanup pass.
type CleanupStats struct {
	Invitations  int64
	Typing       int64
	RateCounters int64
}

// Cleanup purges expired invitations, stale typing rows and elapsed rate counters.
// Every purge runs even when an earlier one fails.
func (s *Scheduler) Cleanup(ctx context.Context) (CleanupStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	now := s.now().UTC()

	var (
		stats CleanupStats
		errs  error
	)
	if s.invitations != nil {
		n, err := s.invitations.PurgeExpired(ctx, now)
		errs = multierr.Append(errs, err)
		stats.Invitations = n
	}
	if s.typing != nil {
		n, err := s.typing.Purge(ctx, now.Add(-s.typingTTL))
		errs = multierr.Append(errs, err)
		stats.Typing = n
	}
	if s.counters != nil {
		n, err := s.counters.PurgeExpired(ctx, now)
		errs = multierr.Append(errs, err)
		stats.RateCounters = n
	}

	metrics.CleanupRemoved.WithLabelValues("invitations").Add(float64(stats.Invitations))
	metrics.CleanupRemoved.WithLabelValues("typing").Add(float64(stats.Typing))
	metrics.CleanupRemoved.WithLabelValues("rate_counters").Add(float64(stats.RateCounters))
	if stats.Invitations > 0 || stats.Typing > 0 || stats.RateCounters > 0 {
		s.log.Info("cleanup complete",
			zap.Int64("invitations", stats.Invitations),
			zap.Int64("typing", stats.Typing),
			zap.Int64("rate_counters", stats.RateCounters),
		)
	}
	return stats, errs
}

// RunOnce executes every configured job sequentially. Used by tests and the
// one-shot maintenance mode of the server binary.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs error
	if _, err := s.ScanReminders(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := s.Cleanup(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}
