package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eventnest/eventnest/internal/models"
)

// DatabaseCounter keeps fixed-window counters in the primary SQL database so that every
// server instance sees the same totals.
type DatabaseCounter struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseCounter constructs a database-backed counter. now may be nil.
func NewDatabaseCounter(db *gorm.DB, now func() time.Time) *DatabaseCounter {
	if db == nil {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &DatabaseCounter{db: db, now: now}
}

// Increment bumps the counter for key and returns the new count together with the time
// left in the current window. An elapsed window starts again at one.
func (s *DatabaseCounter) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if s == nil {
		return 0, 0, errors.New("cache: database counter not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now().UTC()
	var entry models.RateCounter

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock where the dialect supports it.
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(keyIs(key)).
			Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = models.RateCounter{Key: key, Count: 1, WindowEnd: now.Add(window)}
			return tx.Create(&entry).Error
		}
		if err != nil {
			return err
		}

		if !now.Before(entry.WindowEnd) {
			entry.Count = 1
			entry.WindowEnd = now.Add(window)
		} else {
			entry.Count++
		}
		return tx.Model(&models.RateCounter{}).Where(keyIs(key)).Updates(map[string]any{
			"count":      entry.Count,
			"window_end": entry.WindowEnd,
		}).Error
	})
	if err != nil {
		return 0, 0, fmt.Errorf("cache: increment %q: %w", key, err)
	}

	return int(entry.Count), entry.WindowEnd.Sub(now), nil
}

// PurgeExpired deletes counters whose window ended before cutoff.
func (s *DatabaseCounter) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, errors.New("cache: database counter not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result := s.db.WithContext(ctx).Where("window_end < ?", cutoff.UTC()).Delete(&models.RateCounter{})
	if result.Error != nil {
		return 0, fmt.Errorf("cache: purge counters: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// keyIs quotes the column name, which is reserved in MySQL.
func keyIs(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}
