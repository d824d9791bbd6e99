package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/models"
	apperrors "github.com/eventnest/eventnest/pkg/errors"
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") || strings.Contains(lower, "duplicate")
}

// windowError maps event window violations to 400s.
func windowError(err error) error {
	switch {
	case errors.Is(err, models.ErrEventEndsBeforeStart),
		errors.Is(err, models.ErrEventOngoingAfterEnd),
		errors.Is(err, models.ErrEventCompletedTooEarly),
		errors.Is(err, models.ErrEventStatusInvalid):
		return apperrors.NewBadRequest(err.Error())
	default:
		return err
	}
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFound(resource)
	}
	return err
}
