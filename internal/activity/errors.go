package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrStoreUnavailable indicates the activity store could not complete the operation.
	ErrStoreUnavailable = errors.New("activity store unavailable")
	// ErrRateLimited indicates the caller tripped a request-rate guard.
	ErrRateLimited = errors.New("rate limited")
	// ErrRecordMissingAfterEnsure is returned when the row is unreadable right after
	// the idempotent insert. It matches ErrStoreUnavailable under errors.Is.
	ErrRecordMissingAfterEnsure = fmt.Errorf("%w: record missing after ensure", ErrStoreUnavailable)
	// ErrUnknownOutcome means the request timed out without a confirmed result.
	ErrUnknownOutcome = errors.New("unknown outcome")
	// ErrNotFound is returned by non-self-healing reads when no row exists.
	ErrNotFound = errors.New("activity record not found")
	// ErrLimitReached indicates the plan entitlement does not allow another generation.
	ErrLimitReached = errors.New("limit reached")
	// ErrSavedRecipesLimitReached is the saved-recipes flavour of ErrLimitReached.
	ErrSavedRecipesLimitReached = fmt.Errorf("%w: saved recipes", ErrLimitReached)
	// ErrInvalidUser is returned when no user id is supplied.
	ErrInvalidUser = errors.New("user id is required")
)

const (
	sqlstateUndefinedColumn    = "42703"
	sqlstateTooManyConnections = "53300"
	sqlstateLockNotAvailable   = "55P03"
)

// classifyStoreError maps driver errors onto the package error kinds. Known
// sentinels pass through untouched.
func classifyStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrUnknownOutcome),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrLimitReached),
		errors.Is(err, ErrInvalidUser):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", ErrUnknownOutcome, op, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case sqlstateTooManyConnections, sqlstateLockNotAvailable:
			return fmt.Errorf("%w: %s: %w", ErrRateLimited, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateUndefinedColumn
	}
	return false
}
