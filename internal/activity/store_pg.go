package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"

	"mealplan-backend/internal/shared/telemetry"
)

const (
	fullColumns   = "user_id, meals_generated, saved_recipes, weekly_meals_used, weekly_reset_date, updated_at"
	legacyColumns = "user_id, meals_generated, weekly_meals_used, weekly_reset_date, updated_at"
)

// errSchemaSkew asks the caller to rerun the transaction with the narrow read.
var errSchemaSkew = errors.New("activity schema skew")

type pgStore struct {
	DB *sql.DB

	// legacy is set once the saved_recipes column is found missing.
	legacy   atomic.Bool
	warnOnce sync.Once
}

// NewPGStore constructs a Postgres-backed activity store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

type rowFunc func(ctx context.Context, tx *sql.Tx, rec *Record, reset bool) error

func (s *pgStore) EnsureCurrent(ctx context.Context, userID string, at stamp) (Record, bool, error) {
	return s.withLockedRow(ctx, "ensure current", userID, at, nil)
}

func (s *pgStore) IncrementMeals(ctx context.Context, userID string, at stamp, opts incrementOptions) (IncrementResult, error) {
	counted := false
	rec, reset, err := s.withLockedRow(ctx, "increment meals", userID, at, func(ctx context.Context, tx *sql.Tx, rec *Record, reset bool) error {
		counted = false
		if reset && !opts.CountOnReset {
			return nil
		}
		if opts.Limit >= 0 && rec.WeeklyMealsUsed+1 > opts.Limit {
			return ErrLimitReached
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE user_activity
SET meals_generated = meals_generated + 1, weekly_meals_used = weekly_meals_used + 1, updated_at = $1
WHERE user_id = $2`, at.Now, rec.UserID); err != nil {
			return err
		}
		rec.MealsGenerated++
		rec.WeeklyMealsUsed++
		rec.UpdatedAt = at.Now
		counted = true
		return nil
	})
	if err != nil {
		return IncrementResult{}, err
	}
	return IncrementResult{Record: rec, ResetApplied: reset, Counted: counted}, nil
}

func (s *pgStore) AdjustSavedRecipes(ctx context.Context, userID string, delta, limit int, at stamp) (Record, error) {
	rec, _, err := s.withLockedRow(ctx, "adjust saved recipes", userID, at, func(ctx context.Context, tx *sql.Tx, rec *Record, _ bool) error {
		if s.legacy.Load() {
			return fmt.Errorf("%w: saved_recipes column not present", ErrStoreUnavailable)
		}
		if savedOverLimit(rec.SavedRecipes, delta, limit) {
			return ErrSavedRecipesLimitReached
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE user_activity
SET saved_recipes = GREATEST(saved_recipes + $1, 0), updated_at = $2
WHERE user_id = $3`, delta, at.Now, rec.UserID); err != nil {
			return err
		}
		rec.SavedRecipes = max(rec.SavedRecipes+delta, 0)
		rec.UpdatedAt = at.Now
		return nil
	})
	return rec, err
}

func (s *pgStore) Lookup(ctx context.Context, userID string) (Record, error) {
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := s.scan(ctx, s.DB, userID, false)
		if errors.Is(err, errSchemaSkew) {
			continue
		}
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return rec, classifyStoreError("lookup", err)
	}
	return Record{}, classifyStoreError("lookup", errSchemaSkew)
}

func (s *pgStore) Create(ctx context.Context, userID string, at stamp) (Record, error) {
	if _, err := s.DB.ExecContext(ctx, insertIfAbsentSQL, userID, at.Today.In(time.UTC), at.Now); err != nil {
		return Record{}, classifyStoreError("create", err)
	}
	rec, err := s.Lookup(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Record{}, ErrRecordMissingAfterEnsure
	}
	return rec, err
}

func (s *pgStore) ResetStale(ctx context.Context, at stamp) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
UPDATE user_activity
SET weekly_meals_used = 0, weekly_reset_date = $1, updated_at = $2
WHERE weekly_reset_date < $1`, at.Today.In(time.UTC), at.Now)
	if err != nil {
		return 0, classifyStoreError("reset stale", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classifyStoreError("reset stale", err)
	}
	return n, nil
}

const insertIfAbsentSQL = `
INSERT INTO user_activity (user_id, weekly_reset_date, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO NOTHING`

// withLockedRow runs fn against the user's row inside one transaction:
// idempotent insert, row lock, reset evaluation, then fn. A schema-skew
// failure on the first attempt reruns the whole transaction once.
func (s *pgStore) withLockedRow(ctx context.Context, op, userID string, at stamp, fn rowFunc) (Record, bool, error) {
	var (
		rec   Record
		reset bool
		err   error
	)
	for attempt := 0; attempt < 2; attempt++ {
		rec, reset, err = s.lockedRowTx(ctx, userID, at, fn)
		if !errors.Is(err, errSchemaSkew) {
			break
		}
	}
	if err != nil {
		return Record{}, false, classifyStoreError(op, err)
	}
	return rec, reset, nil
}

func (s *pgStore) lockedRowTx(ctx context.Context, userID string, at stamp, fn rowFunc) (rec Record, reset bool, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertIfAbsentSQL, userID, at.Today.In(time.UTC), at.Now); err != nil {
		return Record{}, false, err
	}
	rec, err = s.scan(ctx, tx, userID, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrRecordMissingAfterEnsure
		}
		return Record{}, false, err
	}

	if d := Evaluate(rec.WeeklyResetDate, at.Today); d.ResetNeeded {
		if _, err = tx.ExecContext(ctx, `
UPDATE user_activity
SET weekly_meals_used = 0, weekly_reset_date = $1, updated_at = $2
WHERE user_id = $3`, d.NewResetDate.In(time.UTC), at.Now, userID); err != nil {
			return Record{}, false, err
		}
		rec.WeeklyMealsUsed = 0
		rec.WeeklyResetDate = d.NewResetDate
		rec.UpdatedAt = at.Now
		reset = true
	}

	if fn != nil {
		if err = fn(ctx, tx, &rec, reset); err != nil {
			return Record{}, false, err
		}
	}
	if err = tx.Commit(); err != nil {
		return Record{}, false, err
	}
	return rec, reset, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scan reads one row, using the narrow legacy shape once the saved_recipes
// column has been found missing. The first undefined-column error flips the
// store into legacy mode and returns errSchemaSkew so the caller can retry.
func (s *pgStore) scan(ctx context.Context, q queryRower, userID string, forUpdate bool) (Record, error) {
	legacy := s.legacy.Load()
	cols := fullColumns
	if legacy {
		cols = legacyColumns
	}
	query := "SELECT " + cols + " FROM user_activity WHERE user_id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		rec       Record
		resetDate time.Time
	)
	dest := []any{&rec.UserID, &rec.MealsGenerated}
	if !legacy {
		dest = append(dest, &rec.SavedRecipes)
	}
	dest = append(dest, &rec.WeeklyMealsUsed, &resetDate, &rec.UpdatedAt)

	err := q.QueryRowContext(ctx, query, userID).Scan(dest...)
	if err != nil {
		if !legacy && isUndefinedColumn(err) {
			s.legacy.Store(true)
			s.warnOnce.Do(func() {
				telemetry.Warn("activity.schema_fallback", map[string]any{
					"missing_column": "saved_recipes",
					"error":          err.Error(),
				})
			})
			return Record{}, errSchemaSkew
		}
		return Record{}, err
	}
	rec.WeeklyResetDate = civil.DateOf(resetDate)
	return rec, nil
}
