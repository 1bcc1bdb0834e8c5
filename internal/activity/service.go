package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"mealplan-backend/internal/shared/metrics"
	"mealplan-backend/internal/shared/telemetry"
)

// Service applies the weekly usage policy on top of a store.
type Service struct {
	store        store
	now          func() time.Time
	countOnReset bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCountOnReset makes a generation that rolls the window count against
// the fresh window instead of being discarded.
func WithCountOnReset(enabled bool) Option {
	return func(s *Service) {
		s.countOnReset = enabled
	}
}

// NewService constructs a Service with in-memory store.
func NewService(opts ...Option) *Service {
	return newService(newMemoryStore(), opts...)
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore *pgStore, opts ...Option) *Service {
	return newService(pgStore, opts...)
}

func newService(st store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current UTC calendar date as seen by the service.
func (s *Service) Today() civil.Date {
	return s.stamp().Today
}

func (s *Service) stamp() stamp {
	return stampAt(s.now())
}

// GetActivity is the self-healing read: it creates the row if needed and
// applies any overdue reset before returning.
func (s *Service) GetActivity(ctx context.Context, userID string) (Record, error) {
	rec, _, err := s.CheckReset(ctx, userID)
	return rec, err
}

// CheckReset behaves like GetActivity and also reports whether this call
// applied a reset.
func (s *Service) CheckReset(ctx context.Context, userID string) (Record, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Record{}, false, ErrInvalidUser
	}
	rec, reset, err := s.store.EnsureCurrent(ctx, userID, s.stamp())
	if err != nil {
		return Record{}, false, err
	}
	if reset {
		metrics.IncActivityReset(metrics.ResetPathPerUser)
		telemetry.Info("activity.reset", map[string]any{
			"user_id":    userID,
			"reset_date": rec.WeeklyResetDate.String(),
		})
	}
	return rec, reset, nil
}

// Lookup returns the stored row without creating it. The weekly counter is
// reported as the policy requires even when the row is stale.
func (s *Service) Lookup(ctx context.Context, userID string) (Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Record{}, ErrInvalidUser
	}
	rec, err := s.store.Lookup(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	return rec.Effective(s.Today()), nil
}

// Create inserts a zeroed row if the user has none.
func (s *Service) Create(ctx context.Context, userID string) (Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Record{}, ErrInvalidUser
	}
	return s.store.Create(ctx, userID, s.stamp())
}

// IncrementMealsGenerated counts one generation against both the lifetime
// and weekly counters. limit is the weekly entitlement or NoLimit. When the
// call itself rolls the window the generation is not counted unless the
// service was built WithCountOnReset.
func (s *Service) IncrementMealsGenerated(ctx context.Context, userID string, limit int) (IncrementResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return IncrementResult{}, ErrInvalidUser
	}
	res, err := s.store.IncrementMeals(ctx, userID, s.stamp(), incrementOptions{
		Limit:        limit,
		CountOnReset: s.countOnReset,
	})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			metrics.IncRateLimited("store")
		}
		return IncrementResult{}, err
	}
	if res.ResetApplied {
		metrics.IncActivityReset(metrics.ResetPathPerUser)
	}
	if res.Counted {
		metrics.IncMealsGenerated()
	}
	return res, nil
}

// IncrementSavedRecipes adds one saved recipe. limit is the plan's cap on
// saved recipes or NoLimit.
func (s *Service) IncrementSavedRecipes(ctx context.Context, userID string, limit int) (Record, error) {
	return s.adjustSaved(ctx, userID, 1, limit)
}

// DecrementSavedRecipes removes one saved recipe, never going below zero.
func (s *Service) DecrementSavedRecipes(ctx context.Context, userID string) (Record, error) {
	return s.adjustSaved(ctx, userID, -1, NoLimit)
}

func (s *Service) adjustSaved(ctx context.Context, userID string, delta, limit int) (Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Record{}, ErrInvalidUser
	}
	return s.store.AdjustSavedRecipes(ctx, userID, delta, limit, s.stamp())
}

// RunScheduledReset zeroes every stale row in one set-based write. Running it
// twice on the same day resets nobody the second time.
func (s *Service) RunScheduledReset(ctx context.Context) (BatchResult, error) {
	at := s.stamp()
	start := time.Now()
	n, err := s.store.ResetStale(ctx, at)
	metrics.ObserveBatchResetDuration(time.Since(start))
	if err != nil {
		telemetry.Error("activity.batch_reset_failed", map[string]any{
			"date":  at.Today.String(),
			"error": err.Error(),
		})
		return BatchResult{}, err
	}
	metrics.AddBatchResetUsers(n)
	telemetry.Info("activity.batch_reset", map[string]any{
		"date":        at.Today.String(),
		"users_reset": n,
	})
	return BatchResult{UsersReset: n, Date: at.Today}, nil
}
