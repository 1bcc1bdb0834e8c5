package accounting

import (
	"context"
	"errors"
	"sync"
	"time"

	"mealplan-backend/internal/activity"
	"mealplan-backend/internal/shared/telemetry"
)

// refreshTimeout bounds the re-sync after an ambiguous timeout.
const refreshTimeout = 5 * time.Second

// DefaultRateLimitNotice is shown to the user when a mutation is throttled.
const DefaultRateLimitNotice = "You're going a bit fast. Please wait a moment and try again."

// Result is the outcome of one facade mutation.
type Result struct {
	Record activity.Record
	// Refreshed is set when the increment was discarded because the weekly
	// window rolled over; Record holds the refetched state.
	Refreshed bool
	// RateLimited is set when the backend throttled the call. Local state is
	// unchanged and Notice carries the user-facing message.
	RateLimited bool
	Notice      string
}

// Facade keeps a local copy of one user's counters in step with the backend.
// It lives as long as the identity it was built for; build a new one when
// the user changes. Writes are last-write-wins.
type Facade struct {
	identity Identity
	backend  Backend
	notice   string
	onNotice func(string)

	mu     sync.Mutex
	record activity.Record
	closed bool
}

// Option configures a Facade.
type Option func(*Facade)

// WithNotice overrides the rate-limit message.
func WithNotice(msg string) Option {
	return func(f *Facade) {
		if msg != "" {
			f.notice = msg
		}
	}
}

// WithNoticeHandler registers a callback for passive notices, e.g. a toast.
func WithNoticeHandler(fn func(string)) Option {
	return func(f *Facade) {
		f.onNotice = fn
	}
}

// New builds a facade for identity and loads its current counters.
func New(ctx context.Context, identity Identity, backend Backend, opts ...Option) (*Facade, error) {
	if !identity.valid() {
		return nil, ErrNoIdentity
	}
	f := &Facade{
		identity: identity,
		backend:  backend,
		notice:   DefaultRateLimitNotice,
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.Refresh(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Identity returns the identity the facade is bound to.
func (f *Facade) Identity() Identity {
	return f.identity
}

// Snapshot returns the local copy of the counters.
func (f *Facade) Snapshot() activity.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record
}

// Refresh overwrites local state with the backend's current record. A
// missing record is created with zeros.
func (f *Facade) Refresh(ctx context.Context) error {
	if f.isClosed() {
		return ErrClosed
	}
	rec, err := f.backend.GetActivity(ctx, f.identity)
	if errors.Is(err, activity.ErrNotFound) {
		rec, err = f.backend.Create(ctx, f.identity)
	}
	if err != nil {
		return err
	}
	f.set(rec)
	return nil
}

// IncrementMealsGenerated records one successful generation. The window is
// checked first; if that check rolls it over the generation is discarded and
// the fresh state is returned with Refreshed set.
func (f *Facade) IncrementMealsGenerated(ctx context.Context) (Result, error) {
	if f.isClosed() {
		return Result{}, ErrClosed
	}

	rec, reset, err := f.backend.CheckReset(ctx, f.identity)
	if err != nil {
		return f.fail(ctx, "check_reset", err)
	}
	if reset {
		return f.refreshed(ctx, rec)
	}

	res, err := f.backend.IncrementMeals(ctx, f.identity)
	if err != nil {
		return f.fail(ctx, "increment_meals", err)
	}
	if res.ResetApplied && !res.Counted {
		return f.refreshed(ctx, res.Record)
	}
	f.set(res.Record)
	return Result{Record: res.Record}, nil
}

// IncrementSavedRecipes records one saved recipe.
func (f *Facade) IncrementSavedRecipes(ctx context.Context) (Result, error) {
	return f.adjustSaved(ctx, 1)
}

// DecrementSavedRecipes removes one saved recipe; the count never goes
// below zero.
func (f *Facade) DecrementSavedRecipes(ctx context.Context) (Result, error) {
	return f.adjustSaved(ctx, -1)
}

func (f *Facade) adjustSaved(ctx context.Context, delta int) (Result, error) {
	if f.isClosed() {
		return Result{}, ErrClosed
	}
	rec, err := f.backend.AdjustSavedRecipes(ctx, f.identity, delta)
	if err != nil {
		return f.fail(ctx, "adjust_saved_recipes", err)
	}
	f.set(rec)
	return Result{Record: rec}, nil
}

// Close detaches the facade. Later calls return ErrClosed.
func (f *Facade) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.record = activity.Record{}
}

func (f *Facade) refreshed(ctx context.Context, fallback activity.Record) (Result, error) {
	if err := f.Refresh(ctx); err != nil {
		// The backend already returned post-reset state; keep that.
		f.set(fallback)
		return Result{Record: fallback, Refreshed: true}, nil
	}
	return Result{Record: f.Snapshot(), Refreshed: true}, nil
}

// fail turns throttling into a passive result and re-syncs after an
// ambiguous timeout. A reached limit is expected and returned with the local
// record. Everything else is returned to the caller.
func (f *Facade) fail(ctx context.Context, op string, err error) (Result, error) {
	switch {
	case errors.Is(err, activity.ErrRateLimited):
		telemetry.Warn("accounting.rate_limited", map[string]any{
			"user_id": f.identity.UserID,
			"op":      op,
		})
		if f.onNotice != nil {
			f.onNotice(f.notice)
		}
		return Result{Record: f.Snapshot(), RateLimited: true, Notice: f.notice}, nil
	case errors.Is(err, activity.ErrUnknownOutcome):
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		if rerr := f.Refresh(rctx); rerr != nil {
			telemetry.Warn("accounting.refresh_failed", map[string]any{
				"user_id": f.identity.UserID,
				"op":      op,
				"error":   rerr.Error(),
			})
		}
		return Result{}, err
	case errors.Is(err, activity.ErrLimitReached):
		telemetry.Warn("accounting.limit_reached", map[string]any{
			"user_id": f.identity.UserID,
			"op":      op,
			"error":   err.Error(),
		})
		return Result{Record: f.Snapshot()}, err
	default:
		telemetry.Error("accounting.mutation_failed", map[string]any{
			"user_id": f.identity.UserID,
			"op":      op,
			"error":   err.Error(),
		})
		return Result{}, err
	}
}

func (f *Facade) set(rec activity.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.record = rec
	}
}

func (f *Facade) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
