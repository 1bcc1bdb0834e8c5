package activity

import "context"

// NoLimit disables the entitlement check on an increment.
const NoLimit = -1

type incrementOptions struct {
	// Limit is the weekly entitlement; NoLimit skips the check.
	Limit int
	// CountOnReset counts the triggering generation against a window that
	// this same call just opened. When false the increment is discarded.
	CountOnReset bool
}

type store interface {
	// EnsureCurrent creates the row if absent and applies any overdue reset.
	EnsureCurrent(ctx context.Context, userID string, at stamp) (Record, bool, error)
	IncrementMeals(ctx context.Context, userID string, at stamp, opts incrementOptions) (IncrementResult, error)
	AdjustSavedRecipes(ctx context.Context, userID string, delta, limit int, at stamp) (Record, error)
	// Lookup is a plain point read; it never creates or resets.
	Lookup(ctx context.Context, userID string) (Record, error)
	// Create inserts a zeroed row if absent and returns whatever row exists.
	Create(ctx context.Context, userID string, at stamp) (Record, error)
	// ResetStale zeroes every row whose window has expired.
	ResetStale(ctx context.Context, at stamp) (int64, error)
}
