package accounting

import (
	"context"
	"strings"

	"mealplan-backend/internal/activity"
)

// Identity scopes a facade to one signed-in user. Token is optional and only
// used by remote backends.
type Identity struct {
	UserID string
	Token  string
}

func (i Identity) valid() bool {
	return strings.TrimSpace(i.UserID) != "" || strings.TrimSpace(i.Token) != ""
}

// Backend is the authoritative store as seen from a client.
type Backend interface {
	// GetActivity is the self-healing read.
	GetActivity(ctx context.Context, id Identity) (activity.Record, error)
	// CheckReset is GetActivity that also reports whether it reset the window.
	CheckReset(ctx context.Context, id Identity) (activity.Record, bool, error)
	Create(ctx context.Context, id Identity) (activity.Record, error)
	IncrementMeals(ctx context.Context, id Identity) (activity.IncrementResult, error)
	AdjustSavedRecipes(ctx context.Context, id Identity, delta int) (activity.Record, error)
}

// ServiceBackend runs against an in-process activity service.
type ServiceBackend struct {
	Svc *activity.Service
	// Limits is optional; without it increments are unlimited.
	Limits activity.Entitlements
}

func (b ServiceBackend) GetActivity(ctx context.Context, id Identity) (activity.Record, error) {
	return b.Svc.GetActivity(ctx, id.UserID)
}

func (b ServiceBackend) CheckReset(ctx context.Context, id Identity) (activity.Record, bool, error) {
	return b.Svc.CheckReset(ctx, id.UserID)
}

func (b ServiceBackend) Create(ctx context.Context, id Identity) (activity.Record, error) {
	return b.Svc.Create(ctx, id.UserID)
}

func (b ServiceBackend) IncrementMeals(ctx context.Context, id Identity) (activity.IncrementResult, error) {
	limit := activity.NoLimit
	if b.Limits != nil {
		l, err := b.Limits.WeeklyMealLimit(ctx, id.UserID)
		if err != nil {
			return activity.IncrementResult{}, err
		}
		limit = l
	}
	return b.Svc.IncrementMealsGenerated(ctx, id.UserID, limit)
}

func (b ServiceBackend) AdjustSavedRecipes(ctx context.Context, id Identity, delta int) (activity.Record, error) {
	if delta < 0 {
		return b.Svc.DecrementSavedRecipes(ctx, id.UserID)
	}
	limit := activity.NoLimit
	if b.Limits != nil {
		l, err := b.Limits.SavedRecipesLimit(ctx, id.UserID)
		if err != nil {
			return activity.Record{}, err
		}
		limit = l
	}
	return b.Svc.IncrementSavedRecipes(ctx, id.UserID, limit)
}
