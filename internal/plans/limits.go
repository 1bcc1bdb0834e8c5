package plans

import "context"

// Limits adapts a Provider to the activity handler's entitlement check.
type Limits struct {
	Provider Provider
}

func (l Limits) WeeklyMealLimit(ctx context.Context, userID string) (int, error) {
	e, err := l.Provider.Entitlement(ctx, userID)
	if err != nil {
		return 0, err
	}
	return e.WeeklyLimit(), nil
}

func (l Limits) SavedRecipesLimit(ctx context.Context, userID string) (int, error) {
	e, err := l.Provider.Entitlement(ctx, userID)
	if err != nil {
		return 0, err
	}
	return e.SavedLimit(), nil
}
