package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mealplan-backend/internal/shared/telemetry"
)

// PGProvider reads the user's plan from the subscriptions table. Only
// active and trialing subscriptions count; anything else falls back to the
// default tier.
type PGProvider struct {
	DB       *sql.DB
	Fallback Tier
}

func NewPGProvider(db *sql.DB, fallback Tier) *PGProvider {
	if _, ok := tierTable[fallback]; !ok {
		fallback = TierFree
	}
	return &PGProvider{DB: db, Fallback: fallback}
}

func (p *PGProvider) Entitlement(ctx context.Context, userID string) (Entitlement, error) {
	var plan string
	err := p.DB.QueryRowContext(ctx, `
SELECT plan
FROM subscriptions
WHERE user_id = $1 AND status IN ('active', 'trialing')`, userID).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		return ForTier(p.Fallback)
	}
	if err != nil {
		return Entitlement{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	tier, err := ParseTier(plan)
	if err != nil {
		telemetry.Warn("plans.unknown_tier", map[string]any{
			"user_id": userID,
			"plan":    plan,
		})
		return ForTier(p.Fallback)
	}
	return ForTier(tier)
}
