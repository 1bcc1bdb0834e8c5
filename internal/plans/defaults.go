package plans

import "strings"

var tierTable = map[Tier]Entitlement{
	TierFree:    {Tier: TierFree, MealsPerWeek: 3, SavedRecipesLimit: 10},
	TierPro:     {Tier: TierPro, MealsPerWeek: 14, SavedRecipesLimit: 100},
	TierPremium: {Tier: TierPremium, Unlimited: true, SavedRecipesLimit: 1000},
}

// ParseTier normalizes a stored plan name.
func ParseTier(raw string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := tierTable[t]; !ok {
		return "", ErrUnknownTier
	}
	return t, nil
}

// ForTier returns the entitlement configured for a tier.
func ForTier(t Tier) (Entitlement, error) {
	e, ok := tierTable[t]
	if !ok {
		return Entitlement{}, ErrUnknownTier
	}
	return e, nil
}
