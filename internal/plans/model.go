package plans

import "mealplan-backend/internal/activity"

// Tier names a subscription plan.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// Entitlement is what a tier allows per week.
type Entitlement struct {
	Tier              Tier `json:"tier"`
	MealsPerWeek      int  `json:"mealsPerWeek"`
	Unlimited         bool `json:"unlimited"`
	SavedRecipesLimit int  `json:"savedRecipesLimit"`
}

// Allows reports whether one more generation fits after used generations.
func (e Entitlement) Allows(used int) bool {
	if e.Unlimited {
		return true
	}
	return used+1 <= e.MealsPerWeek
}

// WeeklyLimit returns the meal allowance in the form the activity service
// expects.
func (e Entitlement) WeeklyLimit() int {
	if e.Unlimited {
		return activity.NoLimit
	}
	return max(e.MealsPerWeek, 0)
}

// SavedLimit returns the saved-recipes cap in the form the activity service
// expects.
func (e Entitlement) SavedLimit() int {
	return max(e.SavedRecipesLimit, 0)
}

// Remaining returns how many generations are left this week, or
// activity.NoLimit for unlimited tiers.
func (e Entitlement) Remaining(used int) int {
	if e.Unlimited {
		return activity.NoLimit
	}
	return max(e.MealsPerWeek-used, 0)
}
