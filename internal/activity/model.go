package activity

import (
	"time"

	"cloud.google.com/go/civil"
)

// Record is a user's persisted activity row.
type Record struct {
	UserID          string     `json:"userId"`
	MealsGenerated  int        `json:"mealsGenerated"`
	SavedRecipes    int        `json:"savedRecipes"`
	WeeklyMealsUsed int        `json:"weeklyMealsUsed"`
	WeeklyResetDate civil.Date `json:"weeklyResetDate"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Effective returns the record as a reader must see it on the given day.
// A stale row is owed a reset, so its weekly counter reads as zero even if
// the write has not landed yet.
func (r Record) Effective(today civil.Date) Record {
	if d := Evaluate(r.WeeklyResetDate, today); d.ResetNeeded {
		r.WeeklyMealsUsed = 0
		r.WeeklyResetDate = d.NewResetDate
	}
	return r
}

// IncrementResult is the outcome of a meal-generation increment.
type IncrementResult struct {
	Record Record `json:"record"`
	// ResetApplied reports that this call rolled the weekly window.
	ResetApplied bool `json:"resetApplied"`
	// Counted is false when the increment was discarded because of a reset.
	Counted bool `json:"counted"`
}

// BatchResult summarizes one scheduled reset run.
type BatchResult struct {
	UsersReset int64      `json:"usersReset"`
	Date       civil.Date `json:"date"`
}

// stamp pins "now" for one operation so every step sees the same day.
type stamp struct {
	Today civil.Date
	Now   time.Time
}

func stampAt(now time.Time) stamp {
	now = now.UTC()
	return stamp{Today: DateOf(now), Now: now}
}

func newRecord(userID string, at stamp) Record {
	return Record{
		UserID:          userID,
		WeeklyResetDate: at.Today,
		UpdatedAt:       at.Now,
	}
}

// savedOverLimit reports whether applying delta would push saved recipes past
// limit. Removals are always allowed.
func savedOverLimit(current, delta, limit int) bool {
	return delta > 0 && limit >= 0 && current+delta > limit
}
