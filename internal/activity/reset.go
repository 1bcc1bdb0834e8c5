package activity

import (
	"time"

	"cloud.google.com/go/civil"
)

// Decision is the output of Evaluate.
type Decision struct {
	ResetNeeded  bool
	NewResetDate civil.Date
}

// Evaluate decides whether the weekly counter is owed a reset. A zero or
// invalid stored date counts as absent. Only calendar dates are compared, so
// time-of-day and offset shifts within one day never trigger a reset.
func Evaluate(stored, today civil.Date) Decision {
	if !stored.IsValid() || stored.Before(today) {
		return Decision{ResetNeeded: true, NewResetDate: today}
	}
	return Decision{ResetNeeded: false, NewResetDate: stored}
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}
