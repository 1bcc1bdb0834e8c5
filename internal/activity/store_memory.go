package activity

import (
	"context"
	"sync"
)

// memoryStore mirrors the Postgres store: a failed operation leaves the map
// untouched, the same as a rolled-back transaction.
type memoryStore struct {
	mu   sync.Mutex
	data map[string]Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Record)}
}

func (s *memoryStore) EnsureCurrent(ctx context.Context, userID string, at stamp) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, classifyStoreError("ensure current", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, reset := s.currentLocked(userID, at)
	s.data[userID] = rec
	return rec, reset, nil
}

func (s *memoryStore) IncrementMeals(ctx context.Context, userID string, at stamp, opts incrementOptions) (IncrementResult, error) {
	if err := ctx.Err(); err != nil {
		return IncrementResult{}, classifyStoreError("increment meals", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, reset := s.currentLocked(userID, at)
	if reset && !opts.CountOnReset {
		s.data[userID] = rec
		return IncrementResult{Record: rec, ResetApplied: true}, nil
	}
	if opts.Limit >= 0 && rec.WeeklyMealsUsed+1 > opts.Limit {
		return IncrementResult{}, ErrLimitReached
	}
	rec.MealsGenerated++
	rec.WeeklyMealsUsed++
	rec.UpdatedAt = at.Now
	s.data[userID] = rec
	return IncrementResult{Record: rec, ResetApplied: reset, Counted: true}, nil
}

func (s *memoryStore) AdjustSavedRecipes(ctx context.Context, userID string, delta, limit int, at stamp) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, classifyStoreError("adjust saved recipes", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _ := s.currentLocked(userID, at)
	if savedOverLimit(rec.SavedRecipes, delta, limit) {
		return Record{}, ErrSavedRecipesLimitReached
	}
	rec.SavedRecipes = max(rec.SavedRecipes+delta, 0)
	rec.UpdatedAt = at.Now
	s.data[userID] = rec
	return rec, nil
}

func (s *memoryStore) Lookup(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, classifyStoreError("lookup", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[userID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) Create(ctx context.Context, userID string, at stamp) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, classifyStoreError("create", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.data[userID]; ok {
		return rec, nil
	}
	rec := newRecord(userID, at)
	s.data[userID] = rec
	return rec, nil
}

func (s *memoryStore) ResetStale(ctx context.Context, at stamp) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classifyStoreError("reset stale", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.data {
		if !rec.WeeklyResetDate.Before(at.Today) {
			continue
		}
		rec.WeeklyMealsUsed = 0
		rec.WeeklyResetDate = at.Today
		rec.UpdatedAt = at.Now
		s.data[id] = rec
		n++
	}
	return n, nil
}

// currentLocked returns the user's row with any due reset applied, without
// writing it back. Must be called with s.mu held.
func (s *memoryStore) currentLocked(userID string, at stamp) (Record, bool) {
	rec, ok := s.data[userID]
	if !ok {
		rec = newRecord(userID, at)
	}
	reset := false
	if d := Evaluate(rec.WeeklyResetDate, at.Today); d.ResetNeeded {
		rec.WeeklyMealsUsed = 0
		rec.WeeklyResetDate = d.NewResetDate
		rec.UpdatedAt = at.Now
		reset = true
	}
	return rec, reset
}
