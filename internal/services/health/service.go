package health

import (
	"context"
	"sync"
	"time"
)

const defaultTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// Service runs dependency checks for the health endpoint.
type Service struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewService constructs a health service. Nil checks are ignored.
func NewService(checks map[string]Check) *Service {
	s := &Service{checks: make(map[string]Check, len(checks)), timeout: defaultTimeout}
	for name, check := range checks {
		if check != nil {
			s.checks[name] = check
		}
	}
	return s
}

// Status runs every check concurrently and reports "ok" or the error text per
// dependency, plus whether all of them passed.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	if s == nil || len(s.checks) == 0 {
		return map[string]string{}, true
	}
	report := make(map[string]string, len(s.checks))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
		ok = true
	)
	for name, check := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report[name] = status
			if status != "ok" {
				ok = false
			}
		}()
	}
	wg.Wait()
	return report, ok
}
