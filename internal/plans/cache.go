package plans

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"mealplan-backend/internal/shared/metrics"
)

// CachedProvider memoizes entitlements for a short TTL. Failed lookups are
// not cached.
type CachedProvider struct {
	next  Provider
	cache *expirable.LRU[string, Entitlement]
}

func NewCachedProvider(next Provider, size int, ttl time.Duration) *CachedProvider {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProvider{
		next:  next,
		cache: expirable.NewLRU[string, Entitlement](size, nil, ttl),
	}
}

func (p *CachedProvider) Entitlement(ctx context.Context, userID string) (Entitlement, error) {
	if e, ok := p.cache.Get(userID); ok {
		metrics.IncEntitlementLookup("hit")
		return e, nil
	}
	metrics.IncEntitlementLookup("miss")
	e, err := p.next.Entitlement(ctx, userID)
	if err != nil {
		return Entitlement{}, err
	}
	p.cache.Add(userID, e)
	return e, nil
}

// Invalidate drops a user's cached entitlement, e.g. after a plan change.
func (p *CachedProvider) Invalidate(userID string) {
	p.cache.Remove(userID)
}
