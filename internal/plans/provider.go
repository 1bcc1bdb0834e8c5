package plans

import (
	"context"
	"strings"
	"sync"
)

// Provider resolves a user's current entitlement.
type Provider interface {
	Entitlement(ctx context.Context, userID string) (Entitlement, error)
}

// StaticProvider serves tiers from memory. Users without an assignment get
// the default tier.
type StaticProvider struct {
	mu       sync.RWMutex
	tiers    map[string]Tier
	fallback Tier
}

// NewStaticProvider returns a StaticProvider with the given default tier.
func NewStaticProvider(fallback Tier) *StaticProvider {
	if _, ok := tierTable[fallback]; !ok {
		fallback = TierFree
	}
	return &StaticProvider{tiers: make(map[string]Tier), fallback: fallback}
}

// Assign sets a user's tier.
func (p *StaticProvider) Assign(userID string, tier Tier) error {
	if _, ok := tierTable[tier]; !ok {
		return ErrUnknownTier
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tiers[strings.TrimSpace(userID)] = tier
	return nil
}

func (p *StaticProvider) Entitlement(ctx context.Context, userID string) (Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return Entitlement{}, err
	}
	p.mu.RLock()
	tier, ok := p.tiers[strings.TrimSpace(userID)]
	p.mu.RUnlock()
	if !ok {
		tier = p.fallback
	}
	return ForTier(tier)
}
