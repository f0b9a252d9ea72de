package pricing

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps configs, smoothing state and the audit log in process.
// Used by the CLI, tests, and single-instance deployments. Each scope has its
// own lock; the outer lock only guards shard creation.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[string]*scopeShard
	// quoteScopes maps quote id to scope for GetQuote.
	quoteScopes sync.Map
	now         func() time.Time
}

type scopeShard struct {
	mu     sync.Mutex
	config *PricingConfig
	state  *SmoothingState
	quotes []PriceQuote
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scopes: make(map[string]*scopeShard),
		now:    time.Now,
	}
}

func (m *MemoryStore) shard(scope string) *scopeShard {
	m.mu.RLock()
	sh, ok := m.scopes[scope]
	m.mu.RUnlock()
	if ok {
		return sh
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sh, ok = m.scopes[scope]; !ok {
		sh = &scopeShard{}
		m.scopes[scope] = sh
	}
	return sh
}

func (m *MemoryStore) GetConfig(_ context.Context, scope string) (PricingConfig, error) {
	sh := m.shard(scope)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.config == nil {
		return PricingConfig{}, ErrConfigNotFound
	}
	return sh.config.clone(), nil
}

func (m *MemoryStore) PutConfig(_ context.Context, scope string, cfg PricingConfig) (PricingConfig, error) {
	sh := m.shard(scope)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cfg = cfg.clone()
	cfg.Version = 1
	if sh.config != nil {
		cfg.Version = sh.config.Version + 1
	}
	cfg.UpdatedAt = m.now()
	sh.config = &cfg
	return cfg.clone(), nil
}

func (m *MemoryStore) LoadState(_ context.Context, scope string) (SmoothingState, bool, error) {
	sh := m.shard(scope)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.state == nil {
		return SmoothingState{}, false, nil
	}
	return *sh.state, true, nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, expectedVersion int64, next SmoothingState) error {
	sh := m.shard(next.Scope)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	var current int64
	if sh.state != nil {
		current = sh.state.Version
	}
	if current != expectedVersion {
		return ErrConcurrencyConflict
	}
	next.Version = expectedVersion + 1
	sh.state = &next
	return nil
}

func (m *MemoryStore) AppendQuote(_ context.Context, q PriceQuote) error {
	if _, dup := m.quoteScopes.LoadOrStore(q.ID, q.Scope); dup {
		return transient("append quote", errDuplicateQuote)
	}
	sh := m.shard(q.Scope)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.quotes = append(sh.quotes, q)
	return nil
}

func (m *MemoryStore) GetQuote(_ context.Context, id string) (PriceQuote, error) {
	scope, ok := m.quoteScopes.Load(id)
	if !ok {
		return PriceQuote{}, ErrQuoteNotFound
	}
	sh := m.shard(scope.(string))
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for _, q := range sh.quotes {
		if q.ID == id {
			return q, nil
		}
	}
	// id registered but the append has not landed yet
	return PriceQuote{}, ErrQuoteNotFound
}

func (m *MemoryStore) ListQuotes(_ context.Context, scope string, since time.Time, limit int) ([]PriceQuote, error) {
	sh := m.shard(scope)
	sh.mu.Lock()
	var out []PriceQuote
	for _, q := range sh.quotes {
		if q.CreatedAt.Before(since) {
			continue
		}
		out = append(out, q)
	}
	sh.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c PricingConfig) clone() PricingConfig {
	c.HourlyMultipliers = append([]float64(nil), c.HourlyMultipliers...)
	c.DayOfWeekMultipliers = append([]float64(nil), c.DayOfWeekMultipliers...)
	c.Seasons = append([]SeasonalPeriod(nil), c.Seasons...)
	if c.VehicleSurcharges != nil {
		vs := make(map[VehicleClass]float64, len(c.VehicleSurcharges))
		for k, v := range c.VehicleSurcharges {
			vs[k] = v
		}
		c.VehicleSurcharges = vs
	}
	return c
}
