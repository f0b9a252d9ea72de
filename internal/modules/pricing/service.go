// README: Pricing service computes, smooths and audits price quotes per scope.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxConflictRetries = 5
	defaultRetryBackoff       = 5 * time.Millisecond
	maxRetryBackoff           = 250 * time.Millisecond
	defaultListLimit          = 50
	maxListLimit              = 500
)

type ServiceDeps struct {
	Configs ConfigStore
	States  StateStore
	Audit   AuditLog
	Logger  *zap.Logger

	// Factors defaults to DefaultFactors().
	Factors            []Factor
	MaxConflictRetries int
	RetryBackoff       time.Duration
	Now                func() time.Time
}

type Service struct {
	configs    ConfigStore
	states     StateStore
	audit      AuditLog
	log        *zap.Logger
	factors    []Factor
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
	newID      func() (string, error)
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{
		configs:    deps.Configs,
		states:     deps.States,
		audit:      deps.Audit,
		log:        deps.Logger,
		factors:    deps.Factors,
		maxRetries: deps.MaxConflictRetries,
		backoff:    deps.RetryBackoff,
		now:        deps.Now,
		newID:      newQuoteID,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if len(s.factors) == 0 {
		s.factors = DefaultFactors()
	}
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxConflictRetries
	}
	if s.backoff <= 0 {
		s.backoff = defaultRetryBackoff
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GetPriceQuote validates the request and the scope's config, evaluates and
// clamps the factors, advances the scope's smoothing state, and records the
// resulting quote in the audit log. Nothing is written when validation fails.
func (s *Service) GetPriceQuote(ctx context.Context, req QuoteRequest) (PriceQuote, error) {
	if err := req.Validate(); err != nil {
		return PriceQuote{}, err
	}
	cfg, err := s.configs.GetConfig(ctx, req.Scope)
	if err != nil {
		return PriceQuote{}, err
	}
	if err := cfg.Validate(); err != nil {
		s.log.Error("stored pricing config is invalid",
			zap.String("scope", req.Scope), zap.Int64("config_version", cfg.Version), zap.Error(err))
		return PriceQuote{}, err
	}
	loc, _ := cfg.location()

	requestedAt := req.RequestTime
	if requestedAt.IsZero() {
		requestedAt = s.now()
	}
	combo := Combine(s.factors, FactorInput{
		Request: req,
		Config:  cfg,
		Local:   requestedAt.In(loc),
	})

	state, previous, err := s.smooth(ctx, req.Scope, cfg, combo.Clamped)
	if err != nil {
		return PriceQuote{}, err
	}

	id, err := s.newID()
	if err != nil {
		return PriceQuote{}, transient("quote id", err)
	}
	q := assemble(assembly{
		id:          id,
		req:         req,
		cfg:         cfg,
		combo:       combo,
		smoothed:    state.Multiplier,
		previous:    previous,
		requestedAt: requestedAt,
		createdAt:   s.now(),
	})
	if err := s.audit.AppendQuote(ctx, q); err != nil {
		s.log.Error("audit append failed",
			zap.String("scope", q.Scope), zap.String("quote_id", q.ID), zap.Error(err))
		return PriceQuote{}, err
	}

	s.log.Info("quote issued",
		zap.String("scope", q.Scope),
		zap.String("quote_id", q.ID),
		zap.Int64("config_version", q.ConfigVersion),
		zap.Float64("raw", q.RawMultiplier),
		zap.Float64("clamped", q.ClampedMultiplier),
		zap.Float64("smoothed", q.SmoothedMultiplier),
		zap.String("total", q.TotalPrice.String()),
		zap.Int64("total_minor", q.Total().Amount),
		zap.Bool("daily_cap", q.DailyCapApplied),
	)
	return q, nil
}

// smooth retries the read-modify-write on conflict with exponential backoff.
func (s *Service) smooth(ctx context.Context, scope string, cfg PricingConfig, clamped float64) (SmoothingState, float64, error) {
	wait := s.backoff
	for attempt := 1; ; attempt++ {
		state, previous, err := smoothOnce(ctx, s.states, scope, cfg, clamped, s.now())
		if err == nil {
			return state, previous, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			s.log.Warn("smoothing state unavailable", zap.String("scope", scope), zap.Error(err))
			return SmoothingState{}, 0, err
		}
		if attempt > s.maxRetries {
			s.log.Warn("smoothing state contention, giving up",
				zap.String("scope", scope), zap.Int("attempts", attempt))
			return SmoothingState{}, 0, fmt.Errorf("%w: scope %s after %d attempts", ErrConcurrencyConflict, scope, attempt)
		}
		s.log.Debug("smoothing state conflict, retrying",
			zap.String("scope", scope), zap.Int("attempt", attempt), zap.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return SmoothingState{}, 0, ctx.Err()
		case <-time.After(wait):
		}
		if wait *= 2; wait > maxRetryBackoff {
			wait = maxRetryBackoff
		}
	}
}

// UpdatePricingConfig replaces the scope's config for subsequent quotes.
// The scope's smoothing state is left alone.
func (s *Service) UpdatePricingConfig(ctx context.Context, scope string, cfg PricingConfig) (PricingConfig, error) {
	if scope == "" {
		return PricingConfig{}, invalidRequest("scope", "is required")
	}
	if err := cfg.Validate(); err != nil {
		return PricingConfig{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	stored, err := s.configs.PutConfig(ctx, scope, cfg)
	if err != nil {
		return PricingConfig{}, err
	}
	s.log.Info("pricing config updated", zap.String("scope", scope), zap.Int64("version", stored.Version))
	return stored, nil
}

func (s *Service) GetPricingConfig(ctx context.Context, scope string) (PricingConfig, error) {
	return s.configs.GetConfig(ctx, scope)
}

// GetSmoothingState reports the scope's current multiplier, neutral if none was stored yet.
func (s *Service) GetSmoothingState(ctx context.Context, scope string) (SmoothingState, error) {
	st, ok, err := s.states.LoadState(ctx, scope)
	if err != nil {
		return SmoothingState{}, err
	}
	if !ok {
		return neutralState(scope), nil
	}
	return st, nil
}

func (s *Service) GetQuote(ctx context.Context, id string) (PriceQuote, error) {
	return s.audit.GetQuote(ctx, id)
}

func (s *Service) ListQuotes(ctx context.Context, scope string, since time.Time, limit int) ([]PriceQuote, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.audit.ListQuotes(ctx, scope, since, limit)
}

// newQuoteID returns a UUIDv7: globally unique and sortable by creation time.
func newQuoteID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
