// README: EMA smoothing stage and the per-scope state store contract.
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"
)

// StateStore persists one SmoothingState per scope.
//
// CompareAndSwap writes next only if the stored version still equals
// expectedVersion (0 means "no state yet"), and returns ErrConcurrencyConflict
// otherwise. Implementations store next with Version = expectedVersion + 1.
type StateStore interface {
	LoadState(ctx context.Context, scope string) (SmoothingState, bool, error)
	CompareAndSwap(ctx context.Context, expectedVersion int64, next SmoothingState) error
}

// ema blends the clamped multiplier into the previous smoothed value.
// alpha = 0 keeps previous forever, alpha = 1 disables smoothing.
func ema(alpha, clamped, previous float64) float64 {
	if alpha >= 1 {
		return clamped
	}
	if alpha <= 0 {
		return previous
	}
	return alpha*clamped + (1-alpha)*previous
}

// smoothOnce performs one read-modify-write attempt against the store. The
// result is bounded by the config's fairness range even when the previous
// value was produced under an older, wider config.
func smoothOnce(ctx context.Context, store StateStore, scope string, cfg PricingConfig, clamped float64, now time.Time) (SmoothingState, float64, error) {
	prev, ok, err := store.LoadState(ctx, scope)
	if err != nil {
		return SmoothingState{}, 0, err
	}
	if !ok {
		prev = neutralState(scope)
	}
	smoothed := bound(ema(cfg.SmoothingFactor, clamped, prev.Multiplier), cfg)

	next := SmoothingState{
		Scope:      scope,
		Multiplier: smoothed,
		Version:    prev.Version + 1,
		UpdatedAt:  now,
	}
	if err := store.CompareAndSwap(ctx, prev.Version, next); err != nil {
		return SmoothingState{}, 0, err
	}
	return next, prev.Multiplier, nil
}

func bound(v float64, cfg PricingConfig) float64 {
	return math.Max(cfg.MinTotalMultiplier, math.Min(cfg.MaxTotalMultiplier, v))
}

// smoothingLine reports the smoothed multiplier against the unclamped one:
// it is applied whenever the customer pays something other than raw.
func smoothingLine(alpha, raw, clamped, previous, smoothed float64) FactorResult {
	return FactorResult{
		Name:        FactorSmoothing,
		Description: fmt.Sprintf("alpha %.2f, previous %.4f", alpha, previous),
		Multiplier:  smoothed / clamped,
		Applied:     math.Abs(smoothed-raw) > neutralTolerance*raw,
		Kind:        KindReported,
	}
}
