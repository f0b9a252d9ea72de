package pricing

import (
	"fmt"
	"sort"
)

// Combination is the output of the combiner and the fairness clamp.
type Combination struct {
	Factors []FactorResult
	Raw     float64
	Clamped float64
}

// evaluate runs every factor against the request. Factors are independent,
// so order only matters for how the audit trail reads.
func evaluate(factors []Factor, in FactorInput) []FactorResult {
	out := make([]FactorResult, 0, len(factors)+2)
	for _, f := range factors {
		out = append(out, f.Evaluate(in))
	}
	// surcharges, then discounts, then degression
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// combine multiplies every factor together. Surcharges compose multiplicatively,
// discounts arrive as (1 - d) and degression as its own multiplier, so one
// product covers all three groups.
func combine(results []FactorResult) float64 {
	raw := 1.0
	for _, r := range results {
		if r.Kind == KindReported {
			continue
		}
		raw *= r.Multiplier
	}
	return raw
}

// clamp bounds the raw multiplier to the config's fairness range. It is the
// last step before smoothing; smoothing of in-range values stays in range.
func clamp(raw float64, cfg PricingConfig) (float64, FactorResult) {
	clamped := raw
	desc := fmt.Sprintf("within [%.2f, %.2f]", cfg.MinTotalMultiplier, cfg.MaxTotalMultiplier)
	switch {
	case raw > cfg.MaxTotalMultiplier:
		clamped = cfg.MaxTotalMultiplier
		desc = fmt.Sprintf("capped %.4f to max %.2f", raw, cfg.MaxTotalMultiplier)
	case raw < cfg.MinTotalMultiplier:
		clamped = cfg.MinTotalMultiplier
		desc = fmt.Sprintf("raised %.4f to min %.2f", raw, cfg.MinTotalMultiplier)
	}
	return clamped, FactorResult{
		Name:        FactorFairnessCap,
		Description: desc,
		Multiplier:  clamped / raw,
		Applied:     clamped != raw,
		Kind:        KindReported,
	}
}

// Combine evaluates, combines and clamps. It reads nothing but its arguments.
func Combine(factors []Factor, in FactorInput) Combination {
	results := evaluate(factors, in)
	raw := combine(results)
	clamped, capLine := clamp(raw, in.Config)
	return Combination{
		Factors: append(results, capLine),
		Raw:     raw,
		Clamped: clamped,
	}
}
