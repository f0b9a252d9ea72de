// README: Quote assembler turns the smoothed multiplier into an itemized, rounded quote.
package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"valet/internal/types"
)

type assembly struct {
	id          string
	req         QuoteRequest
	cfg         PricingConfig
	combo       Combination
	smoothed    float64
	previous    float64
	requestedAt time.Time
	createdAt   time.Time
}

func assemble(a assembly) PriceQuote {
	cur := a.cfg.Currency
	sm := decimal.NewFromFloat(a.smoothed)
	baseHourly := decimal.NewFromFloat(a.cfg.BaseHourlyRate)
	baseDaily := decimal.NewFromFloat(a.cfg.BaseDailyRate)

	rate := baseHourly.Mul(sm)
	subtotal, capped := chargeFor(rate, baseDaily.Mul(sm), a.req.EstimatedHours, cur)
	tax := types.RoundMinor(subtotal.Mul(decimal.NewFromFloat(a.cfg.TaxRate)), cur)

	factors := append(append([]FactorResult(nil), a.combo.Factors...),
		smoothingLine(a.cfg.SmoothingFactor, a.combo.Raw, a.combo.Clamped, a.previous, a.smoothed))

	q := PriceQuote{
		ID:                  a.id,
		Scope:               a.req.Scope,
		ConfigVersion:       a.cfg.Version,
		Currency:            cur,
		VehicleClass:        a.req.VehicleClass,
		EstimatedHours:      a.req.EstimatedHours,
		BaseHourlyRate:      baseHourly,
		BaseDailyRate:       baseDaily,
		Factors:             factors,
		RawMultiplier:       a.combo.Raw,
		ClampedMultiplier:   a.combo.Clamped,
		SmoothedMultiplier:  a.smoothed,
		EffectiveHourlyRate: types.RoundMinor(rate, cur),
		Subtotal:            subtotal,
		TaxRate:             a.cfg.TaxRate,
		TaxAmount:           tax,
		TotalPrice:          subtotal.Add(tax),
		DailyCapApplied:     capped,
		RequestedAt:         a.requestedAt,
		CreatedAt:           a.createdAt,
	}
	q.SavingsFromLoyalty = a.savings(FactorLoyalty, subtotal)
	q.SavingsFromAdvance = a.savings(FactorAdvance, subtotal)
	return q
}

// chargeFor bills each full 24h block at min(24h of rate, dailyCap) and the
// remainder at min(rem * rate, dailyCap). The result is rounded to the
// currency's minor unit. Stays over 24h are always billed in day blocks and
// reported as capped, even when no block hit the cap.
func chargeFor(rate, dailyCap decimal.Decimal, hours float64, currency string) (decimal.Decimal, bool) {
	fullDays := math.Floor(hours / hoursPerDay)
	rem := hours - fullDays*hoursPerDay

	dayCharge := decimal.Min(rate.Mul(decimal.NewFromInt(hoursPerDay)), dailyCap)
	remCharge := decimal.Min(rate.Mul(decimal.NewFromFloat(rem)), dailyCap)
	subtotal := types.RoundMinor(dayCharge.Mul(decimal.NewFromFloat(fullDays)).Add(remCharge), currency)

	uncapped := types.RoundMinor(rate.Mul(decimal.NewFromFloat(hours)), currency)
	return subtotal, hours > hoursPerDay || subtotal.LessThan(uncapped)
}

// savings prices the same request again with one discount factor left out,
// through the same clamp and smoothing step against the same previous value,
// and returns how much more that would have cost. A discount swallowed by the
// fairness floor or damped by smoothing saves correspondingly less.
func (a assembly) savings(factor string, subtotal decimal.Decimal) decimal.Decimal {
	if f, ok := findFactor(a.combo.Factors, factor); !ok || f.Multiplier >= 1 {
		return decimal.Zero
	}
	raw := 1.0
	for _, r := range a.combo.Factors {
		if r.Kind == KindReported || r.Name == factor {
			continue
		}
		raw *= r.Multiplier
	}
	clamped, _ := clamp(raw, a.cfg)
	sm := decimal.NewFromFloat(bound(ema(a.cfg.SmoothingFactor, clamped, a.previous), a.cfg))

	without, _ := chargeFor(
		decimal.NewFromFloat(a.cfg.BaseHourlyRate).Mul(sm),
		decimal.NewFromFloat(a.cfg.BaseDailyRate).Mul(sm),
		a.req.EstimatedHours, a.cfg.Currency,
	)
	if d := without.Sub(subtotal); d.IsPositive() {
		return d
	}
	return decimal.Zero
}

// Total returns the quote's total price as minor-unit money.
func (q PriceQuote) Total() types.Money {
	return types.MoneyFromDecimal(q.TotalPrice, q.Currency)
}
