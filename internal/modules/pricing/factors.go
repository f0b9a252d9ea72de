// README: Factor evaluators; each maps a request and config to one multiplier line.
package pricing

import (
	"fmt"
	"math"
	"time"
)

const (
	FactorTimeOfDay   = "time_of_day"
	FactorDayOfWeek   = "day_of_week"
	FactorDemand      = "demand"
	FactorSeasonal    = "seasonal"
	FactorVehicle     = "vehicle_type"
	FactorAdvance     = "advance_booking"
	FactorLoyalty     = "loyalty"
	FactorDuration    = "duration"
	FactorFairnessCap = "fairness_cap"
	FactorSmoothing   = "smoothing"
)

const (
	// neutralTolerance is how far from 1.0 a multiplier must be to count as applied.
	neutralTolerance = 0.01

	maxAdvanceDiscount    = 0.20
	advanceDiscountPerDay = 0.02
	maxLoyaltyDiscount    = 0.20

	// durationNeutralHours is the longest stay billed at the full hourly rate.
	durationNeutralHours = 4.0
	durationFloor        = 0.40
)

// demandCurve maps occupancy to a multiplier; linear between points, monotonic.
var demandCurve = []struct{ occupancy, multiplier float64 }{
	{0.00, 0.85},
	{0.40, 1.00},
	{0.85, 1.00},
	{1.00, 1.75},
}

// FactorInput is the read-only view every evaluator receives.
type FactorInput struct {
	Request QuoteRequest
	Config  PricingConfig
	// Local is the request time in the scope's time zone.
	Local time.Time
}

// Factor is one independent pricing signal. Evaluate must be pure.
type Factor interface {
	Name() string
	Kind() FactorKind
	Evaluate(in FactorInput) FactorResult
}

type factorFunc struct {
	name string
	kind FactorKind
	fn   func(in FactorInput) (multiplier float64, description string)
}

func (f factorFunc) Name() string     { return f.name }
func (f factorFunc) Kind() FactorKind { return f.kind }

func (f factorFunc) Evaluate(in FactorInput) FactorResult {
	m, desc := f.fn(in)
	return FactorResult{
		Name:        f.name,
		Description: desc,
		Multiplier:  m,
		Applied:     !isNeutral(m),
		Kind:        f.kind,
	}
}

// DefaultFactors returns the evaluators in composition order:
// surcharges, then discounts, then duration degression.
func DefaultFactors() []Factor {
	return []Factor{
		factorFunc{FactorTimeOfDay, KindSurcharge, timeOfDay},
		factorFunc{FactorDayOfWeek, KindSurcharge, dayOfWeek},
		factorFunc{FactorDemand, KindSurcharge, demand},
		factorFunc{FactorSeasonal, KindSurcharge, seasonal},
		factorFunc{FactorVehicle, KindSurcharge, vehicleType},
		factorFunc{FactorAdvance, KindDiscount, advanceBooking},
		factorFunc{FactorLoyalty, KindDiscount, loyalty},
		factorFunc{FactorDuration, KindDegression, durationDegression},
	}
}

func timeOfDay(in FactorInput) (float64, string) {
	h := in.Local.Hour()
	return in.Config.HourlyMultipliers[h], fmt.Sprintf("hour %02d", h)
}

func dayOfWeek(in FactorInput) (float64, string) {
	d := in.Local.Weekday()
	return in.Config.DayOfWeekMultipliers[int(d)], d.String()
}

func demand(in FactorInput) (float64, string) {
	o := in.Request.OccupancyRatio
	return demandMultiplier(o), fmt.Sprintf("occupancy %.0f%%", o*100)
}

func demandMultiplier(occupancy float64) float64 {
	first, last := demandCurve[0], demandCurve[len(demandCurve)-1]
	if occupancy <= first.occupancy {
		return first.multiplier
	}
	if occupancy >= last.occupancy {
		return last.multiplier
	}
	for i := 1; i < len(demandCurve); i++ {
		lo, hi := demandCurve[i-1], demandCurve[i]
		if occupancy <= hi.occupancy {
			t := (occupancy - lo.occupancy) / (hi.occupancy - lo.occupancy)
			return lo.multiplier + t*(hi.multiplier-lo.multiplier)
		}
	}
	return last.multiplier
}

func seasonal(in FactorInput) (float64, string) {
	if m := in.Request.SeasonalMultiplier; m != nil {
		return *m, "caller supplied"
	}
	best, name := 0.0, ""
	for _, s := range in.Config.Seasons {
		if s.contains(in.Local) && s.Surcharge > best {
			best, name = s.Surcharge, s.Name
		}
	}
	if name == "" {
		return 1.0, "off season"
	}
	return 1 + best, name
}

func vehicleType(in FactorInput) (float64, string) {
	v := in.Request.VehicleClass
	return 1 + in.Config.VehicleSurcharges[v], string(v)
}

func advanceBooking(in FactorInput) (float64, string) {
	d := AdvanceDiscount(in.Request.DaysInAdvance)
	return 1 - d, fmt.Sprintf("%d days ahead, %.0f%% off", in.Request.DaysInAdvance, d*100)
}

// AdvanceDiscount grows 2% per day booked ahead and saturates at 20%.
func AdvanceDiscount(days int) float64 {
	if days <= 0 {
		return 0
	}
	return math.Min(maxAdvanceDiscount, float64(days)*advanceDiscountPerDay)
}

func loyalty(in FactorInput) (float64, string) {
	t := in.Request.LoyaltyTier
	if t == LoyaltyNone {
		return 1.0, "no tier"
	}
	d := math.Min(maxLoyaltyDiscount, loyaltyDiscounts[t])
	return 1 - d, fmt.Sprintf("%s, %.0f%% off", t, d*100)
}

func durationDegression(in FactorInput) (float64, string) {
	h := in.Request.EstimatedHours
	return DurationMultiplier(h), fmt.Sprintf("%.2f hours", h)
}

// DurationMultiplier scales the hourly rate down for long stays.
// It is 1 up to durationNeutralHours, then decays as 1/sqrt(h) toward durationFloor,
// so the effective rate never rises and the total never falls.
func DurationMultiplier(hours float64) float64 {
	if hours <= durationNeutralHours {
		return 1.0
	}
	return durationFloor + (1-durationFloor)*math.Sqrt(durationNeutralHours/hours)
}

func isNeutral(m float64) bool {
	return math.Abs(m-1) <= neutralTolerance
}

func (s SeasonalPeriod) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := parseMonthDay(s.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, err := parseMonthDay(s.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if !finite(s.Surcharge) || s.Surcharge < 0 {
		return fmt.Errorf("surcharge must be non-negative, got %v", s.Surcharge)
	}
	return nil
}

func (s SeasonalPeriod) contains(t time.Time) bool {
	start, err := parseMonthDay(s.Start)
	if err != nil {
		return false
	}
	end, err := parseMonthDay(s.End)
	if err != nil {
		return false
	}
	md := int(t.Month())*100 + t.Day()
	if start <= end {
		return md >= start && md <= end
	}
	return md >= start || md <= end
}

// parseMonthDay turns "12-24" into 1224.
func parseMonthDay(v string) (int, error) {
	t, err := time.Parse("01-02", v)
	if err != nil {
		return 0, err
	}
	return int(t.Month())*100 + t.Day(), nil
}
