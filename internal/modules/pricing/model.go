// README: Pricing configuration, quote request and quote value objects.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

type VehicleClass string

const (
	VehicleStandard   VehicleClass = "standard"
	VehicleCompact    VehicleClass = "compact"
	VehicleSUV        VehicleClass = "suv"
	VehicleOversized  VehicleClass = "oversized"
	VehicleMotorcycle VehicleClass = "motorcycle"
	VehicleElectric   VehicleClass = "electric"
)

// VehicleClasses lists every class a PricingConfig must carry a surcharge for.
var VehicleClasses = []VehicleClass{
	VehicleStandard,
	VehicleCompact,
	VehicleSUV,
	VehicleOversized,
	VehicleMotorcycle,
	VehicleElectric,
}

func (v VehicleClass) Valid() bool {
	for _, c := range VehicleClasses {
		if c == v {
			return true
		}
	}
	return false
}

// LoyaltyTier is ordered: a higher tier never earns a smaller discount.
type LoyaltyTier string

const (
	LoyaltyNone     LoyaltyTier = ""
	LoyaltyBronze   LoyaltyTier = "bronze"
	LoyaltySilver   LoyaltyTier = "silver"
	LoyaltyGold     LoyaltyTier = "gold"
	LoyaltyPlatinum LoyaltyTier = "platinum"
)

var loyaltyDiscounts = map[LoyaltyTier]float64{
	LoyaltyNone:     0,
	LoyaltyBronze:   0.05,
	LoyaltySilver:   0.10,
	LoyaltyGold:     0.15,
	LoyaltyPlatinum: 0.20,
}

func (t LoyaltyTier) Valid() bool {
	_, ok := loyaltyDiscounts[t]
	return ok
}

// SeasonalPeriod marks a recurring high-traffic window by month-day ("12-20").
// End before Start wraps the year boundary.
type SeasonalPeriod struct {
	Name      string  `json:"name" yaml:"name"`
	Start     string  `json:"start" yaml:"start"`
	End       string  `json:"end" yaml:"end"`
	Surcharge float64 `json:"surcharge" yaml:"surcharge"`
}

// PricingConfig is the externally supplied, versioned configuration for one scope.
// The engine treats it as read-only for the duration of a request.
type PricingConfig struct {
	Version              int64                    `json:"version" yaml:"version"`
	Currency             string                   `json:"currency" yaml:"currency"`
	TimeZone             string                   `json:"time_zone" yaml:"time_zone"`
	BaseHourlyRate       float64                  `json:"base_hourly_rate" yaml:"base_hourly_rate"`
	BaseDailyRate        float64                  `json:"base_daily_rate" yaml:"base_daily_rate"`
	TaxRate              float64                  `json:"tax_rate" yaml:"tax_rate"`
	HourlyMultipliers    []float64                `json:"hourly_multipliers" yaml:"hourly_multipliers"`
	DayOfWeekMultipliers []float64                `json:"day_of_week_multipliers" yaml:"day_of_week_multipliers"`
	VehicleSurcharges    map[VehicleClass]float64 `json:"vehicle_surcharges" yaml:"vehicle_surcharges"`
	Seasons              []SeasonalPeriod         `json:"seasons,omitempty" yaml:"seasons,omitempty"`
	MinTotalMultiplier   float64                  `json:"min_total_multiplier" yaml:"min_total_multiplier"`
	MaxTotalMultiplier   float64                  `json:"max_total_multiplier" yaml:"max_total_multiplier"`
	SmoothingFactor      float64                  `json:"smoothing_factor" yaml:"smoothing_factor"`
	UpdatedAt            time.Time                `json:"updated_at" yaml:"-"`
}

// QuoteRequest carries everything a single quote depends on besides config and state.
type QuoteRequest struct {
	Scope          string       `json:"scope"`
	EstimatedHours float64      `json:"estimated_hours"`
	VehicleClass   VehicleClass `json:"vehicle_class"`
	DaysInAdvance  int          `json:"days_in_advance"`
	LoyaltyTier    LoyaltyTier  `json:"loyalty_tier,omitempty"`
	OccupancyRatio float64      `json:"occupancy_ratio"`
	// RequestTime drives the time-of-day, day-of-week and seasonal factors.
	// Zero means "now".
	RequestTime time.Time `json:"request_time"`
	// SeasonalMultiplier lets the caller force a seasonal surcharge (event days).
	SeasonalMultiplier *float64 `json:"seasonal_multiplier,omitempty"`
}

type FactorKind int

const (
	KindSurcharge FactorKind = iota
	KindDiscount
	KindDegression
	KindReported
)

// FactorResult is one line of the quote's audit trail.
type FactorResult struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Multiplier  float64    `json:"multiplier"`
	Applied     bool       `json:"applied"`
	Kind        FactorKind `json:"-"`
}

// SmoothingState is the rolling smoothed multiplier for one scope.
type SmoothingState struct {
	Scope      string    `json:"scope"`
	Multiplier float64   `json:"multiplier"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func neutralState(scope string) SmoothingState {
	return SmoothingState{Scope: scope, Multiplier: 1.0}
}

// PriceQuote is immutable once assembled; it is only ever persisted for audit.
type PriceQuote struct {
	ID                  string          `json:"quote_id"`
	Scope               string          `json:"scope"`
	ConfigVersion       int64           `json:"config_version"`
	Currency            string          `json:"currency"`
	VehicleClass        VehicleClass    `json:"vehicle_class"`
	EstimatedHours      float64         `json:"estimated_hours"`
	BaseHourlyRate      decimal.Decimal `json:"base_hourly_rate"`
	BaseDailyRate       decimal.Decimal `json:"base_daily_rate"`
	Factors             []FactorResult  `json:"factors"`
	RawMultiplier       float64         `json:"raw_multiplier"`
	ClampedMultiplier   float64         `json:"clamped_multiplier"`
	SmoothedMultiplier  float64         `json:"smoothed_multiplier"`
	EffectiveHourlyRate decimal.Decimal `json:"effective_hourly_rate"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TaxRate             float64         `json:"tax_rate"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	DailyCapApplied     bool            `json:"daily_cap_applied"`
	SavingsFromLoyalty  decimal.Decimal `json:"savings_from_loyalty"`
	SavingsFromAdvance  decimal.Decimal `json:"savings_from_advance"`
	RequestedAt         time.Time       `json:"requested_at"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Factor looks up a factor line by name.
func (q PriceQuote) Factor(name string) (FactorResult, bool) {
	return findFactor(q.Factors, name)
}

func findFactor(factors []FactorResult, name string) (FactorResult, bool) {
	for _, f := range factors {
		if f.Name == name {
			return f, true
		}
	}
	return FactorResult{}, false
}
