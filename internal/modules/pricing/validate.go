package pricing

import (
	"fmt"
	"math"
	"time"
	_ "time/tzdata"
)

const (
	hoursPerDay = 24
	daysPerWeek = 7
)

// Validate checks the invariants every config must hold before it can price anything.
func (c PricingConfig) Validate() error {
	if c.Currency == "" {
		return invalidConfig("currency", "is required")
	}
	if _, err := c.location(); err != nil {
		return invalidConfig("time_zone", "unknown zone %q", c.TimeZone)
	}
	if !finite(c.BaseHourlyRate) || c.BaseHourlyRate <= 0 {
		return invalidConfig("base_hourly_rate", "must be positive, got %v", c.BaseHourlyRate)
	}
	if !finite(c.BaseDailyRate) || c.BaseDailyRate <= 0 {
		return invalidConfig("base_daily_rate", "must be positive, got %v", c.BaseDailyRate)
	}
	if !finite(c.TaxRate) || c.TaxRate < 0 || c.TaxRate >= 1 {
		return invalidConfig("tax_rate", "must be in [0,1), got %v", c.TaxRate)
	}
	if err := validateTable("hourly_multipliers", c.HourlyMultipliers, hoursPerDay); err != nil {
		return err
	}
	if err := validateTable("day_of_week_multipliers", c.DayOfWeekMultipliers, daysPerWeek); err != nil {
		return err
	}
	for _, v := range VehicleClasses {
		s, ok := c.VehicleSurcharges[v]
		if !ok {
			return invalidConfig("vehicle_surcharges", "missing class %q", v)
		}
		if !finite(s) || s <= -1 {
			return invalidConfig("vehicle_surcharges", "class %q surcharge %v out of range", v, s)
		}
	}
	for k := range c.VehicleSurcharges {
		if !k.Valid() {
			return invalidConfig("vehicle_surcharges", "unknown class %q", k)
		}
	}
	for i, s := range c.Seasons {
		if err := s.validate(); err != nil {
			return invalidConfig(fmt.Sprintf("seasons[%d]", i), "%v", err)
		}
	}
	if !finite(c.MinTotalMultiplier) || c.MinTotalMultiplier <= 0 || c.MinTotalMultiplier > 1 {
		return invalidConfig("min_total_multiplier", "must be in (0,1], got %v", c.MinTotalMultiplier)
	}
	if !finite(c.MaxTotalMultiplier) || c.MaxTotalMultiplier < 1 {
		return invalidConfig("max_total_multiplier", "must be >= 1, got %v", c.MaxTotalMultiplier)
	}
	if !finite(c.SmoothingFactor) || c.SmoothingFactor < 0 || c.SmoothingFactor > 1 {
		return invalidConfig("smoothing_factor", "must be in [0,1], got %v", c.SmoothingFactor)
	}
	return nil
}

func validateTable(field string, table []float64, want int) error {
	if len(table) != want {
		return invalidConfig(field, "has %d entries, want %d", len(table), want)
	}
	for i, v := range table {
		if !finite(v) || v <= 0 {
			return invalidConfig(field, "index %d is %v, must be positive", i, v)
		}
	}
	return nil
}

func (c PricingConfig) location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// Validate rejects requests the engine cannot price. It never looks at config or state.
func (r QuoteRequest) Validate() error {
	if r.Scope == "" {
		return invalidRequest("scope", "is required")
	}
	if !finite(r.EstimatedHours) || r.EstimatedHours <= 0 {
		return invalidRequest("estimated_hours", "must be positive, got %v", r.EstimatedHours)
	}
	if !r.VehicleClass.Valid() {
		return invalidRequest("vehicle_class", "unknown class %q", r.VehicleClass)
	}
	if r.DaysInAdvance < 0 {
		return invalidRequest("days_in_advance", "must not be negative, got %d", r.DaysInAdvance)
	}
	if !r.LoyaltyTier.Valid() {
		return invalidRequest("loyalty_tier", "unknown tier %q", r.LoyaltyTier)
	}
	if !finite(r.OccupancyRatio) || r.OccupancyRatio < 0 || r.OccupancyRatio > 1 {
		return invalidRequest("occupancy_ratio", "must be in [0,1], got %v", r.OccupancyRatio)
	}
	if m := r.SeasonalMultiplier; m != nil && (!finite(*m) || *m <= 0) {
		return invalidRequest("seasonal_multiplier", "must be positive, got %v", *m)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
