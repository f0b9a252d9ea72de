// README: Common money value object used across modules.
package types

import "github.com/shopspring/decimal"

// Money is an amount in the currency's minor unit (cents for USD).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// zero-decimal currencies; everything else uses two minor digits.
var minorDigits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
}

// MinorDigits returns how many decimal places the currency's minor unit has.
func MinorDigits(currency string) int32 {
	if d, ok := minorDigits[currency]; ok {
		return d
	}
	return 2
}

// RoundMinor rounds d to the currency's minor unit, half away from zero
// (half-up for the non-negative amounts pricing produces).
func RoundMinor(d decimal.Decimal, currency string) decimal.Decimal {
	return d.Round(MinorDigits(currency))
}

// MoneyFromDecimal converts a major-unit amount into Money, rounding half-up first.
func MoneyFromDecimal(d decimal.Decimal, currency string) Money {
	digits := MinorDigits(currency)
	minor := d.Round(digits).Shift(digits)
	return Money{Amount: minor.IntPart(), Currency: currency}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -MinorDigits(m.Currency))
}
