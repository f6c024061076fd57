package shared

import "github.com/shopspring/decimal"

// QuantityScale is the number of fractional digits the NUMERIC(18,4) columns keep.
const QuantityScale = 4

// FitsScale reports whether d is stored without rounding. Trailing zeros
// beyond the scale are fine.
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(QuantityScale))
}

// AllFitScale reports whether every value fits QuantityScale.
func AllFitScale(values ...decimal.Decimal) bool {
	for _, v := range values {
		if !FitsScale(v) {
			return false
		}
	}
	return true
}
