// Package format renders money amounts and cycle durations for display.
package format

import (
	"fmt"
	"math"
	"strconv"
)

var moneySuffixes = []string{"", "k", "M", "B", "T"}

// Money renders amount as "$<value><suffix>" with exactly two decimals.
//
// The suffix is picked from the number of digits before the decimal point
// (1-3 digits: none, 4-6: "k", ...), capped at "T". Non-finite input
// renders as "$0.00".
func Money(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	digits := len(strconv.FormatFloat(amount, 'f', 0, 64))
	idx := int(math.Floor(math.Min(float64(digits-1)/3.0, float64(len(moneySuffixes)-1))))
	if idx < 0 {
		idx = 0
	}
	scaled := amount / math.Pow(1000, float64(idx))
	return fmt.Sprintf("$%.2f%s", scaled, moneySuffixes[idx])
}
