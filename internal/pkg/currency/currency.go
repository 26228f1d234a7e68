// Package currency renders INR amounts for display, grouping digits the
// Indian way (1,23,456.78).
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

const symbol = "₹"

// Format renders an amount as an INR display string, e.g. "₹1,23,456.78".
func Format(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)

	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	b.WriteString(groupIndian(whole))
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// groupIndian inserts separators after the last three digits and then every
// two digits.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}
