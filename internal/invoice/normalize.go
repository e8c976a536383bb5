package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountCleaner = strings.NewReplacer(",", "", "，", "", "¥", "", "￥", "")

var rateCleaner = strings.NewReplacer("%", "", "％", "")

// Bounds on what a vendor string may expand to. Anything outside is treated
// as unparseable.
const (
	maxNumberLen = 64
	maxIntDigits = 18
	minExponent  = -32
)

// NormalizeAmount strips thousands separators and currency signs and formats
// the value with exactly two fraction digits. It returns "" when the input is
// not a non-negative decimal number of at most maxIntDigits integer digits.
func NormalizeAmount(raw string) string {
	d, ok := parseNonNegative(amountCleaner.Replace(raw))
	if !ok {
		return ""
	}
	return d.StringFixed(2)
}

// NormalizeTaxAmount follows the same rule as NormalizeAmount.
func NormalizeTaxAmount(raw string) string {
	return NormalizeAmount(raw)
}

// NormalizeTaxRate turns "13", "13%", " 13％ " or "13.0" into "13%".
// Fractional rates are rounded half away from zero.
func NormalizeTaxRate(raw string) string {
	d, ok := parseNonNegative(rateCleaner.Replace(strings.TrimSpace(raw)))
	if !ok {
		return ""
	}
	return d.StringFixed(0) + "%"
}

// parseNonNegative accepts exponent notation only while the expanded value
// stays within maxIntDigits integer digits and minExponent fraction scale.
func parseNonNegative(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxNumberLen {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	if d.IsZero() {
		return decimal.Zero, true
	}
	exp := int(d.Exponent())
	if exp < minExponent || d.NumDigits()+exp > maxIntDigits {
		return decimal.Zero, false
	}
	return d, true
}
