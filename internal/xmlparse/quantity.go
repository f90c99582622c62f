package xmlparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	rateUnitRe = regexp.MustCompile(`/\s*([A-Za-z][A-Za-z0-9.\-]*)\s*$`)
	qtyUnitRe  = regexp.MustCompile(`^\s*(-?[\d,]+\.?\d*)\s*([A-Za-z][A-Za-z0-9.\-]*)?`)
	numberRe   = regexp.MustCompile(`-?[\d,]+\.?\d*`)
)

// ExtractUnitFromRate recovers the unit suffix from a rate string like
// "125.50/Nos", returning the numeric rate text and the unit separately.
func ExtractUnitFromRate(rateText string) (numeric string, unit string) {
	rateText = strings.TrimSpace(rateText)
	if m := rateUnitRe.FindStringSubmatch(rateText); m != nil {
		unit = m[1]
		numeric = strings.TrimSpace(rateText[:len(rateText)-len(m[0])])
	} else {
		numeric = rateText
	}
	return numeric, unit
}

// ParseQuantityWithUnit splits a BILLEDQTY-style field ("10 Nos") into a
// decimal quantity and its unit string.
func ParseQuantityWithUnit(text string) (decimal.Decimal, string) {
	text = strings.TrimSpace(text)
	m := qtyUnitRe.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, ""
	}
	qty := ToDecimal(m[1])
	return qty, strings.TrimSpace(m[2])
}

// ToDecimal parses a numeric string, stripping thousands separators, and
// returns zero on failure rather than erroring — numeric parsing in this
// package is best-effort over free-form upstream text.
func ToDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ConvertToFloat parses a comma-stripped numeric string into a plain
// float64, for contexts that need one (e.g. GST rate comparisons).
func ConvertToFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ExtractNumericAmount returns the first decimal number found in s.
func ExtractNumericAmount(s string) decimal.Decimal {
	m := numberRe.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	return ToDecimal(m)
}
