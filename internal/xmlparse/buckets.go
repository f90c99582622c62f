package xmlparse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxBuckets accumulates the CGST/SGST/IGST amounts and rates found
// across a voucher's ledger entries.
type TaxBuckets struct {
	CGST, SGST, IGST         decimal.Decimal
	CGSTRate, SGSTRate, IGSTRate decimal.Decimal
	cgstRateSeen, sgstRateSeen, igstRateSeen bool
}

// ChargeBuckets accumulates ancillary charge amounts, which are never
// apportioned across line items (copied verbatim on every line; the
// total column sums them once).
type ChargeBuckets struct {
	Freight, DCA, CF, Other decimal.Decimal
}

var (
	cgstRe = regexp.MustCompile(`cgst.*(input|output)|(input|output).*cgst`)
	sgstRe = regexp.MustCompile(`sgst.*(input|output)|(input|output).*sgst`)
	igstRe = regexp.MustCompile(`igst.*(input|output)|(input|output).*igst`)

	freightRe      = regexp.MustCompile(`freight`)
	dcaRe          = regexp.MustCompile(`\bdca\b`)
	clearingFwdRe  = regexp.MustCompile(`clearing\s*&?\s*forwarding`)
	roundingRe     = regexp.MustCompile(`round\s*off|rounding`)
	gstDutyCessRe  = regexp.MustCompile(`gst|duty|cess|tax`)
	rateSuffixRe   = regexp.MustCompile(`@\s*([\d.]+)\s*%`)
)

// ClassifyLedgerEntry buckets a single ledger entry by its (lowercased)
// name and adds its amount into the relevant tax or charge bucket.
// partyName is excluded from "other charges" classification.
func ClassifyLedgerEntry(name string, amount decimal.Decimal, partyName string, otherChargePatterns []regexp.Regexp, tax *TaxBuckets, charges *ChargeBuckets) {
	switch {
	case cgstRe.MatchString(name):
		tax.CGST = tax.CGST.Add(amount)
		if !tax.cgstRateSeen {
			if r := rateSuffix(name); !r.IsZero() {
				tax.CGSTRate = r
				tax.cgstRateSeen = true
			}
		}
	case sgstRe.MatchString(name):
		tax.SGST = tax.SGST.Add(amount)
		if !tax.sgstRateSeen {
			if r := rateSuffix(name); !r.IsZero() {
				tax.SGSTRate = r
				tax.sgstRateSeen = true
			}
		}
	case igstRe.MatchString(name):
		tax.IGST = tax.IGST.Add(amount)
		if !tax.igstRateSeen {
			if r := rateSuffix(name); !r.IsZero() {
				tax.IGSTRate = r
				tax.igstRateSeen = true
			}
		}
	case freightRe.MatchString(name):
		charges.Freight = charges.Freight.Add(amount)
	case dcaRe.MatchString(name):
		charges.DCA = charges.DCA.Add(amount)
	case clearingFwdRe.MatchString(name):
		charges.CF = charges.CF.Add(amount)
	case roundingRe.MatchString(name):
		// rounding lines are neither tax nor charge; dropped.
	case gstDutyCessRe.MatchString(name):
		// an unrecognized gst/duty/cess line: not bucketed further.
	case strings.EqualFold(strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(partyName))):
		// the party ledger itself, never an "other charge".
	case matchesAny(name, otherChargePatterns):
		// a configured ancillary-charge synonym not already covered by
		// the named freight/DCA/C&F buckets above.
		charges.Other = charges.Other.Add(amount)
	default:
		// any remaining ledger is classified as "other charges" by
		// elimination.
		charges.Other = charges.Other.Add(amount)
	}
}

func matchesAny(name string, patterns []regexp.Regexp) bool {
	for i := range patterns {
		if patterns[i].MatchString(name) {
			return true
		}
	}
	return false
}

func rateSuffix(name string) decimal.Decimal {
	m := rateSuffixRe.FindStringSubmatch(name)
	if m == nil {
		return decimal.Zero
	}
	return ToDecimal(m[1])
}

// CompilePatterns compiles configured "other charges" regex strings,
// skipping any that fail to compile.
func CompilePatterns(patterns []string) []regexp.Regexp {
	out := make([]regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, *re)
		}
	}
	return out
}
