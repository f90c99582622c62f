// Package currency recovers currency code, foreign amount, exchange rate,
// and base amount from the free-form, frequently mojibake-corrupted text
// fields the upstream emits, as a deterministic pipeline of prioritized
// matchers rather than a pile of ad-hoc regexes.
package currency

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCode is returned for empty or numeric-only inputs.
const DefaultCode = "INR"

// entry pairs a currency code with the symbols and name fragments
// recognized for it. Kept as data rather than inlined into matcher
// logic, so new currencies are a table edit, not a code change.
type entry struct {
	code    string
	symbols []string
	names   []string
}

// currencyTable is the curated set of currencies exercised by the sync
// engine's supported upstream locales. It is intentionally small and
// meant as a representative, extensible seed rather than an exhaustive
// symbol table.
var currencyTable = []entry{
	{code: "USD", symbols: []string{"$", "US$", "USD"}, names: []string{"us dollar", "dollar", "dollars"}},
	{code: "EUR", symbols: []string{"€", "EUR"}, names: []string{"euro", "euros"}},
	{code: "GBP", symbols: []string{"£", "GBP"}, names: []string{"pound", "pounds", "sterling"}},
	{code: "AED", symbols: []string{"AED", "د.إ"}, names: []string{"dirham", "dirhams"}},
	{code: "SAR", symbols: []string{"SAR", "﷼"}, names: []string{"riyal", "riyals"}},
	{code: "SGD", symbols: []string{"S$", "SGD"}, names: []string{"singapore dollar"}},
	{code: "JPY", symbols: []string{"¥", "JPY"}, names: []string{"yen"}},
	{code: "INR", symbols: []string{"₹", "Rs", "Rs.", "INR"}, names: []string{"rupee", "rupees"}},
}

// gbpMojibakeFamilies are the corrupted-encoding renderings of a GBP
// pound sign commonly produced by a UTF-8/Windows-1252 mismatch.
var gbpMojibakeFamilies = []string{"Gï¿½", "�", "Â£", "Â£"}

// eurMojibakeFamilies are the corrupted-encoding renderings of a euro
// sign.
var eurMojibakeFamilies = []string{"ï¿½"}

var (
	// corruptedPlaceholderRe matches a decimal literal followed by `?`
	// and then `=` or `@`, the upstream's characteristic mojibake
	// rendering of a foreign-currency amount whose symbol decoded to a
	// replacement character. The optional second group captures the
	// exchange rate that follows the `=` or `@`.
	corruptedPlaceholderRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*\?\s*[=@]\s*(\d+(?:\.\d+)?)?`)

	// structuredFullRe matches "AMOUNT SYM @ RATE/SYM = BASE", the most
	// informative structured form.
	structuredFullRe = regexp.MustCompile(`(?i)([\d,]+\.?\d*)\s*([A-Za-z$€£¥₹]+)\s*@\s*([\d,]+\.?\d*)\s*/?\s*[A-Za-z$€£¥₹]*\s*=\s*([\d,]+\.?\d*)`)

	// structuredBaseRe matches "AMOUNT SYM = BASE", deriving the rate as
	// base/foreign when not explicitly present.
	structuredBaseRe = regexp.MustCompile(`(?i)([\d,]+\.?\d*)\s*([A-Za-z$€£¥₹]+)\s*=\s*([\d,]+\.?\d*)`)

	// structuredAmountSymRe matches "AMOUNT SYM"; structuredSymAmountRe
	// matches "SYM AMOUNT".
	structuredAmountSymRe = regexp.MustCompile(`(?i)([\d,]+\.?\d*)\s*([A-Za-z$€£¥₹]+)`)
	structuredSymAmountRe = regexp.MustCompile(`(?i)([A-Za-z$€£¥₹]+)\s*([\d,]+\.?\d*)`)

	firstNumberRe  = regexp.MustCompile(`[\d,]+\.?\d*`)
	numericOnlyRe  = regexp.MustCompile(`^[\d,.\s\-+]*$`)
	explicitCodeRe = regexp.MustCompile(`\b([A-Z]{3})\b`)
)

// Foreign is the structured result of extract_foreign / extract_rate_and_currency.
type Foreign struct {
	ForeignAmount decimal.Decimal
	Currency      string
	ExchangeRate  decimal.Decimal
	BaseAmount    decimal.Decimal
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ExtractCurrency recovers a single currency code from free-form text,
// applying this precedence: corrupted placeholder, known mojibake
// families, explicit codes/symbols, currency-name words, then the
// numeric-only default.
func ExtractCurrency(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return DefaultCode
	}

	if m := corruptedPlaceholderRe.FindStringSubmatch(trimmed); m != nil {
		return codeFromCorruptedRate(m[2])
	}

	for _, sym := range gbpMojibakeFamilies {
		if strings.Contains(trimmed, sym) {
			return "GBP"
		}
	}
	for _, sym := range eurMojibakeFamilies {
		if strings.Contains(trimmed, sym) && strings.Contains(trimmed, "=") {
			return "EUR"
		}
	}

	if code := matchExplicit(trimmed); code != "" {
		return code
	}

	if code := matchByName(trimmed); code != "" {
		return code
	}

	if numericOnlyRe.MatchString(trimmed) {
		return DefaultCode
	}

	return DefaultCode
}

// codeFromCorruptedRate classifies a corrupted-placeholder line by
// inspecting its exchange rate: 95-115 => GBP, 85-95 => EUR, 75-85 =>
// USD, else EUR by default.
func codeFromCorruptedRate(rateText string) string {
	rate, err := strconv.ParseFloat(strings.ReplaceAll(rateText, ",", ""), 64)
	if err != nil {
		return "EUR"
	}
	switch {
	case rate >= 95 && rate <= 115:
		return "GBP"
	case rate >= 85 && rate < 95:
		return "EUR"
	case rate >= 75 && rate < 85:
		return "USD"
	default:
		return "EUR"
	}
}

func matchExplicit(text string) string {
	for _, e := range currencyTable {
		for _, sym := range e.symbols {
			if strings.Contains(text, sym) {
				return e.code
			}
		}
	}
	if m := explicitCodeRe.FindString(text); m != "" {
		for _, e := range currencyTable {
			if e.code == m {
				return e.code
			}
		}
	}
	return ""
}

func matchByName(text string) string {
	lower := strings.ToLower(text)
	for _, e := range currencyTable {
		for _, name := range e.names {
			if strings.Contains(lower, name) {
				return e.code
			}
		}
	}
	return ""
}

// ExtractForeign implements extract_foreign_currency_details: given a
// free-form amount field, recover the foreign amount, currency, optional
// exchange rate, and optional base amount using the structured-extraction
// grammar in priority order.
func ExtractForeign(text string) Foreign {
	trimmed := strings.TrimSpace(text)
	currencyCode := ExtractCurrency(trimmed)

	if m := structuredFullRe.FindStringSubmatch(trimmed); m != nil {
		return Foreign{
			ForeignAmount: parseDecimal(m[1]),
			Currency:      currencyCode,
			ExchangeRate:  parseDecimal(m[3]),
			BaseAmount:    parseDecimal(m[4]),
		}
	}

	if m := structuredBaseRe.FindStringSubmatch(trimmed); m != nil {
		foreign := parseDecimal(m[1])
		base := parseDecimal(m[3])
		var rate decimal.Decimal
		if !foreign.IsZero() {
			rate = base.Div(foreign)
		}
		return Foreign{
			ForeignAmount: foreign,
			Currency:      currencyCode,
			ExchangeRate:  rate,
			BaseAmount:    base,
		}
	}

	if m := structuredAmountSymRe.FindStringSubmatch(trimmed); m != nil {
		return Foreign{ForeignAmount: parseDecimal(m[1]), Currency: currencyCode}
	}
	if m := structuredSymAmountRe.FindStringSubmatch(trimmed); m != nil {
		return Foreign{ForeignAmount: parseDecimal(m[2]), Currency: currencyCode}
	}

	if m := firstNumberRe.FindString(trimmed); m != "" {
		return Foreign{ForeignAmount: parseDecimal(m), Currency: currencyCode}
	}

	return Foreign{Currency: currencyCode}
}

// ExtractRateAndCurrency implements extract_rate_and_currency: parses a
// rate-text field of the shape "RATE/unit SYM" (or similar) into the
// foreign amount, currency, and derived base amount.
func ExtractRateAndCurrency(rateText string) Foreign {
	return ExtractForeign(rateText)
}
