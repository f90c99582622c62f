package xmlparse

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/withobsrvr/tally-sync-engine/internal/currency"
)

// voucherCurrencyScan performs the voucher-level currency scan: walk
// ledger entries looking for the first non-INR entry with exchange rate
// > 1.0; if none found, walk inventory entries the same way.
func voucherCurrencyScan(ledgerEntries, inventoryEntries []Node) (code string, rate decimal.Decimal, found bool) {
	if code, rate, found = scanEntriesForForeignCurrency(ledgerEntries); found {
		return code, rate, true
	}
	return scanEntriesForForeignCurrency(inventoryEntries)
}

func scanEntriesForForeignCurrency(entries []Node) (string, decimal.Decimal, bool) {
	one := decimal.NewFromInt(1)
	for _, e := range entries {
		foreign := e.Text("LEDGERFROMITEM")
		if foreign == "" {
			foreign = e.Text("AMOUNT")
		}
		f := currency.ExtractForeign(foreign)
		if f.Currency != "" && !strings.EqualFold(f.Currency, "INR") && f.ExchangeRate.GreaterThan(one) {
			return f.Currency, f.ExchangeRate, true
		}
	}
	return "", decimal.Zero, false
}

// ledgerName normalizes a ledger entry's name for bucket classification.
func ledgerName(e *Node) string {
	name := e.Text("LEDGERNAME")
	if name == "" {
		name = e.Attr("LEDGERNAME")
	}
	return strings.ToLower(CleanText(name))
}
