package xmlparse

import (
	"regexp"

	"github.com/shopspring/decimal"
	"github.com/withobsrvr/tally-sync-engine/internal/currency"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// ParseInventoryVoucherOptions configures tenant-tunable classification
// behavior for the inventory voucher parser.
type ParseInventoryVoucherOptions struct {
	ChargeBucketPatterns []regexp.Regexp
}

// ParseInventoryVouchers parses Sales/Purchase/Credit Note/Debit Note
// vouchers: header extraction, voucher-level currency scan, tax/charge
// aggregation, and per-line emission with proportional tax apportionment.
func ParseInventoryVouchers(root *Node, companyName, voucherKind string, opts ParseInventoryVoucherOptions) []model.InventoryVoucher {
	var out []model.InventoryVoucher
	for _, v := range root.FindAll("VOUCHER") {
		out = append(out, parseInventoryVoucher(&v, companyName, voucherKind, opts)...)
	}
	return out
}

func parseInventoryVoucher(v *Node, companyName, voucherKind string, opts ParseInventoryVoucherOptions) []model.InventoryVoucher {
	header := parseVoucherHeader(v)

	ledgerEntries := v.ChildrenAny("ALLLEDGERENTRIES.LIST", "LEDGERENTRIES.LIST")
	inventoryEntries := v.ChildrenAny("ALLINVENTORYENTRIES.LIST", "INVENTORYENTRIES.LIST")

	if header.IsDeleted && len(ledgerEntries) == 0 && len(inventoryEntries) == 0 {
		return []model.InventoryVoucher{stubInventoryRow(header, companyName, voucherKind)}
	}

	voucherCurrency, voucherRate, foreignFound := voucherCurrencyScan(ledgerEntries, inventoryEntries)

	tax := &TaxBuckets{}
	charges := &ChargeBuckets{}
	for _, entry := range ledgerEntries {
		e := entry
		name := ledgerName(&e)
		amount := ToDecimal(e.Text("AMOUNT")).Abs()
		ClassifyLedgerEntry(name, amount, header.PartyName, opts.ChargeBucketPatterns, tax, charges)
	}

	chargeSum := charges.Freight.Add(charges.DCA).Add(charges.CF).Add(charges.Other)
	taxSum := tax.CGST.Add(tax.SGST).Add(tax.IGST)

	var lineTotal decimal.Decimal
	type lineAmt struct {
		entry  Node
		amount decimal.Decimal
	}
	var amounts []lineAmt
	for _, entry := range inventoryEntries {
		amount := ToDecimal(entry.Text("AMOUNT")).Abs()
		if amount.IsZero() {
			continue
		}
		amounts = append(amounts, lineAmt{entry: entry, amount: amount})
		lineTotal = lineTotal.Add(amount)
	}

	grandTotal := lineTotal.Add(taxSum).Add(chargeSum)

	if len(amounts) == 0 {
		// No inventory line has a nonzero amount but the voucher is not
		// deleted: emit a single "No Item / No Unit" row carrying all
		// aggregated buckets with line amount = 0.
		row := buildInventoryRow(header, companyName, voucherKind, nil, 0, decimal.Zero, decimal.NewFromInt(1),
			voucherCurrency, voucherRate, foreignFound, tax, charges, grandTotal)
		row.ItemName = "No Item"
		row.Unit = "No Unit"
		return []model.InventoryVoucher{row}
	}

	var lines []model.InventoryVoucher
	for i, la := range amounts {
		e := la.entry
		row := buildInventoryRow(header, companyName, voucherKind, &e, i, la.amount, lineTotal,
			voucherCurrency, voucherRate, foreignFound, tax, charges, grandTotal)
		lines = append(lines, row)
	}
	return lines
}

func stubInventoryRow(header voucherHeader, companyName, voucherKind string) model.InventoryVoucher {
	row := model.InventoryVoucher{
		CompanyName:   companyName,
		VoucherKind:   voucherKind,
		VoucherNumber: header.VoucherNumber,
		ChangeStatus:  model.ChangeStatusDeleted,
	}
	row.GUID = header.GUID
	row.AlterID = header.AlterID
	row.MasterID = header.MasterID
	row.IsDeleted = true
	if header.Date != nil {
		row.VoucherDate = *header.Date
		row.LastModified = *header.Date
	}
	return row
}

// buildInventoryRow assembles one emitted row. apportionBase is the sum
// of line amounts used as the apportionment denominator; grandTotal is
// the voucher-wide total (line amounts + all tax buckets + all charge
// buckets), which is repeated verbatim on every emitted row.
func buildInventoryRow(
	header voucherHeader,
	companyName, voucherKind string,
	entry *Node,
	lineIdentifier int,
	lineAmount, apportionBase decimal.Decimal,
	voucherCurrency string,
	voucherRate decimal.Decimal,
	foreignFound bool,
	tax *TaxBuckets,
	charges *ChargeBuckets,
	grandTotal decimal.Decimal,
) model.InventoryVoucher {
	row := model.InventoryVoucher{
		CompanyName:    companyName,
		VoucherKind:    voucherKind,
		VoucherNumber:  header.VoucherNumber,
		ChangeStatus:   header.ChangeStatus,
		PartyName:      header.PartyName,
		PartyGSTIN:     header.PartyGSTIN,
		Narration:      header.Narration,
		Amount:         lineAmount,
		LineIdentifier: lineIdentifier,
	}
	row.GUID = header.GUID
	row.AlterID = header.AlterID
	row.MasterID = header.MasterID
	row.IsDeleted = header.IsDeleted
	if header.Date != nil {
		row.VoucherDate = *header.Date
		row.LastModified = *header.Date
	}

	lineCurrency := "INR"
	lineRate := decimal.Zero
	if entry != nil {
		row.ItemName = CleanText(entry.Text("STOCKITEMNAME"))

		rateText, unit := ExtractUnitFromRate(entry.Text("RATE"))
		row.Rate = ToDecimal(rateText)
		row.Unit = unit

		row.Quantity, _ = ParseQuantityWithUnit(entry.Text("ACTUALQTY"))
		row.AltQuantity, row.AltUnit = ParseQuantityWithUnit(entry.Text("BILLEDQTY"))

		row.Discount = ToDecimal(entry.Text("DISCOUNT")).Abs()

		if batchList := entry.Child("BATCHALLOCATIONS.LIST"); batchList != nil {
			row.BatchName = CleanText(batchList.Text("BATCHNAME"))
			row.MfgDate = ParseBusinessDate(batchList.Text("MFDON"))
			row.ExpiryDate = ParseExpiryDate(batchList.Text("EXPIRYPERIOD"), batchList.Text("JD"))
		}
		if accList := entry.Child("ACCOUNTINGALLOCATIONS.LIST"); accList != nil {
			row.HSNCode = CleanText(accList.Text("GSTHSNNAME"))
		}

		f := currency.ExtractForeign(entry.Text("RATE"))
		lineCurrency = f.Currency
		lineRate = f.ExchangeRate
	}

	// If the line's own currency is INR but the voucher-level scan
	// found a foreign currency with rate > 1, propagate it.
	if foreignFound && (lineCurrency == "" || lineCurrency == "INR") {
		row.Currency = voucherCurrency
		row.ExchangeRate = voucherRate
	} else {
		row.Currency = lineCurrency
		row.ExchangeRate = lineRate
	}
	if row.Currency == "" {
		row.Currency = currency.DefaultCode
	}

	// Proportional apportionment of tax buckets by line-amount weight;
	// ancillary charges are copied verbatim on every line, never
	// apportioned.
	weight := decimal.Zero
	if !apportionBase.IsZero() {
		weight = lineAmount.Div(apportionBase)
	}
	row.CGST = tax.CGST.Mul(weight)
	row.SGST = tax.SGST.Mul(weight)
	row.IGST = tax.IGST.Mul(weight)
	row.GSTRate = firstNonZero(tax.CGSTRate, tax.SGSTRate, tax.IGSTRate)

	row.Freight = charges.Freight
	row.DCACharge = charges.DCA
	row.CFCharge = charges.CF
	row.OtherCharges = charges.Other

	row.Total = grandTotal

	return row
}

func firstNonZero(vals ...decimal.Decimal) decimal.Decimal {
	for _, v := range vals {
		if !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}
