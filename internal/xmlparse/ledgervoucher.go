package xmlparse

import (
	"github.com/withobsrvr/tally-sync-engine/internal/currency"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// ParseLedgerVouchers parses Receipt/Payment/Journal/Contra vouchers:
// one row per ledger entry, with the voucher-level currency scan applied
// the same way as the inventory parser.
func ParseLedgerVouchers(root *Node, companyName, voucherKind string) []model.LedgerVoucher {
	var out []model.LedgerVoucher
	for _, v := range root.FindAll("VOUCHER") {
		out = append(out, parseLedgerVoucher(&v, companyName, voucherKind)...)
	}
	return out
}

func parseLedgerVoucher(v *Node, companyName, voucherKind string) []model.LedgerVoucher {
	header := parseVoucherHeader(v)
	ledgerEntries := v.ChildrenAny("ALLLEDGERENTRIES.LIST", "LEDGERENTRIES.LIST")

	if header.IsDeleted && len(ledgerEntries) == 0 {
		return []model.LedgerVoucher{stubLedgerVoucherRow(header, companyName, voucherKind)}
	}

	voucherCurrency, voucherRate, foreignFound := voucherCurrencyScan(ledgerEntries, nil)

	var out []model.LedgerVoucher
	for i, entry := range ledgerEntries {
		e := entry
		signed := ToDecimal(e.Text("AMOUNT"))
		amountType := model.AmountTypeCredit
		if signed.IsNegative() {
			amountType = model.AmountTypeDebit
		}

		row := model.LedgerVoucher{
			CompanyName:    companyName,
			VoucherKind:    voucherKind,
			VoucherNumber:  header.VoucherNumber,
			ChangeStatus:   header.ChangeStatus,
			LedgerName:     CleanText(e.Text("LEDGERNAME")),
			Amount:         signed.Abs(),
			AmountType:     amountType,
			Narration:      header.Narration,
			LineIdentifier: i,
		}
		row.GUID = header.GUID
		row.AlterID = header.AlterID
		row.MasterID = header.MasterID
		row.IsDeleted = header.IsDeleted
		if header.Date != nil {
			row.VoucherDate = *header.Date
			row.LastModified = *header.Date
		}

		f := currency.ExtractForeign(e.Text("AMOUNT"))
		lineCurrency, lineRate := f.Currency, f.ExchangeRate
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

		out = append(out, row)
	}
	return out
}

func stubLedgerVoucherRow(header voucherHeader, companyName, voucherKind string) model.LedgerVoucher {
	row := model.LedgerVoucher{
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
