package orchestrator

import "github.com/withobsrvr/tally-sync-engine/internal/upstream"

// rowKind distinguishes the two shapes of voucher sync: line-item rows
// that apportion ancillary charges and tax across items, versus
// single-amount ledger entries.
type rowKind string

const (
	rowKindInventory rowKind = "inventory"
	rowKindLedger    rowKind = "ledger"
)

// voucherKindConfig is one entry of the eight-voucher-kind registry:
// each entry names the upstream template pair, the parser-facing type
// label used in log lines, and which row shape the kind produces.
type voucherKindConfig struct {
	VoucherType string
	Kind        upstream.Kind
	RowKind     rowKind
	DisplayName string
}

// voucherRegistry lists all eight transactional voucher kinds synced
// per tenant, split across the inventory (line-item apportioned) and
// ledger (single-amount) row shapes.
var voucherRegistry = []voucherKindConfig{
	{VoucherType: "sales", Kind: upstream.KindSales, RowKind: rowKindInventory, DisplayName: "Sales Vouchers"},
	{VoucherType: "purchase", Kind: upstream.KindPurchase, RowKind: rowKindInventory, DisplayName: "Purchase Vouchers"},
	{VoucherType: "credit_note", Kind: upstream.KindCreditNote, RowKind: rowKindInventory, DisplayName: "Credit Note"},
	{VoucherType: "debit_note", Kind: upstream.KindDebitNote, RowKind: rowKindInventory, DisplayName: "Debit Note"},
	{VoucherType: "receipt", Kind: upstream.KindReceipt, RowKind: rowKindLedger, DisplayName: "Receipt Vouchers"},
	{VoucherType: "payment", Kind: upstream.KindPayment, RowKind: rowKindLedger, DisplayName: "Payment Vouchers"},
	{VoucherType: "journal", Kind: upstream.KindJournal, RowKind: rowKindLedger, DisplayName: "Journal Vouchers"},
	{VoucherType: "contra", Kind: upstream.KindContra, RowKind: rowKindLedger, DisplayName: "Contra Vouchers"},
}
