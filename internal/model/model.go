// Package model holds the typed row records exchanged between the parser,
// currency extractor, and warehouse writer. Each entity kind is a distinct
// struct rather than a discriminated dynamic record, per the source's
// "dynamic row dicts -> typed records" redesign note.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeStatus mirrors the upstream's voucher-level mutation marker.
type ChangeStatus string

const (
	ChangeStatusNew      ChangeStatus = "New"
	ChangeStatusModified ChangeStatus = "Modified"
	ChangeStatusDeleted  ChangeStatus = "Deleted"
)

// AmountType distinguishes debit and credit ledger-voucher entries.
type AmountType string

const (
	AmountTypeDebit  AmountType = "Debit"
	AmountTypeCredit AmountType = "Credit"
)

// CDCFields is the tracking-field mixin every master/transaction row
// embeds: guid, alter_id, master_id, last_modified, is_deleted, deleted_at.
type CDCFields struct {
	GUID         string
	AlterID      int64
	MasterID     int64
	LastModified time.Time
	IsDeleted    bool
	DeletedAt    *time.Time
}

// Company is the tenant master record.
type Company struct {
	GUID          string
	Name          string
	FormalName    string
	CompanyNumber string
	StartingFrom  *time.Time
	BooksFrom     *time.Time
	AuditedUpto   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Watermark is the per-(tenant, voucher kind) sync state.
//
// Invariants: IsInitialDone never regresses to false; LastAlterID never
// decreases; LastSyncedMonth advances chunk by chunk only while
// IsInitialDone is false, and is set to the terminal month when the
// initial snapshot is marked done.
type Watermark struct {
	CompanyName     string
	VoucherKind     string
	LastAlterID     int64
	IsInitialDone   bool
	LastSyncedMonth string // YYYYMM; holds the terminal month once the initial snapshot completes
	LastSyncTime    *time.Time
}

// Ledger is a master record keyed by (tenant, guid).
type Ledger struct {
	CDCFields
	CompanyName string
	Name        string
	Aliases     []string // capped at three by the parser
	ParentGroup string
	GSTIN       string
	PAN         string
	Email       string
	Phone       string
	AddressLine []string // capped at three
	BankAccount string
	BankIFSC    string
	OpeningBal  decimal.Decimal
}

// InventoryVoucher is one row per line item of a Sales/Purchase/Credit
// Note/Debit Note voucher.
type InventoryVoucher struct {
	CDCFields
	CompanyName    string
	VoucherDate    time.Time
	VoucherNumber  string
	VoucherKind    string // sales, purchase, credit_note, debit_note
	ChangeStatus   ChangeStatus
	PartyName      string
	PartyGSTIN     string
	ItemName       string
	Quantity       decimal.Decimal
	Unit           string
	AltQuantity    decimal.Decimal
	AltUnit        string
	BatchName      string
	MfgDate        *time.Time
	ExpiryDate     *time.Time
	HSNCode        string
	GSTRate        decimal.Decimal
	Rate           decimal.Decimal
	Amount         decimal.Decimal
	Discount       decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	Freight        decimal.Decimal
	DCACharge      decimal.Decimal
	CFCharge       decimal.Decimal
	OtherCharges   decimal.Decimal
	Total          decimal.Decimal
	Currency       string
	ExchangeRate   decimal.Decimal
	Narration      string
	LineIdentifier int // discriminator for the (guid, line) composite key
}

// LedgerVoucher is one row per ledger entry of a Receipt/Payment/Journal/
// Contra voucher.
type LedgerVoucher struct {
	CDCFields
	CompanyName    string
	VoucherDate    time.Time
	VoucherNumber  string
	VoucherKind    string // receipt, payment, journal, contra
	ChangeStatus   ChangeStatus
	LedgerName     string
	Amount         decimal.Decimal
	AmountType     AmountType
	Currency       string
	ExchangeRate   decimal.Decimal
	Narration      string
	LineIdentifier int
}

// TrialBalanceRow is one row per (tenant, ledger, period).
type TrialBalanceRow struct {
	CompanyName string
	LedgerName  string
	StartDate   time.Time
	EndDate     time.Time
	Opening     decimal.Decimal
	Net         decimal.Decimal
	Closing     decimal.Decimal
	AlterID     int64
}

// SchedulerConfig is a tenant's persisted job definition.
type SchedulerConfig struct {
	CompanyName string
	Enabled     bool
	Interval    string // "minutes", "hours", or "daily"
	Value       int    // fire every Value minutes/hours; unused when Interval == "daily"
	Time        string // "HH:MM" wall-clock fire time, used when Interval == "daily"
	UpdatedAt   time.Time
}

// SyncMode records whether a run was a full snapshot or an incremental
// CDC pull.
type SyncMode string

const (
	SyncModeFull        SyncMode = "FULL"
	SyncModeIncremental SyncMode = "INCREMENTAL"
)

// SyncStatus records the outcome of a sync run.
type SyncStatus string

const (
	SyncStatusSuccess    SyncStatus = "SUCCESS"
	SyncStatusFailed     SyncStatus = "FAILED"
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
)

// SyncRunSummary is the per-run statistics record returned for each
// voucher-kind run; the orchestrator reports its record count on the
// progress bus. It is not written to the database.
type SyncRunSummary struct {
	EntityType      string
	CompanyName     string
	LastMaxAlterID  int64
	LastSyncDate    *time.Time
	LastSyncTime    time.Time
	Mode            SyncMode
	Status          SyncStatus
	RecordsSynced   int
	TotalRecords    int
	RecordsInserted int
	RecordsUpdated  int
	RecordsDeleted  int
	ErrorMessage    string
	RetryCount      int
}
