// Package warehouse implements idempotent upsert per entity kind, with
// soft-delete fan-out for voided vouchers that arrive as a stub row with
// no line items, built with squirrel for the conditionally-shaped SQL
// each entity kind needs.
package warehouse

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
	"github.com/withobsrvr/tally-sync-engine/internal/watermark"
)

// Writer upserts typed rows into the warehouse's normalized tables.
type Writer struct {
	db         *sql.DB
	watermarks *watermark.Store
	builder    sq.StatementBuilderType
}

// NewWriter wraps db with $N placeholder syntax for Postgres.
func NewWriter(db *sql.DB, watermarks *watermark.Store) *Writer {
	return &Writer{
		db:         db,
		watermarks: watermarks,
		builder:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// UpsertCompany inserts-or-updates the tenant master row, keyed on name,
// and reports whether the row was inserted or updated. Rows with a blank
// name are skipped and report neither.
func (w *Writer) UpsertCompany(ctx context.Context, c model.Company) (inserted, updated bool, err error) {
	if c.Name == "" {
		return false, false, nil
	}

	query, args, err := w.builder.Insert("companies").
		Columns("guid", "name", "formal_name", "company_number", "starting_from", "books_from", "audited_upto", "updated_at").
		Values(c.GUID, c.Name, c.FormalName, c.CompanyNumber, c.StartingFrom, c.BooksFrom, c.AuditedUpto, sq.Expr("now()")).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			guid = EXCLUDED.guid,
			formal_name = EXCLUDED.formal_name,
			company_number = EXCLUDED.company_number,
			starting_from = EXCLUDED.starting_from,
			books_from = EXCLUDED.books_from,
			audited_upto = EXCLUDED.audited_upto,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`).
		ToSql()
	if err != nil {
		return false, false, errors.Wrap(err, "building company upsert")
	}

	var wasInsert bool
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&wasInsert); err != nil {
		return false, false, errors.Wrap(err, "upserting company")
	}
	return wasInsert, !wasInsert, nil
}

// UpsertLedgers idempotently writes ledger master rows: insert when the
// guid is absent, update when the incoming alter_id is strictly greater
// than what's on disk, ignore otherwise.
func (w *Writer) UpsertLedgers(ctx context.Context, rows []model.Ledger) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			query, args, err := w.builder.Insert("ledgers").
				Columns("company_name", "guid", "name", "parent_group", "gstin", "pan",
					"email", "phone", "bank_account", "bank_ifsc", "opening_balance",
					"alter_id", "master_id", "last_modified", "is_deleted", "updated_at").
				Values(r.CompanyName, r.GUID, r.Name, r.ParentGroup, r.GSTIN, r.PAN,
					r.Email, r.Phone, r.BankAccount, r.BankIFSC, r.OpeningBal,
					r.AlterID, r.MasterID, r.LastModified, r.IsDeleted, sq.Expr("now()")).
				Suffix(`ON CONFLICT (company_name, guid) DO UPDATE SET
					name = EXCLUDED.name,
					parent_group = EXCLUDED.parent_group,
					gstin = EXCLUDED.gstin,
					pan = EXCLUDED.pan,
					email = EXCLUDED.email,
					phone = EXCLUDED.phone,
					bank_account = EXCLUDED.bank_account,
					bank_ifsc = EXCLUDED.bank_ifsc,
					opening_balance = EXCLUDED.opening_balance,
					alter_id = EXCLUDED.alter_id,
					master_id = EXCLUDED.master_id,
					last_modified = EXCLUDED.last_modified,
					is_deleted = EXCLUDED.is_deleted,
					updated_at = now()
				WHERE ledgers.alter_id < EXCLUDED.alter_id`).
				ToSql()
			if err != nil {
				return errors.Wrap(err, "building ledger upsert")
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return errors.Wrapf(err, "upserting ledger %s", r.GUID)
			}
		}
		return nil
	})
}

// UpsertInventoryVouchers writes Sales/Purchase/Credit Note/Debit Note
// rows. A stub row (IsDeleted with ItemName empty) triggers the
// soft-delete fan-out:
// every previously stored row sharing that guid is flipped to deleted.
func (w *Writer) UpsertInventoryVouchers(ctx context.Context, rows []model.InventoryVoucher) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		return w.upsertInventoryTx(ctx, tx, rows)
	})
}

func (w *Writer) upsertInventoryTx(ctx context.Context, tx *sql.Tx, rows []model.InventoryVoucher) error {
	for _, r := range rows {
		if r.IsDeleted && r.ItemName == "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE inventory_vouchers SET is_deleted = TRUE, change_status = 'Deleted', updated_at = now()
				WHERE company_name = $1 AND guid = $2
			`, r.CompanyName, r.GUID); err != nil {
				return errors.Wrapf(err, "soft-deleting inventory voucher %s", r.GUID)
			}
			continue
		}

		query, args, err := w.builder.Insert("inventory_vouchers").
			Columns("company_name", "guid", "line_identifier", "voucher_date", "voucher_number",
				"voucher_kind", "change_status", "party_name", "party_gstin", "item_name",
				"quantity", "unit", "alt_quantity", "alt_unit", "batch_name", "mfg_date",
				"expiry_date", "hsn_code", "gst_rate", "rate", "amount", "discount",
				"cgst", "sgst", "igst", "freight", "dca_charge", "cf_charge", "other_charges",
				"total", "currency", "exchange_rate", "narration", "alter_id", "master_id",
				"last_modified", "is_deleted", "updated_at").
			Values(r.CompanyName, r.GUID, r.LineIdentifier, r.VoucherDate, r.VoucherNumber,
				r.VoucherKind, r.ChangeStatus, r.PartyName, r.PartyGSTIN, r.ItemName,
				r.Quantity, r.Unit, r.AltQuantity, r.AltUnit, r.BatchName, r.MfgDate,
				r.ExpiryDate, r.HSNCode, r.GSTRate, r.Rate, r.Amount, r.Discount,
				r.CGST, r.SGST, r.IGST, r.Freight, r.DCACharge, r.CFCharge, r.OtherCharges,
				r.Total, r.Currency, r.ExchangeRate, r.Narration, r.AlterID, r.MasterID,
				r.LastModified, r.IsDeleted, sq.Expr("now()")).
			Suffix(`ON CONFLICT (company_name, guid, line_identifier) DO UPDATE SET
				voucher_date = EXCLUDED.voucher_date,
				change_status = EXCLUDED.change_status,
				amount = EXCLUDED.amount,
				total = EXCLUDED.total,
				is_deleted = EXCLUDED.is_deleted,
				alter_id = EXCLUDED.alter_id,
				updated_at = now()
			WHERE inventory_vouchers.alter_id < EXCLUDED.alter_id`).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building inventory voucher upsert")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "upserting inventory voucher %s line %d", r.GUID, r.LineIdentifier)
		}
	}
	return nil
}

// UpsertLedgerVouchers writes Receipt/Payment/Journal/Contra rows, with
// the same stub-row soft-delete fan-out as inventory vouchers.
func (w *Writer) UpsertLedgerVouchers(ctx context.Context, rows []model.LedgerVoucher) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		return w.upsertLedgerVoucherTx(ctx, tx, rows)
	})
}

func (w *Writer) upsertLedgerVoucherTx(ctx context.Context, tx *sql.Tx, rows []model.LedgerVoucher) error {
	for _, r := range rows {
		if r.IsDeleted && r.LedgerName == "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE ledger_vouchers SET is_deleted = TRUE, change_status = 'Deleted', updated_at = now()
				WHERE company_name = $1 AND guid = $2
			`, r.CompanyName, r.GUID); err != nil {
				return errors.Wrapf(err, "soft-deleting ledger voucher %s", r.GUID)
			}
			continue
		}

		query, args, err := w.builder.Insert("ledger_vouchers").
			Columns("company_name", "guid", "line_identifier", "voucher_date", "voucher_number",
				"voucher_kind", "change_status", "ledger_name", "amount", "amount_type",
				"currency", "exchange_rate", "narration", "alter_id", "master_id",
				"last_modified", "is_deleted", "updated_at").
			Values(r.CompanyName, r.GUID, r.LineIdentifier, r.VoucherDate, r.VoucherNumber,
				r.VoucherKind, r.ChangeStatus, r.LedgerName, r.Amount, r.AmountType,
				r.Currency, r.ExchangeRate, r.Narration, r.AlterID, r.MasterID,
				r.LastModified, r.IsDeleted, sq.Expr("now()")).
			Suffix(`ON CONFLICT (company_name, guid, line_identifier) DO UPDATE SET
				amount = EXCLUDED.amount,
				amount_type = EXCLUDED.amount_type,
				change_status = EXCLUDED.change_status,
				is_deleted = EXCLUDED.is_deleted,
				alter_id = EXCLUDED.alter_id,
				updated_at = now()
			WHERE ledger_vouchers.alter_id < EXCLUDED.alter_id`).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building ledger voucher upsert")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "upserting ledger voucher %s line %d", r.GUID, r.LineIdentifier)
		}
	}
	return nil
}

// UpsertTrialBalance replaces the trial balance rows for the given
// period; trial balance is a point-in-time snapshot, not a CDC stream,
// so it is keyed on (company, ledger, start, end) without an alter-id
// guard.
func (w *Writer) UpsertTrialBalance(ctx context.Context, rows []model.TrialBalanceRow) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			query, args, err := w.builder.Insert("trial_balance").
				Columns("company_name", "ledger_name", "start_date", "end_date", "opening", "net", "closing", "alter_id", "updated_at").
				Values(r.CompanyName, r.LedgerName, r.StartDate, r.EndDate, r.Opening, r.Net, r.Closing, r.AlterID, sq.Expr("now()")).
				Suffix(`ON CONFLICT (company_name, ledger_name, start_date, end_date) DO UPDATE SET
					opening = EXCLUDED.opening,
					net = EXCLUDED.net,
					closing = EXCLUDED.closing,
					alter_id = EXCLUDED.alter_id,
					updated_at = now()`).
				ToSql()
			if err != nil {
				return errors.Wrap(err, "building trial balance upsert")
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return errors.Wrapf(err, "upserting trial balance row for %s", r.LedgerName)
			}
		}
		return nil
	})
}

// UpsertAndAdvanceMonth writes a chunk's rows and advances the
// snapshot's chunk watermark in the same transaction — this is the
// operation critical to resumable snapshots: either both the rows and
// the watermark move forward together, or neither does.
func (w *Writer) UpsertAndAdvanceMonth(ctx context.Context, companyName, voucherKind string, rows any, month string) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		switch typed := rows.(type) {
		case []model.InventoryVoucher:
			if err := w.upsertInventoryTx(ctx, tx, typed); err != nil {
				return err
			}
		case []model.LedgerVoucher:
			if err := w.upsertLedgerVoucherTx(ctx, tx, typed); err != nil {
				return err
			}
		default:
			return errors.Errorf("unsupported row type %T for upsert_and_advance_month", rows)
		}
		return w.watermarks.AdvanceMonthTx(ctx, tx, companyName, voucherKind, month)
	})
}

// inTx runs fn inside a transaction, rolling back on any error or
// panic. Transaction rollback on error means the chunk watermark never
// advances, so the same chunk is refetched on the next run.
func (w *Writer) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}
