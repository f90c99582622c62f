// Package watermark implements a durable read-through/write-through map
// of per-(tenant, voucher kind) sync state.
package watermark

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// ErrNotFound is returned by Get when no watermark row exists yet for
// the (tenant, kind) pair; callers treat this the same as a
// never-synced tenant.
var ErrNotFound = errors.New("watermark not found")

// Store is backed by a *sql.DB (lib/pq driver).
type Store struct {
	db *sql.DB
}

// NewStore wraps db. The caller owns the connection pool's lifecycle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get reads the current watermark for (companyName, voucherKind).
func (s *Store) Get(ctx context.Context, companyName, voucherKind string) (model.Watermark, error) {
	return s.getWith(ctx, s.db, companyName, voucherKind)
}

// Update performs a monotonic CDC watermark update: last_alter_id only
// ever increases. Pass initialDone=nil to leave the flag unchanged.
func (s *Store) Update(ctx context.Context, companyName, voucherKind string, alterID int64, initialDone *bool) error {
	return s.upsertWith(ctx, s.db, companyName, voucherKind, func(w *model.Watermark) {
		if alterID > w.LastAlterID {
			w.LastAlterID = alterID
		}
		if initialDone != nil {
			w.IsInitialDone = w.IsInitialDone || *initialDone
		}
	})
}

// AdvanceMonth stores the last fully-committed snapshot chunk month.
func (s *Store) AdvanceMonth(ctx context.Context, companyName, voucherKind, month string) error {
	return s.AdvanceMonthTx(ctx, nil, companyName, voucherKind, month)
}

// AdvanceMonthTx is the transactional variant used by the warehouse
// writer's combined upsert-and-advance-month operation; pass a nil tx
// to run outside a transaction.
func (s *Store) AdvanceMonthTx(ctx context.Context, tx *sql.Tx, companyName, voucherKind, month string) error {
	exec := s.execer(tx)
	return s.upsertWith(ctx, exec, companyName, voucherKind, func(w *model.Watermark) {
		w.LastSyncedMonth = month
	})
}

// MarkInitialDone latches is_initial_done and records the terminal
// month and alter id. A reader must never observe is_initial_done=true
// with last_alter_id=0, so the caller is
// required to have synced at least one record (finalAlterID may still
// legitimately be 0 for a tenant with no historical vouchers at all;
// that is an accepted edge case, not a violation, since there is then
// nothing to have missed).
func (s *Store) MarkInitialDone(ctx context.Context, companyName, voucherKind string, finalAlterID int64, finalMonth string) error {
	return s.upsertWith(ctx, s.db, companyName, voucherKind, func(w *model.Watermark) {
		w.IsInitialDone = true
		if finalAlterID > w.LastAlterID {
			w.LastAlterID = finalAlterID
		}
		w.LastSyncedMonth = finalMonth
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return s.db
}

// upsertWith reads the current row (if any), applies mutate, then
// writes the result back with an INSERT ... ON CONFLICT upsert, so
// concurrent callers for different (company, kind) pairs never
// contend, and a crash mid-update leaves the last-committed state
// intact.
func (s *Store) upsertWith(ctx context.Context, exec execer, companyName, voucherKind string, mutate func(*model.Watermark)) error {
	w, err := s.getWith(ctx, exec, companyName, voucherKind)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	w.CompanyName = companyName
	w.VoucherKind = voucherKind
	mutate(&w)
	now := time.Now()
	w.LastSyncTime = &now

	_, err = exec.ExecContext(ctx, `
		INSERT INTO sync_state (company_name, voucher_type, last_alter_id, is_initial_done, last_synced_month, last_sync_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_name, voucher_type) DO UPDATE SET
			last_alter_id = EXCLUDED.last_alter_id,
			is_initial_done = EXCLUDED.is_initial_done,
			last_synced_month = EXCLUDED.last_synced_month,
			last_sync_time = EXCLUDED.last_sync_time,
			updated_at = now()
	`, w.CompanyName, w.VoucherKind, w.LastAlterID, w.IsInitialDone, nullableString(w.LastSyncedMonth), w.LastSyncTime)
	if err != nil {
		return errors.Wrapf(err, "upserting watermark for %s/%s", companyName, voucherKind)
	}
	return nil
}

func (s *Store) getWith(ctx context.Context, exec execer, companyName, voucherKind string) (model.Watermark, error) {
	var w model.Watermark
	var lastSyncedMonth sql.NullString
	var lastSyncTime sql.NullTime

	row := exec.QueryRowContext(ctx, `
		SELECT company_name, voucher_type, last_alter_id, is_initial_done,
		       last_synced_month, last_sync_time
		FROM sync_state
		WHERE company_name = $1 AND voucher_type = $2
	`, companyName, voucherKind)

	err := row.Scan(&w.CompanyName, &w.VoucherKind, &w.LastAlterID, &w.IsInitialDone, &lastSyncedMonth, &lastSyncTime)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Watermark{CompanyName: companyName, VoucherKind: voucherKind}, ErrNotFound
	}
	if err != nil {
		return model.Watermark{}, errors.Wrapf(err, "reading watermark for %s/%s", companyName, voucherKind)
	}
	w.LastSyncedMonth = lastSyncedMonth.String
	if lastSyncTime.Valid {
		t := lastSyncTime.Time
		w.LastSyncTime = &t
	}
	return w, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
