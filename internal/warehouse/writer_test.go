package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/withobsrvr/tally-sync-engine/internal/model"
	"github.com/withobsrvr/tally-sync-engine/internal/watermark"
)

func newTestWriter(t *testing.T) (*Writer, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	w := NewWriter(db, watermark.NewStore(db))
	return w, mock, func() { db.Close() }
}

func TestWriter_UpsertCompany_SkipsBlankName(t *testing.T) {
	w, mock, cleanup := newTestWriter(t)
	defer cleanup()

	inserted, updated, err := w.UpsertCompany(context.Background(), model.Company{Name: ""})
	require.NoError(t, err)
	require.False(t, inserted)
	require.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_UpsertCompany_ReportsInsertVsUpdate(t *testing.T) {
	w, mock, cleanup := newTestWriter(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO companies").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))

	inserted, updated, err := w.UpsertCompany(context.Background(), model.Company{Name: "Acme Co"})
	require.NoError(t, err)
	require.True(t, inserted)
	require.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_UpsertInventoryVouchers_SoftDeletesStubRow(t *testing.T) {
	w, mock, cleanup := newTestWriter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE inventory_vouchers SET is_deleted = TRUE").
		WithArgs("Acme Co", "guid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stub := model.InventoryVoucher{CompanyName: "Acme Co", VoucherKind: "sales"}
	stub.GUID = "guid-1"
	stub.IsDeleted = true

	err := w.UpsertInventoryVouchers(context.Background(), []model.InventoryVoucher{stub})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_UpsertAndAdvanceMonth_CommitsOnSuccess(t *testing.T) {
	w, mock, cleanup := newTestWriter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_vouchers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT company_name, voucher_type").
		WithArgs("Acme Co", "sales").
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectExec("INSERT INTO sync_state").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	row := model.InventoryVoucher{CompanyName: "Acme Co", VoucherKind: "sales", ItemName: "Widget", Total: decimal.NewFromInt(100)}
	row.GUID = "guid-2"
	row.LastModified = time.Now()

	err := w.UpsertAndAdvanceMonth(context.Background(), "Acme Co", "sales", []model.InventoryVoucher{row}, "202406")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_UpsertAndAdvanceMonth_RollsBackOnUpsertError(t *testing.T) {
	w, mock, cleanup := newTestWriter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_vouchers").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	row := model.InventoryVoucher{CompanyName: "Acme Co", VoucherKind: "sales", ItemName: "Widget"}
	row.GUID = "guid-3"

	err := w.UpsertAndAdvanceMonth(context.Background(), "Acme Co", "sales", []model.InventoryVoucher{row}, "202406")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
