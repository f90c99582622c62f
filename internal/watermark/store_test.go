package watermark

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT company_name, voucher_type").
		WithArgs("Acme Co", "sales").
		WillReturnRows(sqlmock.NewRows(nil))

	store := NewStore(db)
	_, err = store.Get(context.Background(), "Acme Co", "sales")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateIsMonotonic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"company_name", "voucher_type", "last_alter_id", "is_initial_done", "last_synced_month", "last_sync_time"}
	mock.ExpectQuery("SELECT company_name, voucher_type").
		WithArgs("Acme Co", "sales").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("Acme Co", "sales", int64(100), false, nil, nil))

	mock.ExpectExec("INSERT INTO sync_state").
		WithArgs("Acme Co", "sales", int64(100), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewStore(db)
	err = store.Update(context.Background(), "Acme Co", "sales", 50, nil) // lower id, should not regress
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
