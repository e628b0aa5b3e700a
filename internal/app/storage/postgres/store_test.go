package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/openraffle/raffle_layer/internal/app/domain/custody"
	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/domain/randomness"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestStore_GetBalanceDefaultsToZero(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT amount, updated_at FROM balances`).
		WithArgs("alice", "native").
		WillReturnError(sql.ErrNoRows)

	bal, err := store.GetBalance(context.Background(), "alice", "native")
	require.NoError(t, err)
	require.Equal(t, custody.Balance{Account: "alice", Asset: "native"}, bal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetBalance(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT amount, updated_at FROM balances`).
		WithArgs("alice", "native").
		WillReturnRows(sqlmock.NewRows([]string{"amount", "updated_at"}).AddRow(int64(75), now))

	bal, err := store.GetBalance(context.Background(), "alice", "native")
	require.NoError(t, err)
	require.Equal(t, uint64(75), bal.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutBalanceUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO balances`).
		WithArgs("alice", "native", int64(75), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.PutBalance(context.Background(), custody.Balance{Account: "alice", Asset: "native", Amount: 75})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteRaffleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM raffles`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteRaffle(context.Background(), "missing")
	require.ErrorIs(t, err, raffle.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendTicketBatch(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("raffle-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`INSERT INTO ticket_batches`).
		WithArgs("raffle-1", "bob", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE raffles SET updated_at`).
		WithArgs("raffle-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.AppendTicketBatch(context.Background(), "raffle-1", raffle.TicketBatch{Buyer: "bob", End: 5})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendTicketBatchUnknownRaffle(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := store.AppendTicketBatch(context.Background(), "missing", raffle.TicketBatch{Buyer: "bob", End: 5})
	require.ErrorIs(t, err, raffle.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRequestNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE randomness_requests`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateRequest(context.Background(), randomness.Request{ID: "missing", Status: randomness.StatusFulfilled})
	require.ErrorIs(t, err, raffle.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNonFungibleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT owner, updated_at FROM non_fungibles`).
		WithArgs("art", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetNonFungible(context.Background(), "art", "missing")
	require.ErrorIs(t, err, raffle.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
