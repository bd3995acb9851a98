package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"game-tournament-system/models"
)

func newMockStore(t *testing.T) (*GormLedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	return NewGormLedgerStore(gdb), mock
}

func walletRows(id, userID string, total int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "total_balance", "withdrawable_balance", "token_balance", "created_at", "updated_at",
	}).AddRow(id, userID, total, total, 0, now, now)
}

func TestGormWalletByUser(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectQuery(`SELECT \* FROM "wallets" WHERE user_id = \$1`).
		WithArgs("u1", 1).
		WillReturnRows(walletRows(id, "u1", 1000))

	w, err := s.WalletByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, id, w.ID)
	assert.True(t, w.TotalBalance.Equal(decimal.NewFromInt(1000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormWalletByUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "wallets" WHERE user_id = \$1`).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.WalletByUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUpdateWalletLocksRow(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "wallets" WHERE user_id = \$1 .* FOR UPDATE`).
		WithArgs("u1", 1).
		WillReturnRows(walletRows(id, "u1", 1000))
	mock.ExpectExec(`UPDATE "wallets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.UpdateWallet(context.Background(), "u1", func(w *models.Wallet, _ LedgerView) (*Mutation, error) {
		w.TotalBalance = w.TotalBalance.Sub(decimal.NewFromInt(100))
		w.WithdrawableBalance = w.WithdrawableBalance.Sub(decimal.NewFromInt(100))
		return nil, nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUpdateWalletRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("insufficient funds")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "wallets" WHERE user_id = \$1 .* FOR UPDATE`).
		WithArgs("u1", 1).
		WillReturnRows(walletRows(uuid.NewString(), "u1", 50))
	mock.ExpectRollback()

	_, err := s.UpdateWallet(context.Background(), "u1", func(w *models.Wallet, _ LedgerView) (*Mutation, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPendingDeposits(t *testing.T) {
	s, mock := newMockStore(t)
	orderID := uuid.NewString()
	cutoff := time.Now().Add(-15 * time.Minute)

	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE status = \$1 AND order_id IS NOT NULL AND created_at < \$2`).
		WithArgs(string(models.TxPending), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "amount", "kind", "status", "order_id"}).
			AddRow(uuid.NewString(), uuid.NewString(), 5000, string(models.KindDeposit), string(models.TxPending), orderID))

	pending, err := s.PendingDeposits(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, orderID, *pending[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
