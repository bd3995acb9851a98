package workers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-tournament-system/models"
	"game-tournament-system/services"
	"game-tournament-system/store"
)

func newReconFixture(t *testing.T) (*ReconciliationWorker, *store.MemoryLedgerStore, *services.MockGateway, *services.WalletService) {
	t.Helper()
	ledger := store.NewMemoryLedgerStore()
	gateway := services.NewMockGateway()
	wallet := services.NewWalletService(ledger, gateway, services.LogNotifier{}, decimal.NewFromInt(100), 24*time.Hour, "http://localhost/callback")
	worker := NewReconciliationWorker(ledger, gateway)
	// Sweep everything regardless of age.
	worker.minAge = -time.Minute
	return worker, ledger, gateway, wallet
}

func seedReconWallet(t *testing.T, ledger *store.MemoryLedgerStore, userID string) {
	t.Helper()
	require.NoError(t, ledger.CreateWallet(context.Background(), &models.Wallet{
		ID:     uuid.NewString(),
		UserID: userID,
	}))
}

func TestReconciliationSweep(t *testing.T) {
	ctx := context.Background()
	worker, ledger, gateway, wallet := newReconFixture(t)
	seedReconWallet(t, ledger, "u-paid")
	seedReconWallet(t, ledger, "u-unpaid")

	// Paid at the gateway but the user never hit the verify callback.
	_, paid, err := wallet.CreateDeposit(ctx, "u-paid", decimal.NewFromInt(5000))
	require.NoError(t, err)
	_, err = gateway.VerifyPayment(ctx, *paid.TrackID)
	require.NoError(t, err)

	// Session opened but never completed.
	_, unpaid, err := wallet.CreateDeposit(ctx, "u-unpaid", decimal.NewFromInt(700))
	require.NoError(t, err)

	require.NoError(t, worker.sweep(ctx))

	w, err := ledger.WalletByUser(ctx, "u-paid")
	require.NoError(t, err)
	assert.True(t, w.TotalBalance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, w.WithdrawableBalance.Equal(decimal.NewFromInt(5000)))

	settled, err := ledger.TransactionByOrder(ctx, *paid.OrderID, *paid.TrackID)
	require.NoError(t, err)
	assert.Equal(t, models.TxSuccess, settled.Status)
	assert.NotEmpty(t, settled.RefNumber)

	failed, err := ledger.TransactionByOrder(ctx, *unpaid.OrderID, *unpaid.TrackID)
	require.NoError(t, err)
	assert.Equal(t, models.TxFailed, failed.Status)
	w, err = ledger.WalletByUser(ctx, "u-unpaid")
	require.NoError(t, err)
	assert.True(t, w.TotalBalance.IsZero())

	// Nothing left to sweep once everything is resolved.
	pending, err := ledger.PendingDeposits(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconciliationSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	worker, ledger, gateway, wallet := newReconFixture(t)
	seedReconWallet(t, ledger, "u1")

	_, entry, err := wallet.CreateDeposit(ctx, "u1", decimal.NewFromInt(2500))
	require.NoError(t, err)
	_, err = gateway.VerifyPayment(ctx, *entry.TrackID)
	require.NoError(t, err)

	require.NoError(t, worker.sweep(ctx))
	require.NoError(t, worker.sweep(ctx))

	w, err := ledger.WalletByUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.TotalBalance.Equal(decimal.NewFromInt(2500)))
}

func TestReconciliationLeavesPendingWhenGatewayDown(t *testing.T) {
	ctx := context.Background()
	worker, ledger, gateway, wallet := newReconFixture(t)
	seedReconWallet(t, ledger, "u1")

	_, entry, err := wallet.CreateDeposit(ctx, "u1", decimal.NewFromInt(900))
	require.NoError(t, err)
	gateway.SetDown(true)

	require.NoError(t, worker.sweep(ctx))

	still, err := ledger.TransactionByOrder(ctx, *entry.OrderID, *entry.TrackID)
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, still.Status)

	// Once the gateway is back the deposit resolves.
	gateway.SetDown(false)
	_, err = gateway.VerifyPayment(ctx, *entry.TrackID)
	require.NoError(t, err)
	require.NoError(t, worker.sweep(ctx))

	settled, err := ledger.TransactionByOrder(ctx, *entry.OrderID, *entry.TrackID)
	require.NoError(t, err)
	assert.Equal(t, models.TxSuccess, settled.Status)
}
