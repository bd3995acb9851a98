package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-tournament-system/models"
	"game-tournament-system/store"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newWalletFixture(t *testing.T) (*WalletService, *store.MemoryLedgerStore, *MockGateway) {
	t.Helper()
	ledger := store.NewMemoryLedgerStore()
	gateway := NewMockGateway()
	svc := NewWalletService(ledger, gateway, LogNotifier{}, dec(100), 24*time.Hour, "https://example.test/callback")
	return svc, ledger, gateway
}

func seedWallet(t *testing.T, ledger *store.MemoryLedgerStore, userID string, balance int64) *models.Wallet {
	t.Helper()
	w := &models.Wallet{
		ID:                  uuid.NewString(),
		UserID:              userID,
		TotalBalance:        dec(balance),
		WithdrawableBalance: dec(balance),
	}
	require.NoError(t, ledger.CreateWallet(context.Background(), w))
	return w
}

func TestProcessTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("entry fee debits both balances", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 500)

		tx, err := svc.ProcessTransaction(ctx, "u1", dec(200), models.KindEntryFee, "entry fee: test cup")
		require.NoError(t, err)
		assert.Equal(t, models.TxSuccess, tx.Status)

		w, err := svc.Wallet(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, w.TotalBalance.Equal(dec(300)))
		assert.True(t, w.WithdrawableBalance.Equal(dec(300)))
	})

	t.Run("insufficient funds leaves wallet unchanged", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		_, err := svc.ProcessTransaction(ctx, "u1", dec(1200), models.KindWithdrawal, "")
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(1000)))
		assert.True(t, w.WithdrawableBalance.Equal(dec(1000)))
	})

	t.Run("prize credits both balances", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 0)

		_, err := svc.ProcessTransaction(ctx, "u1", dec(750), models.KindPrize, "prize")
		require.NoError(t, err)

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(750)))
		assert.True(t, w.WithdrawableBalance.Equal(dec(750)))
	})

	t.Run("zero or negative amount rejected", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 100)

		_, err := svc.ProcessTransaction(ctx, "u1", dec(0), models.KindDeposit, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = svc.ProcessTransaction(ctx, "u1", dec(-5), models.KindDeposit, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("withdrawal below minimum", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		_, err := svc.ProcessTransaction(ctx, "u1", dec(50), models.KindWithdrawal, "")
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})

	t.Run("withdrawal cooldown", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		_, err := svc.ProcessTransaction(ctx, "u1", dec(200), models.KindWithdrawal, "")
		require.NoError(t, err)

		_, err = svc.ProcessTransaction(ctx, "u1", dec(200), models.KindWithdrawal, "")
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("token kind rejected on money path", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 100)

		_, err := svc.ProcessTransaction(ctx, "u1", dec(10), models.KindTokenSpent, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		svc, _, _ := newWalletFixture(t)
		_, err := svc.ProcessTransaction(ctx, "nobody", dec(10), models.KindDeposit, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProcessTokenTransaction(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newWalletFixture(t)
	seedWallet(t, ledger, "u1", 0)

	_, err := svc.ProcessTokenTransaction(ctx, "u1", dec(1000), models.KindTokenEarned, "sign-up bonus")
	require.NoError(t, err)

	_, err = svc.ProcessTokenTransaction(ctx, "u1", dec(300), models.KindTokenSpent, "entry fee")
	require.NoError(t, err)

	w, _ := svc.Wallet(ctx, "u1")
	assert.True(t, w.TokenBalance.Equal(dec(700)))
	// Money balances untouched by token movement.
	assert.True(t, w.TotalBalance.IsZero())

	_, err = svc.ProcessTokenTransaction(ctx, "u1", dec(5000), models.KindTokenSpent, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = svc.ProcessTokenTransaction(ctx, "u1", dec(10), models.KindDeposit, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConcurrentDebits(t *testing.T) {
	// N concurrent debits of A against balance B succeed exactly floor(B/A)
	// times. Entry fees rather than withdrawals so the cooldown rule does
	// not interfere with the count.
	ctx := context.Background()
	svc, ledger, _ := newWalletFixture(t)
	seedWallet(t, ledger, "u1", 1000)

	const n = 20
	amount := dec(300)

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessTransaction(ctx, "u1", amount, models.KindEntryFee, "race")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 3, succeeded) // floor(1000/300)

	w, _ := svc.Wallet(ctx, "u1")
	assert.True(t, w.TotalBalance.Equal(dec(100)))
}

func TestLedgerConservation(t *testing.T) {
	ctx := context.Background()
	svc, ledger, _ := newWalletFixture(t)
	w := seedWallet(t, ledger, "u1", 0)

	_, err := svc.ProcessTransaction(ctx, "u1", dec(500), models.KindDeposit, "")
	require.NoError(t, err)
	_, err = svc.ProcessTransaction(ctx, "u1", dec(120), models.KindEntryFee, "")
	require.NoError(t, err)
	_, err = svc.ProcessTransaction(ctx, "u1", dec(80), models.KindPrize, "")
	require.NoError(t, err)
	_, err = svc.ProcessTransaction(ctx, "u1", dec(999), models.KindEntryFee, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	entries, err := ledger.TransactionsByWallet(ctx, w.ID, 0)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, e := range entries {
		if e.Status == models.TxSuccess && !e.Kind.IsToken() {
			sum = sum.Add(e.Signed())
		}
	}
	updated, _ := svc.Wallet(ctx, "u1")
	assert.True(t, sum.Equal(updated.TotalBalance), "ledger sum %s != balance %s", sum, updated.TotalBalance)
}

func TestDepositLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create and verify", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		url, entry, err := svc.CreateDeposit(ctx, "u1", dec(5000))
		require.NoError(t, err)
		assert.Contains(t, url, "start/")
		assert.Equal(t, models.TxPending, entry.Status)
		require.NotNil(t, entry.OrderID)
		require.NotNil(t, entry.TrackID)

		settled, err := svc.VerifyAndProcessDeposit(ctx, *entry.OrderID, *entry.TrackID)
		require.NoError(t, err)
		assert.Equal(t, models.TxSuccess, settled.Status)
		assert.NotEmpty(t, settled.RefNumber)

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(6000)))
		assert.True(t, w.WithdrawableBalance.Equal(dec(6000)))

		// Withdrawal from the example scenario now goes through.
		_, err = svc.ProcessTransaction(ctx, "u1", dec(1200), models.KindWithdrawal, "")
		require.NoError(t, err)
		w, _ = svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(4800)))
	})

	t.Run("verify is idempotent", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 0)

		_, entry, err := svc.CreateDeposit(ctx, "u1", dec(500))
		require.NoError(t, err)

		_, err = svc.VerifyAndProcessDeposit(ctx, *entry.OrderID, *entry.TrackID)
		require.NoError(t, err)
		_, err = svc.VerifyAndProcessDeposit(ctx, *entry.OrderID, *entry.TrackID)
		require.NoError(t, err)

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(500)), "credited exactly once, got %s", w.TotalBalance)
	})

	t.Run("concurrent verification credits once", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 0)

		_, entry, err := svc.CreateDeposit(ctx, "u1", dec(500))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.VerifyAndProcessDeposit(ctx, *entry.OrderID, *entry.TrackID)
			}()
		}
		wg.Wait()

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(500)))
	})

	t.Run("already verified falls back to inquiry", func(t *testing.T) {
		svc, ledger, gateway := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 0)

		_, entry, err := svc.CreateDeposit(ctx, "u1", dec(300))
		require.NoError(t, err)

		// Consume the verify so the service sees already_verified next.
		first, err := gateway.VerifyPayment(ctx, *entry.TrackID)
		require.NoError(t, err)
		require.Equal(t, VerifySuccess, first.Outcome)

		settled, err := svc.VerifyAndProcessDeposit(ctx, *entry.OrderID, *entry.TrackID)
		require.NoError(t, err)
		assert.Equal(t, models.TxSuccess, settled.Status)

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(300)))
	})

	t.Run("gateway failure marks transaction failed", func(t *testing.T) {
		svc, ledger, gateway := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 0)

		_, entry, err := svc.CreateDeposit(ctx, "u1", dec(300))
		require.NoError(t, err)
		gateway.FailOrder(*entry.OrderID)

		failed, err := svc.VerifyAndProcessDeposit(ctx, *entry.OrderID, *entry.TrackID)
		require.NoError(t, err)
		assert.Equal(t, models.TxFailed, failed.Status)

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.IsZero())
	})

	t.Run("gateway down at creation", func(t *testing.T) {
		svc, ledger, gateway := newWalletFixture(t)
		w := seedWallet(t, ledger, "u1", 0)
		gateway.SetDown(true)

		_, _, err := svc.CreateDeposit(ctx, "u1", dec(300))
		assert.Error(t, err)

		entries, _ := ledger.TransactionsByWallet(ctx, w.ID, 0)
		require.Len(t, entries, 1)
		assert.Equal(t, models.TxFailed, entries[0].Status)
	})
}

func TestWithdrawalRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("hold then approve", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		w := seedWallet(t, ledger, "u1", 1000)

		req, err := svc.CreateWithdrawalRequest(ctx, "u1", dec(400), "6037000000000000", "")
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalPending, req.Status)

		// Funds held at request time.
		held, _ := svc.Wallet(ctx, "u1")
		assert.True(t, held.TotalBalance.Equal(dec(600)))
		assert.True(t, held.WithdrawableBalance.Equal(dec(600)))

		approved, err := svc.ApproveWithdrawalRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalApproved, approved.Status)

		// Approval writes the ledger entry without a second debit.
		after, _ := svc.Wallet(ctx, "u1")
		assert.True(t, after.TotalBalance.Equal(dec(600)))

		entries, _ := ledger.TransactionsByWallet(ctx, w.ID, 0)
		require.Len(t, entries, 1)
		assert.Equal(t, models.KindWithdrawal, entries[0].Kind)
		assert.Equal(t, models.TxSuccess, entries[0].Status)
	})

	t.Run("reject restores the hold", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		req, err := svc.CreateWithdrawalRequest(ctx, "u1", dec(400), "", "IR000000000000000000000000")
		require.NoError(t, err)

		rejected, err := svc.RejectWithdrawalRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalRejected, rejected.Status)

		w, _ := svc.Wallet(ctx, "u1")
		assert.True(t, w.TotalBalance.Equal(dec(1000)))
		assert.True(t, w.WithdrawableBalance.Equal(dec(1000)))
	})

	t.Run("single pending request", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		_, err := svc.CreateWithdrawalRequest(ctx, "u1", dec(200), "6037", "")
		require.NoError(t, err)
		_, err = svc.CreateWithdrawalRequest(ctx, "u1", dec(200), "6037", "")
		assert.ErrorIs(t, err, ErrPendingWithdrawal)
	})

	t.Run("request validation", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		_, err := svc.CreateWithdrawalRequest(ctx, "u1", dec(50), "6037", "")
		assert.ErrorIs(t, err, ErrBelowMinimum)

		_, err = svc.CreateWithdrawalRequest(ctx, "u1", dec(200), "", "")
		assert.ErrorIs(t, err, ErrMissingBankInfo)

		_, err = svc.CreateWithdrawalRequest(ctx, "u1", dec(5000), "6037", "")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("double review rejected", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "u1", 1000)

		req, err := svc.CreateWithdrawalRequest(ctx, "u1", dec(200), "6037", "")
		require.NoError(t, err)
		_, err = svc.ApproveWithdrawalRequest(ctx, req.ID)
		require.NoError(t, err)
		_, err = svc.ApproveWithdrawalRequest(ctx, req.ID)
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
		_, err = svc.RejectWithdrawalRequest(ctx, req.ID)
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
	})
}

func TestChargeGroupEntryFee(t *testing.T) {
	ctx := context.Background()

	t.Run("all members charged", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "a", 500)
		seedWallet(t, ledger, "b", 500)
		seedWallet(t, ledger, "c", 500)

		err := svc.ChargeGroupEntryFee(ctx, []string{"c", "a", "b"}, dec(100), false, "entry fee: squad cup")
		require.NoError(t, err)

		for _, id := range []string{"a", "b", "c"} {
			w, _ := svc.Wallet(ctx, id)
			assert.True(t, w.TotalBalance.Equal(dec(400)), "wallet %s", id)
		}
	})

	t.Run("one short wallet aborts everything", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "a", 500)
		seedWallet(t, ledger, "b", 50)
		seedWallet(t, ledger, "c", 500)

		err := svc.ChargeGroupEntryFee(ctx, []string{"a", "b", "c"}, dec(100), false, "entry fee")
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		for id, want := range map[string]int64{"a": 500, "b": 50, "c": 500} {
			w, _ := svc.Wallet(ctx, id)
			assert.True(t, w.TotalBalance.Equal(dec(want)), "wallet %s", id)
		}
	})

	t.Run("token based", func(t *testing.T) {
		svc, ledger, _ := newWalletFixture(t)
		seedWallet(t, ledger, "a", 0)
		seedWallet(t, ledger, "b", 0)
		_, err := svc.ProcessTokenTransaction(ctx, "a", dec(1000), models.KindTokenEarned, "")
		require.NoError(t, err)
		_, err = svc.ProcessTokenTransaction(ctx, "b", dec(1000), models.KindTokenEarned, "")
		require.NoError(t, err)

		require.NoError(t, svc.ChargeGroupEntryFee(ctx, []string{"a", "b"}, dec(250), true, "entry fee"))
		w, _ := svc.Wallet(ctx, "a")
		assert.True(t, w.TokenBalance.Equal(dec(750)))
	})
}
