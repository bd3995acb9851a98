package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"game-tournament-system/models"
	"game-tournament-system/store"
)

// WalletService owns every balance mutation. All money paths go through
// store.LedgerStore's locked wallet updates, so two operations on the same
// wallet can never interleave between the balance check and the write.
type WalletService struct {
	Ledger   store.LedgerStore
	Gateway  PaymentGateway
	Notifier Notifier

	MinWithdrawal      decimal.Decimal
	WithdrawalCooldown time.Duration
	CallbackURL        string
}

func NewWalletService(ledger store.LedgerStore, gateway PaymentGateway, notifier Notifier, minWithdrawal decimal.Decimal, cooldown time.Duration, callbackURL string) *WalletService {
	return &WalletService{
		Ledger:             ledger,
		Gateway:            gateway,
		Notifier:           notifier,
		MinWithdrawal:      minWithdrawal,
		WithdrawalCooldown: cooldown,
		CallbackURL:        callbackURL,
	}
}

// Wallet returns the user's wallet.
func (s *WalletService) Wallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := s.Ledger.WalletByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return w, err
}

// RecentTransactions returns the newest ledger entries for the user's wallet.
func (s *WalletService) RecentTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	w, err := s.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Ledger.TransactionsByWallet(ctx, w.ID, limit)
}

// ProcessTransaction applies one money movement to the user's wallet and
// writes the matching success ledger entry in the same atomic unit.
//
// Debits (withdrawal, entry_fee) reduce both balances and fail with
// ErrInsufficientFunds when the withdrawable balance cannot cover the amount.
// Withdrawals additionally enforce the minimum amount and the rolling
// cooldown: at most one successful withdrawal per cooldown window. Credits
// (deposit, prize) raise both balances; entry fee refunds reuse the deposit
// kind so refunded money is withdrawable again.
func (s *WalletService) ProcessTransaction(ctx context.Context, userID string, amount decimal.Decimal, kind models.TransactionKind, description string) (*models.Transaction, error) {
	if kind.IsToken() {
		return nil, fmt.Errorf("%w: %s is a token kind", ErrInvalidInput, kind)
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if kind == models.KindWithdrawal && amount.LessThan(s.MinWithdrawal) {
		return nil, ErrBelowMinimum
	}

	mut, err := s.Ledger.UpdateWallet(ctx, userID, func(w *models.Wallet, view store.LedgerView) (*store.Mutation, error) {
		if kind == models.KindWithdrawal {
			if err := s.checkWithdrawalCooldown(userID, view); err != nil {
				return nil, err
			}
		}
		if err := applyMoney(w, amount, kind); err != nil {
			return nil, err
		}
		entry := &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    w.ID,
			Amount:      amount,
			Kind:        kind,
			Status:      models.TxSuccess,
			Description: description,
		}
		return &store.Mutation{Entries: []*models.Transaction{entry}}, nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	tx := mut.Entries[0]
	s.notify(ctx, userID, "wallet", fmt.Sprintf("%s of %s processed", kind, amount.StringFixed(2)))
	return tx, nil
}

// ProcessTokenTransaction is ProcessTransaction restricted to the token
// balance. Tokens are a separate currency and never convert to money.
func (s *WalletService) ProcessTokenTransaction(ctx context.Context, userID string, amount decimal.Decimal, kind models.TransactionKind, description string) (*models.Transaction, error) {
	if !kind.IsToken() {
		return nil, fmt.Errorf("%w: %s is not a token kind", ErrInvalidInput, kind)
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	mut, err := s.Ledger.UpdateWallet(ctx, userID, func(w *models.Wallet, _ store.LedgerView) (*store.Mutation, error) {
		if kind == models.KindTokenSpent {
			if w.TokenBalance.LessThan(amount) {
				return nil, store.ErrInsufficientFunds
			}
			w.TokenBalance = w.TokenBalance.Sub(amount)
		} else {
			w.TokenBalance = w.TokenBalance.Add(amount)
		}
		entry := &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    w.ID,
			Amount:      amount,
			Kind:        kind,
			Status:      models.TxSuccess,
			Description: description,
		}
		return &store.Mutation{Entries: []*models.Transaction{entry}}, nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return mut.Entries[0], nil
}

// ChargeGroupEntryFee debits the same entry fee from every listed wallet in
// one atomic unit. Every wallet is locked in a stable order and checked
// before anything is written, so either all members are charged or none is.
func (s *WalletService) ChargeGroupEntryFee(ctx context.Context, userIDs []string, amount decimal.Decimal, tokenBased bool, description string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(userIDs) == 0 {
		return ErrNotFound
	}
	_, err := s.Ledger.UpdateWallets(ctx, userIDs, func(wallets []*models.Wallet, _ store.LedgerView) (*store.Mutation, error) {
		mut := &store.Mutation{}
		for _, w := range wallets {
			kind := models.KindEntryFee
			if tokenBased {
				kind = models.KindTokenSpent
				if w.TokenBalance.LessThan(amount) {
					return nil, store.ErrInsufficientFunds
				}
				w.TokenBalance = w.TokenBalance.Sub(amount)
			} else if err := applyMoney(w, amount, kind); err != nil {
				return nil, err
			}
			mut.Entries = append(mut.Entries, &models.Transaction{
				ID:          uuid.NewString(),
				WalletID:    w.ID,
				Amount:      amount,
				Kind:        kind,
				Status:      models.TxSuccess,
				Description: description,
			})
		}
		return mut, nil
	})
	return mapStoreErr(err)
}

// CreateDeposit opens a gateway payment for the amount and returns the URL
// the user should be redirected to. The pending ledger entry is written
// before the gateway call so a gateway timeout can never lose the intent;
// rejection marks it failed.
func (s *WalletService) CreateDeposit(ctx context.Context, userID string, amount decimal.Decimal) (string, *models.Transaction, error) {
	if !amount.IsPositive() {
		return "", nil, ErrInvalidAmount
	}
	w, err := s.Wallet(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	orderID := uuid.NewString()
	entry := &models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Amount:      amount,
		Kind:        models.KindDeposit,
		Status:      models.TxPending,
		OrderID:     &orderID,
		Description: "gateway deposit",
	}
	if err := s.Ledger.CreateTransaction(ctx, entry); err != nil {
		return "", nil, mapStoreErr(err)
	}

	trackID, err := s.Gateway.CreatePayment(ctx, orderID, amount, s.CallbackURL)
	if err != nil {
		entry.Status = models.TxFailed
		entry.Description = "gateway rejected: " + err.Error()
		if saveErr := s.Ledger.SaveTransaction(ctx, entry); saveErr != nil {
			log.Printf("failed to mark deposit %s failed: %v", entry.ID, saveErr)
		}
		return "", nil, err
	}

	entry.TrackID = &trackID
	if err := s.Ledger.SaveTransaction(ctx, entry); err != nil {
		return "", nil, mapStoreErr(err)
	}
	return s.Gateway.PaymentURL(trackID), entry, nil
}

// VerifyAndProcessDeposit reconciles a returned payment. Safe to call any
// number of times for the same (orderID, trackID): only the call that flips
// the entry from pending credits the wallet, everything after is a no-op.
func (s *WalletService) VerifyAndProcessDeposit(ctx context.Context, orderID, trackID string) (*models.Transaction, error) {
	entry, err := s.Ledger.TransactionByOrder(ctx, orderID, trackID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if entry.Status != models.TxPending {
		return entry, nil
	}

	result, err := s.Gateway.VerifyPayment(ctx, trackID)
	if err != nil {
		// Gateway unreachable: leave the entry pending for the
		// reconciliation worker to retry via inquiry.
		return nil, err
	}

	switch result.Outcome {
	case VerifySuccess:
		return s.settle(ctx, orderID, trackID, result.RefNumber)
	case VerifyAlreadyVerified:
		// Redirect and webhook raced; confirm settlement before crediting.
		inq, err := s.Gateway.InquiryPayment(ctx, trackID)
		if err != nil {
			return nil, err
		}
		if inq.Outcome != VerifySuccess {
			return s.fail(ctx, entry, inq.Message)
		}
		return s.settle(ctx, orderID, trackID, inq.RefNumber)
	default:
		return s.fail(ctx, entry, result.Message)
	}
}

func (s *WalletService) settle(ctx context.Context, orderID, trackID, refNumber string) (*models.Transaction, error) {
	entry, credited, err := s.Ledger.SettleDeposit(ctx, orderID, trackID, refNumber)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if credited {
		userID := s.ownerOf(ctx, entry)
		s.notify(ctx, userID, "wallet", fmt.Sprintf("deposit of %s credited", entry.Amount.StringFixed(2)))
	}
	return entry, nil
}

func (s *WalletService) fail(ctx context.Context, entry *models.Transaction, message string) (*models.Transaction, error) {
	entry.Status = models.TxFailed
	if message != "" {
		entry.Description = message
	}
	if err := s.Ledger.SaveTransaction(ctx, entry); err != nil {
		return nil, mapStoreErr(err)
	}
	return entry, nil
}

// CreateWithdrawalRequest holds the amount immediately: both balances drop at
// request time so the money cannot be spent while the request awaits review.
func (s *WalletService) CreateWithdrawalRequest(ctx context.Context, userID string, amount decimal.Decimal, cardNumber, shebaNumber string) (*models.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(s.MinWithdrawal) {
		return nil, ErrBelowMinimum
	}
	if cardNumber == "" && shebaNumber == "" {
		return nil, ErrMissingBankInfo
	}

	mut, err := s.Ledger.UpdateWallet(ctx, userID, func(w *models.Wallet, view store.LedgerView) (*store.Mutation, error) {
		pending, err := view.HasPendingWithdrawal(userID)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, ErrPendingWithdrawal
		}
		if err := s.checkWithdrawalCooldown(userID, view); err != nil {
			return nil, err
		}
		if w.WithdrawableBalance.LessThan(amount) || w.TotalBalance.LessThan(amount) {
			return nil, store.ErrInsufficientFunds
		}
		w.WithdrawableBalance = w.WithdrawableBalance.Sub(amount)
		w.TotalBalance = w.TotalBalance.Sub(amount)
		req := &models.WithdrawalRequest{
			ID:          uuid.NewString(),
			UserID:      userID,
			Amount:      amount,
			CardNumber:  cardNumber,
			ShebaNumber: shebaNumber,
			Status:      models.WithdrawalPending,
		}
		return &store.Mutation{Requests: []*models.WithdrawalRequest{req}}, nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return mut.Requests[0], nil
}

// ApproveWithdrawalRequest finalizes the payout. The money left the wallet at
// request time, so only the ledger entry is written here.
func (s *WalletService) ApproveWithdrawalRequest(ctx context.Context, requestID string) (*models.WithdrawalRequest, error) {
	req, err := s.Ledger.WithdrawalRequestByID(ctx, requestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if req.Status != models.WithdrawalPending {
		return nil, ErrAlreadyReviewed
	}

	_, err = s.Ledger.UpdateWallet(ctx, req.UserID, func(w *models.Wallet, _ store.LedgerView) (*store.Mutation, error) {
		req.Status = models.WithdrawalApproved
		entry := &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    w.ID,
			Amount:      req.Amount,
			Kind:        models.KindWithdrawal,
			Status:      models.TxSuccess,
			Description: "withdrawal request " + req.ID,
		}
		return &store.Mutation{
			Entries:  []*models.Transaction{entry},
			Requests: []*models.WithdrawalRequest{req},
		}, nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.notify(ctx, req.UserID, "wallet", fmt.Sprintf("withdrawal of %s approved", req.Amount.StringFixed(2)))
	return req, nil
}

// RejectWithdrawalRequest releases the hold: both balances get the amount
// back and no ledger entry is written.
func (s *WalletService) RejectWithdrawalRequest(ctx context.Context, requestID string) (*models.WithdrawalRequest, error) {
	req, err := s.Ledger.WithdrawalRequestByID(ctx, requestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if req.Status != models.WithdrawalPending {
		return nil, ErrAlreadyReviewed
	}

	_, err = s.Ledger.UpdateWallet(ctx, req.UserID, func(w *models.Wallet, _ store.LedgerView) (*store.Mutation, error) {
		w.WithdrawableBalance = w.WithdrawableBalance.Add(req.Amount)
		w.TotalBalance = w.TotalBalance.Add(req.Amount)
		req.Status = models.WithdrawalRejected
		return &store.Mutation{Requests: []*models.WithdrawalRequest{req}}, nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.notify(ctx, req.UserID, "wallet", fmt.Sprintf("withdrawal of %s rejected, funds returned", req.Amount.StringFixed(2)))
	return req, nil
}

// WithdrawalRequests lists the user's requests, newest first.
func (s *WalletService) WithdrawalRequests(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	return s.Ledger.WithdrawalRequestsByUser(ctx, userID)
}

func (s *WalletService) checkWithdrawalCooldown(userID string, view store.LedgerView) error {
	last, err := view.LastSuccessfulByKind(userID, models.KindWithdrawal)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if time.Since(last.CreatedAt) < s.WithdrawalCooldown {
		return ErrRateLimited
	}
	return nil
}

func (s *WalletService) ownerOf(ctx context.Context, entry *models.Transaction) string {
	// Best effort: a lookup failure only costs a notice.
	w, err := s.Ledger.WalletByID(ctx, entry.WalletID)
	if err != nil {
		return ""
	}
	return w.UserID
}

func (s *WalletService) notify(ctx context.Context, userID, kind, message string) {
	if s.Notifier == nil || userID == "" {
		return
	}
	if err := s.Notifier.Notify(ctx, userID, kind, message); err != nil {
		log.Printf("notification failed for user %s: %v", userID, err)
	}
}

// applyMoney mutates the wallet's money balances for one ledger kind.
func applyMoney(w *models.Wallet, amount decimal.Decimal, kind models.TransactionKind) error {
	switch kind {
	case models.KindWithdrawal, models.KindEntryFee:
		if w.WithdrawableBalance.LessThan(amount) {
			return store.ErrInsufficientFunds
		}
		if kind == models.KindWithdrawal && w.TotalBalance.LessThan(amount) {
			return store.ErrInsufficientFunds
		}
		w.WithdrawableBalance = w.WithdrawableBalance.Sub(amount)
		w.TotalBalance = w.TotalBalance.Sub(amount)
	case models.KindDeposit, models.KindPrize:
		w.TotalBalance = w.TotalBalance.Add(amount)
		w.WithdrawableBalance = w.WithdrawableBalance.Add(amount)
	default:
		return fmt.Errorf("unrecognized ledger kind %q", kind)
	}
	return nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}
