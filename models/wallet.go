package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind enumerates every ledger entry kind the wallet accepts.
type TransactionKind string

const (
	KindDeposit     TransactionKind = "deposit"
	KindWithdrawal  TransactionKind = "withdrawal"
	KindEntryFee    TransactionKind = "entry_fee"
	KindPrize       TransactionKind = "prize"
	KindTokenSpent  TransactionKind = "token_spent"
	KindTokenEarned TransactionKind = "token_earned"
)

// IsDebit reports whether the kind removes money from the wallet.
func (k TransactionKind) IsDebit() bool {
	return k == KindWithdrawal || k == KindEntryFee
}

// IsToken reports whether the kind operates on the token balance.
func (k TransactionKind) IsToken() bool {
	return k == KindTokenSpent || k == KindTokenEarned
}

type TransactionStatus string

const (
	TxPending TransactionStatus = "pending"
	TxSuccess TransactionStatus = "success"
	TxFailed  TransactionStatus = "failed"
)

// Wallet holds a user's balances. One wallet per user, created by the user
// sync worker the first time the user is mirrored; only the wallet service
// mutates it, always under a row lock.
//
// WithdrawableBalance never exceeds TotalBalance. TokenBalance is a separate
// currency and never converts to the money balances.
type Wallet struct {
	ID                  string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID              string          `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	TotalBalance        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_balance"`
	WithdrawableBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"withdrawable_balance"`
	TokenBalance        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"token_balance"`
	CardNumber          string          `gorm:"type:varchar(16)" json:"card_number,omitempty"`
	ShebaNumber         string          `gorm:"type:varchar(26)" json:"sheba_number,omitempty"`
	CreatedAt           time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// Transaction is one immutable ledger entry. Entries are written in the same
// atomic unit as the balance change they describe, so the sum of success
// entries always reconciles to the wallet balance.
//
// OrderID and TrackID are set only for gateway-mediated deposits; the pair is
// the idempotency key for reconciliation. RefNumber is the gateway settlement
// reference, set only when the deposit succeeds.
type Transaction struct {
	ID          string            `gorm:"primaryKey;type:uuid" json:"id"`
	WalletID    string            `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Amount      decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Kind        TransactionKind   `gorm:"type:varchar(20);not null" json:"kind"`
	Status      TransactionStatus `gorm:"type:varchar(10);not null;default:'pending';index" json:"status"`
	OrderID     *string           `gorm:"uniqueIndex" json:"order_id,omitempty"`
	TrackID     *string           `gorm:"uniqueIndex" json:"track_id,omitempty"`
	RefNumber   string            `json:"ref_number,omitempty"`
	Description string            `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// Signed returns the amount with the sign the entry applies to TotalBalance.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Kind.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// WithdrawalRequest is a user's pending ask to move withdrawable funds out to
// an external account. The amount is held (removed from both balances) the
// moment the request is created, so it cannot be spent while awaiting review.
type WithdrawalRequest struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount      decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	CardNumber  string           `gorm:"type:varchar(16)" json:"card_number"`
	ShebaNumber string           `gorm:"type:varchar(26)" json:"sheba_number"`
	Status      WithdrawalStatus `gorm:"type:varchar(10);not null;default:'pending';index" json:"status"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}
