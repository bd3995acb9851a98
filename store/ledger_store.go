package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"game-tournament-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerStore is the Postgres-backed ledger store. The database must be
// opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type GormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (s *GormLedgerStore) CreateWallet(ctx context.Context, w *models.Wallet) error {
	return translate(s.db.WithContext(ctx).Create(w).Error)
}

func (s *GormLedgerStore) WalletByUser(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *GormLedgerStore) WalletByID(ctx context.Context, id string) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *GormLedgerStore) UpdateWallet(ctx context.Context, userID string, fn WalletUpdateFn) (*Mutation, error) {
	var mut *Mutation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := forUpdate(tx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
			return translate(err)
		}
		m, err := fn(&wallet, &gormLedgerView{tx: tx})
		if err != nil {
			return err
		}
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}
		if err := persistMutation(tx, m); err != nil {
			return err
		}
		mut = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mut, nil
}

func (s *GormLedgerStore) UpdateWallets(ctx context.Context, userIDs []string, fn WalletsUpdateFn) (*Mutation, error) {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)

	var mut *Mutation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallets []models.Wallet
		// Ascending user id keeps the row-lock acquisition order stable
		// across concurrent multi-wallet updates.
		if err := forUpdate(tx).Where("user_id IN ?", ids).Order("user_id").Find(&wallets).Error; err != nil {
			return err
		}
		if len(wallets) != len(ids) {
			return ErrNotFound
		}
		refs := make([]*models.Wallet, len(wallets))
		for i := range wallets {
			refs[i] = &wallets[i]
		}
		m, err := fn(refs, &gormLedgerView{tx: tx})
		if err != nil {
			return err
		}
		for _, w := range refs {
			if err := tx.Save(w).Error; err != nil {
				return err
			}
		}
		if err := persistMutation(tx, m); err != nil {
			return err
		}
		mut = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mut, nil
}

func persistMutation(tx *gorm.DB, m *Mutation) error {
	if m == nil {
		return nil
	}
	for _, entry := range m.Entries {
		if err := tx.Create(entry).Error; err != nil {
			return translate(err)
		}
	}
	for _, req := range m.Requests {
		if err := tx.Save(req).Error; err != nil {
			return err
		}
	}
	return nil
}

type gormLedgerView struct {
	tx *gorm.DB
}

func (v *gormLedgerView) LastSuccessfulByKind(userID string, kind models.TransactionKind) (*models.Transaction, error) {
	var t models.Transaction
	walletID := v.tx.Model(&models.Wallet{}).Select("id").Where("user_id = ?", userID)
	err := v.tx.
		Where("wallet_id IN (?) AND kind = ? AND status = ?", walletID, kind, models.TxSuccess).
		Order("created_at DESC").
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (v *gormLedgerView) HasPendingWithdrawal(userID string) (bool, error) {
	var count int64
	err := v.tx.Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalPending).
		Count(&count).Error
	return count > 0, err
}

func (s *GormLedgerStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormLedgerStore) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	return translate(s.db.WithContext(ctx).Save(t).Error)
}

func (s *GormLedgerStore) TransactionByOrder(ctx context.Context, orderID, trackID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND track_id = ?", orderID, trackID).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormLedgerStore) TransactionsByWallet(ctx context.Context, walletID string, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	q := s.db.WithContext(ctx).Where("wallet_id = ?", walletID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (s *GormLedgerStore) PendingDeposits(ctx context.Context, olderThan time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Where("status = ? AND order_id IS NOT NULL AND created_at < ?", models.TxPending, olderThan).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (s *GormLedgerStore) SettleDeposit(ctx context.Context, orderID, trackID, refNumber string) (*models.Transaction, bool, error) {
	var txn models.Transaction
	credited := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("order_id = ? AND track_id = ?", orderID, trackID).First(&txn).Error; err != nil {
			return translate(err)
		}
		// Guards the race between a browser redirect and the gateway's
		// server-to-server callback verifying the same order.
		if txn.Status != models.TxPending {
			return nil
		}
		var wallet models.Wallet
		if err := forUpdate(tx).Where("id = ?", txn.WalletID).First(&wallet).Error; err != nil {
			return translate(err)
		}
		wallet.TotalBalance = wallet.TotalBalance.Add(txn.Amount)
		wallet.WithdrawableBalance = wallet.WithdrawableBalance.Add(txn.Amount)
		txn.Status = models.TxSuccess
		txn.RefNumber = refNumber
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}
		if err := tx.Save(&txn).Error; err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &txn, credited, nil
}

func (s *GormLedgerStore) WithdrawalRequestByID(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	var wr models.WithdrawalRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&wr).Error; err != nil {
		return nil, translate(err)
	}
	return &wr, nil
}

func (s *GormLedgerStore) WithdrawalRequestsByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	var reqs []models.WithdrawalRequest
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}
