package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

// Apply moves the wallet balance and appends the transaction row in one
// database transaction. The wallet row is locked for the duration so
// concurrent credits to the same wallet serialize.
func (r *ledgerRepository) Apply(ctx context.Context, entry ports.LedgerEntry) (domain.Transaction, error) {
	var result domain.Transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := applyLedgerEntry(tx, entry)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return result, nil
}

// applyLedgerEntry runs inside an open transaction so callers can bundle the
// wallet movement with other writes that must land together.
func applyLedgerEntry(tx *gorm.DB, entry ports.LedgerEntry) (domain.Transaction, error) {
	var wallet walletModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND type = ?", entry.UserID, string(entry.WalletType)).
		Take(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = walletModel{
			UserID:   entry.UserID,
			Type:     string(entry.WalletType),
			Currency: "USD",
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return domain.Transaction{}, err
		}
	} else if err != nil {
		return domain.Transaction{}, err
	}

	before := wallet.Balance
	var after float64
	switch entry.Type {
	case domain.TransactionTypeCredit:
		after = domain.RoundCurrency(before+entry.Amount, 4)
	case domain.TransactionTypeDebit:
		after = domain.RoundCurrency(before-entry.Amount, 4)
		if after < 0 || after < wallet.Reserved {
			return domain.Transaction{}, domain.ErrInsufficientBalance
		}
	default:
		return domain.Transaction{}, domain.ErrInvalidInput
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	txn := transactionModel{
		TransactionID: uuid.NewString(),
		UserID:        entry.UserID,
		WalletType:    string(entry.WalletType),
		Type:          string(entry.Type),
		Amount:        entry.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        string(domain.TransactionStatusCompleted),
		Reference:     entry.Reference,
		Meta:          marshalMeta(entry.Meta),
		CreatedAt:     createdAt,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Model(&walletModel{}).
		Where("user_id = ? AND type = ?", entry.UserID, string(entry.WalletType)).
		Updates(map[string]any{
			"balance":    after,
			"updated_at": createdAt,
		}).Error; err != nil {
		return domain.Transaction{}, err
	}
	return toDomainTransaction(txn), nil
}

func (r *ledgerRepository) GetWallet(ctx context.Context, userID string, walletType domain.WalletType) (domain.Wallet, error) {
	var rec walletModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, string(walletType)).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Wallet{UserID: userID, Type: walletType, Currency: "USD"}, nil
		}
		return domain.Wallet{}, err
	}
	return toDomainWallet(rec), nil
}

func (r *ledgerRepository) ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error) {
	var recs []walletModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("type ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Wallet, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainWallet(rec))
	}
	return out, nil
}

func (r *ledgerRepository) Reserve(ctx context.Context, userID string, walletType domain.WalletType, amount float64) error {
	res := r.db.WithContext(ctx).
		Model(&walletModel{}).
		Where("user_id = ? AND type = ? AND round((balance - reserved)::numeric, 4) >= ?", userID, string(walletType), amount).
		Updates(map[string]any{
			"reserved":   gorm.Expr("round((reserved + ?)::numeric, 4)", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (r *ledgerRepository) Release(ctx context.Context, userID string, walletType domain.WalletType, amount float64) error {
	res := r.db.WithContext(ctx).
		Model(&walletModel{}).
		Where("user_id = ? AND type = ?", userID, string(walletType)).
		Updates(map[string]any{
			"reserved":   gorm.Expr("greatest(round((reserved - ?)::numeric, 4), 0)", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]domain.Transaction, int, error) {
	q := r.db.WithContext(ctx).Model(&transactionModel{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.WalletType != "" {
		q = q.Where("wallet_type = ?", string(filter.WalletType))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	var recs []transactionModel
	if err := q.Order("created_at ASC, transaction_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainTransaction(rec))
	}
	return out, int(total), nil
}

type withdrawalRepository struct {
	db *gorm.DB
}

func (r *withdrawalRepository) Save(ctx context.Context, withdrawal domain.Withdrawal) error {
	rec := withdrawalModel{
		WithdrawalID: withdrawal.WithdrawalID,
		UserID:       withdrawal.UserID,
		WalletType:   string(withdrawal.WalletType),
		Amount:       withdrawal.Amount,
		Status:       string(withdrawal.Status),
		QueuedAt:     withdrawal.QueuedAt,
		ResolvedAt:   withdrawal.ResolvedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "withdrawal_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

func (r *withdrawalRepository) Get(ctx context.Context, withdrawalID string) (domain.Withdrawal, error) {
	var rec withdrawalModel
	if err := r.db.WithContext(ctx).Where("withdrawal_id = ?", withdrawalID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Withdrawal{}, domain.ErrNotFound
		}
		return domain.Withdrawal{}, err
	}
	return toDomainWithdrawal(rec), nil
}
