package application

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

// creditWallet funnels every balance mutation through the ledger repository
// so the wallet write and its transaction row land as one unit.
func (s *Service) creditWallet(ctx context.Context, entry ports.LedgerEntry) (domain.Transaction, error) {
	if err := domain.ValidateLedgerEntry(entry.UserID, entry.WalletType, entry.Type, entry.Amount); err != nil {
		return domain.Transaction{}, err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.nowFn()
	}
	return s.ledger.Apply(ctx, entry)
}

func (s *Service) ListWallets(ctx context.Context, actor Actor, userID string) ([]domain.Wallet, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if !actor.isOperator() && actor.SubjectID != userID {
		return nil, domain.ErrForbidden
	}
	return s.ledger.ListWallets(ctx, userID)
}

func (s *Service) ListTransactions(ctx context.Context, actor Actor, filter ports.TransactionFilter) (TransactionHistoryOutput, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return TransactionHistoryOutput{}, domain.ErrUnauthorized
	}
	if !actor.isOperator() {
		filter.UserID = actor.SubjectID
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	items, total, err := s.ledger.ListTransactions(ctx, filter)
	if err != nil {
		return TransactionHistoryOutput{}, err
	}
	return TransactionHistoryOutput{Items: items, Total: total}, nil
}

// RequestWithdrawal earmarks available balance for payout. The funds stay on
// the wallet until an operator confirms or rejects the request.
func (s *Service) RequestWithdrawal(ctx context.Context, actor Actor, userID string, walletType domain.WalletType, amount float64) (domain.Withdrawal, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Withdrawal{}, domain.ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if !actor.isOperator() && actor.SubjectID != userID {
		return domain.Withdrawal{}, domain.ErrForbidden
	}
	if err := domain.ValidateWithdrawalInput(userID, walletType, amount); err != nil {
		return domain.Withdrawal{}, err
	}

	wallet, err := s.ledger.GetWallet(ctx, userID, walletType)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if wallet.Available() < amount {
		return domain.Withdrawal{}, domain.ErrInsufficientBalance
	}
	if err := s.ledger.Reserve(ctx, userID, walletType, amount); err != nil {
		return domain.Withdrawal{}, err
	}

	now := s.nowFn()
	withdrawal := domain.Withdrawal{
		WithdrawalID: uuid.NewString(),
		UserID:       userID,
		WalletType:   walletType,
		Amount:       amount,
		Status:       domain.WithdrawalStatusQueued,
		QueuedAt:     now,
	}
	if err := s.withdrawals.Save(ctx, withdrawal); err != nil {
		// Reservation must not outlive a failed request record.
		_ = s.ledger.Release(ctx, userID, walletType, amount)
		return domain.Withdrawal{}, err
	}
	if err := s.audit.Append(ctx, ports.AuditRecord{
		LogID:     uuid.NewString(),
		UserID:    userID,
		Action:    "withdrawal_requested",
		Amount:    amount,
		CreatedAt: now,
		Metadata:  map[string]string{"withdrawal_id": withdrawal.WithdrawalID, "wallet_type": string(walletType)},
	}); err != nil {
		return domain.Withdrawal{}, err
	}
	return withdrawal, nil
}

// ConfirmWithdrawal debits the reserved amount and closes the request.
func (s *Service) ConfirmWithdrawal(ctx context.Context, actor Actor, withdrawalID string) (domain.Withdrawal, error) {
	if !actor.isOperator() {
		return domain.Withdrawal{}, domain.ErrForbidden
	}
	withdrawal, err := s.withdrawals.Get(ctx, strings.TrimSpace(withdrawalID))
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if withdrawal.Status != domain.WithdrawalStatusQueued {
		return domain.Withdrawal{}, domain.ErrConflict
	}

	if err := s.ledger.Release(ctx, withdrawal.UserID, withdrawal.WalletType, withdrawal.Amount); err != nil {
		return domain.Withdrawal{}, err
	}
	if _, err := s.creditWallet(ctx, ports.LedgerEntry{
		UserID:     withdrawal.UserID,
		WalletType: withdrawal.WalletType,
		Type:       domain.TransactionTypeDebit,
		Amount:     withdrawal.Amount,
		Reference:  withdrawal.WithdrawalID,
		Meta:       map[string]string{"reason": "withdrawal_confirmed"},
	}); err != nil {
		return domain.Withdrawal{}, err
	}

	now := s.nowFn()
	withdrawal.Status = domain.WithdrawalStatusConfirmed
	withdrawal.ResolvedAt = &now
	if err := s.withdrawals.Save(ctx, withdrawal); err != nil {
		return domain.Withdrawal{}, err
	}
	return withdrawal, nil
}

// RejectWithdrawal releases the reservation without touching the balance.
func (s *Service) RejectWithdrawal(ctx context.Context, actor Actor, withdrawalID string) (domain.Withdrawal, error) {
	if !actor.isOperator() {
		return domain.Withdrawal{}, domain.ErrForbidden
	}
	withdrawal, err := s.withdrawals.Get(ctx, strings.TrimSpace(withdrawalID))
	if err != nil {
		return domain.Withdrawal{}, err
	}
	if withdrawal.Status != domain.WithdrawalStatusQueued {
		return domain.Withdrawal{}, domain.ErrConflict
	}
	if err := s.ledger.Release(ctx, withdrawal.UserID, withdrawal.WalletType, withdrawal.Amount); err != nil {
		return domain.Withdrawal{}, err
	}
	now := s.nowFn()
	withdrawal.Status = domain.WithdrawalStatusRejected
	withdrawal.ResolvedAt = &now
	if err := s.withdrawals.Save(ctx, withdrawal); err != nil {
		return domain.Withdrawal{}, err
	}
	return withdrawal, nil
}
