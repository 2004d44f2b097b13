package domain

import (
	"strings"
	"time"
)

type WalletType string

const (
	WalletTypeROI        WalletType = "roi"
	WalletTypeBinary     WalletType = "binary"
	WalletTypeReferral   WalletType = "referral"
	WalletTypeWithdrawal WalletType = "withdrawal"
	WalletTypeInvestment WalletType = "investment"
	WalletTypeInterest   WalletType = "interest"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type Wallet struct {
	UserID    string     `json:"user_id"`
	Type      WalletType `json:"type"`
	Balance   float64    `json:"balance"`
	Reserved  float64    `json:"reserved"`
	Currency  string     `json:"currency"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Available is the withdrawable portion: balance - reserved.
func (w Wallet) Available() float64 {
	return RoundCurrency(w.Balance-w.Reserved, 4)
}

// Transaction is an append-only ledger row. Every wallet balance mutation
// produces exactly one row; BalanceAfter is derived from BalanceBefore and
// never written independently.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	UserID        string            `json:"user_id"`
	WalletType    WalletType        `json:"wallet_type"`
	Type          TransactionType   `json:"type"`
	Amount        float64           `json:"amount"`
	BalanceBefore float64           `json:"balance_before"`
	BalanceAfter  float64           `json:"balance_after"`
	Status        TransactionStatus `json:"status"`
	Reference     string            `json:"reference,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type WithdrawalStatus string

const (
	WithdrawalStatusQueued    WithdrawalStatus = "queued"
	WithdrawalStatusConfirmed WithdrawalStatus = "confirmed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	WithdrawalID string           `json:"withdrawal_id"`
	UserID       string           `json:"user_id"`
	WalletType   WalletType       `json:"wallet_type"`
	Amount       float64          `json:"amount"`
	Status       WithdrawalStatus `json:"status"`
	QueuedAt     time.Time        `json:"queued_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
}

func ValidateWalletType(walletType WalletType) error {
	switch walletType {
	case WalletTypeROI, WalletTypeBinary, WalletTypeReferral,
		WalletTypeWithdrawal, WalletTypeInvestment, WalletTypeInterest:
		return nil
	default:
		return ErrInvalidInput
	}
}

func ValidateWithdrawalInput(userID string, walletType WalletType, amount float64) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ValidateWalletType(walletType); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidInput
	}
	return nil
}

func ValidateLedgerEntry(userID string, walletType WalletType, txType TransactionType, amount float64) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	if err := ValidateWalletType(walletType); err != nil {
		return err
	}
	switch txType {
	case TransactionTypeCredit, TransactionTypeDebit:
	default:
		return ErrInvalidInput
	}
	if amount <= 0 {
		return ErrInvalidInput
	}
	return nil
}
