package ports

import (
	"context"
	"time"

	"github.com/mayanksahu17/binary-system-sub003/internal/contracts"
	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
)

type NodeRepository interface {
	Create(ctx context.Context, node domain.BinaryNode) error
	Get(ctx context.Context, userID string) (domain.BinaryNode, error)
	// Update persists the node iff the stored version matches node.Version,
	// then bumps it. Returns domain.ErrConflict on a lost race.
	Update(ctx context.Context, node domain.BinaryNode) error
	ListAll(ctx context.Context) ([]domain.BinaryNode, error)
	// FlushVolumes zeroes business and carry accumulators on every node.
	FlushVolumes(ctx context.Context) error
}

// LegCredit is one ancestor's share of a propagated investment.
type LegCredit struct {
	UserID        string
	Leg           domain.Leg
	Amount        float64
	RootAggregate bool
}

// PropagationUnit is the all-or-nothing write set for one investment: every
// ancestor leg credit plus the is_binary_updated flip. Adapters apply it in
// a single lock scope or database transaction; a unit whose investment is
// already flagged fails with domain.ErrAlreadyPropagated and writes nothing.
type PropagationUnit struct {
	InvestmentID string
	Credits      []LegCredit
}

type PropagationApplier interface {
	ApplyPropagation(ctx context.Context, unit PropagationUnit) error
}

// SettlementUnit is the all-or-nothing write set for one user's binary
// settlement: the consumed node state (business zeroed, new carries), the
// bonus wallet credit (nil when nothing is payable), and the settlement
// record that fences the cycle. Node carries the version the caller read;
// adapters guard on it.
type SettlementUnit struct {
	Node       domain.BinaryNode
	Credit     *LedgerEntry
	Settlement domain.Settlement
}

type SettlementApplier interface {
	// ApplySettlement commits the unit in a single lock scope or database
	// transaction and returns the bonus transaction row, zero-valued when
	// no credit was due. A failure writes nothing, leaving the node volumes
	// intact for a clean retry.
	ApplySettlement(ctx context.Context, unit SettlementUnit) (domain.Transaction, error)
}

type InvestmentRepository interface {
	Save(ctx context.Context, investment domain.Investment) error
	Get(ctx context.Context, investmentID string) (domain.Investment, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Investment, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.Investment, error)
	MarkReferralPaid(ctx context.Context, investmentID string) error
	MarkExpired(ctx context.Context, investmentID string, at time.Time) error
}

// LedgerEntry is one wallet mutation request. The repository applies the
// balance change and appends the transaction row atomically; a failure leaves
// the wallet untouched.
type LedgerEntry struct {
	UserID     string
	WalletType domain.WalletType
	Type       domain.TransactionType
	Amount     float64
	Reference  string
	Meta       map[string]string
	CreatedAt  time.Time
}

type TransactionFilter struct {
	UserID     string
	WalletType domain.WalletType
	Limit      int
	Offset     int
}

type LedgerRepository interface {
	Apply(ctx context.Context, entry LedgerEntry) (domain.Transaction, error)
	GetWallet(ctx context.Context, userID string, walletType domain.WalletType) (domain.Wallet, error)
	ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error)
	// Reserve earmarks part of the balance for a pending withdrawal;
	// Release returns it. Neither produces a transaction row since the
	// balance itself does not move.
	Reserve(ctx context.Context, userID string, walletType domain.WalletType, amount float64) error
	Release(ctx context.Context, userID string, walletType domain.WalletType, amount float64) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, int, error)
}

type WithdrawalRepository interface {
	Save(ctx context.Context, withdrawal domain.Withdrawal) error
	Get(ctx context.Context, withdrawalID string) (domain.Withdrawal, error)
}

type SettlementRepository interface {
	Save(ctx context.Context, settlement domain.Settlement) error
	GetByUserAndDate(ctx context.Context, userID, cycleDate string) (domain.Settlement, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Settlement, int, error)
}

// BatchRun is the persisted day fence and report for one calculation sweep.
type BatchRun struct {
	BatchDate      string
	UsersProcessed int
	BonusesPaid    float64
	ROIAccrued     float64
	ReferralsPaid  float64
	Skipped        int
	Failures       []BatchFailure
	StartedAt      time.Time
	CompletedAt    time.Time
}

type BatchFailure struct {
	UserID string
	Reason string
}

type BatchRunRepository interface {
	Get(ctx context.Context, batchDate string) (*BatchRun, error)
	Save(ctx context.Context, run BatchRun) error
}

// AccrualRepository fences ROI accrual per investment per calendar day.
type AccrualRepository interface {
	HasAccrued(ctx context.Context, investmentID, cycleDate string) (bool, error)
	MarkAccrued(ctx context.Context, investmentID, cycleDate string, amount float64) error
}

type AuditRecord struct {
	LogID     string
	UserID    string
	Action    string
	Amount    float64
	CreatedAt time.Time
	Metadata  map[string]string
}

type AuditLogRepository interface {
	Append(ctx context.Context, record AuditRecord) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type OutboxRecord struct {
	RecordID   string
	EventClass string
	Envelope   contracts.EventEnvelope
	CreatedAt  time.Time
	SentAt     *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
}
