// Package memory provides the mutex-guarded in-process stores used by the
// default runtime and the unit tests. The postgres adapter implements the
// same ports against a real database.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

type Repositories struct {
	Nodes        *NodeRepository
	Propagations *PropagationApplier
	Investments  *InvestmentRepository
	Ledger       *LedgerRepository
	Withdrawals  *WithdrawalRepository
	Settlements  *SettlementRepository
	Settler      *SettlementApplier
	BatchRuns    *BatchRunRepository
	Accruals     *AccrualRepository
	Audit        *AuditLogRepository
	Idempotency  *IdempotencyRepository
	EventDedup   *EventDedupRepository
	Outbox       *OutboxRepository
}

func NewRepositories() *Repositories {
	// Nodes and investments share one lock so a propagation unit (ancestor
	// credits + fencing-flag flip) commits or fails as a whole.
	tree := &treeStore{
		nodes:       make(map[string]domain.BinaryNode),
		investments: make(map[string]domain.Investment),
	}
	ledger := &LedgerRepository{
		wallets: make(map[string]domain.Wallet),
	}
	settlements := &SettlementRepository{
		byID:   make(map[string]domain.Settlement),
		byUser: make(map[string][]string),
	}
	return &Repositories{
		Nodes:        &NodeRepository{store: tree},
		Propagations: &PropagationApplier{store: tree},
		Investments:  &InvestmentRepository{store: tree},
		Ledger:       ledger,
		Withdrawals: &WithdrawalRepository{
			records: make(map[string]domain.Withdrawal),
		},
		Settlements: settlements,
		Settler: &SettlementApplier{
			tree:        tree,
			ledger:      ledger,
			settlements: settlements,
		},
		BatchRuns: &BatchRunRepository{
			runs: make(map[string]ports.BatchRun),
		},
		Accruals: &AccrualRepository{
			records: make(map[string]float64),
		},
		Audit: &AuditLogRepository{
			records: make([]ports.AuditRecord, 0, 128),
		},
		Idempotency: &IdempotencyRepository{
			records: make(map[string]ports.IdempotencyRecord),
		},
		EventDedup: &EventDedupRepository{
			records: make(map[string]dedupRecord),
		},
		Outbox: &OutboxRepository{
			records: make(map[string]ports.OutboxRecord),
		},
	}
}

type treeStore struct {
	mu          sync.RWMutex
	nodes       map[string]domain.BinaryNode
	investments map[string]domain.Investment
	nodeOrder   []string
}

type NodeRepository struct {
	store *treeStore
}

func (r *NodeRepository) Create(_ context.Context, node domain.BinaryNode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.nodes[node.UserID]; exists {
		return domain.ErrConflict
	}
	node.Version = 1
	r.store.nodes[node.UserID] = node
	r.store.nodeOrder = append(r.store.nodeOrder, node.UserID)
	return nil
}

func (r *NodeRepository) Get(_ context.Context, userID string) (domain.BinaryNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	node, ok := r.store.nodes[userID]
	if !ok {
		return domain.BinaryNode{}, domain.ErrNodeNotFound
	}
	return node, nil
}

func (r *NodeRepository) Update(_ context.Context, node domain.BinaryNode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.nodes[node.UserID]
	if !ok {
		return domain.ErrNodeNotFound
	}
	if stored.Version != node.Version {
		return domain.ErrConflict
	}
	node.Version++
	r.store.nodes[node.UserID] = node
	return nil
}

func (r *NodeRepository) ListAll(_ context.Context) ([]domain.BinaryNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.BinaryNode, 0, len(r.store.nodeOrder))
	for _, id := range r.store.nodeOrder {
		out = append(out, r.store.nodes[id])
	}
	return out, nil
}

func (r *NodeRepository) FlushVolumes(_ context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, node := range r.store.nodes {
		node.LeftBusiness = 0
		node.RightBusiness = 0
		node.LeftCarry = 0
		node.RightCarry = 0
		node.TotalVolume = 0
		node.Version++
		r.store.nodes[id] = node
	}
	return nil
}

type PropagationApplier struct {
	store *treeStore
}

// ApplyPropagation commits every ancestor credit and the is_binary_updated
// flip under one lock acquisition: concurrent propagations to a shared
// ancestor serialize here, and a crashed retry hits the flag check and
// leaves the volume untouched.
func (a *PropagationApplier) ApplyPropagation(_ context.Context, unit ports.PropagationUnit) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	investment, ok := a.store.investments[unit.InvestmentID]
	if !ok {
		return domain.ErrNotFound
	}
	if investment.IsBinaryUpdated {
		return domain.ErrAlreadyPropagated
	}
	for _, credit := range unit.Credits {
		if _, ok := a.store.nodes[credit.UserID]; !ok {
			return domain.ErrNodeNotFound
		}
	}

	now := time.Now().UTC()
	for _, credit := range unit.Credits {
		node := a.store.nodes[credit.UserID]
		if credit.RootAggregate {
			node.TotalVolume = domain.RoundCurrency(node.TotalVolume+credit.Amount, 4)
		} else if credit.Leg == domain.LegLeft {
			node.LeftBusiness = domain.RoundCurrency(node.LeftBusiness+credit.Amount, 4)
		} else {
			node.RightBusiness = domain.RoundCurrency(node.RightBusiness+credit.Amount, 4)
		}
		node.Version++
		node.UpdatedAt = now
		a.store.nodes[credit.UserID] = node
	}
	investment.IsBinaryUpdated = true
	investment.UpdatedAt = now
	a.store.investments[unit.InvestmentID] = investment
	return nil
}

type InvestmentRepository struct {
	store *treeStore
}

func (r *InvestmentRepository) Save(_ context.Context, investment domain.Investment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.investments[investment.InvestmentID] = investment
	return nil
}

func (r *InvestmentRepository) Get(_ context.Context, investmentID string) (domain.Investment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	investment, ok := r.store.investments[investmentID]
	if !ok {
		return domain.Investment{}, domain.ErrNotFound
	}
	return investment, nil
}

func (r *InvestmentRepository) ListByUser(_ context.Context, userID string) ([]domain.Investment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Investment, 0, 8)
	for _, investment := range r.store.investments {
		if investment.UserID == userID {
			out = append(out, investment)
		}
	}
	slices.SortFunc(out, func(a, b domain.Investment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// ListActive returns status-active investments. A zero now skips the expiry
// filter so callers can sweep lapsed records.
func (r *InvestmentRepository) ListActive(_ context.Context, now time.Time) ([]domain.Investment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Investment, 0, len(r.store.investments))
	for _, investment := range r.store.investments {
		if investment.Status != domain.InvestmentStatusActive {
			continue
		}
		if !now.IsZero() && !investment.IsActive(now) {
			continue
		}
		out = append(out, investment)
	}
	slices.SortFunc(out, func(a, b domain.Investment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *InvestmentRepository) MarkReferralPaid(_ context.Context, investmentID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	investment, ok := r.store.investments[investmentID]
	if !ok {
		return domain.ErrNotFound
	}
	investment.IsReferralPaid = true
	investment.UpdatedAt = time.Now().UTC()
	r.store.investments[investmentID] = investment
	return nil
}

func (r *InvestmentRepository) MarkExpired(_ context.Context, investmentID string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	investment, ok := r.store.investments[investmentID]
	if !ok {
		return domain.ErrNotFound
	}
	investment.Status = domain.InvestmentStatusExpired
	investment.UpdatedAt = at
	r.store.investments[investmentID] = investment
	return nil
}

type LedgerRepository struct {
	mu           sync.RWMutex
	wallets      map[string]domain.Wallet
	transactions []domain.Transaction
	currency     string
}

func walletKey(userID string, walletType domain.WalletType) string {
	return userID + "|" + string(walletType)
}

// Apply mutates the wallet and appends the transaction row under one lock;
// validation failures happen before any write so the wallet never moves
// without its row.
func (r *LedgerRepository) Apply(_ context.Context, entry ports.LedgerEntry) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := walletKey(entry.UserID, entry.WalletType)
	wallet, ok := r.wallets[key]
	if !ok {
		wallet = domain.Wallet{UserID: entry.UserID, Type: entry.WalletType, Currency: r.currencyOrDefault()}
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
	txn := domain.Transaction{
		TransactionID: uuid.NewString(),
		UserID:        entry.UserID,
		WalletType:    entry.WalletType,
		Type:          entry.Type,
		Amount:        entry.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        domain.TransactionStatusCompleted,
		Reference:     entry.Reference,
		Meta:          entry.Meta,
		CreatedAt:     createdAt,
	}
	wallet.Balance = after
	wallet.UpdatedAt = createdAt
	r.wallets[key] = wallet
	r.transactions = append(r.transactions, txn)
	return txn, nil
}

func (r *LedgerRepository) GetWallet(_ context.Context, userID string, walletType domain.WalletType) (domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.wallets[walletKey(userID, walletType)]
	if !ok {
		return domain.Wallet{UserID: userID, Type: walletType, Currency: r.currencyOrDefault()}, nil
	}
	return wallet, nil
}

func (r *LedgerRepository) ListWallets(_ context.Context, userID string) ([]domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Wallet, 0, 6)
	for _, wallet := range r.wallets {
		if wallet.UserID == userID {
			out = append(out, wallet)
		}
	}
	slices.SortFunc(out, func(a, b domain.Wallet) int {
		if a.Type < b.Type {
			return -1
		}
		if a.Type > b.Type {
			return 1
		}
		return 0
	})
	return out, nil
}

func (r *LedgerRepository) Reserve(_ context.Context, userID string, walletType domain.WalletType, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := walletKey(userID, walletType)
	wallet, ok := r.wallets[key]
	if !ok {
		return domain.ErrInsufficientBalance
	}
	if wallet.Available() < amount {
		return domain.ErrInsufficientBalance
	}
	wallet.Reserved = domain.RoundCurrency(wallet.Reserved+amount, 4)
	wallet.UpdatedAt = time.Now().UTC()
	r.wallets[key] = wallet
	return nil
}

func (r *LedgerRepository) Release(_ context.Context, userID string, walletType domain.WalletType, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := walletKey(userID, walletType)
	wallet, ok := r.wallets[key]
	if !ok {
		return domain.ErrNotFound
	}
	released := domain.RoundCurrency(wallet.Reserved-amount, 4)
	if released < 0 {
		released = 0
	}
	wallet.Reserved = released
	wallet.UpdatedAt = time.Now().UTC()
	r.wallets[key] = wallet
	return nil
}

func (r *LedgerRepository) ListTransactions(_ context.Context, filter ports.TransactionFilter) ([]domain.Transaction, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]domain.Transaction, 0, len(r.transactions))
	for _, txn := range r.transactions {
		if filter.UserID != "" && txn.UserID != filter.UserID {
			continue
		}
		if filter.WalletType != "" && txn.WalletType != filter.WalletType {
			continue
		}
		items = append(items, txn)
	}
	total := len(items)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []domain.Transaction{}, total, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]domain.Transaction, end-offset)
	copy(out, items[offset:end])
	return out, total, nil
}

func (r *LedgerRepository) currencyOrDefault() string {
	if r.currency == "" {
		return "USD"
	}
	return r.currency
}

type WithdrawalRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Withdrawal
}

func (r *WithdrawalRepository) Save(_ context.Context, withdrawal domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[withdrawal.WithdrawalID] = withdrawal
	return nil
}

func (r *WithdrawalRepository) Get(_ context.Context, withdrawalID string) (domain.Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	withdrawal, ok := r.records[withdrawalID]
	if !ok {
		return domain.Withdrawal{}, domain.ErrNotFound
	}
	return withdrawal, nil
}

type SettlementRepository struct {
	mu     sync.RWMutex
	byID   map[string]domain.Settlement
	byUser map[string][]string
}

func (r *SettlementRepository) Save(_ context.Context, settlement domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[settlement.SettlementID]; !exists {
		r.byUser[settlement.UserID] = append(r.byUser[settlement.UserID], settlement.SettlementID)
	}
	r.byID[settlement.SettlementID] = settlement
	return nil
}

func (r *SettlementRepository) GetByUserAndDate(_ context.Context, userID, cycleDate string) (domain.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.byUser[userID] {
		if settlement := r.byID[id]; settlement.CycleDate == cycleDate {
			return settlement, nil
		}
	}
	return domain.Settlement{}, domain.ErrNotFound
}

func (r *SettlementRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Settlement, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]domain.Settlement, 0, len(r.byUser[userID]))
	for _, id := range r.byUser[userID] {
		items = append(items, r.byID[id])
	}
	slices.SortFunc(items, func(a, b domain.Settlement) int {
		return b.SettledAt.Compare(a.SettledAt)
	})
	total := len(items)
	if offset >= len(items) {
		return []domain.Settlement{}, total, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]domain.Settlement, end-offset)
	copy(out, items[offset:end])
	return out, total, nil
}

// SettlementApplier commits a settlement unit under the tree lock: the
// node version is checked before the ledger credit, so a wallet failure
// leaves the node volumes untouched for a clean retry.
type SettlementApplier struct {
	tree        *treeStore
	ledger      *LedgerRepository
	settlements *SettlementRepository
}

func (a *SettlementApplier) ApplySettlement(ctx context.Context, unit ports.SettlementUnit) (domain.Transaction, error) {
	a.tree.mu.Lock()
	defer a.tree.mu.Unlock()
	stored, ok := a.tree.nodes[unit.Node.UserID]
	if !ok {
		return domain.Transaction{}, domain.ErrNodeNotFound
	}
	if stored.Version != unit.Node.Version {
		return domain.Transaction{}, domain.ErrConflict
	}
	var txn domain.Transaction
	if unit.Credit != nil {
		applied, err := a.ledger.Apply(ctx, *unit.Credit)
		if err != nil {
			return domain.Transaction{}, err
		}
		txn = applied
	}
	node := unit.Node
	node.Version++
	a.tree.nodes[node.UserID] = node
	if err := a.settlements.Save(ctx, unit.Settlement); err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

type BatchRunRepository struct {
	mu   sync.RWMutex
	runs map[string]ports.BatchRun
}

func (r *BatchRunRepository) Get(_ context.Context, batchDate string) (*ports.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[batchDate]
	if !ok {
		return nil, nil
	}
	clone := run
	return &clone, nil
}

func (r *BatchRunRepository) Save(_ context.Context, run ports.BatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.BatchDate] = run
	return nil
}

type AccrualRepository struct {
	mu      sync.Mutex
	records map[string]float64
}

func accrualKey(investmentID, cycleDate string) string {
	return investmentID + "|" + cycleDate
}

func (r *AccrualRepository) HasAccrued(_ context.Context, investmentID, cycleDate string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[accrualKey(investmentID, cycleDate)]
	return ok, nil
}

func (r *AccrualRepository) MarkAccrued(_ context.Context, investmentID, cycleDate string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[accrualKey(investmentID, cycleDate)] = amount
	return nil
}

type AuditLogRepository struct {
	mu      sync.Mutex
	records []ports.AuditRecord
}

func (r *AuditLogRepository) Append(_ context.Context, record ports.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	if now.After(record.ExpiresAt) {
		delete(r.records, key)
		return nil, nil
	}
	clone := record
	return &clone, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[key]; ok && time.Now().UTC().Before(existing.ExpiresAt) {
		if existing.RequestHash != requestHash {
			return domain.ErrIdempotencyConflict
		}
		return nil
	}
	r.records[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		ExpiresAt:   expiresAt,
	}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	record.ResponseCode = responseCode
	record.ResponseBody = slices.Clone(responseBody)
	if at.After(record.ExpiresAt) {
		record.ExpiresAt = at.Add(7 * 24 * time.Hour)
	}
	r.records[key] = record
	return nil
}

type dedupRecord struct {
	EventType string
	ExpiresAt time.Time
}

type EventDedupRepository struct {
	mu      sync.Mutex
	records map[string]dedupRecord
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[eventID]
	if !ok {
		return false, nil
	}
	if now.After(record.ExpiresAt) {
		delete(r.records, eventID)
		return false, nil
	}
	return true, nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, eventType string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[eventID] = dedupRecord{EventType: eventType, ExpiresAt: expiresAt}
	return nil
}

type OutboxRepository struct {
	mu      sync.Mutex
	records map[string]ports.OutboxRecord
	order   []string
}

func (r *OutboxRepository) Enqueue(_ context.Context, record ports.OutboxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.RecordID] = record
	r.order = append(r.order, record.RecordID)
	return nil
}

func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order {
		record, ok := r.records[id]
		if !ok || record.SentAt != nil {
			continue
		}
		out = append(out, record)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	record.SentAt = &at
	r.records[recordID] = record
	return nil
}
