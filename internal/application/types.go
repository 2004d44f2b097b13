package application

import (
	"time"

	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

type Config struct {
	ServiceName          string
	Currency             string
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	OutboxFlushBatchSize int

	BinaryRate          float64
	DefaultCappingLimit float64
	ReferralLevelRates  []float64
	DailyROIRate        float64
	MaxTreeDepth        int
	BatchLockTTL        time.Duration

	EnableDomainEventConsumption bool
	EnableSettledEmission        bool
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

func (a Actor) isOperator() bool {
	return a.Role == "admin" || a.Role == "finance"
}

type PlaceUserInput struct {
	UserID    string
	SponsorID string
	Leg       domain.Leg
	EventID   string
}

type RegisterInvestmentInput struct {
	UserID         string
	PackageID      string
	InvestedAmount float64
	DepositAmount  float64
	Type           domain.InvestmentType
	ExpiresOn      time.Time
	EventID        string
}

type RunCalculationsInput struct {
	Date            string
	IncludeROI      bool
	IncludeBinary   bool
	IncludeReferral bool
	Force           bool
}

type BatchReport struct {
	BatchDate        string               `json:"batch_date"`
	UsersProcessed   int                  `json:"users_processed"`
	BonusesPaid      float64              `json:"bonuses_paid"`
	ROIAccrued       float64              `json:"roi_accrued"`
	ReferralsPaid    float64              `json:"referrals_paid"`
	Skipped          int                  `json:"skipped"`
	Failures         []ports.BatchFailure `json:"failures"`
	AlreadyProcessed bool                 `json:"already_processed"`
}

type PropagationResult struct {
	InvestmentID      string  `json:"investment_id"`
	Amount            float64 `json:"amount"`
	AncestorsCredited int     `json:"ancestors_credited"`
	AlreadyPropagated bool    `json:"already_propagated"`
}

type SettlementHistoryOutput struct {
	Items []domain.Settlement
	Total int
}

type TransactionHistoryOutput struct {
	Items []domain.Transaction
	Total int
}

type Service struct {
	cfg          Config
	nodes        ports.NodeRepository
	propagations ports.PropagationApplier
	investments  ports.InvestmentRepository
	ledger       ports.LedgerRepository
	withdrawals  ports.WithdrawalRepository
	settlements  ports.SettlementRepository
	settler      ports.SettlementApplier
	batchRuns    ports.BatchRunRepository
	accruals     ports.AccrualRepository
	audit        ports.AuditLogRepository
	idempotency  ports.IdempotencyRepository
	eventDedup   ports.EventDedupRepository
	outbox       ports.OutboxRepository

	packages ports.PackageConfigReader
	users    ports.UserDirectoryReader
	locker   ports.BatchLocker

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher
	nowFn        func() time.Time
}

type Dependencies struct {
	Config       Config
	Nodes        ports.NodeRepository
	Propagations ports.PropagationApplier
	Investments  ports.InvestmentRepository
	Ledger       ports.LedgerRepository
	Withdrawals  ports.WithdrawalRepository
	Settlements  ports.SettlementRepository
	Settler      ports.SettlementApplier
	BatchRuns    ports.BatchRunRepository
	Accruals     ports.AccrualRepository
	Audit        ports.AuditLogRepository
	Idempotency  ports.IdempotencyRepository
	EventDedup   ports.EventDedupRepository
	Outbox       ports.OutboxRepository
	Packages     ports.PackageConfigReader
	Users        ports.UserDirectoryReader
	Locker       ports.BatchLocker
	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher
	NowFn        func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Binary-Bonus-Engine"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	if cfg.BinaryRate <= 0 {
		cfg.BinaryRate = 0.10
	}
	if cfg.DefaultCappingLimit <= 0 {
		cfg.DefaultCappingLimit = 1000
	}
	if len(cfg.ReferralLevelRates) == 0 {
		cfg.ReferralLevelRates = []float64{0.05, 0.02, 0.01}
	}
	if cfg.DailyROIRate <= 0 {
		cfg.DailyROIRate = 0.005
	}
	if cfg.MaxTreeDepth <= 0 {
		cfg.MaxTreeDepth = 1024
	}
	if cfg.BatchLockTTL <= 0 {
		cfg.BatchLockTTL = 15 * time.Minute
	}
	nowFn := deps.NowFn
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:          cfg,
		nodes:        deps.Nodes,
		propagations: deps.Propagations,
		investments:  deps.Investments,
		ledger:       deps.Ledger,
		withdrawals:  deps.Withdrawals,
		settlements:  deps.Settlements,
		settler:      deps.Settler,
		batchRuns:    deps.BatchRuns,
		accruals:     deps.Accruals,
		audit:        deps.Audit,
		idempotency:  deps.Idempotency,
		eventDedup:   deps.EventDedup,
		outbox:       deps.Outbox,
		packages:     deps.Packages,
		users:        deps.Users,
		locker:       deps.Locker,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		nowFn:        nowFn,
	}
}
