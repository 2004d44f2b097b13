package postgres

import (
	"time"
)

type nodeModel struct {
	UserID         string    `gorm:"column:user_id;primaryKey"`
	ParentID       *string   `gorm:"column:parent_id"`
	LeftChildID    *string   `gorm:"column:left_child_id"`
	RightChildID   *string   `gorm:"column:right_child_id"`
	Kind           string    `gorm:"column:kind"`
	Level          int       `gorm:"column:level"`
	LeftBusiness   float64   `gorm:"column:left_business"`
	RightBusiness  float64   `gorm:"column:right_business"`
	LeftCarry      float64   `gorm:"column:left_carry"`
	RightCarry     float64   `gorm:"column:right_carry"`
	LeftDownlines  int       `gorm:"column:left_downlines"`
	RightDownlines int       `gorm:"column:right_downlines"`
	ChildrenCount  int       `gorm:"column:children_count"`
	TotalVolume    float64   `gorm:"column:total_volume"`
	CappingLimit   float64   `gorm:"column:capping_limit"`
	Version        int64     `gorm:"column:version"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (nodeModel) TableName() string { return "binary_nodes" }

type investmentModel struct {
	InvestmentID    string    `gorm:"column:investment_id;primaryKey"`
	UserID          string    `gorm:"column:user_id"`
	PackageID       string    `gorm:"column:package_id"`
	InvestedAmount  float64   `gorm:"column:invested_amount"`
	DepositAmount   float64   `gorm:"column:deposit_amount"`
	Type            string    `gorm:"column:type"`
	Status          string    `gorm:"column:status"`
	IsBinaryUpdated bool      `gorm:"column:is_binary_updated"`
	IsReferralPaid  bool      `gorm:"column:is_referral_paid"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	ExpiresOn       time.Time `gorm:"column:expires_on"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (investmentModel) TableName() string { return "investments" }

type walletModel struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Type      string    `gorm:"column:type;primaryKey"`
	Balance   float64   `gorm:"column:balance"`
	Reserved  float64   `gorm:"column:reserved"`
	Currency  string    `gorm:"column:currency"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (walletModel) TableName() string { return "wallets" }

type transactionModel struct {
	TransactionID string    `gorm:"column:transaction_id;primaryKey"`
	UserID        string    `gorm:"column:user_id"`
	WalletType    string    `gorm:"column:wallet_type"`
	Type          string    `gorm:"column:type"`
	Amount        float64   `gorm:"column:amount"`
	BalanceBefore float64   `gorm:"column:balance_before"`
	BalanceAfter  float64   `gorm:"column:balance_after"`
	Status        string    `gorm:"column:status"`
	Reference     string    `gorm:"column:reference"`
	Meta          *string   `gorm:"column:meta;type:jsonb"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (transactionModel) TableName() string { return "wallet_transactions" }

type withdrawalModel struct {
	WithdrawalID string     `gorm:"column:withdrawal_id;primaryKey"`
	UserID       string     `gorm:"column:user_id"`
	WalletType   string     `gorm:"column:wallet_type"`
	Amount       float64    `gorm:"column:amount"`
	Status       string     `gorm:"column:status"`
	QueuedAt     time.Time  `gorm:"column:queued_at"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`
}

func (withdrawalModel) TableName() string { return "withdrawals" }

type settlementModel struct {
	SettlementID   string    `gorm:"column:settlement_id;primaryKey"`
	UserID         string    `gorm:"column:user_id"`
	CycleDate      string    `gorm:"column:cycle_date"`
	EffectiveLeft  float64   `gorm:"column:effective_left"`
	EffectiveRight float64   `gorm:"column:effective_right"`
	MatchedVolume  float64   `gorm:"column:matched_volume"`
	RawBonus       float64   `gorm:"column:raw_bonus"`
	PayableBonus   float64   `gorm:"column:payable_bonus"`
	NewLeftCarry   float64   `gorm:"column:new_left_carry"`
	NewRightCarry  float64   `gorm:"column:new_right_carry"`
	Capped         bool      `gorm:"column:capped"`
	SettledAt      time.Time `gorm:"column:settled_at"`
}

func (settlementModel) TableName() string { return "binary_settlements" }

type batchRunModel struct {
	BatchDate      string    `gorm:"column:batch_date;primaryKey"`
	UsersProcessed int       `gorm:"column:users_processed"`
	BonusesPaid    float64   `gorm:"column:bonuses_paid"`
	ROIAccrued     float64   `gorm:"column:roi_accrued"`
	ReferralsPaid  float64   `gorm:"column:referrals_paid"`
	Skipped        int       `gorm:"column:skipped"`
	Failures       *string   `gorm:"column:failures;type:jsonb"`
	StartedAt      time.Time `gorm:"column:started_at"`
	CompletedAt    time.Time `gorm:"column:completed_at"`
}

func (batchRunModel) TableName() string { return "batch_runs" }

type accrualModel struct {
	InvestmentID string    `gorm:"column:investment_id;primaryKey"`
	CycleDate    string    `gorm:"column:cycle_date;primaryKey"`
	Amount       float64   `gorm:"column:amount"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (accrualModel) TableName() string { return "roi_accruals" }

type auditLogModel struct {
	LogID     string    `gorm:"column:log_id;primaryKey"`
	UserID    string    `gorm:"column:user_id"`
	Action    string    `gorm:"column:action"`
	Amount    float64   `gorm:"column:amount"`
	Metadata  *string   `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (auditLogModel) TableName() string { return "audit_logs" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "bonus_idempotency" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "bonus_event_dedup" }

type outboxModel struct {
	RecordID   string     `gorm:"column:record_id;primaryKey"`
	EventClass string     `gorm:"column:event_class"`
	Envelope   string     `gorm:"column:envelope;type:jsonb"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string { return "bonus_outbox" }
