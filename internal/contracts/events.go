package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type UserRegisteredPayload struct {
	UserID       string `json:"user_id"`
	SponsorID    string `json:"sponsor_id"`
	Leg          string `json:"leg"`
	RegisteredAt string `json:"registered_at"`
}

type InvestmentCreatedPayload struct {
	InvestmentID   string  `json:"investment_id"`
	UserID         string  `json:"user_id"`
	PackageID      string  `json:"package_id"`
	InvestedAmount float64 `json:"invested_amount"`
	DepositAmount  float64 `json:"deposit_amount"`
	Type           string  `json:"type"`
	ExpiresOn      string  `json:"expires_on,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type InvestmentPropagatedPayload struct {
	InvestmentID      string  `json:"investment_id"`
	UserID            string  `json:"user_id"`
	Amount            float64 `json:"amount"`
	AncestorsCredited int     `json:"ancestors_credited"`
	PropagatedAt      string  `json:"propagated_at"`
}

type BinarySettledPayload struct {
	SettlementID  string  `json:"settlement_id"`
	UserID        string  `json:"user_id"`
	CycleDate     string  `json:"cycle_date"`
	MatchedVolume float64 `json:"matched_volume"`
	RawBonus      float64 `json:"raw_bonus"`
	PayableBonus  float64 `json:"payable_bonus"`
	NewLeftCarry  float64 `json:"new_left_carry"`
	NewRightCarry float64 `json:"new_right_carry"`
	Capped        bool    `json:"capped"`
	SettledAt     string  `json:"settled_at"`
}

type ReferralPaidPayload struct {
	InvestmentID string  `json:"investment_id"`
	SponsorID    string  `json:"sponsor_id"`
	DownlineID   string  `json:"downline_id"`
	Level        int     `json:"level"`
	Amount       float64 `json:"amount"`
	PaidAt       string  `json:"paid_at"`
}

type BatchCompletedPayload struct {
	BatchDate      string  `json:"batch_date"`
	UsersProcessed int     `json:"users_processed"`
	BonusesPaid    float64 `json:"bonuses_paid"`
	ROIAccrued     float64 `json:"roi_accrued"`
	ReferralsPaid  float64 `json:"referrals_paid"`
	Skipped        int     `json:"skipped"`
	Failures       int     `json:"failures"`
	CompletedAt    string  `json:"completed_at"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}
