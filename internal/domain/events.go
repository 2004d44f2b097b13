package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventUserRegistered       = "user.registered"
	EventInvestmentCreated    = "investment.created"
	EventInvestmentPropagated = "investment.propagated"
	EventBinarySettled        = "binary.settled"
	EventReferralPaid         = "referral.paid"
	EventROIAccrued           = "roi.accrued"
	EventBatchCompleted       = "batch.completed"
	EventWithdrawalRequested  = "withdrawal.requested"
)
