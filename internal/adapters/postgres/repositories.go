package postgres

import (
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
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
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Nodes:        &nodeRepository{db: db},
		Propagations: &propagationApplier{db: db},
		Investments:  &investmentRepository{db: db},
		Ledger:       &ledgerRepository{db: db},
		Withdrawals:  &withdrawalRepository{db: db},
		Settlements:  &settlementRepository{db: db},
		Settler:      &settlementApplier{db: db},
		BatchRuns:    &batchRunRepository{db: db},
		Accruals:     &accrualRepository{db: db},
		Audit:        &auditLogRepository{db: db},
		Idempotency:  &idempotencyRepository{db: db},
		EventDedup:   &eventDedupRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}
