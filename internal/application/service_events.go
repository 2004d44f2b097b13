package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mayanksahu17/binary-system-sub003/internal/contracts"
	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

// HandleDomainEvent routes platform events into the engine: registrations
// become tree placements and investment events feed the propagator. Events
// are deduplicated by id so a replayed stream cannot double-credit volume.
func (s *Service) HandleDomainEvent(ctx context.Context, event contracts.EventEnvelope) error {
	if !s.cfg.EnableDomainEventConsumption {
		return nil
	}
	if !isSupportedEventType(event.EventType) {
		return domain.ErrUnsupportedEventType
	}
	if event.EventClass != "" && event.EventClass != domain.CanonicalEventClassDomain {
		return domain.ErrUnsupportedEventClass
	}
	allowedPartitionPaths := []string{"data.user_id", "user_id"}
	if event.EventType == domain.EventInvestmentCreated {
		allowedPartitionPaths = []string{"data.investment_id", "investment_id"}
	}
	if err := validateDomainEventEnvelope(event, allowedPartitionPaths...); err != nil {
		return err
	}

	now := s.nowFn()
	dup, err := s.eventDedup.IsDuplicate(ctx, event.EventID, now)
	if err != nil {
		return err
	}
	if dup {
		return nil
	}

	systemActor := Actor{SubjectID: "system", Role: "admin", IdempotencyKey: "event:" + event.EventID}

	switch event.EventType {
	case domain.EventUserRegistered:
		var payload contracts.UserRegisteredPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode user.registered payload: %w", err)
		}
		_, err = s.PlaceUser(ctx, systemActor, PlaceUserInput{
			UserID:    payload.UserID,
			SponsorID: payload.SponsorID,
			Leg:       domain.Leg(payload.Leg),
			EventID:   event.EventID,
		})
	case domain.EventInvestmentCreated:
		var payload contracts.InvestmentCreatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return fmt.Errorf("decode investment.created payload: %w", err)
		}
		expiresOn := time.Time{}
		if parsed, parseErr := time.Parse(time.RFC3339, payload.ExpiresOn); parseErr == nil {
			expiresOn = parsed
		}
		_, err = s.registerWithKey(ctx, RegisterInvestmentInput{
			UserID:         payload.UserID,
			PackageID:      payload.PackageID,
			InvestedAmount: payload.InvestedAmount,
			DepositAmount:  payload.DepositAmount,
			Type:           domain.InvestmentType(payload.Type),
			ExpiresOn:      expiresOn,
			EventID:        event.EventID,
		}, "event:"+event.EventID)
	default:
		err = domain.ErrUnsupportedEventType
	}
	if err != nil {
		return err
	}
	return s.eventDedup.MarkProcessed(ctx, event.EventID, event.EventType, now.Add(s.cfg.EventDedupTTL))
}

func (s *Service) FlushOutbox(ctx context.Context) error {
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil {
		return err
	}
	for _, record := range pending {
		if record.EventClass != domain.CanonicalEventClassDomain {
			continue
		}
		if err := s.domainEvents.PublishDomain(ctx, record.Envelope); err != nil {
			return err
		}
		if err := s.outbox.MarkSent(ctx, record.RecordID, s.nowFn()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueueInvestmentPropagated(ctx context.Context, investment domain.Investment, ancestors int, at time.Time) error {
	payload := contracts.InvestmentPropagatedPayload{
		InvestmentID:      investment.InvestmentID,
		UserID:            investment.UserID,
		Amount:            investment.InvestedAmount,
		AncestorsCredited: ancestors,
		PropagatedAt:      at.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventInvestmentPropagated, "data.investment_id", investment.InvestmentID, at, payload)
}

func (s *Service) enqueueBinarySettled(ctx context.Context, settlement domain.Settlement) error {
	if !s.cfg.EnableSettledEmission {
		return nil
	}
	payload := contracts.BinarySettledPayload{
		SettlementID:  settlement.SettlementID,
		UserID:        settlement.UserID,
		CycleDate:     settlement.CycleDate,
		MatchedVolume: settlement.MatchedVolume,
		RawBonus:      settlement.RawBonus,
		PayableBonus:  settlement.PayableBonus,
		NewLeftCarry:  settlement.NewLeftCarry,
		NewRightCarry: settlement.NewRightCarry,
		Capped:        settlement.Capped,
		SettledAt:     settlement.SettledAt.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventBinarySettled, "data.user_id", settlement.UserID, settlement.SettledAt, payload)
}

func (s *Service) enqueueReferralPaid(ctx context.Context, investment domain.Investment, sponsorID string, level int, amount float64, at time.Time) error {
	payload := contracts.ReferralPaidPayload{
		InvestmentID: investment.InvestmentID,
		SponsorID:    sponsorID,
		DownlineID:   investment.UserID,
		Level:        level,
		Amount:       amount,
		PaidAt:       at.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventReferralPaid, "data.investment_id", investment.InvestmentID, at, payload)
}

func (s *Service) enqueueBatchCompleted(ctx context.Context, run ports.BatchRun) error {
	payload := contracts.BatchCompletedPayload{
		BatchDate:      run.BatchDate,
		UsersProcessed: run.UsersProcessed,
		BonusesPaid:    run.BonusesPaid,
		ROIAccrued:     run.ROIAccrued,
		ReferralsPaid:  run.ReferralsPaid,
		Skipped:        run.Skipped,
		Failures:       len(run.Failures),
		CompletedAt:    run.CompletedAt.Format(time.RFC3339),
	}
	return s.enqueueDomain(ctx, domain.EventBatchCompleted, "data.batch_date", run.BatchDate, run.CompletedAt, payload)
}

func (s *Service) enqueueDomain(ctx context.Context, eventType, partitionKeyPath, partitionKey string, occurredAt time.Time, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{
		RecordID:   uuid.NewString(),
		EventClass: domain.CanonicalEventClassDomain,
		Envelope: contracts.EventEnvelope{
			EventID:          uuid.NewString(),
			EventType:        eventType,
			EventClass:       domain.CanonicalEventClassDomain,
			OccurredAt:       occurredAt,
			PartitionKeyPath: partitionKeyPath,
			PartitionKey:     partitionKey,
			SourceService:    s.cfg.ServiceName,
			TraceID:          uuid.NewString(),
			SchemaVersion:    "v1",
			Data:             data,
		},
		CreatedAt: s.nowFn(),
	})
}

func isSupportedEventType(eventType string) bool {
	switch eventType {
	case domain.EventUserRegistered, domain.EventInvestmentCreated:
		return true
	default:
		return false
	}
}

func validateDomainEventEnvelope(event contracts.EventEnvelope, allowedPartitionPaths ...string) error {
	if len(allowedPartitionPaths) == 0 {
		return fmt.Errorf("%w: missing partition key policy", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(event.EventID) == "" {
		return fmt.Errorf("%w: missing event_id", domain.ErrInvalidInput)
	}
	if event.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(event.SourceService) == "" {
		return fmt.Errorf("%w: missing source_service", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(event.TraceID) == "" {
		return fmt.Errorf("%w: missing trace_id", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(event.SchemaVersion) == "" {
		return fmt.Errorf("%w: missing schema_version", domain.ErrInvalidInput)
	}
	if len(event.Data) == 0 {
		return fmt.Errorf("%w: missing data payload", domain.ErrInvalidInput)
	}
	allowed := false
	for _, path := range allowedPartitionPaths {
		if event.PartitionKeyPath == path {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: unexpected partition_key_path %q", domain.ErrInvalidInput, event.PartitionKeyPath)
	}
	if strings.TrimSpace(event.PartitionKey) == "" {
		return fmt.Errorf("%w: missing partition_key", domain.ErrInvalidInput)
	}
	return nil
}
