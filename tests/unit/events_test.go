package unit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	eventadapter "github.com/mayanksahu17/binary-system-sub003/internal/adapters/events"
	grpcadapter "github.com/mayanksahu17/binary-system-sub003/internal/adapters/grpc"
	"github.com/mayanksahu17/binary-system-sub003/internal/adapters/memory"
	"github.com/mayanksahu17/binary-system-sub003/internal/application"
	"github.com/mayanksahu17/binary-system-sub003/internal/contracts"
	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
)

func newConsumingService(t *testing.T) (*application.Service, *memory.Repositories) {
	t.Helper()
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Config:       application.Config{EnableDomainEventConsumption: true},
		Nodes:        repos.Nodes,
		Propagations: repos.Propagations,
		Investments:  repos.Investments,
		Ledger:       repos.Ledger,
		Withdrawals:  repos.Withdrawals,
		Settlements:  repos.Settlements,
		Settler:      repos.Settler,
		BatchRuns:    repos.BatchRuns,
		Accruals:     repos.Accruals,
		Audit:        repos.Audit,
		Idempotency:  repos.Idempotency,
		EventDedup:   repos.EventDedup,
		Outbox:       repos.Outbox,
		Packages:     grpcadapter.NewPackageConfigClient(""),
		Users:        grpcadapter.NewUserDirectoryClient(""),
		Locker:       memory.NewBatchLocker(),
		DomainEvents: eventadapter.NewMemoryDomainPublisher(),
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewLoggingDLQPublisher(),
	})
	if err := repos.Nodes.Create(context.Background(), domain.BinaryNode{
		UserID:    rootID,
		Kind:      domain.NodeKindRootAggregate,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed root node: %v", err)
	}
	return svc, repos
}

func envelope(t *testing.T, eventType, partitionPath, partitionKey string, payload interface{}) contracts.EventEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClassDomain,
		OccurredAt:       time.Now().UTC(),
		PartitionKeyPath: partitionPath,
		PartitionKey:     partitionKey,
		SourceService:    "user-service",
		TraceID:          uuid.NewString(),
		SchemaVersion:    "v1",
		Data:             data,
	}
}

func TestHandleUserRegisteredPlacesNode(t *testing.T) {
	t.Parallel()

	svc, repos := newConsumingService(t)
	event := envelope(t, domain.EventUserRegistered, "data.user_id", userA, contracts.UserRegisteredPayload{
		UserID:    userA,
		SponsorID: rootID,
		Leg:       "left",
	})

	ctx := context.Background()
	if err := svc.HandleDomainEvent(ctx, event); err != nil {
		t.Fatalf("handle user.registered: %v", err)
	}
	node, err := repos.Nodes.Get(ctx, userA)
	if err != nil {
		t.Fatalf("node not created: %v", err)
	}
	if node.ParentID != rootID {
		t.Fatalf("parent = %s, want %s", node.ParentID, rootID)
	}

	// Redelivery of the same event id is absorbed by the dedup store.
	if err := svc.HandleDomainEvent(ctx, event); err != nil {
		t.Fatalf("redelivered event must be a no-op, got %v", err)
	}
}

func TestHandleInvestmentCreatedPropagatesOnce(t *testing.T) {
	t.Parallel()

	svc, repos := newConsumingService(t)
	ctx := context.Background()
	placeUser(t, svc, userA, rootID, domain.LegLeft)
	placeUser(t, svc, userB, userA, domain.LegLeft)

	event := envelope(t, domain.EventInvestmentCreated, "data.investment_id", "ext-inv-1", contracts.InvestmentCreatedPayload{
		InvestmentID:   "ext-inv-1",
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 1000,
		Type:           string(domain.InvestmentTypeNormal),
	})
	if err := svc.HandleDomainEvent(ctx, event); err != nil {
		t.Fatalf("handle investment.created: %v", err)
	}
	if err := svc.HandleDomainEvent(ctx, event); err != nil {
		t.Fatalf("redelivered event must be a no-op, got %v", err)
	}

	a, _ := repos.Nodes.Get(ctx, userA)
	if a.LeftBusiness != 1000 {
		t.Fatalf("A left business = %v, want 1000 (credited exactly once)", a.LeftBusiness)
	}
}

func TestHandleDomainEventRejectsUnknownType(t *testing.T) {
	t.Parallel()

	svc, _ := newConsumingService(t)
	event := envelope(t, "wallet.exploded", "data.user_id", userA, map[string]string{"user_id": userA})
	if err := svc.HandleDomainEvent(context.Background(), event); !errors.Is(err, domain.ErrUnsupportedEventType) {
		t.Fatalf("expected ErrUnsupportedEventType, got %v", err)
	}
}

func TestHandleDomainEventRejectsBrokenEnvelope(t *testing.T) {
	t.Parallel()

	svc, _ := newConsumingService(t)
	event := envelope(t, domain.EventUserRegistered, "data.user_id", userA, contracts.UserRegisteredPayload{
		UserID:    userA,
		SponsorID: rootID,
		Leg:       "left",
	})
	event.PartitionKeyPath = "data.order_id"
	if err := svc.HandleDomainEvent(context.Background(), event); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign partition path, got %v", err)
	}
}
