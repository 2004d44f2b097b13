package ports

import (
	"context"
	"time"

	"github.com/mayanksahu17/binary-system-sub003/internal/contracts"
)

type EventConsumer interface {
	Receive(ctx context.Context) (*contracts.EventEnvelope, error)
}

type DomainPublisher interface {
	PublishDomain(ctx context.Context, event contracts.EventEnvelope) error
}

type AnalyticsPublisher interface {
	PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error
}

type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record contracts.DLQRecord) error
}

// BatchLocker serializes daily-calculation sweeps across processes.
type BatchLocker interface {
	Acquire(ctx context.Context, batchDate string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, batchDate string) error
}
