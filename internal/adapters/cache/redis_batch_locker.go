package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBatchLocker serializes the daily calculation batch across instances
// with a best-effort SET NX lease. The lease expires on its own if the
// holder dies mid-batch, so a stuck date unblocks without intervention.
type RedisBatchLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisBatchLocker(client *redis.Client, servicePrefix string) *RedisBatchLocker {
	if servicePrefix == "" {
		servicePrefix = "bonus-engine"
	}
	return &RedisBatchLocker{client: client, prefix: servicePrefix}
}

func (l *RedisBatchLocker) key(batchDate string) string {
	return fmt.Sprintf("%s:batch-lock:%s", l.prefix, batchDate)
}

func (l *RedisBatchLocker) Acquire(ctx context.Context, batchDate string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(batchDate), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire batch lock: %w", err)
	}
	return ok, nil
}

func (l *RedisBatchLocker) Release(ctx context.Context, batchDate string) error {
	if err := l.client.Del(ctx, l.key(batchDate)).Err(); err != nil {
		return fmt.Errorf("release batch lock: %w", err)
	}
	return nil
}
