// Package redisstore holds the Redis client setup and the small coordination
// primitives built on it: per-tractor availability locks and webhook event
// deduplication.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"tractor-rental/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg utils.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Locker serializes availability mutations per tractor.
type Locker interface {
	AcquireTractorLock(ctx context.Context, tractorID string, ttl time.Duration) (bool, error)
	ReleaseTractorLock(ctx context.Context, tractorID string) error
}

// Deduper remembers processed webhook event ids so provider retries can be
// acknowledged without touching business state.
type Deduper interface {
	// MarkEvent records the event id and reports whether it was seen before.
	MarkEvent(ctx context.Context, provider, eventID string, ttl time.Duration) (seen bool, err error)
}

// LockStore implements Locker with SetNX leases.
type LockStore struct {
	client *redis.Client
}

func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func (s *LockStore) AcquireTractorLock(ctx context.Context, tractorID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:tractor:%s", tractorID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *LockStore) ReleaseTractorLock(ctx context.Context, tractorID string) error {
	key := fmt.Sprintf("lock:tractor:%s", tractorID)

	return s.client.Del(ctx, key).Err()
}

// EventStore implements Deduper.
type EventStore struct {
	client *redis.Client
}

func NewEventStore(client *redis.Client) *EventStore {
	return &EventStore{client: client}
}

func (s *EventStore) MarkEvent(ctx context.Context, provider, eventID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("webhook:%s:%s", provider, eventID)

	created, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

var (
	_ Locker  = (*LockStore)(nil)
	_ Deduper = (*EventStore)(nil)
)
