// Package idempotency deduplicates webhook deliveries by message id.
//
// Accept is an atomic test-and-mark (SET NX): the first delivery of an id
// claims it, every retry within the TTL sees duplicate. A claim made before
// the pipeline runs is released again if processing dies, so a legitimate
// retry can go through.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

const (
	defaultKeyPrefix = "agendabot:message:"

	// DefaultTTL keeps processed ids long enough to cover provider retry
	// windows.
	DefaultTTL = 24 * time.Hour

	statusPending = "pending"
	statusDone    = "done"
)

// RedisGuard implements contract.IdempotencyGuard on Redis.
type RedisGuard struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

type GuardOption func(*RedisGuard)

func WithKeyPrefix(prefix string) GuardOption {
	return func(g *RedisGuard) { g.keyPrefix = prefix }
}

func WithTTL(ttl time.Duration) GuardOption {
	return func(g *RedisGuard) { g.ttl = ttl }
}

func NewRedisGuard(client redis.UniversalClient, opts ...GuardOption) *RedisGuard {
	g := &RedisGuard{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Accept claims a message id. An unreachable store surfaces as
// ErrStoreUnavailable; the caller decides whether to fail closed.
func (g *RedisGuard) Accept(ctx context.Context, messageID string) (contract.GuardOutcome, error) {
	ok, err := g.client.SetNX(ctx, g.key(messageID), statusPending, g.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: idempotency accept: %v", contract.ErrStoreUnavailable, err)
	}
	if !ok {
		return contract.GuardDuplicate, nil
	}
	return contract.GuardFresh, nil
}

// Commit marks a claimed id as fully processed, keeping the TTL window.
func (g *RedisGuard) Commit(ctx context.Context, messageID string) error {
	if err := g.client.Set(ctx, g.key(messageID), statusDone, g.ttl).Err(); err != nil {
		return fmt.Errorf("%w: idempotency commit: %v", contract.ErrStoreUnavailable, err)
	}
	return nil
}

// Release drops a claim after a processing failure so the provider's retry
// is not swallowed as a duplicate.
func (g *RedisGuard) Release(ctx context.Context, messageID string) error {
	if err := g.client.Del(ctx, g.key(messageID)).Err(); err != nil {
		return fmt.Errorf("%w: idempotency release: %v", contract.ErrStoreUnavailable, err)
	}
	return nil
}

func (g *RedisGuard) key(messageID string) string {
	return g.keyPrefix + messageID
}
