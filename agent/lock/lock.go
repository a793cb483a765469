// Package lock serializes pipeline runs per customer with a Redis lock, so
// two concurrent messages from the same number cannot interleave between
// reading and writing conversation state.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

const (
	defaultKeyPrefix  = "agendabot:lock:"
	acquirePollPeriod = 50 * time.Millisecond
)

// releaseScript deletes the lock only when the holder token still matches,
// so an expired lock reacquired by another run is never released by us.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisLocker implements contract.Locker with SET NX plus a token-checked
// Lua release.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, keyPrefix: defaultKeyPrefix}
}

// Lock blocks until the key is acquired or ctx ends. The TTL caps how long a
// crashed holder can wedge a customer.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (contract.UnlockFunc, error) {
	lockKey := l.keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(acquirePollPeriod)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: lock acquire: %v", contract.ErrStoreUnavailable, err)
		}
		if acquired {
			unlock := func(ctx context.Context) error {
				if err := l.client.Eval(ctx, releaseScript, []string{lockKey}, token).Err(); err != nil {
					return fmt.Errorf("%w: lock release: %v", contract.ErrStoreUnavailable, err)
				}
				return nil
			}
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
