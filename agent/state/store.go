package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

var (
	ErrStateNotFound = errors.New("conversation state not found")
	ErrNilState      = errors.New("conversation state is nil")
)

const (
	defaultKeyPrefix = "agendabot:conversation:"
	// DefaultTTL matches the dialogue expiry: an abandoned conversation is
	// forgotten after an hour and the next message starts fresh.
	DefaultTTL = time.Hour
)

// Store is the persistence contract for conversation records.
type Store interface {
	Load(ctx context.Context, customerID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, customerID string) error
}

// StoreOption customizes RedisStore.
type StoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *RedisStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// RedisStore persists one JSON conversation record per customer with a
// sliding TTL. Store reachability failures surface as ErrStoreUnavailable so
// the caller can dead-letter instead of guessing.
type RedisStore struct {
	client    *backend.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(client *backend.Client, opts ...StoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TTL exposes the configured expiry so callers stamp ExpiresAt consistently.
func (s *RedisStore) TTL() time.Duration {
	return s.ttl
}

func (s *RedisStore) key(customerID string) string {
	return s.keyPrefix + customerID
}

func (s *RedisStore) Load(ctx context.Context, customerID string) (*Conversation, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("%w: customer id is empty", contract.ErrValidation)
	}

	raw, err := s.client.Get(ctx, s.key(customerID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("%w: load conversation: %v", contract.ErrStoreUnavailable, err)
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation for %s: %w", customerID, err)
	}
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("persisted conversation is malformed: %w", err)
	}
	return &conv, nil
}

func (s *RedisStore) Save(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return ErrNilState
	}
	if err := conv.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	if err := s.client.Set(ctx, s.key(conv.CustomerID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save conversation: %v", contract.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, customerID string) error {
	if err := s.client.Del(ctx, s.key(customerID)).Err(); err != nil {
		return fmt.Errorf("%w: delete conversation: %v", contract.ErrStoreUnavailable, err)
	}
	return nil
}
