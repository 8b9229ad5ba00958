package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultContextTTL bounds how long a multi-message exchange can stay open.
const DefaultContextTTL = time.Hour

// Store persists conversation contexts keyed by normalized phone number.
type Store interface {
	// Get returns an empty Idle context when nothing is stored.
	Get(ctx context.Context, phone string) (*Context, error)
	// Update applies fn to the current context and writes it back with a fresh TTL.
	Update(ctx context.Context, phone string, fn func(*Context)) error
	// Clear removes all state for the phone number.
	Clear(ctx context.Context, phone string) error
	Ping(ctx context.Context) error
}

// RedisStore keeps contexts as JSON strings under context:{phone}.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("dental.internal.conversation.store"),
	}
}

func (s *RedisStore) Get(ctx context.Context, phone string) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get_context")
	defer span.End()

	data, err := s.redis.Get(ctx, contextKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Context{State: StateIdle}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load context: %w", err)
	}

	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode context: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Update(ctx context.Context, phone string, fn func(*Context)) error {
	current, err := s.Get(ctx, phone)
	if err != nil {
		return err
	}
	fn(current)

	ctx, span := s.tracer.Start(ctx, "conversation.save_context")
	defer span.End()

	data, err := json.Marshal(current)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal context: %w", err)
	}
	if err := s.redis.Set(ctx, contextKey(phone), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist context: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, phone string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.clear_context")
	defer span.End()

	if err := s.redis.Del(ctx, contextKey(phone)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to clear context: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func contextKey(phone string) string {
	return fmt.Sprintf("context:%s", phone)
}
