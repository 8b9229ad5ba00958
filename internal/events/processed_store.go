// Package events records inbound provider event ids so redelivered webhooks are handled once.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL covers Twilio's webhook retry horizon with room to spare.
const DefaultRedisTTL = 24 * time.Hour

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records webhook events that were already handled.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if we've seen this provider event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event id for the provider, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// RecordReply stores the reply sent for an already marked event.
func (s *ProcessedStore) RecordReply(ctx context.Context, provider, eventID, reply string) error {
	query := `UPDATE processed_events SET reply = $3 WHERE provider = $1 AND event_id = $2`
	if _, err := s.pool.Exec(ctx, query, provider, eventID, reply); err != nil {
		return fmt.Errorf("events: record reply: %w", err)
	}
	return nil
}

// StoredReply returns the reply recorded for an event; ok is false when none was recorded.
func (s *ProcessedStore) StoredReply(ctx context.Context, provider, eventID string) (string, bool, error) {
	query := `SELECT reply FROM processed_events WHERE provider = $1 AND event_id = $2`
	var reply *string
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&reply); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("events: stored reply: %w", err)
	}
	if reply == nil {
		return "", false, nil
	}
	return *reply, true, nil
}

// RedisProcessedStore keeps event ids as expiring SETNX keys when no database is configured.
type RedisProcessedStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProcessedStore(client *redis.Client, ttl time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisProcessedStore{client: client, ttl: ttl}
}

func (s *RedisProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, processedKey(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, processedKey(provider, eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

func (s *RedisProcessedStore) RecordReply(ctx context.Context, provider, eventID, reply string) error {
	if err := s.client.Set(ctx, replyKey(provider, eventID), reply, s.ttl).Err(); err != nil {
		return fmt.Errorf("events: record reply: %w", err)
	}
	return nil
}

func (s *RedisProcessedStore) StoredReply(ctx context.Context, provider, eventID string) (string, bool, error) {
	reply, err := s.client.Get(ctx, replyKey(provider, eventID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("events: stored reply: %w", err)
	}
	return reply, true, nil
}

func replyKey(provider, eventID string) string {
	return "processed-reply:" + provider + ":" + eventID
}

func processedKey(provider, eventID string) string {
	return "processed:" + provider + ":" + eventID
}
