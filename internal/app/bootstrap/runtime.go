package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/dental-scheduler/internal/config"
	"github.com/wolfman30/dental-scheduler/internal/conversation"
	"github.com/wolfman30/dental-scheduler/internal/events"
	"github.com/wolfman30/dental-scheduler/internal/messaging"
	"github.com/wolfman30/dental-scheduler/internal/reminders"
	"github.com/wolfman30/dental-scheduler/internal/retry"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL. An empty URL returns nil without error.
func BuildPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}

// lockWait bounds how long a turn queues behind another turn for the same phone or slot.
const lockWait = 5 * time.Second

// BuildLocker returns the Redis lock manager, or a no-op locker when locks are disabled.
func BuildLocker(cfg *appconfig.Config, client *redis.Client, logger *logging.Logger) conversation.Locker {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || !cfg.LocksEnabled || client == nil {
		logger.Warn("distributed locks disabled; concurrent turns are not serialized")
		return conversation.NoopLocker{}
	}
	return conversation.NewRedisLocker(client, cfg.LockTTL, lockWait)
}

// BuildLedger prefers Postgres for reminder claims and falls back to Redis keys.
func BuildLedger(pool *pgxpool.Pool, client *redis.Client) (reminders.Ledger, error) {
	if pool != nil {
		return reminders.NewPostgresLedger(pool), nil
	}
	if client != nil {
		return reminders.NewRedisLedger(client), nil
	}
	return nil, fmt.Errorf("bootstrap: reminder ledger needs postgres or redis")
}

// BuildDeduper records inbound MessageSids in Postgres when available, else in Redis.
func BuildDeduper(pool *pgxpool.Pool, client *redis.Client) messaging.Deduper {
	if pool != nil {
		return events.NewProcessedStore(pool)
	}
	if client != nil {
		return events.NewRedisProcessedStore(client, events.DefaultRedisTTL)
	}
	return nil
}

// BusinessDay converts the clinic hours settings.
func BusinessDay(cfg *appconfig.Config) scheduling.BusinessDay {
	day := scheduling.DefaultBusinessDay()
	if cfg == nil {
		return day
	}
	day.OpenHour = cfg.BusinessOpenHour
	day.CloseHour = cfg.BusinessCloseHour
	day.Location = scheduling.ClinicLocation(cfg.ClinicTimezone)
	return day
}

// RetryPolicy converts the RETRY_* settings.
func RetryPolicy(cfg *appconfig.Config) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg == nil {
		return policy
	}
	if cfg.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.RetryBaseDelay
	}
	if cfg.RetryMaxDelay > 0 {
		policy.MaxDelay = cfg.RetryMaxDelay
	}
	return policy
}

// llmTurnReserve is the part of a webhook turn kept free of model latency.
const llmTurnReserve = 3 * time.Second

// LLMRetryPolicy uses LLM_MAX_ATTEMPTS with short backoff. Calendar retry timings would
// outlast the webhook turn.
func LLMRetryPolicy(cfg *appconfig.Config) retry.Policy {
	policy := retry.Policy{MaxAttempts: 1, BaseDelay: 250 * time.Millisecond, MaxDelay: time.Second}
	if cfg != nil && cfg.LLMMaxAttempts > 0 {
		policy.MaxAttempts = cfg.LLMMaxAttempts
	}
	return policy
}

// LLMCallTimeout clamps LLM_TIMEOUT so one model call always ends inside the webhook turn.
func LLMCallTimeout(cfg *appconfig.Config) time.Duration {
	limit := messaging.DefaultTurnTimeout - llmTurnReserve
	if cfg == nil || cfg.LLMTimeout <= 0 || cfg.LLMTimeout > limit {
		return limit
	}
	return cfg.LLMTimeout
}

// ClinicInfo converts the clinic profile settings used by help and info replies.
func ClinicInfo(cfg *appconfig.Config) conversation.ClinicInfo {
	if cfg == nil {
		return conversation.ClinicInfo{}
	}
	day := BusinessDay(cfg)
	return conversation.ClinicInfo{
		Name:    cfg.ClinicName,
		Phone:   cfg.ClinicPhone,
		Address: cfg.ClinicAddress,
		Hours: fmt.Sprintf("Monday-Friday %s - %s",
			scheduling.FormatDisplayTime(fmt.Sprintf("%02d:00", day.OpenHour)),
			scheduling.FormatDisplayTime(fmt.Sprintf("%02d:00", day.CloseHour))),
	}
}
