package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// Ledger records which reminders went out so each window fires once per appointment.
type Ledger interface {
	// Claim reports false when the reminder was already claimed.
	Claim(ctx context.Context, appointmentID string, hoursAhead int) (bool, error)
	// Release undoes a claim after a failed send.
	Release(ctx context.Context, appointmentID string, hoursAhead int) error
}

// RedisLedger keeps claims as SETNX keys that expire after the window has passed.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	if client == nil {
		panic("reminders: redis client cannot be nil")
	}
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Claim(ctx context.Context, appointmentID string, hoursAhead int) (bool, error) {
	ttl := time.Duration(hoursAhead)*time.Hour + 2*time.Hour
	ok, err := l.client.SetNX(ctx, ledgerKey(appointmentID, hoursAhead), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reminders: claim %s/%dh: %w", appointmentID, hoursAhead, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, appointmentID string, hoursAhead int) error {
	if err := l.client.Del(ctx, ledgerKey(appointmentID, hoursAhead)).Err(); err != nil {
		return fmt.Errorf("reminders: release %s/%dh: %w", appointmentID, hoursAhead, err)
	}
	return nil
}

func ledgerKey(appointmentID string, hoursAhead int) string {
	return fmt.Sprintf("reminder:sent:%s:%d", appointmentID, hoursAhead)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLedger stores claims in reminder_deliveries; the primary key makes Claim idempotent.
type PostgresLedger struct {
	db execer
}

func NewPostgresLedger(db execer) *PostgresLedger {
	if db == nil {
		panic("reminders: db cannot be nil")
	}
	return &PostgresLedger{db: db}
}

const claimSQL = `INSERT INTO reminder_deliveries (appointment_id, hours_ahead, claimed_at)
VALUES ($1, $2, NOW())
ON CONFLICT (appointment_id, hours_ahead) DO NOTHING`

const releaseSQL = `DELETE FROM reminder_deliveries WHERE appointment_id = $1 AND hours_ahead = $2`

func (l *PostgresLedger) Claim(ctx context.Context, appointmentID string, hoursAhead int) (bool, error) {
	tag, err := l.db.Exec(ctx, claimSQL, appointmentID, hoursAhead)
	if err != nil {
		return false, fmt.Errorf("reminders: claim %s/%dh: %w", appointmentID, hoursAhead, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *PostgresLedger) Release(ctx context.Context, appointmentID string, hoursAhead int) error {
	if _, err := l.db.Exec(ctx, releaseSQL, appointmentID, hoursAhead); err != nil {
		return fmt.Errorf("reminders: release %s/%dh: %w", appointmentID, hoursAhead, err)
	}
	return nil
}
