package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
)

func TestProcessedStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("twilio", "SM1").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	processed, err := store.AlreadyProcessed(context.Background(), "twilio", "SM1")
	if err != nil || !processed {
		t.Fatalf("expected existing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("twilio", "SM-miss").WillReturnError(pgx.ErrNoRows)
	processed, err = store.AlreadyProcessed(context.Background(), "twilio", "SM-miss")
	if err != nil || processed {
		t.Fatalf("expected missing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("twilio", "SM-new").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	ok, err := store.MarkProcessed(context.Background(), "twilio", "SM-new")
	if err != nil || !ok {
		t.Fatalf("expected mark processed success, got %v %v", ok, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("twilio", "SM-new").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	ok, err = store.MarkProcessed(context.Background(), "twilio", "SM-new")
	if err != nil || ok {
		t.Fatalf("expected duplicate to report false, got %v %v", ok, err)
	}

	mock.ExpectExec("UPDATE processed_events SET reply").WithArgs("twilio", "SM-new", "Booked").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.RecordReply(context.Background(), "twilio", "SM-new", "Booked"); err != nil {
		t.Fatalf("expected record reply success, got %v", err)
	}

	mock.ExpectQuery("SELECT reply FROM processed_events").WithArgs("twilio", "SM-new").WillReturnRows(pgxmock.NewRows([]string{"reply"}).AddRow("Booked"))
	reply, found, err := store.StoredReply(context.Background(), "twilio", "SM-new")
	if err != nil || !found || reply != "Booked" {
		t.Fatalf("expected stored reply, got %q %v %v", reply, found, err)
	}

	mock.ExpectQuery("SELECT reply FROM processed_events").WithArgs("twilio", "SM-miss").WillReturnError(pgx.ErrNoRows)
	if _, found, err := store.StoredReply(context.Background(), "twilio", "SM-miss"); err != nil || found {
		t.Fatalf("expected no stored reply, got %v %v", found, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("twilio", "SM-err").WillReturnError(errors.New("db down"))
	if _, err := store.MarkProcessed(context.Background(), "twilio", "SM-err"); err == nil {
		t.Fatalf("expected error from exec failure")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedisProcessedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisProcessedStore(client, time.Hour)
	ctx := context.Background()

	ok, err := store.MarkProcessed(ctx, "twilio", "SM1")
	if err != nil || !ok {
		t.Fatalf("expected first mark to succeed, got %v %v", ok, err)
	}
	ok, err = store.MarkProcessed(ctx, "twilio", "SM1")
	if err != nil || ok {
		t.Fatalf("expected second mark to report duplicate, got %v %v", ok, err)
	}
	processed, err := store.AlreadyProcessed(ctx, "twilio", "SM1")
	if err != nil || !processed {
		t.Fatalf("expected processed, got %v %v", processed, err)
	}

	if _, found, err := store.StoredReply(ctx, "twilio", "SM1"); err != nil || found {
		t.Fatalf("expected no reply before record, got %v %v", found, err)
	}
	if err := store.RecordReply(ctx, "twilio", "SM1", "You're booked"); err != nil {
		t.Fatalf("record reply: %v", err)
	}
	reply, found, err := store.StoredReply(ctx, "twilio", "SM1")
	if err != nil || !found || reply != "You're booked" {
		t.Fatalf("expected stored reply, got %q %v %v", reply, found, err)
	}

	mr.FastForward(2 * time.Hour)
	processed, err = store.AlreadyProcessed(ctx, "twilio", "SM1")
	if err != nil || processed {
		t.Fatalf("expected key to expire, got %v %v", processed, err)
	}
	if _, found, err := store.StoredReply(ctx, "twilio", "SM1"); err != nil || found {
		t.Fatalf("expected reply to expire with the event, got %v %v", found, err)
	}
}
