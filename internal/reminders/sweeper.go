// Package reminders sends appointment reminders ahead of fixed windows.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wolfman30/dental-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// DefaultWindows are the hours ahead at which reminders go out.
var DefaultWindows = []int{72, 24, 2}

const (
	DefaultInterval = time.Hour
	DefaultCooldown = 5 * time.Minute
)

// AppointmentSource lists appointments due for a reminder window.
type AppointmentSource interface {
	AppointmentsForReminders(ctx context.Context, hoursAhead int) ([]scheduling.Appointment, error)
}

// ReminderSender delivers one reminder SMS.
type ReminderSender interface {
	SendReminder(ctx context.Context, to string, appt scheduling.Appointment, hoursAhead int) error
}

// Sweeper periodically sends reminders for every window.
type Sweeper struct {
	source   AppointmentSource
	sender   ReminderSender
	ledger   Ledger
	windows  []int
	interval time.Duration
	cooldown time.Duration
	metrics  *metrics.SchedulerMetrics
	logger   *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(source AppointmentSource, sender ReminderSender, ledger Ledger, logger *logging.Logger) *Sweeper {
	if source == nil || sender == nil || ledger == nil {
		panic("reminders: sweeper requires source, sender and ledger")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		source:   source,
		sender:   sender,
		ledger:   ledger,
		windows:  append([]int(nil), DefaultWindows...),
		interval: DefaultInterval,
		cooldown: DefaultCooldown,
		logger:   logger,
	}
}

func (s *Sweeper) WithInterval(d time.Duration) *Sweeper {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithCooldown sets the wait after a pass that panicked.
func (s *Sweeper) WithCooldown(d time.Duration) *Sweeper {
	if d > 0 {
		s.cooldown = d
	}
	return s
}

func (s *Sweeper) WithWindows(hours ...int) *Sweeper {
	if len(hours) > 0 {
		s.windows = append([]int(nil), hours...)
	}
	return s
}

func (s *Sweeper) WithMetrics(m *metrics.SchedulerMetrics) *Sweeper {
	s.metrics = m
	return s
}

// Start launches Run in a goroutine. Calling Start twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		s.Run(ctx)
	}(s.done)
	s.logger.Info("reminder sweeper started", "interval", s.interval.String(), "windows", s.windows)
}

// Stop cancels the wait and blocks until an in-flight pass returns.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("reminder sweeper stopped")
}

// Run sweeps immediately, then after every interval, until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		wait := s.pass(ctx)
		if ctx.Err() != nil {
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pass runs one sweep and returns the wait before the next. Window lookup failures keep
// the normal interval; only a pass that panicked waits the cooldown.
func (s *Sweeper) pass(ctx context.Context) time.Duration {
	err := s.safeSweep(ctx)
	var p *panicError
	if errors.As(err, &p) {
		s.logger.Error("reminder pass failed", "error", err, "retry_in", s.cooldown.String())
		return s.cooldown
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("reminder pass incomplete", "error", err, "next_in", s.interval.String())
	}
	return s.interval
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("reminders: panic during pass: %v", p.value)
}

func (s *Sweeper) safeSweep(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return s.SweepOnce(ctx)
}

// SweepOnce runs every window once. Lookup failures are joined; send failures are logged only.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	var errs []error
	for _, hours := range s.windows {
		appts, err := s.source.AppointmentsForReminders(ctx, hours)
		if err != nil {
			s.logger.Error("reminder lookup failed", "hours_ahead", hours, "error", err)
			errs = append(errs, fmt.Errorf("reminders: lookup %dh: %w", hours, err))
			continue
		}
		if err := s.sendWindow(ctx, hours, appts); err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Sweeper) sendWindow(ctx context.Context, hours int, appts []scheduling.Appointment) error {
	window := strconv.Itoa(hours) + "h"
	sent := 0
	for i, appt := range appts {
		if ctx.Err() != nil {
			s.logger.Warn("reminder pass interrupted", "hours_ahead", hours, "unsent", len(appts)-i)
			return ctx.Err()
		}
		if appt.PhoneNumber == "" || appt.ID == "" {
			continue
		}

		claimed, err := s.ledger.Claim(ctx, appt.ID, hours)
		if err != nil {
			s.logger.Error("reminder claim failed", "appointment_id", appt.ID, "hours_ahead", hours, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		err = s.sender.SendReminder(ctx, appt.PhoneNumber, appt, hours)
		s.metrics.ObserveReminder(window, err)
		if err != nil {
			s.logger.Error("reminder send failed", "appointment_id", appt.ID, "phone", logging.RedactPhone(appt.PhoneNumber), "hours_ahead", hours, "error", err)
			if relErr := s.ledger.Release(context.WithoutCancel(ctx), appt.ID, hours); relErr != nil {
				s.logger.Error("reminder claim release failed", "appointment_id", appt.ID, "error", relErr)
			}
			continue
		}
		sent++
	}
	if sent > 0 {
		s.logger.Info("reminders sent", "hours_ahead", hours, "count", sent)
	}
	return nil
}
