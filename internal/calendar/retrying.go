package calendar

import (
	"context"
	"errors"

	"github.com/wolfman30/dental-scheduler/internal/retry"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// Retrying applies a backoff policy to idempotent reads. Writes pass straight through.
type Retrying struct {
	next   Calendar
	policy retry.Policy
	logger *logging.Logger
}

func NewRetrying(next Calendar, policy retry.Policy, logger *logging.Logger) *Retrying {
	if logger == nil {
		logger = logging.Default()
	}
	return &Retrying{next: next, policy: policy, logger: logger}
}

func (r *Retrying) CheckAvailability(ctx context.Context, date, clock string) (bool, error) {
	return retry.Get(ctx, r.policy, func(ctx context.Context) (bool, error) {
		ok, err := r.next.CheckAvailability(ctx, date, clock)
		return ok, r.classify("check_availability", err)
	})
}

func (r *Retrying) FindAppointmentByPhone(ctx context.Context, phone string) (*scheduling.Appointment, error) {
	return retry.Get(ctx, r.policy, func(ctx context.Context) (*scheduling.Appointment, error) {
		appt, err := r.next.FindAppointmentByPhone(ctx, phone)
		return appt, r.classify("find_by_phone", err)
	})
}

func (r *Retrying) FindAlternatives(ctx context.Context, date, clock string) ([]scheduling.TimeSlot, error) {
	return retry.Get(ctx, r.policy, func(ctx context.Context) ([]scheduling.TimeSlot, error) {
		slots, err := r.next.FindAlternatives(ctx, date, clock)
		return slots, r.classify("find_alternatives", err)
	})
}

func (r *Retrying) AppointmentsForReminders(ctx context.Context, hoursAhead int) ([]scheduling.Appointment, error) {
	return retry.Get(ctx, r.policy, func(ctx context.Context) ([]scheduling.Appointment, error) {
		appts, err := r.next.AppointmentsForReminders(ctx, hoursAhead)
		return appts, r.classify("reminder_lookup", err)
	})
}

func (r *Retrying) CreateAppointment(ctx context.Context, appt scheduling.Appointment) (scheduling.Appointment, error) {
	return r.next.CreateAppointment(ctx, appt)
}

func (r *Retrying) UpdateAppointment(ctx context.Context, id, date, clock string) (scheduling.Appointment, error) {
	return r.next.UpdateAppointment(ctx, id, date, clock)
}

func (r *Retrying) CancelAppointment(ctx context.Context, id string) error {
	return r.next.CancelAppointment(ctx, id)
}

func (r *Retrying) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func (r *Retrying) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidSlot) || isClientError(err) {
		return retry.Permanent(err)
	}
	r.logger.Warn("calendar read failed, retrying", "op", op, "error", err)
	return err
}
