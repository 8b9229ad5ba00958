package conversation

import (
	"context"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

// IntentExtractor never fails; extraction problems come back as the unknown intent.
type IntentExtractor interface {
	ParseIntent(ctx context.Context, text string) scheduling.Intent
}

// Calendar is the source of truth for appointments.
type Calendar interface {
	CheckAvailability(ctx context.Context, date, clock string) (bool, error)
	CreateAppointment(ctx context.Context, appt scheduling.Appointment) (scheduling.Appointment, error)
	UpdateAppointment(ctx context.Context, id, date, clock string) (scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
	// FindAppointmentByPhone returns nil when the patient has no upcoming appointment.
	FindAppointmentByPhone(ctx context.Context, phone string) (*scheduling.Appointment, error)
	FindAlternatives(ctx context.Context, date, clock string) ([]scheduling.TimeSlot, error)
}

// Messenger delivers outbound SMS.
type Messenger interface {
	SendBookingConfirmation(ctx context.Context, to string, appt scheduling.Appointment) error
	SendAlternatives(ctx context.Context, to, service string, slots []scheduling.TimeSlot) error
	SendCancellationConfirmation(ctx context.Context, to string, appt scheduling.Appointment) error
	Send(ctx context.Context, to, body string) error
}

// ChangeKind labels an appointment change for front-desk notifications.
type ChangeKind string

const (
	ChangeBooked      ChangeKind = "booked"
	ChangeRescheduled ChangeKind = "rescheduled"
	ChangeCanceled    ChangeKind = "canceled"
)

// StaffNotifier tells the front desk about appointments the agent changed.
type StaffNotifier interface {
	NotifyAppointmentChange(ctx context.Context, kind ChangeKind, appt scheduling.Appointment) error
}
