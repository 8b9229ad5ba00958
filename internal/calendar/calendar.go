// Package calendar stores appointments and answers availability questions.
package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

// ReminderTolerance is the half-width of the reminder lookup window.
const ReminderTolerance = 30 * time.Minute

var (
	// ErrNotFound is returned when an appointment ID does not exist.
	ErrNotFound = errors.New("calendar: appointment not found")
	// ErrInvalidSlot is returned for dates or times that do not parse.
	ErrInvalidSlot = errors.New("calendar: invalid date or time")
)

// Calendar is the full surface used by the conversation core, the reminder sweeper and health checks.
type Calendar interface {
	CheckAvailability(ctx context.Context, date, clock string) (bool, error)
	CreateAppointment(ctx context.Context, appt scheduling.Appointment) (scheduling.Appointment, error)
	UpdateAppointment(ctx context.Context, id, date, clock string) (scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
	// FindAppointmentByPhone returns the earliest upcoming appointment, or nil.
	FindAppointmentByPhone(ctx context.Context, phone string) (*scheduling.Appointment, error)
	FindAlternatives(ctx context.Context, date, clock string) ([]scheduling.TimeSlot, error)
	// AppointmentsForReminders returns appointments starting within ReminderTolerance of now+hoursAhead.
	AppointmentsForReminders(ctx context.Context, hoursAhead int) ([]scheduling.Appointment, error)
	Ping(ctx context.Context) error
}

// summary is the event title format shared with the front desk: "{service} - {name}".
func summary(service, patientName string) string {
	return service + " - " + patientName
}

func parseSummary(s string) (service, patientName string) {
	service, patientName = "Appointment", "Patient"
	parts := strings.SplitN(s, " - ", 2)
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		service = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		patientName = strings.TrimSpace(parts[1])
	}
	return service, patientName
}

func slotBounds(day scheduling.BusinessDay, date, clock string) (time.Time, time.Time, error) {
	start, err := day.SlotStart(date, clock)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Join(ErrInvalidSlot, err)
	}
	return start, day.SlotEnd(start), nil
}

func dayBounds(day scheduling.BusinessDay, date string) (time.Time, time.Time, error) {
	open, closing, err := day.Bounds(date)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Join(ErrInvalidSlot, err)
	}
	return open, closing, nil
}
