package messaging

import (
	"context"
	"fmt"

	"github.com/wolfman30/dental-scheduler/internal/messaging/templates"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// Notifier renders patient-facing SMS and hands them to an SMSSender.
type Notifier struct {
	sender      SMSSender
	renderer    *templates.Renderer
	clinicPhone string
	logger      *logging.Logger
}

func NewNotifier(sender SMSSender, clinicPhone string, logger *logging.Logger) *Notifier {
	if sender == nil {
		panic("messaging: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		sender:      sender,
		renderer:    templates.NewRenderer(),
		clinicPhone: clinicPhone,
		logger:      logger,
	}
}

func (n *Notifier) SendBookingConfirmation(ctx context.Context, to string, appt scheduling.Appointment) error {
	return n.render(ctx, to, templates.Confirmation, appt)
}

// SendAlternatives lists the offered slots, or says none are left when slots is empty.
func (n *Notifier) SendAlternatives(ctx context.Context, to, service string, slots []scheduling.TimeSlot) error {
	if len(slots) == 0 {
		return n.render(ctx, to, templates.NoAlternatives, struct {
			Service     string
			ClinicPhone string
		}{service, n.clinicPhone})
	}
	return n.render(ctx, to, templates.Alternatives, struct {
		Service string
		Slots   []scheduling.TimeSlot
	}{service, slots})
}

func (n *Notifier) SendCancellationConfirmation(ctx context.Context, to string, appt scheduling.Appointment) error {
	return n.render(ctx, to, templates.Cancellation, appt)
}

// SendReminder says "tomorrow" for the 24h window and "in N hours" otherwise.
func (n *Notifier) SendReminder(ctx context.Context, to string, appt scheduling.Appointment, hoursAhead int) error {
	return n.render(ctx, to, templates.Reminder, struct {
		PatientName string
		Service     string
		Date        string
		Time        string
		HoursAhead  int
	}{appt.PatientName, appt.Service, appt.Date, appt.Time, hoursAhead})
}

func (n *Notifier) Send(ctx context.Context, to, body string) error {
	return n.sender.SendSMS(ctx, scheduling.NormalizePhone(to), body)
}

func (n *Notifier) render(ctx context.Context, to, name string, data any) error {
	body, err := n.renderer.Render(name, data)
	if err != nil {
		return fmt.Errorf("messaging: render %s: %w", name, err)
	}
	return n.Send(ctx, to, body)
}
