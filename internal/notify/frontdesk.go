package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/dental-scheduler/internal/conversation"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// FrontDesk emails the clinic inbox whenever the agent books, moves or cancels an appointment.
type FrontDesk struct {
	sender     EmailSender
	to         string
	clinicName string
	logger     *logging.Logger
}

func NewFrontDesk(sender EmailSender, to, clinicName string, logger *logging.Logger) *FrontDesk {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &FrontDesk{sender: sender, to: to, clinicName: clinicName, logger: logger}
}

func (f *FrontDesk) NotifyAppointmentChange(ctx context.Context, kind conversation.ChangeKind, appt scheduling.Appointment) error {
	if f.to == "" {
		return nil
	}
	msg := EmailMessage{
		To:      f.to,
		ToName:  f.clinicName,
		Subject: fmt.Sprintf("Appointment %s: %s on %s at %s", kind, appt.Service, appt.Date, appt.Time),
		Body:    changeBody(kind, appt),
	}
	if err := f.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: front desk %s email: %w", kind, err)
	}
	return nil
}

func changeBody(kind conversation.ChangeKind, appt scheduling.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The SMS scheduler %s an appointment.\n\n", kind)
	fmt.Fprintf(&b, "Patient: %s\n", appt.PatientName)
	fmt.Fprintf(&b, "Phone: %s\n", appt.PhoneNumber)
	fmt.Fprintf(&b, "Service: %s\n", appt.Service)
	fmt.Fprintf(&b, "When: %s at %s\n", scheduling.FormatDisplayDate(appt.Date), scheduling.FormatDisplayTime(appt.Time))
	if appt.ID != "" {
		fmt.Fprintf(&b, "Calendar event: %s\n", appt.ID)
	}
	return b.String()
}

var _ conversation.StaffNotifier = (*FrontDesk)(nil)
