package conversation

import (
	"context"
	"errors"

	"github.com/wolfman30/dental-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// Handler applies the booking rules to a structured intent and composes the reply.
// It keeps no state between turns except through the Store.
type Handler struct {
	calendar  Calendar
	messenger Messenger
	store     Store
	locker    Locker
	notifier  StaffNotifier
	clinic    ClinicInfo
	metrics   *metrics.SchedulerMetrics
	logger    *logging.Logger
}

func NewHandler(calendar Calendar, messenger Messenger, store Store, logger *logging.Logger) *Handler {
	if calendar == nil || messenger == nil || store == nil {
		panic("conversation: handler requires calendar, messenger and store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		calendar:  calendar,
		messenger: messenger,
		store:     store,
		locker:    NoopLocker{},
		clinic:    DefaultClinicInfo(),
		logger:    logger,
	}
}

// WithSlotLocker serializes check-then-book per calendar slot.
func (h *Handler) WithSlotLocker(l Locker) *Handler {
	if l != nil {
		h.locker = l
	}
	return h
}

func (h *Handler) WithNotifier(n StaffNotifier) *Handler {
	h.notifier = n
	return h
}

func (h *Handler) WithClinicInfo(info ClinicInfo) *Handler {
	h.clinic = info
	return h
}

func (h *Handler) WithMetrics(m *metrics.SchedulerMetrics) *Handler {
	h.metrics = m
	return h
}

// Handle dispatches on intent type. Validation problems come back as *Error with KindValidation.
func (h *Handler) Handle(ctx context.Context, phone string, intent scheduling.Intent) (string, error) {
	switch intent.Type {
	case scheduling.IntentBook:
		return h.book(ctx, phone, intent)
	case scheduling.IntentReschedule:
		return h.reschedule(ctx, phone, intent)
	case scheduling.IntentCancel:
		return h.cancel(ctx, phone)
	case scheduling.IntentInquiry:
		return h.clinic.inquiryReply(), nil
	default:
		return replyUnknown, nil
	}
}

func (h *Handler) book(ctx context.Context, phone string, in scheduling.Intent) (string, error) {
	if missing := in.MissingBookingFields(); len(missing) > 0 {
		return "", validationError("book", missingFieldsReply(missing))
	}

	var reply string
	err := h.locker.WithLock(ctx, slotLockKey(in.Date, in.Time), func(ctx context.Context) error {
		available, err := h.calendar.CheckAvailability(ctx, in.Date, in.Time)
		if err != nil {
			return collaboratorError("check_availability", err)
		}
		if !available {
			reply, err = h.offerAlternatives(ctx, phone, in, "")
			return err
		}

		appt, err := h.calendar.CreateAppointment(ctx, scheduling.Appointment{
			Service:     in.Service,
			PatientName: in.PatientName,
			PhoneNumber: phone,
			Date:        in.Date,
			Time:        in.Time,
		})
		if err != nil {
			return collaboratorError("create_appointment", err)
		}
		h.logger.Info("appointment booked", "appointment_id", appt.ID, "date", appt.Date, "time", appt.Time, "phone", logging.RedactPhone(phone))

		h.deliver(ctx, "confirmation", func(ctx context.Context) error {
			return h.messenger.SendBookingConfirmation(ctx, phone, appt)
		})
		h.notify(ctx, ChangeBooked, appt)
		reply = bookedReply(in.Service, in.Date, in.Time)
		return nil
	})
	if err != nil {
		return "", wrapLockError("book", err)
	}
	return reply, nil
}

func (h *Handler) reschedule(ctx context.Context, phone string, in scheduling.Intent) (string, error) {
	appt, err := h.calendar.FindAppointmentByPhone(ctx, phone)
	if err != nil {
		return "", collaboratorError("find_appointment", err)
	}
	if appt == nil {
		return "", validationError("reschedule", replyNoAppointment)
	}
	if in.Date == "" || in.Time == "" {
		// The next message is extracted afresh; service and name are not carried forward here.
		return rescheduleAskReply(appt.Service, appt.Date, appt.Time), nil
	}
	return h.move(ctx, phone, *appt, in.Date, in.Time)
}

// rescheduleSelected completes a reschedule after the patient picked an offered slot.
func (h *Handler) rescheduleSelected(ctx context.Context, phone, appointmentID string, slot scheduling.TimeSlot, service, patientName string) (string, error) {
	appt := scheduling.Appointment{ID: appointmentID, Service: service, PatientName: patientName, PhoneNumber: phone}
	return h.move(ctx, phone, appt, slot.Date, slot.Time)
}

func (h *Handler) move(ctx context.Context, phone string, appt scheduling.Appointment, date, clock string) (string, error) {
	var reply string
	err := h.locker.WithLock(ctx, slotLockKey(date, clock), func(ctx context.Context) error {
		available, err := h.calendar.CheckAvailability(ctx, date, clock)
		if err != nil {
			return collaboratorError("check_availability", err)
		}
		if !available {
			reply, err = h.offerAlternatives(ctx, phone, scheduling.Intent{
				Type:        scheduling.IntentReschedule,
				Date:        date,
				Time:        clock,
				Service:     appt.Service,
				PatientName: appt.PatientName,
			}, appt.ID)
			return err
		}

		updated, err := h.calendar.UpdateAppointment(ctx, appt.ID, date, clock)
		if err != nil {
			return collaboratorError("update_appointment", err)
		}
		h.logger.Info("appointment rescheduled", "appointment_id", updated.ID, "date", updated.Date, "time", updated.Time, "phone", logging.RedactPhone(phone))

		h.deliver(ctx, "confirmation", func(ctx context.Context) error {
			return h.messenger.SendBookingConfirmation(ctx, phone, updated)
		})
		h.notify(ctx, ChangeRescheduled, updated)
		reply = rescheduledReply(date, clock)
		return nil
	})
	if err != nil {
		return "", wrapLockError("reschedule", err)
	}
	return reply, nil
}

func (h *Handler) offerAlternatives(ctx context.Context, phone string, in scheduling.Intent, rescheduleID string) (string, error) {
	slots, err := h.calendar.FindAlternatives(ctx, in.Date, in.Time)
	if err != nil {
		return "", collaboratorError("find_alternatives", err)
	}

	h.deliver(ctx, "alternatives", func(ctx context.Context) error {
		return h.messenger.SendAlternatives(ctx, phone, in.Service, slots)
	})
	if len(slots) == 0 {
		return h.clinic.noAlternativesReply(in.Service), nil
	}

	if err := h.store.Update(ctx, phone, func(c *Context) {
		c.OfferAlternatives(slots, in.Service, in.PatientName, rescheduleID)
	}); err != nil {
		return "", collaboratorError("save_alternatives", err)
	}
	return replyAlternativesSent, nil
}

func (h *Handler) cancel(ctx context.Context, phone string) (string, error) {
	appt, err := h.calendar.FindAppointmentByPhone(ctx, phone)
	if err != nil {
		return "", collaboratorError("find_appointment", err)
	}
	if appt == nil {
		return "", validationError("cancel", replyNoAppointment)
	}
	if err := h.calendar.CancelAppointment(ctx, appt.ID); err != nil {
		return "", collaboratorError("cancel_appointment", err)
	}
	h.logger.Info("appointment canceled", "appointment_id", appt.ID, "phone", logging.RedactPhone(phone))

	h.deliver(ctx, "cancellation", func(ctx context.Context) error {
		return h.messenger.SendCancellationConfirmation(ctx, phone, *appt)
	})
	h.notify(ctx, ChangeCanceled, *appt)
	return canceledReply(appt.Service, appt.Date, appt.Time), nil
}

// deliver sends once; failures are logged and never fail the turn.
func (h *Handler) deliver(ctx context.Context, kind string, send func(ctx context.Context) error) {
	err := send(ctx)
	h.metrics.ObserveOutbound(kind, err)
	if err != nil {
		h.logger.Warn("outbound sms failed", "kind", kind, "error", err)
	}
}

func (h *Handler) notify(ctx context.Context, kind ChangeKind, appt scheduling.Appointment) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.NotifyAppointmentChange(ctx, kind, appt); err != nil {
		h.logger.Warn("front desk notification failed", "kind", kind, "appointment_id", appt.ID, "error", err)
	}
}

func wrapLockError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return collaboratorError(op, err)
}
