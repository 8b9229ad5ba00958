package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// findByPhoneLimit bounds the upcoming events scanned for a phone match.
const findByPhoneLimit = 10

// GoogleConfig holds the OAuth client and refresh token of the clinic's Google account.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
}

// GoogleCalendar keeps one event per appointment. The event description holds the patient's phone.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
	day        scheduling.BusinessDay
	now        func() time.Time
	logger     *logging.Logger
	tracer     trace.Tracer
}

// NewGoogleCalendar builds a Calendar API client that refreshes access tokens from cfg.RefreshToken.
func NewGoogleCalendar(ctx context.Context, cfg GoogleConfig, day scheduling.BusinessDay, logger *logging.Logger) (*GoogleCalendar, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("calendar: google client id, secret and refresh token are required")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarScope},
	}
	tokens := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	svc, err := gcal.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return NewGoogleCalendarFromService(svc, cfg.CalendarID, day, logger), nil
}

// NewGoogleCalendarFromService wraps an already configured service.
func NewGoogleCalendarFromService(svc *gcal.Service, calendarID string, day scheduling.BusinessDay, logger *logging.Logger) *GoogleCalendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleCalendar{
		svc:        svc,
		calendarID: calendarID,
		day:        day,
		now:        time.Now,
		logger:     logger,
		tracer:     otel.Tracer("dental.internal.calendar"),
	}
}

// WithClock overrides time.Now for upcoming-event and reminder lookups.
func (g *GoogleCalendar) WithClock(now func() time.Time) *GoogleCalendar {
	if now != nil {
		g.now = now
	}
	return g
}

func (g *GoogleCalendar) CheckAvailability(ctx context.Context, date, clock string) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.check_availability")
	defer span.End()

	start, end, err := slotBounds(g.day, date, clock)
	if err != nil {
		return false, err
	}
	busy, err := g.busy(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return scheduling.CheckAvailability(g.day, date, clock, busy)
}

func (g *GoogleCalendar) CreateAppointment(ctx context.Context, appt scheduling.Appointment) (scheduling.Appointment, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.create_appointment")
	defer span.End()

	start, end, err := slotBounds(g.day, appt.Date, appt.Time)
	if err != nil {
		return scheduling.Appointment{}, err
	}
	event := &gcal.Event{
		Summary:     summary(appt.Service, appt.PatientName),
		Description: appt.PhoneNumber,
		Start:       g.eventTime(start),
		End:         g.eventTime(end),
	}
	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return scheduling.Appointment{}, fmt.Errorf("calendar: insert event: %w", err)
	}
	span.SetAttributes(attribute.String("calendar.event_id", created.Id))
	g.logger.Info("calendar event created", "event_id", created.Id, "date", appt.Date, "time", appt.Time)

	now := g.now()
	appt.ID = created.Id
	appt.EndTime = end.Format(scheduling.TimeLayout)
	appt.CreatedAt = &now
	return appt, nil
}

func (g *GoogleCalendar) UpdateAppointment(ctx context.Context, id, date, clock string) (scheduling.Appointment, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.update_appointment")
	defer span.End()

	start, end, err := slotBounds(g.day, date, clock)
	if err != nil {
		return scheduling.Appointment{}, err
	}
	event, err := g.svc.Events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return scheduling.Appointment{}, g.wrapNotFound("get event", id, err)
	}
	event.Start = g.eventTime(start)
	event.End = g.eventTime(end)

	updated, err := g.svc.Events.Update(g.calendarID, id, event).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return scheduling.Appointment{}, g.wrapNotFound("update event", id, err)
	}
	g.logger.Info("calendar event updated", "event_id", updated.Id, "date", date, "time", clock)

	service, name := parseSummary(updated.Summary)
	now := g.now()
	return scheduling.Appointment{
		ID:          updated.Id,
		Service:     service,
		PatientName: name,
		PhoneNumber: updated.Description,
		Date:        date,
		Time:        clock,
		EndTime:     end.Format(scheduling.TimeLayout),
		UpdatedAt:   &now,
	}, nil
}

func (g *GoogleCalendar) CancelAppointment(ctx context.Context, id string) error {
	ctx, span := g.tracer.Start(ctx, "calendar.cancel_appointment")
	defer span.End()

	if err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		span.RecordError(err)
		return g.wrapNotFound("delete event", id, err)
	}
	g.logger.Info("calendar event deleted", "event_id", id)
	return nil
}

func (g *GoogleCalendar) FindAppointmentByPhone(ctx context.Context, phone string) (*scheduling.Appointment, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.find_by_phone")
	defer span.End()

	normalized := scheduling.NormalizePhone(phone)
	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(g.now().Format(time.RFC3339)).
		MaxResults(findByPhoneLimit).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calendar: list upcoming events: %w", err)
	}
	for _, ev := range events.Items {
		if scheduling.NormalizePhone(ev.Description) != normalized {
			continue
		}
		appt, ok := g.toAppointment(ev)
		if !ok {
			continue
		}
		return &appt, nil
	}
	return nil, nil
}

func (g *GoogleCalendar) FindAlternatives(ctx context.Context, date, clock string) ([]scheduling.TimeSlot, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.find_alternatives")
	defer span.End()

	open, closing, err := dayBounds(g.day, date)
	if err != nil {
		return nil, err
	}
	busy, err := g.busy(ctx, open, closing)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	slots, err := scheduling.FindAlternatives(g.day, date, clock, busy)
	if err != nil {
		return nil, errors.Join(ErrInvalidSlot, err)
	}
	return slots, nil
}

func (g *GoogleCalendar) AppointmentsForReminders(ctx context.Context, hoursAhead int) ([]scheduling.Appointment, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.reminder_lookup")
	defer span.End()
	span.SetAttributes(attribute.Int("reminder.hours_ahead", hoursAhead))

	from, to := scheduling.ReminderWindow(g.now(), hoursAhead, ReminderTolerance)
	events, err := g.list(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]scheduling.Appointment, 0, len(events))
	for _, ev := range events {
		appt, ok := g.toAppointment(ev)
		if !ok {
			continue
		}
		// Events that merely overlap the window are not due yet.
		start, _ := g.day.SlotStart(appt.Date, appt.Time)
		if start.Before(from) || start.After(to) {
			continue
		}
		out = append(out, appt)
	}
	return out, nil
}

// Ping fetches the calendar metadata.
func (g *GoogleCalendar) Ping(ctx context.Context) error {
	if _, err := g.svc.Calendars.Get(g.calendarID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: get calendar %s: %w", g.calendarID, err)
	}
	return nil
}

func (g *GoogleCalendar) list(ctx context.Context, from, to time.Time) ([]*gcal.Event, error) {
	var out []*gcal.Event
	call := g.svc.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err := call.Pages(ctx, func(page *gcal.Events) error {
		out = append(out, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	return out, nil
}

func (g *GoogleCalendar) busy(ctx context.Context, from, to time.Time) ([]scheduling.BusyInterval, error) {
	events, err := g.list(ctx, from, to)
	if err != nil {
		return nil, err
	}
	busy := make([]scheduling.BusyInterval, 0, len(events))
	for _, ev := range events {
		if ev.Status == "cancelled" || ev.Transparency == "transparent" {
			continue
		}
		start, end, ok := g.eventSpan(ev)
		if !ok {
			continue
		}
		busy = append(busy, scheduling.BusyInterval{Start: start, End: end})
	}
	return busy, nil
}

// eventSpan handles timed events and all-day events (Date only).
func (g *GoogleCalendar) eventSpan(ev *gcal.Event) (time.Time, time.Time, bool) {
	if ev.Start == nil || ev.End == nil {
		return time.Time{}, time.Time{}, false
	}
	loc := g.location()
	if ev.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start.In(loc), end.In(loc), true
	}
	start, err := time.ParseInLocation(scheduling.DateLayout, ev.Start.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.ParseInLocation(scheduling.DateLayout, ev.End.Date, loc)
	if err != nil {
		end = start.AddDate(0, 0, 1)
	}
	return start, end, true
}

func (g *GoogleCalendar) toAppointment(ev *gcal.Event) (scheduling.Appointment, bool) {
	start, end, ok := g.eventSpan(ev)
	if !ok || ev.Start.DateTime == "" {
		return scheduling.Appointment{}, false
	}
	service, name := parseSummary(ev.Summary)
	return scheduling.Appointment{
		ID:          ev.Id,
		Service:     service,
		PatientName: name,
		PhoneNumber: scheduling.NormalizePhone(ev.Description),
		Date:        start.Format(scheduling.DateLayout),
		Time:        start.Format(scheduling.TimeLayout),
		EndTime:     end.Format(scheduling.TimeLayout),
	}, true
}

func (g *GoogleCalendar) eventTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: g.location().String()}
}

func (g *GoogleCalendar) location() *time.Location {
	if g.day.Location == nil {
		return time.UTC
	}
	return g.day.Location
}

func (g *GoogleCalendar) wrapNotFound(op, id string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("calendar: %s %s: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("calendar: %s %s: %w", op, id, err)
}

// isClientError reports Google API 4xx responses other than rate limiting.
func isClientError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
}
