package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

type fakeGoogleAPI struct {
	events   []*gcal.Event
	inserted []*gcal.Event
	queries  []string
}

func (f *fakeGoogleAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events"):
		f.queries = append(f.queries, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(gcal.Events{Items: f.events})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/events"):
		var ev gcal.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		ev.Id = "evt-1"
		f.inserted = append(f.inserted, &ev)
		_ = json.NewEncoder(w).Encode(ev)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/calendars/primary"):
		_ = json.NewEncoder(w).Encode(gcal.Calendar{Id: "primary"})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestGoogleCalendar(t *testing.T, api *fakeGoogleAPI) *GoogleCalendar {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := gcal.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewGoogleCalendarFromService(svc, "primary", utcDay(), logging.Discard())
}

func timedEvent(id, summary, phone string, start time.Time) *gcal.Event {
	return &gcal.Event{
		Id:          id,
		Summary:     summary,
		Description: phone,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: start.Add(time.Hour).Format(time.RFC3339)},
	}
}

func TestGoogleCalendarCheckAvailability(t *testing.T) {
	api := &fakeGoogleAPI{events: []*gcal.Event{
		timedEvent("a", "cleaning - Sam", "+15550000001", time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)),
	}}
	cal := newTestGoogleCalendar(t, api)

	free, err := cal.CheckAvailability(context.Background(), "2025-06-10", "14:00")
	require.NoError(t, err)
	assert.False(t, free)
	require.Len(t, api.queries, 1)
	assert.Contains(t, api.queries[0], "singleEvents=true")
}

func TestGoogleCalendarCreateAppointment(t *testing.T) {
	api := &fakeGoogleAPI{}
	cal := newTestGoogleCalendar(t, api)

	appt, err := cal.CreateAppointment(context.Background(), scheduling.Appointment{
		Service:     "cleaning",
		PatientName: "Dana",
		PhoneNumber: "+15551234567",
		Date:        "2025-06-10",
		Time:        "14:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", appt.ID)
	assert.Equal(t, "15:00", appt.EndTime)

	require.Len(t, api.inserted, 1)
	assert.Equal(t, "cleaning - Dana", api.inserted[0].Summary)
	assert.Equal(t, "+15551234567", api.inserted[0].Description)
	assert.Equal(t, "UTC", api.inserted[0].Start.TimeZone)
}

func TestGoogleCalendarFindByPhone(t *testing.T) {
	api := &fakeGoogleAPI{events: []*gcal.Event{
		timedEvent("a", "exam - Sam", "+15550000001", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)),
		timedEvent("b", "cleaning - Dana", "+15551234567", time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)),
	}}
	cal := newTestGoogleCalendar(t, api)

	appt, err := cal.FindAppointmentByPhone(context.Background(), "555-123-4567")
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, "b", appt.ID)
	assert.Equal(t, "cleaning", appt.Service)
	assert.Equal(t, "Dana", appt.PatientName)
	assert.Equal(t, "2025-06-11", appt.Date)
	assert.Equal(t, "10:00", appt.Time)
	assert.Contains(t, api.queries[0], "maxResults=10")

	missing, err := cal.FindAppointmentByPhone(context.Background(), "+15559999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGoogleCalendarCancelNotFound(t *testing.T) {
	cal := newTestGoogleCalendar(t, &fakeGoogleAPI{})

	err := cal.CancelAppointment(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoogleCalendarPing(t *testing.T) {
	cal := newTestGoogleCalendar(t, &fakeGoogleAPI{})
	assert.NoError(t, cal.Ping(context.Background()))
}

func TestParseSummaryDefaults(t *testing.T) {
	service, name := parseSummary("Cleaning - Dana Smith")
	assert.Equal(t, "Cleaning", service)
	assert.Equal(t, "Dana Smith", name)

	service, name = parseSummary("")
	assert.Equal(t, "Appointment", service)
	assert.Equal(t, "Patient", name)
}
