package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

type fakeCalendar struct {
	mu           sync.Mutex
	busy         map[string]bool
	alternatives []scheduling.TimeSlot
	appointments map[string]scheduling.Appointment // keyed by phone
	checkErr     error
	createErr    error

	checkCalls  int
	createCalls int
	updateCalls int
	cancelCalls int
	nextID      int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{busy: map[string]bool{}, appointments: map[string]scheduling.Appointment{}}
}

func (f *fakeCalendar) CheckAvailability(_ context.Context, date, clock string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return !f.busy[date+"T"+clock], nil
}

func (f *fakeCalendar) CreateAppointment(_ context.Context, appt scheduling.Appointment) (scheduling.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return scheduling.Appointment{}, f.createErr
	}
	f.nextID++
	appt.ID = fmt.Sprintf("evt-%d", f.nextID)
	f.appointments[appt.PhoneNumber] = appt
	f.busy[appt.Date+"T"+appt.Time] = true
	return appt, nil
}

func (f *fakeCalendar) UpdateAppointment(_ context.Context, id, date, clock string) (scheduling.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	for phone, appt := range f.appointments {
		if appt.ID == id {
			delete(f.busy, appt.Date+"T"+appt.Time)
			appt.Date, appt.Time = date, clock
			f.appointments[phone] = appt
			f.busy[date+"T"+clock] = true
			return appt, nil
		}
	}
	return scheduling.Appointment{}, fmt.Errorf("appointment %s not found", id)
}

func (f *fakeCalendar) CancelAppointment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	for phone, appt := range f.appointments {
		if appt.ID == id {
			delete(f.appointments, phone)
			delete(f.busy, appt.Date+"T"+appt.Time)
			return nil
		}
	}
	return fmt.Errorf("appointment %s not found", id)
}

func (f *fakeCalendar) FindAppointmentByPhone(_ context.Context, phone string) (*scheduling.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appointments[phone]
	if !ok {
		return nil, nil
	}
	return &appt, nil
}

func (f *fakeCalendar) FindAlternatives(context.Context, string, string) ([]scheduling.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduling.TimeSlot{}, f.alternatives...), nil
}

func (f *fakeCalendar) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls + f.createCalls + f.updateCalls + f.cancelCalls
}

type sentMessage struct {
	kind string
	to   string
	body string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *fakeMessenger) record(kind, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{kind: kind, to: to, body: body})
	return m.err
}

func (m *fakeMessenger) SendBookingConfirmation(_ context.Context, to string, appt scheduling.Appointment) error {
	return m.record("confirmation", to, appt.Date+" "+appt.Time)
}

func (m *fakeMessenger) SendAlternatives(_ context.Context, to, service string, slots []scheduling.TimeSlot) error {
	return m.record("alternatives", to, fmt.Sprintf("%s:%d", service, len(slots)))
}

func (m *fakeMessenger) SendCancellationConfirmation(_ context.Context, to string, appt scheduling.Appointment) error {
	return m.record("cancellation", to, appt.ID)
}

func (m *fakeMessenger) Send(_ context.Context, to, body string) error {
	return m.record("raw", to, body)
}

func (m *fakeMessenger) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.kind)
	}
	return out
}

type fakeExtractor struct {
	intents map[string]scheduling.Intent
	calls   int
}

func (f *fakeExtractor) ParseIntent(_ context.Context, text string) scheduling.Intent {
	f.calls++
	if in, ok := f.intents[text]; ok {
		return in
	}
	return scheduling.UnknownIntent()
}

type recordingNotifier struct {
	changes []ChangeKind
}

func (n *recordingNotifier) NotifyAppointmentChange(_ context.Context, kind ChangeKind, _ scheduling.Appointment) error {
	n.changes = append(n.changes, kind)
	return nil
}

type failingStore struct {
	Store
	getErr error
}

func (s failingStore) Get(ctx context.Context, phone string) (*Context, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.Store.Get(ctx, phone)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type harness struct {
	mr        *miniredis.Miniredis
	store     *RedisStore
	calendar  *fakeCalendar
	messenger *fakeMessenger
	extractor *fakeExtractor
	notifier  *recordingNotifier
	handler   *Handler
	router    *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr, client := newTestRedis(t)
	h := &harness{
		mr:        mr,
		store:     NewRedisStore(client, 0),
		calendar:  newFakeCalendar(),
		messenger: &fakeMessenger{},
		extractor: &fakeExtractor{intents: map[string]scheduling.Intent{}},
		notifier:  &recordingNotifier{},
	}
	locker := NewRedisLocker(client, 0, 0)
	h.handler = NewHandler(h.calendar, h.messenger, h.store, logging.Discard()).
		WithSlotLocker(locker).
		WithNotifier(h.notifier)
	h.router = NewRouter(h.store, h.extractor, h.handler, logging.Discard()).
		WithConversationLocker(locker)
	return h
}

const testPhone = "+15551234567"

func bookIntent(date, clock string) scheduling.Intent {
	return scheduling.Intent{
		Type:        scheduling.IntentBook,
		Date:        date,
		Time:        clock,
		Service:     "cleaning",
		PatientName: "Dana",
	}
}
