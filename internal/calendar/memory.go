package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

type memoryRecord struct {
	appt  scheduling.Appointment
	start time.Time
	end   time.Time
}

// MemoryCalendar is an in-process Calendar for development and tests.
type MemoryCalendar struct {
	mu      sync.RWMutex
	day     scheduling.BusinessDay
	now     func() time.Time
	records map[string]memoryRecord
	blocked []scheduling.BusyInterval
}

func NewMemoryCalendar(day scheduling.BusinessDay) *MemoryCalendar {
	return &MemoryCalendar{
		day:     day,
		now:     time.Now,
		records: make(map[string]memoryRecord),
	}
}

func (m *MemoryCalendar) WithClock(now func() time.Time) *MemoryCalendar {
	if now != nil {
		m.now = now
	}
	return m
}

// Block marks an interval busy without creating an appointment (staff breaks, meetings).
func (m *MemoryCalendar) Block(start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = append(m.blocked, scheduling.BusyInterval{Start: start, End: end})
}

func (m *MemoryCalendar) CheckAvailability(_ context.Context, date, clock string) (bool, error) {
	if _, _, err := slotBounds(m.day, date, clock); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return scheduling.CheckAvailability(m.day, date, clock, m.busyLocked())
}

func (m *MemoryCalendar) CreateAppointment(_ context.Context, appt scheduling.Appointment) (scheduling.Appointment, error) {
	start, end, err := slotBounds(m.day, appt.Date, appt.Time)
	if err != nil {
		return scheduling.Appointment{}, err
	}
	now := m.now()
	appt.ID = uuid.NewString()
	appt.PhoneNumber = scheduling.NormalizePhone(appt.PhoneNumber)
	appt.EndTime = end.Format(scheduling.TimeLayout)
	appt.CreatedAt = &now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[appt.ID] = memoryRecord{appt: appt, start: start, end: end}
	return appt, nil
}

func (m *MemoryCalendar) UpdateAppointment(_ context.Context, id, date, clock string) (scheduling.Appointment, error) {
	start, end, err := slotBounds(m.day, date, clock)
	if err != nil {
		return scheduling.Appointment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return scheduling.Appointment{}, fmt.Errorf("calendar: update %s: %w", id, ErrNotFound)
	}
	now := m.now()
	rec.appt.Date = date
	rec.appt.Time = clock
	rec.appt.EndTime = end.Format(scheduling.TimeLayout)
	rec.appt.UpdatedAt = &now
	rec.start, rec.end = start, end
	m.records[id] = rec
	return rec.appt, nil
}

func (m *MemoryCalendar) CancelAppointment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("calendar: cancel %s: %w", id, ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryCalendar) FindAppointmentByPhone(_ context.Context, phone string) (*scheduling.Appointment, error) {
	normalized := scheduling.NormalizePhone(phone)
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *memoryRecord
	for _, rec := range m.records {
		if rec.appt.PhoneNumber != normalized || rec.end.Before(now) {
			continue
		}
		if found == nil || rec.start.Before(found.start) {
			r := rec
			found = &r
		}
	}
	if found == nil {
		return nil, nil
	}
	appt := found.appt
	return &appt, nil
}

func (m *MemoryCalendar) FindAlternatives(_ context.Context, date, clock string) ([]scheduling.TimeSlot, error) {
	if _, _, err := slotBounds(m.day, date, clock); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return scheduling.FindAlternatives(m.day, date, clock, m.busyLocked())
}

func (m *MemoryCalendar) AppointmentsForReminders(_ context.Context, hoursAhead int) ([]scheduling.Appointment, error) {
	from, to := scheduling.ReminderWindow(m.now(), hoursAhead, ReminderTolerance)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []scheduling.Appointment
	for _, rec := range m.records {
		if rec.start.Before(from) || rec.start.After(to) {
			continue
		}
		out = append(out, rec.appt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (m *MemoryCalendar) Ping(context.Context) error { return nil }

func (m *MemoryCalendar) busyLocked() []scheduling.BusyInterval {
	busy := make([]scheduling.BusyInterval, 0, len(m.records)+len(m.blocked))
	busy = append(busy, m.blocked...)
	for _, rec := range m.records {
		busy = append(busy, scheduling.BusyInterval{Start: rec.start, End: rec.end})
	}
	return busy
}
