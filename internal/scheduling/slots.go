package scheduling

import (
	"fmt"
	"sort"
	"time"
)

const (
	// DateLayout is the canonical appointment date format.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical appointment time format.
	TimeLayout = "15:04"

	// MaxAlternatives caps the number of slots offered after a conflict.
	MaxAlternatives = 2

	defaultTimezone = "America/Denver"
)

// BusinessDay describes the bookable window of a clinic day.
type BusinessDay struct {
	OpenHour     int
	CloseHour    int
	SlotDuration time.Duration
	Location     *time.Location
}

// DefaultBusinessDay is 09:00-17:00 in hourly slots, clinic local time.
func DefaultBusinessDay() BusinessDay {
	return BusinessDay{
		OpenHour:     9,
		CloseHour:    17,
		SlotDuration: time.Hour,
		Location:     ClinicLocation(defaultTimezone),
	}
}

func (d BusinessDay) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

func (d BusinessDay) duration() time.Duration {
	if d.SlotDuration <= 0 {
		return time.Hour
	}
	return d.SlotDuration
}

// SlotStart combines a date and time into a clinic-local instant.
func (d BusinessDay) SlotStart(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, d.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduling: parse slot %s %s: %w", date, clock, err)
	}
	return t, nil
}

// SlotEnd is the start plus the fixed appointment duration.
func (d BusinessDay) SlotEnd(start time.Time) time.Time {
	return start.Add(d.duration())
}

// Bounds returns the open and close instants for a date.
func (d BusinessDay) Bounds(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, d.location())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("scheduling: parse date %s: %w", date, err)
	}
	open := time.Date(day.Year(), day.Month(), day.Day(), d.OpenHour, 0, 0, 0, d.location())
	closing := time.Date(day.Year(), day.Month(), day.Day(), d.CloseHour, 0, 0, 0, d.location())
	return open, closing, nil
}

// Overlaps uses half-open semantics: touching boundaries do not overlap.
func Overlaps(start, end time.Time, busy BusyInterval) bool {
	return start.Before(busy.End) && end.After(busy.Start)
}

// CheckAvailability reports whether the fixed-duration slot at date/time is free of busy intervals.
func CheckAvailability(day BusinessDay, date, clock string, busy []BusyInterval) (bool, error) {
	start, err := day.SlotStart(date, clock)
	if err != nil {
		return false, err
	}
	end := day.SlotEnd(start)
	for _, b := range busy {
		if Overlaps(start, end, b) {
			return false, nil
		}
	}
	return true, nil
}

// FindAlternatives returns up to MaxAlternatives free slots on date, nearest to the requested time
// first. Ties keep the earlier slot. An empty result means the day has no openings.
func FindAlternatives(day BusinessDay, date, requested string, busy []BusyInterval) ([]TimeSlot, error) {
	target, err := day.SlotStart(date, requested)
	if err != nil {
		return nil, err
	}
	open, closing, err := day.Bounds(date)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		start    time.Time
		distance time.Duration
	}
	var free []candidate
	for start := open; !day.SlotEnd(start).After(closing); start = start.Add(day.duration()) {
		end := day.SlotEnd(start)
		blocked := false
		for _, b := range busy {
			if Overlaps(start, end, b) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		distance := start.Sub(target)
		if distance < 0 {
			distance = -distance
		}
		free = append(free, candidate{start: start, distance: distance})
	}

	sort.SliceStable(free, func(i, j int) bool {
		return free[i].distance < free[j].distance
	})

	if len(free) > MaxAlternatives {
		free = free[:MaxAlternatives]
	}
	out := make([]TimeSlot, 0, len(free))
	for _, c := range free {
		out = append(out, TimeSlot{Date: c.start.Format(DateLayout), Time: c.start.Format(TimeLayout)})
	}
	return out, nil
}

// ReminderWindow returns the lookup range for appointments starting hoursAhead from now.
func ReminderWindow(now time.Time, hoursAhead int, tolerance time.Duration) (time.Time, time.Time) {
	target := now.Add(time.Duration(hoursAhead) * time.Hour)
	return target.Add(-tolerance), target.Add(tolerance)
}

// ClinicLocation returns the *time.Location for a clinic timezone string.
// Falls back to UTC if the timezone is invalid or empty.
func ClinicLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
