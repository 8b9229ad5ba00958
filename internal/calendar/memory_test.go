package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

func utcDay() scheduling.BusinessDay {
	day := scheduling.DefaultBusinessDay()
	day.Location = time.UTC
	return day
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestMemoryCalendarBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	cal := NewMemoryCalendar(utcDay()).WithClock(fixedClock(time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)))

	appt, err := cal.CreateAppointment(ctx, scheduling.Appointment{
		Service:     "cleaning",
		PatientName: "Dana",
		PhoneNumber: "5551234567",
		Date:        "2025-06-10",
		Time:        "14:00",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, "15:00", appt.EndTime)
	assert.Equal(t, "+15551234567", appt.PhoneNumber)

	free, err := cal.CheckAvailability(ctx, "2025-06-10", "14:00")
	require.NoError(t, err)
	assert.False(t, free)
	free, err = cal.CheckAvailability(ctx, "2025-06-10", "15:00")
	require.NoError(t, err)
	assert.True(t, free)

	found, err := cal.FindAppointmentByPhone(ctx, "+1 (555) 123-4567")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, appt.ID, found.ID)

	moved, err := cal.UpdateAppointment(ctx, appt.ID, "2025-06-11", "10:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11", moved.Date)
	assert.Equal(t, "cleaning", moved.Service)
	free, err = cal.CheckAvailability(ctx, "2025-06-10", "14:00")
	require.NoError(t, err)
	assert.True(t, free)

	require.NoError(t, cal.CancelAppointment(ctx, appt.ID))
	found, err = cal.FindAppointmentByPhone(ctx, "5551234567")
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.ErrorIs(t, cal.CancelAppointment(ctx, appt.ID), ErrNotFound)
	_, err = cal.UpdateAppointment(ctx, appt.ID, "2025-06-11", "11:00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCalendarInvalidSlot(t *testing.T) {
	cal := NewMemoryCalendar(utcDay())
	_, err := cal.CheckAvailability(context.Background(), "June 10", "2pm")
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestMemoryCalendarAlternativesAroundBlocks(t *testing.T) {
	ctx := context.Background()
	cal := NewMemoryCalendar(utcDay())
	cal.Block(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), time.Date(2025, 6, 10, 16, 0, 0, 0, time.UTC))

	slots, err := cal.FindAlternatives(ctx, "2025-06-10", "14:00")
	require.NoError(t, err)
	assert.Equal(t, []scheduling.TimeSlot{{Date: "2025-06-10", Time: "16:00"}}, slots)
}

func TestMemoryCalendarFindByPhoneSkipsPast(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	cal := NewMemoryCalendar(utcDay()).WithClock(fixedClock(now))

	_, err := cal.CreateAppointment(ctx, scheduling.Appointment{PhoneNumber: "+15551234567", Date: "2025-06-10", Time: "09:00", Service: "exam", PatientName: "Dana"})
	require.NoError(t, err)
	later, err := cal.CreateAppointment(ctx, scheduling.Appointment{PhoneNumber: "+15551234567", Date: "2025-06-12", Time: "09:00", Service: "exam", PatientName: "Dana"})
	require.NoError(t, err)

	found, err := cal.FindAppointmentByPhone(ctx, "+15551234567")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, later.ID, found.ID)
}

func TestMemoryCalendarReminderWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)
	cal := NewMemoryCalendar(utcDay()).WithClock(fixedClock(now))

	_, err := cal.CreateAppointment(ctx, scheduling.Appointment{PhoneNumber: "+15551234567", Date: "2025-06-10", Time: "14:00", Service: "cleaning", PatientName: "Dana"})
	require.NoError(t, err)
	_, err = cal.CreateAppointment(ctx, scheduling.Appointment{PhoneNumber: "+15557654321", Date: "2025-06-10", Time: "16:00", Service: "exam", PatientName: "Lee"})
	require.NoError(t, err)

	due, err := cal.AppointmentsForReminders(ctx, 24)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "14:00", due[0].Time)

	due, err = cal.AppointmentsForReminders(ctx, 72)
	require.NoError(t, err)
	assert.Empty(t, due)
}
