package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

type capturedSMS struct {
	to   string
	body string
}

type recordingSender struct {
	sent []capturedSMS
	err  error
}

func (s *recordingSender) SendSMS(_ context.Context, to, body string) error {
	s.sent = append(s.sent, capturedSMS{to: to, body: body})
	return s.err
}

func testAppointment() scheduling.Appointment {
	return scheduling.Appointment{
		ID:          "evt-1",
		Service:     "cleaning",
		PatientName: "Dana",
		PhoneNumber: "+15551234567",
		Date:        "2025-06-10",
		Time:        "14:00",
	}
}

func TestNotifierConfirmation(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, "(801) 555-0100", logging.Discard())

	require.NoError(t, n.SendBookingConfirmation(context.Background(), "5551234567", testAppointment()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+15551234567", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "Hi Dana, your cleaning appointment is booked for Tuesday, June 10, 2025 at 02:00 PM")
}

func TestNotifierEmptyAlternatives(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, "(801) 555-0100", logging.Discard())

	require.NoError(t, n.SendAlternatives(context.Background(), "+15551234567", "cleaning", nil))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Sorry, we don't have any available slots for cleaning in the next few days. Please call our office at (801) 555-0100 to schedule.", sender.sent[0].body)
}

func TestNotifierReminderAndCancellation(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, "", logging.Discard())
	ctx := context.Background()

	require.NoError(t, n.SendReminder(ctx, "+15551234567", testAppointment(), 24))
	require.NoError(t, n.SendReminder(ctx, "+15551234567", testAppointment(), 72))
	require.NoError(t, n.SendCancellationConfirmation(ctx, "+15551234567", testAppointment()))

	require.Len(t, sender.sent, 3)
	assert.Contains(t, sender.sent[0].body, "Reminder: Hi Dana, your cleaning appointment is tomorrow on")
	assert.Contains(t, sender.sent[1].body, "is in 72 hours on")
	assert.Contains(t, sender.sent[2].body, "has been canceled. Reply REBOOK")
}

func TestNotifierPropagatesSendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("carrier rejected")}
	n := NewNotifier(sender, "", logging.Discard())

	assert.Error(t, n.Send(context.Background(), "+15551234567", "hi"))
}
