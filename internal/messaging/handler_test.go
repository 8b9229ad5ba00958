package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-scheduler/internal/conversation"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

type stubRouter struct {
	reply string
	got   []conversation.InboundMessage
}

func (s *stubRouter) HandleMessage(_ context.Context, msg conversation.InboundMessage) string {
	s.got = append(s.got, msg)
	return s.reply
}

const testWebhookURL = "https://scheduler.example.com/webhooks/twilio/sms"

func webhookRequest(form url.Values, authToken string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authToken != "" {
		req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(testWebhookURL, form), authToken))
	}
	return req
}

func smsForm() url.Values {
	return url.Values{
		"MessageSid": {"SM123"},
		"From":       {"+15551234567"},
		"To":         {"+15550000000"},
		"Body":       {"I need a cleaning tomorrow at 2pm"},
	}
}

func TestWebhookRepliesWithTwiML(t *testing.T) {
	router := &stubRouter{reply: "Great! <confirmed> & done"}
	h := NewWebhookHandler(router, "", logging.Discard())

	rec := httptest.NewRecorder()
	h.TwilioSMS(rec, webhookRequest(smsForm(), ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Response><Message>Great! &lt;confirmed&gt; &amp; done</Message></Response>")
	require.Len(t, router.got, 1)
	assert.Equal(t, "SM123", router.got[0].MessageID)
	assert.Equal(t, "+15551234567", router.got[0].From)
}

func TestWebhookValidatesSignature(t *testing.T) {
	router := &stubRouter{reply: "ok"}
	h := NewWebhookHandler(router, "token", logging.Discard()).
		WithPublicBaseURL("https://scheduler.example.com")

	rec := httptest.NewRecorder()
	h.TwilioSMS(rec, webhookRequest(smsForm(), "token"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.TwilioSMS(rec, webhookRequest(smsForm(), "wrong-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.TwilioSMS(rec, webhookRequest(smsForm(), ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, router.got, 1)
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	router := &stubRouter{reply: "ok"}
	h := NewWebhookHandler(router, "", logging.Discard())

	for _, field := range []string{"From", "MessageSid"} {
		form := smsForm()
		form.Del(field)
		rec := httptest.NewRecorder()
		h.TwilioSMS(rec, webhookRequest(form, ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code, field)
	}
	assert.Empty(t, router.got)
}

type memoryDeduper struct {
	seen    map[string]bool
	replies map[string]string
	err     error
}

func (d *memoryDeduper) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	key := provider + ":" + eventID
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memoryDeduper) RecordReply(_ context.Context, provider, eventID, reply string) error {
	if d.err != nil {
		return d.err
	}
	if d.replies == nil {
		d.replies = map[string]string{}
	}
	d.replies[provider+":"+eventID] = reply
	return nil
}

func (d *memoryDeduper) StoredReply(_ context.Context, provider, eventID string) (string, bool, error) {
	if d.err != nil {
		return "", false, d.err
	}
	reply, ok := d.replies[provider+":"+eventID]
	return reply, ok, nil
}

func TestWebhookReplaysReplyOnRedelivery(t *testing.T) {
	router := &stubRouter{reply: "Booked"}
	h := NewWebhookHandler(router, "", logging.Discard()).
		WithDeduper(&memoryDeduper{seen: map[string]bool{}})

	first := httptest.NewRecorder()
	h.TwilioSMS(first, webhookRequest(smsForm(), ""))
	second := httptest.NewRecorder()
	h.TwilioSMS(second, webhookRequest(smsForm(), ""))

	require.Len(t, router.got, 1)
	assert.Contains(t, first.Body.String(), "<Message>Booked</Message>")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestWebhookRedeliveryBeforeReplyRecordedIsEmpty(t *testing.T) {
	router := &stubRouter{reply: "Booked"}
	h := NewWebhookHandler(router, "", logging.Discard()).
		WithDeduper(&memoryDeduper{seen: map[string]bool{"twilio:SM123": true}})

	rec := httptest.NewRecorder()
	h.TwilioSMS(rec, webhookRequest(smsForm(), ""))

	assert.Empty(t, router.got)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response></Response>")
}

func TestWebhookDedupeFailureStillRunsTurn(t *testing.T) {
	router := &stubRouter{reply: "Booked"}
	h := NewWebhookHandler(router, "", logging.Discard()).
		WithDeduper(&memoryDeduper{err: errors.New("redis down")})

	rec := httptest.NewRecorder()
	h.TwilioSMS(rec, webhookRequest(smsForm(), ""))

	require.Len(t, router.got, 1)
	assert.Contains(t, rec.Body.String(), "<Message>Booked</Message>")
}

func TestBuildAbsoluteURLUsesForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms?x=1", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "scheduler.example.com")

	assert.Equal(t, "https://scheduler.example.com/webhooks/twilio/sms?x=1", buildAbsoluteURL(req, ""))
	assert.Equal(t, "https://public.example.com/webhooks/twilio/sms?x=1", buildAbsoluteURL(req, "https://public.example.com/"))
}
