package messaging

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-scheduler/internal/conversation"
	"github.com/wolfman30/dental-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

var twilioTracer = otel.Tracer("dental.internal.messaging.twilio")

// DefaultTurnTimeout keeps a turn inside Twilio's 15s webhook deadline.
const DefaultTurnTimeout = 12 * time.Second

// MessageRouter runs one conversation turn and returns the reply text.
type MessageRouter interface {
	HandleMessage(ctx context.Context, msg conversation.InboundMessage) string
}

// Deduper records provider event ids; MarkProcessed reports false for one already seen.
// The reply sent for an event is kept alongside it so a redelivery gets the same answer.
type Deduper interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
	RecordReply(ctx context.Context, provider, eventID, reply string) error
	StoredReply(ctx context.Context, provider, eventID string) (string, bool, error)
}

// WebhookHandler answers Twilio inbound SMS webhooks with a TwiML reply.
type WebhookHandler struct {
	router        MessageRouter
	authToken     string
	publicBaseURL string
	turnTimeout   time.Duration
	deduper       Deduper
	metrics       *metrics.SchedulerMetrics
	logger        *logging.Logger
}

// NewWebhookHandler skips signature checks when authToken is empty.
func NewWebhookHandler(router MessageRouter, authToken string, logger *logging.Logger) *WebhookHandler {
	if router == nil {
		panic("messaging: router cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		router:      router,
		authToken:   authToken,
		turnTimeout: DefaultTurnTimeout,
		logger:      logger,
	}
}

// WithPublicBaseURL sets the externally visible origin Twilio signs requests against.
func (h *WebhookHandler) WithPublicBaseURL(base string) *WebhookHandler {
	h.publicBaseURL = base
	return h
}

func (h *WebhookHandler) WithTurnTimeout(d time.Duration) *WebhookHandler {
	if d > 0 {
		h.turnTimeout = d
	}
	return h
}

// WithDeduper answers Twilio redeliveries of a MessageSid that already ran a turn with the
// stored reply instead of running the turn again.
func (h *WebhookHandler) WithDeduper(d Deduper) *WebhookHandler {
	h.deduper = d
	return h
}

func (h *WebhookHandler) WithMetrics(m *metrics.SchedulerMetrics) *WebhookHandler {
	h.metrics = m
	return h
}

// TwilioSMS handles POST /webhooks/twilio/sms.
func (h *WebhookHandler) TwilioSMS(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := http.StatusOK
	defer func() {
		h.metrics.ObserveWebhookLatency(strconv.Itoa(status), time.Since(started).Seconds())
	}()

	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	if h.authToken != "" && !ValidateTwilioSignature(r, h.authToken, buildAbsoluteURL(r, h.publicBaseURL)) {
		status = http.StatusUnauthorized
		h.logger.Warn("invalid twilio signature")
		span.RecordError(errors.New("invalid twilio signature"))
		http.Error(w, "Unauthorized", status)
		return
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		status = http.StatusBadRequest
		h.logger.Error("failed to parse twilio webhook", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", status)
		return
	}
	if webhook.MessageSid == "" || webhook.From == "" {
		status = http.StatusBadRequest
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", status)
		return
	}
	span.SetAttributes(attribute.String("twilio.message_sid", webhook.MessageSid))

	if h.duplicate(ctx, webhook.MessageSid) {
		body := emptyTwiML
		if reply, ok := h.storedReply(ctx, webhook.MessageSid); ok {
			body = twiml(reply)
		}
		h.logger.Info("duplicate twilio webhook replayed", "message_sid", webhook.MessageSid, "replayed", body != emptyTwiML)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}

	turnCtx, cancel := context.WithTimeout(ctx, h.turnTimeout)
	defer cancel()
	reply := h.router.HandleMessage(turnCtx, conversation.InboundMessage{
		MessageID: webhook.MessageSid,
		From:      webhook.From,
		To:        webhook.To,
		Body:      webhook.Body,
	})
	h.recordReply(ctx, webhook.MessageSid, reply)

	h.logger.Info("twilio webhook handled", "message_sid", webhook.MessageSid, "phone", logging.RedactPhone(webhook.From))
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(twiml(reply)))
}

// duplicate fails open when the dedupe store errors.
func (h *WebhookHandler) duplicate(ctx context.Context, messageSid string) bool {
	if h.deduper == nil {
		return false
	}
	fresh, err := h.deduper.MarkProcessed(ctx, "twilio", messageSid)
	if err != nil {
		h.logger.Warn("webhook dedupe unavailable", "message_sid", messageSid, "error", err)
		return false
	}
	return !fresh
}

func (h *WebhookHandler) storedReply(ctx context.Context, messageSid string) (string, bool) {
	reply, ok, err := h.deduper.StoredReply(ctx, "twilio", messageSid)
	if err != nil {
		h.logger.Warn("stored reply lookup failed", "message_sid", messageSid, "error", err)
		return "", false
	}
	return reply, ok
}

func (h *WebhookHandler) recordReply(ctx context.Context, messageSid, reply string) {
	if h.deduper == nil || reply == "" {
		return
	}
	if err := h.deduper.RecordReply(ctx, "twilio", messageSid, reply); err != nil {
		h.logger.Warn("reply not recorded", "message_sid", messageSid, "error", err)
	}
}

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

func twiml(reply string) string {
	var body strings.Builder
	_ = xml.EscapeText(&body, []byte(reply))
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Message>` + body.String() + `</Message></Response>`
}
