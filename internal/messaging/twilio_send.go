package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-scheduler/internal/retry"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

var twilioSendTracer = otel.Tracer("dental.internal.messaging.twilio_send")

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *logging.Logger
}

func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy:     retry.Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.5},
		logger:     logger,
	}
}

// WithBaseURL points the sender at a different API host.
func (s *TwilioSender) WithBaseURL(base string) *TwilioSender {
	if base != "" {
		s.baseURL = strings.TrimRight(base, "/")
	}
	return s
}

func (s *TwilioSender) WithRetryPolicy(p retry.Policy) *TwilioSender {
	s.policy = p
	return s
}

// SendSMS retries only responses Twilio returns before accepting a message (429, 5xx, network).
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("messaging: twilio credentials missing")
	}
	if to == "" {
		return errors.New("messaging: to required")
	}
	if s.from == "" {
		return errors.New("messaging: from required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("dental.to", logging.RedactPhone(to)))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", body)
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	sid, err := retry.Get(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.post(ctx, endpoint, payload)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("twilio.message_sid", sid))
	s.logger.Info("twilio sms sent", "to", logging.RedactPhone(to), "message_sid", sid)
	return nil
}

func (s *TwilioSender) post(ctx context.Context, endpoint string, payload url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messaging: twilio request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed struct {
			SID string `json:"sid"`
		}
		_ = json.Unmarshal(body, &parsed)
		return parsed.SID, nil
	}
	err = fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		return "", retry.Permanent(err)
	}
	return "", err
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
