package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSender writes messages to the log instead of sending them. Used in development.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("messaging: to required")
	}
	s.logger.Info("sms (log only)", "to", logging.RedactPhone(to), "body", body)
	return nil
}
