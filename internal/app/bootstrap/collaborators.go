package bootstrap

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/dental-scheduler/internal/calendar"
	appconfig "github.com/wolfman30/dental-scheduler/internal/config"
	"github.com/wolfman30/dental-scheduler/internal/conversation"
	"github.com/wolfman30/dental-scheduler/internal/messaging"
	"github.com/wolfman30/dental-scheduler/internal/notify"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// BuildCalendar returns the Google calendar when OAuth credentials are set, otherwise an
// in-memory calendar. Either way reads are retried with the configured policy.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (calendar.Calendar, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	day := BusinessDay(cfg)

	var backend calendar.Calendar
	if cfg.GoogleCalendarConfigured() {
		gc, err := calendar.NewGoogleCalendar(ctx, calendar.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
			CalendarID:   cfg.GoogleCalendarID,
		}, day, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("google calendar configured", "calendar_id", cfg.GoogleCalendarID)
		backend = gc
	} else {
		logger.Warn("google calendar not configured; using in-memory calendar")
		backend = calendar.NewMemoryCalendar(day)
	}
	return calendar.NewRetrying(backend, RetryPolicy(cfg), logger), nil
}

// BuildSMSSender returns the Twilio REST sender, or a log-only sender without credentials.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) messaging.SMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		logger.Warn("twilio credentials missing; outbound sms will only be logged")
		return messaging.NewLogSender(logger)
	}
	return messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger).
		WithRetryPolicy(RetryPolicy(cfg))
}

// BuildStaffNotifier picks SendGrid, then SES, then a stub sender for front-desk email.
// It returns nil when FRONT_DESK_EMAIL is empty.
func BuildStaffNotifier(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) conversation.StaffNotifier {
	if cfg == nil || strings.TrimSpace(cfg.FrontDeskEmail) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return notify.NewFrontDesk(buildEmailSender(ctx, cfg, logger), cfg.FrontDeskEmail, cfg.ClinicName, logger)
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.NotifyFromEmail,
		FromName:  cfg.NotifyFromName,
	}, logger); sender != nil {
		logger.Info("front desk email via sendgrid")
		return sender
	}
	if cfg.SESEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err == nil {
			logger.Info("front desk email via ses", "region", cfg.AWSRegion)
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.NotifyFromEmail,
				FromName:  cfg.NotifyFromName,
			}, logger)
		}
		logger.Warn("ses unavailable", "error", err)
	}
	logger.Warn("no email provider configured; front desk notifications are logged only")
	return notify.NewStubEmailSender(logger)
}
