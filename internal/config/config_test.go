package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "REDIS_ADDR", "REDIS_HOST", "REDIS_PORT", "REMINDER_CHECK_INTERVAL", "LLM_PROVIDER", "CLINIC_TIMEZONE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected default redis addr, got %s", cfg.RedisAddr)
	}
	if cfg.ReminderInterval != time.Hour {
		t.Fatalf("expected hourly reminder interval, got %s", cfg.ReminderInterval)
	}
	if cfg.ReminderCooldown != 5*time.Minute {
		t.Fatalf("expected 5m cooldown, got %s", cfg.ReminderCooldown)
	}
	if cfg.ContextTTL != time.Hour {
		t.Fatalf("expected 1h context ttl, got %s", cfg.ContextTTL)
	}
	if cfg.LLMProvider != "openrouter" {
		t.Fatalf("expected openrouter provider, got %s", cfg.LLMProvider)
	}
	if cfg.ClinicTimezone != "America/Denver" {
		t.Fatalf("expected clinic timezone default, got %s", cfg.ClinicTimezone)
	}
	if cfg.BusinessOpenHour != 9 || cfg.BusinessCloseHour != 17 {
		t.Fatalf("expected 9-17 business hours, got %d-%d", cfg.BusinessOpenHour, cfg.BusinessCloseHour)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected development defaults to validate, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REMINDER_CHECK_INTERVAL", "1800")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("LLM_PROVIDER", " Gemini ")
	t.Setenv("LOCKS_ENABLED", "false")
	t.Setenv("WEBHOOK_RATE_LIMIT", "0.5")
	t.Setenv("PUBLIC_BASE_URL", "https://sms.example.com/")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.RedisAddr != "cache:6380" {
		t.Fatalf("expected host/port redis addr, got %s", cfg.RedisAddr)
	}
	if cfg.ReminderInterval != 30*time.Minute {
		t.Fatalf("expected bare seconds to parse, got %s", cfg.ReminderInterval)
	}
	if cfg.RetryBaseDelay != 250*time.Millisecond {
		t.Fatalf("expected retry delay override, got %s", cfg.RetryBaseDelay)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected normalized provider, got %q", cfg.LLMProvider)
	}
	if cfg.LocksEnabled {
		t.Fatalf("expected locks disabled")
	}
	if cfg.WebhookRateLimit != 0.5 {
		t.Fatalf("expected rate override, got %v", cfg.WebhookRateLimit)
	}
	if cfg.PublicBaseURL != "https://sms.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
}

func TestValidateProductionRequiresCredentials(t *testing.T) {
	cfg := &Config{
		Env:               "production",
		BusinessOpenHour:  9,
		BusinessCloseHour: 17,
		ReminderInterval:  time.Hour,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected production validation error")
	}

	cfg.TwilioAccountSID = "AC123"
	cfg.TwilioAuthToken = "token"
	cfg.TwilioFromNumber = "+15550000000"
	cfg.GoogleClientID = "id"
	cfg.GoogleClientSecret = "secret"
	cfg.GoogleRefreshToken = "refresh"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
}

func TestValidateRejectsInvertedHours(t *testing.T) {
	cfg := &Config{BusinessOpenHour: 17, BusinessCloseHour: 9, ReminderInterval: time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected business hours error")
	}
}
