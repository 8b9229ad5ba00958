package config

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioSkipSignature bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	GoogleCalendarID   string

	ClinicTimezone    string
	ClinicName        string
	ClinicPhone       string
	ClinicAddress     string
	BusinessOpenHour  int
	BusinessCloseHour int

	LLMProvider         string
	LLMFallbackProvider string
	LLMTimeout          time.Duration
	OpenRouterAPIKey    string
	OpenRouterBaseURL   string
	OpenRouterModel     string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string
	AWSRegion           string
	IntentCacheTTL      time.Duration
	LLMMaxAttempts      int

	ContextTTL   time.Duration
	LocksEnabled bool
	LockTTL      time.Duration

	ReminderEnabled  bool
	ReminderInterval time.Duration
	ReminderCooldown time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	WebhookRateLimit float64
	WebhookRateBurst int

	// Front-desk email notifications
	SendGridAPIKey  string
	SESEnabled      bool
	NotifyFromEmail string
	NotifyFromName  string
	FrontDeskEmail  string
}

// Load reads configuration from a .env file (when present) and environment variables
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioSkipSignature: getEnvAsBool("TWILIO_SKIP_SIGNATURE", false),

		RedisAddr:     redisAddr(),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		GoogleCalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),

		ClinicTimezone:    getEnv("CLINIC_TIMEZONE", "America/Denver"),
		ClinicName:        getEnv("CLINIC_NAME", "Dental Office"),
		ClinicPhone:       getEnv("CLINIC_PHONE", ""),
		ClinicAddress:     getEnv("CLINIC_ADDRESS", "123 Main St, Salt Lake City, UT 84101"),
		BusinessOpenHour:  getEnvAsInt("BUSINESS_OPEN_HOUR", 9),
		BusinessCloseHour: getEnvAsInt("BUSINESS_CLOSE_HOUR", 17),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openrouter"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		OpenRouterAPIKey:    getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:   getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:     getEnv("OPENROUTER_MODEL", "deepseek/deepseek-r1-0528:free"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		IntentCacheTTL:      getEnvAsDuration("INTENT_CACHE_TTL", 24*time.Hour),
		LLMMaxAttempts:      getEnvAsInt("LLM_MAX_ATTEMPTS", 1),

		ContextTTL:   getEnvAsDuration("CONTEXT_TTL", time.Hour),
		LocksEnabled: getEnvAsBool("LOCKS_ENABLED", true),
		LockTTL:      getEnvAsDuration("LOCK_TTL", 45*time.Second),

		ReminderEnabled:  getEnvAsBool("REMINDER_ENABLED", true),
		ReminderInterval: getEnvAsDuration("REMINDER_CHECK_INTERVAL", time.Hour),
		ReminderCooldown: getEnvAsDuration("REMINDER_COOLDOWN", 5*time.Minute),

		RetryMaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 2*time.Second),
		RetryMaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", 10*time.Second),

		WebhookRateLimit: getEnvAsFloat("WEBHOOK_RATE_LIMIT", 1),
		WebhookRateBurst: getEnvAsInt("WEBHOOK_RATE_BURST", 5),

		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		SESEnabled:      getEnvAsBool("SES_ENABLED", false),
		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "Dental Scheduler"),
		FrontDeskEmail:  getEnv("FRONT_DESK_EMAIL", ""),
	}
}

// IsProduction reports whether the service runs with production guardrails.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// GoogleCalendarConfigured reports whether OAuth credentials for the calendar are present.
func (c *Config) GoogleCalendarConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
}

// Validate checks the settings production cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.BusinessOpenHour < 0 || c.BusinessCloseHour > 24 || c.BusinessOpenHour >= c.BusinessCloseHour {
		errs = append(errs, errors.New("config: business hours must satisfy 0 <= open < close <= 24"))
	}
	if c.ReminderInterval <= 0 {
		errs = append(errs, errors.New("config: REMINDER_CHECK_INTERVAL must be positive"))
	}
	if !c.IsProduction() {
		return errors.Join(errs...)
	}
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "" {
		errs = append(errs, errors.New("config: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER are required in production"))
	}
	if c.TwilioSkipSignature {
		errs = append(errs, errors.New("config: TWILIO_SKIP_SIGNATURE cannot be enabled in production"))
	}
	if !c.GoogleCalendarConfigured() {
		errs = append(errs, errors.New("config: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN are required in production"))
	}
	return errors.Join(errs...)
}

// redisAddr prefers REDIS_ADDR and falls back to REDIS_HOST/REDIS_PORT.
func redisAddr() string {
	if addr := getEnv("REDIS_ADDR", ""); addr != "" {
		return addr
	}
	return net.JoinHostPort(getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379"))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("3600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
