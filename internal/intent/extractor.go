// Package intent turns free-text patient messages into structured scheduling intents.
package intent

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-scheduler/internal/llm"
	"github.com/wolfman30/dental-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-scheduler/internal/retry"
	"github.com/wolfman30/dental-scheduler/internal/scheduling"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

var tracer = otel.Tracer("dental.internal.intent")

const (
	defaultTimeout     = 30 * time.Second
	defaultCacheTTL    = 24 * time.Hour
	defaultMaxTokens   = 200
	defaultTemperature = 0.2
	// defaultReserve is the share of the caller's deadline left for the rest of the turn.
	defaultReserve = 2 * time.Second
)

// Extractor calls a language model and never fails past its boundary.
type Extractor struct {
	client   llm.Client
	cache    Cache
	cacheTTL time.Duration
	model    string
	timeout  time.Duration
	reserve  time.Duration
	policy   retry.Policy
	location *time.Location
	now      func() time.Time
	metrics  *metrics.SchedulerMetrics
	logger   *logging.Logger
}

func NewExtractor(client llm.Client, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{
		client:   client,
		cacheTTL: defaultCacheTTL,
		timeout:  defaultTimeout,
		reserve:  defaultReserve,
		policy:   retry.Policy{MaxAttempts: 1},
		location: time.UTC,
		now:      time.Now,
		logger:   logger,
	}
}

func (e *Extractor) WithCache(cache Cache, ttl time.Duration) *Extractor {
	e.cache = cache
	if ttl > 0 {
		e.cacheTTL = ttl
	}
	return e
}

func (e *Extractor) WithModel(model string) *Extractor {
	e.model = strings.TrimSpace(model)
	return e
}

func (e *Extractor) WithTimeout(d time.Duration) *Extractor {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// WithDeadlineReserve sets how much of the caller's deadline extraction leaves unused,
// so the turn can still persist state and reply after a slow model.
func (e *Extractor) WithDeadlineReserve(d time.Duration) *Extractor {
	if d >= 0 {
		e.reserve = d
	}
	return e
}

func (e *Extractor) WithRetryPolicy(p retry.Policy) *Extractor {
	e.policy = p
	return e
}

func (e *Extractor) WithLocation(loc *time.Location) *Extractor {
	if loc != nil {
		e.location = loc
	}
	return e
}

func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	if now != nil {
		e.now = now
	}
	return e
}

func (e *Extractor) WithMetrics(m *metrics.SchedulerMetrics) *Extractor {
	e.metrics = m
	return e
}

// ParseIntent returns the unknown intent on any failure.
func (e *Extractor) ParseIntent(ctx context.Context, message string) scheduling.Intent {
	ctx, span := tracer.Start(ctx, "intent.parse")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" || e.client == nil {
		e.metrics.ObserveExtraction(string(scheduling.IntentUnknown), "skipped")
		return scheduling.UnknownIntent()
	}

	now := e.now().In(e.location)
	key := cacheKey(now.Format(scheduling.DateLayout), message)

	raw, cached := e.cached(ctx, key)
	if !cached {
		var err error
		raw, err = e.complete(ctx, now, message)
		if err != nil {
			e.logger.Error("intent extraction failed", "error", err)
			span.RecordError(err)
			e.metrics.ObserveExtraction(string(scheduling.IntentUnknown), "error")
			return scheduling.UnknownIntent()
		}
	}

	parsed, err := parseResponse(raw, now)
	if err != nil {
		e.logger.Warn("intent response unparseable", "error", err, "response", truncate(raw, 200))
		span.RecordError(err)
		e.metrics.ObserveExtraction(string(scheduling.IntentUnknown), "unparseable")
		return scheduling.UnknownIntent()
	}
	if !cached {
		e.store(ctx, key, raw)
	}

	span.SetAttributes(attribute.String("intent.type", string(parsed.Type)), attribute.Bool("intent.cached", cached))
	outcome := "ok"
	if cached {
		outcome = "cached"
	}
	e.metrics.ObserveExtraction(string(parsed.Type), outcome)
	return parsed
}

func (e *Extractor) complete(ctx context.Context, now time.Time, message string) (string, error) {
	req := llm.Request{
		Model:       e.model,
		System:      []string{systemPrompt(now)},
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: userPrompt(message)}},
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
	ctx, cancel := e.budget(ctx)
	defer cancel()
	resp, err := retry.Get(ctx, e.policy, func(ctx context.Context) (llm.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return e.client.Complete(callCtx, req)
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// budget bounds all attempts to the caller's deadline minus the reserve. When less than
// twice the reserve remains, half of what is left is used.
func (e *Extractor) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	remaining := time.Until(deadline)
	allowed := remaining - e.reserve
	if allowed < remaining/2 {
		allowed = remaining / 2
	}
	return context.WithTimeout(ctx, allowed)
}

func (e *Extractor) cached(ctx context.Context, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	val, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("intent cache read failed", "error", err)
		return "", false
	}
	return val, ok
}

func (e *Extractor) store(ctx context.Context, key, raw string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL); err != nil {
		e.logger.Warn("intent cache write failed", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
