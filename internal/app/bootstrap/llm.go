package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/dental-scheduler/internal/config"
	"github.com/wolfman30/dental-scheduler/internal/llm"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

const (
	providerOpenRouter = "openrouter"
	providerGemini     = "gemini"
	providerBedrock    = "bedrock"
)

// BuildLLMClient wires LLM_PROVIDER, wrapped with LLM_FALLBACK_PROVIDER when one is set.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	primary, err := buildProvider(ctx, cfg, cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	logger.Info("llm provider configured", "provider", cfg.LLMProvider)

	fallbackName := strings.TrimSpace(cfg.LLMFallbackProvider)
	if fallbackName == "" || fallbackName == cfg.LLMProvider {
		return primary, nil
	}
	fallback, err := buildProvider(ctx, cfg, fallbackName)
	if err != nil {
		logger.Warn("llm fallback provider unavailable", "provider", fallbackName, "error", err)
		return primary, nil
	}
	logger.Info("llm fallback configured", "provider", fallbackName)
	return llm.NewFallbackClient(primary, fallback, logger), nil
}

func buildProvider(ctx context.Context, cfg *appconfig.Config, name string) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", providerOpenRouter:
		return llm.NewOpenRouterClient(llm.OpenRouterConfig{
			APIKey:     cfg.OpenRouterAPIKey,
			BaseURL:    cfg.OpenRouterBaseURL,
			Model:      cfg.OpenRouterModel,
			Referer:    cfg.PublicBaseURL,
			Title:      cfg.ClinicName,
			HTTPClient: &http.Client{Timeout: cfg.LLMTimeout},
		})
	case providerGemini:
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case providerBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}
