package provider

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/xalq/ai/openrouter"
	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

// New creates the backend named by backend.provider.
// ProviderAuto picks the first configured backend: gemini → openrouter → local.
func New(ctx context.Context, cfg *am.EngineConfig) (Backend, error) {
	p, err := ParseProvider(cfg.Backend.Provider)
	if err != nil {
		return nil, err
	}
	if p == ProviderAuto {
		available := Available(cfg)
		if len(available) == 0 {
			return nil, errors.WithHint(
				errors.New("no model backend configured"),
				"set GEMINI_API_KEY or OPENROUTER_API_KEY, or enable backend.local",
			)
		}
		p = available[0]
	}
	return NewWithProvider(ctx, cfg, p)
}

// NewWithProvider creates a backend for a specific provider
func NewWithProvider(ctx context.Context, cfg *am.EngineConfig, p Provider) (Backend, error) {
	timeout := time.Duration(cfg.BackendTimeoutSeconds()) * time.Second
	log := logger.ComponentLogger("ai." + string(p))

	switch p {
	case ProviderGemini:
		backend, err := NewGeminiBackend(ctx, GeminiConfig{
			APIKey:  cfg.Backend.Gemini.APIKey,
			Timeout: timeout,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case ProviderOpenRouter:
		client := openrouter.NewClient(openrouter.Config{
			APIKey:  cfg.Backend.OpenRouter.APIKey,
			BaseURL: cfg.Backend.OpenRouter.BaseURL,
			Timeout: timeout,
			Logger:  log,
		})
		if !client.IsConfigured() {
			return nil, errors.WithHint(
				errors.New("OpenRouter API key not configured"),
				"set OPENROUTER_API_KEY or backend.openrouter.api_key",
			)
		}
		return NewOpenRouterBackend(client, log), nil
	case ProviderLocal:
		return NewLocalBackend(LocalConfig{
			BaseURL: cfg.Backend.Local.BaseURL,
			Timeout: timeout,
			Logger:  log,
		}), nil
	case ProviderAuto:
		return New(ctx, cfg)
	default:
		return nil, errors.Newf("unknown provider: %s", p)
	}
}

// Available returns the configured providers in auto-selection order
func Available(cfg *am.EngineConfig) []Provider {
	var providers []Provider
	if cfg.Backend.Gemini.APIKey != "" {
		providers = append(providers, ProviderGemini)
	}
	if cfg.Backend.OpenRouter.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}
	if cfg.Backend.Local.Enabled {
		providers = append(providers, ProviderLocal)
	}
	return providers
}

// chatClient is the part of *openrouter.Client the adapter uses
type chatClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// OpenRouterBackend adapts an OpenRouter client to Backend
type OpenRouterBackend struct {
	client chatClient
	logger *zap.SugaredLogger
}

// NewOpenRouterBackend wraps client
func NewOpenRouterBackend(client chatClient, log *zap.SugaredLogger) *OpenRouterBackend {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &OpenRouterBackend{client: client, logger: log}
}

// Name implements Backend
func (o *OpenRouterBackend) Name() Provider { return ProviderOpenRouter }

// Generate implements Backend
func (o *OpenRouterBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	model := OpenRouterModel(req.Config.Model)
	resp, err := o.client.Chat(ctx, openrouter.ChatRequest{
		Prompt:      req.Prompt,
		Model:       model,
		Temperature: req.Config.Temperature,
		TopP:        req.Config.TopP,
		MaxTokens:   req.Config.MaxOutputTokens,
	})
	if err != nil {
		if errors.Is(err, openrouter.ErrEmptyContent) {
			return nil, blocked(err.Error())
		}
		return nil, err
	}
	return &Response{
		Text:         resp.Content,
		Model:        req.Config.Model,
		FinishReason: resp.FinishReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// OpenRouterModel maps a bare Gemini model name onto OpenRouter's vendor/model
// form: "models/gemini-2.5-pro" and "gemini-2.5-pro" both become
// "google/gemini-2.5-pro". Names that already carry a vendor pass through.
func OpenRouterModel(model string) string {
	model = strings.TrimPrefix(model, "models/")
	if strings.Contains(model, "/") {
		return model
	}
	if strings.HasPrefix(model, "gemini") {
		return "google/" + model
	}
	return model
}

var (
	_ Backend    = (*OpenRouterBackend)(nil)
	_ chatClient = (*openrouter.Client)(nil)
)
