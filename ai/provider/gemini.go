package provider

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/teranos/xalq/errors"
)

// contentGenerator is the slice of *genai.Models the adapter needs
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend calls the Gemini API through google.golang.org/genai
type GeminiBackend struct {
	models  contentGenerator
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// GeminiConfig configures NewGeminiBackend
type GeminiConfig struct {
	APIKey  string
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// NewGeminiBackend creates a Gemini client. The API key is required.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.WithHint(
			errors.New("Gemini API key not configured"),
			"set GEMINI_API_KEY in the environment or .env, or backend.gemini.api_key in am.toml",
		)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}

	return newGeminiBackend(client.Models, cfg), nil
}

func newGeminiBackend(models contentGenerator, cfg GeminiConfig) *GeminiBackend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GeminiBackend{models: models, timeout: cfg.Timeout, logger: logger}
}

// Name implements Backend
func (g *GeminiBackend) Name() Provider { return ProviderGemini }

// Generate implements Backend
func (g *GeminiBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Config.Temperature)),
	}
	if req.Config.TopP > 0 {
		config.TopP = genai.Ptr(float32(req.Config.TopP))
	}
	if req.Config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.Config.MaxOutputTokens)
	}

	g.logger.Debugw("Gemini request",
		"model", req.Config.Model,
		"temperature", req.Config.Temperature,
		"prompt_length", len(req.Prompt),
	)

	resp, err := g.models.GenerateContent(ctx, req.Config.Model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "gemini %s", req.Config.Model)
	}
	if resp == nil {
		return nil, blocked("nil response")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, blocked(geminiBlockReason(resp))
	}

	out := &Response{Text: text, Model: req.Config.Model}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// geminiBlockReason explains an empty response as well as the payload allows
func geminiBlockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].FinishReason != "" {
		return "finish reason: " + string(resp.Candidates[0].FinishReason)
	}
	return "no candidates"
}

var _ Backend = (*GeminiBackend)(nil)
