package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/internal/httpclient"
)

// LocalBackend talks to a local inference server (Ollama, LocalAI or any
// OpenAI-compatible endpoint). Private addresses are allowed; the server is
// expected to run on this machine or the LAN.
type LocalBackend struct {
	baseURL    string
	httpClient *httpclient.SaferClient
	logger     *zap.SugaredLogger
}

// LocalConfig configures NewLocalBackend
type LocalConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// NewLocalBackend creates a backend for a local inference server
func NewLocalBackend(cfg LocalConfig) *LocalBackend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LocalBackend{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpclient.New(cfg.Timeout, httpclient.AllowPrivate()),
		logger:     logger,
	}
}

// chatCompletionRequest matches the OpenAI format (Ollama is compatible)
type chatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Options     *completionOpts `json:"options,omitempty"` // Ollama-specific
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionOpts struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Name implements Backend
func (l *LocalBackend) Name() Provider { return ProviderLocal }

// Generate implements Backend
func (l *LocalBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	body := chatCompletionRequest{
		Model:       req.Config.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Config.Temperature,
		TopP:        req.Config.TopP,
		MaxTokens:   req.Config.MaxOutputTokens,
		Options: &completionOpts{
			Temperature: req.Config.Temperature,
			TopP:        req.Config.TopP,
			NumPredict:  req.Config.MaxOutputTokens,
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	endpoint := l.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	l.logger.Debugw("Local inference request", "model", req.Config.Model, "url", endpoint)

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "local inference %s", req.Config.Model)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Newf("local inference returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}

	if len(completion.Choices) == 0 {
		return nil, blocked("no choices")
	}
	choice := completion.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, blocked("finish reason: " + choice.FinishReason)
	}

	out := &Response{Text: text, Model: req.Config.Model, FinishReason: choice.FinishReason}
	if completion.Usage != nil {
		out.Usage = Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		}
	}
	return out, nil
}

var _ Backend = (*LocalBackend)(nil)
