// Package openrouter is a minimal client for the OpenRouter.ai chat
// completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/internal/httpclient"
)

const (
	// DefaultBaseURL is the public OpenRouter API root
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultMaxRetries bounds attempts for transient network failures
	DefaultMaxRetries = 3
	// DefaultTimeout applies when Config.Timeout is zero
	DefaultTimeout = 120 * time.Second
)

// ErrEmptyContent is returned when the API answers 200 with no text
var ErrEmptyContent = errors.New("empty completion")

// Client represents an OpenRouter.ai API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds client configuration
type Config struct {
	APIKey     string
	BaseURL    string        // empty = DefaultBaseURL
	Timeout    time.Duration // empty = DefaultTimeout
	MaxRetries int           // 0 = DefaultMaxRetries
	Title      string        // X-Title header for the OpenRouter dashboard
	Logger     *zap.SugaredLogger
}

// NewClient creates a new OpenRouter.ai client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.Title == "" {
		config.Title = "xalq"
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpclient.New(config.Timeout),
		config:     config,
		logger:     logger,
	}
}

// ChatCompletionRequest represents a request to the chat completions endpoint
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a message in a chat completion
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from chat completions
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest is a single-turn request
type ChatRequest struct {
	Prompt      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ChatResponse is the trimmed answer plus accounting
type ChatResponse struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// CreateChatCompletion sends one chat completion request to OpenRouter
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", c.config.Title)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &chatResp, nil
}

// Chat sends a single-turn request, retrying transient network failures.
// HTTP errors are returned immediately so the caller can try another model.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHint(
			errors.New("OpenRouter API key not configured"),
			"set OPENROUTER_API_KEY or backend.openrouter.api_key",
		)
	}

	completionReq := ChatCompletionRequest{
		Model:       req.Model,
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}

	maxRetries := c.config.MaxRetries
	var resp *ChatCompletionResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying OpenRouter request",
				"attempt", attempt, "max_retries", maxRetries-1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "OpenRouter request cancelled")
			case <-time.After(delay):
			}
		}

		resp, err = c.CreateChatCompletion(ctx, completionReq)
		if err == nil {
			if attempt > 0 {
				c.logger.Infow("Request succeeded after retries", "attempts", attempt+1, "model", req.Model)
			}
			break
		}

		c.logger.Warnw("OpenRouter API error",
			"attempt", attempt+1, "max_retries", maxRetries,
			"error", err, "model", req.Model)

		if ctx.Err() != nil || !isRetryableError(err) {
			return nil, errors.Wrap(err, "OpenRouter API error")
		}
	}

	if err != nil {
		return nil, errors.Wrapf(err, "OpenRouter API error after %d retries", maxRetries)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Mark(errors.New("no response choices from OpenRouter"), ErrEmptyContent)
	}

	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)

	c.logger.Debugw("OpenRouter response",
		"content_length", len(content),
		"finish_reason", choice.FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
	)

	if content == "" {
		return nil, errors.Mark(errors.Newf("empty content (finish reason %q)", choice.FinishReason), ErrEmptyContent)
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &ChatResponse{
		Content:      content,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

// isRetryableError checks if an error is worth retrying (network-related)
func isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
	}
	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
			return true
		}
	}
	return false
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SetHTTPClient overrides the HTTP client. Tests only; production code keeps
// the SSRF-guarded default.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
