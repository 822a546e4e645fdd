// Package provider defines the Backend abstraction over generative model
// services and the adapters for Gemini, OpenRouter and local
// OpenAI-compatible servers.
package provider

import (
	"context"
	"strings"

	"github.com/teranos/xalq/errors"
)

// Provider names a backend implementation
type Provider string

const (
	// ProviderGemini uses the Gemini API through google.golang.org/genai
	ProviderGemini Provider = "gemini"
	// ProviderOpenRouter uses OpenRouter.ai
	ProviderOpenRouter Provider = "openrouter"
	// ProviderLocal uses Ollama, LocalAI or any OpenAI-compatible local server
	ProviderLocal Provider = "local"
	// ProviderAuto selects the first configured backend
	ProviderAuto Provider = "auto"
)

// ErrBlocked is returned when a call succeeds but yields no text, typically
// because a safety filter withheld the answer. Retrying another model with
// the same prompt is pointless.
var ErrBlocked = errors.New("generation blocked")

// GenerationConfig holds the sampling parameters for one call
type GenerationConfig struct {
	Model           string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

// Request is a single-turn generation request
type Request struct {
	Prompt string
	Config GenerationConfig
}

// Usage is token accounting reported by the backend (zero when unknown)
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a successful generation
type Response struct {
	Text         string
	Model        string
	FinishReason string
	Usage        Usage
}

// Backend generates text from a prompt. Implementations return ErrBlocked
// for empty-but-successful responses and any other error for failures the
// caller may retry with a different model.
type Backend interface {
	Name() Provider
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ParseProvider converts a string to a Provider
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google":
		return ProviderGemini, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "auto", "":
		return ProviderAuto, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: gemini, openrouter, local, auto)", s)
	}
}

// blocked marks err as ErrBlocked with a reason detail
func blocked(reason string) error {
	err := errors.Mark(errors.Newf("empty response (%s)", reason), ErrBlocked)
	return errors.WithDetail(err, reason)
}
