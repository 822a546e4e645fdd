package am

import (
	"strings"

	"github.com/teranos/xalq/errors"
)

var validProviders = map[string]bool{
	"auto":       true,
	"gemini":     true,
	"openrouter": true,
	"local":      true,
}

// Validate checks that the configuration is valid
func (c *EngineConfig) Validate() error {
	provider := strings.ToLower(c.Backend.Provider)
	if provider != "" && !validProviders[provider] {
		return errors.Newf("backend.provider must be one of auto, gemini, openrouter, local; got %q", c.Backend.Provider)
	}

	// Temperature override: nil = per-model policy
	if t := c.Backend.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.Newf("backend.temperature must be within [0, 2], got %f", *t)
	}
	if c.Backend.TopP < 0 || c.Backend.TopP > 1 {
		return errors.Newf("backend.top_p must be within [0, 1], got %f", c.Backend.TopP)
	}
	if c.Backend.MaxOutputTokens < 0 {
		return errors.Newf("backend.max_output_tokens must be >= 0, got %d", c.Backend.MaxOutputTokens)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return errors.Newf("backend.timeout_seconds must be >= 0, got %d", c.Backend.TimeoutSeconds)
	}
	// 0 = unlimited
	if c.Backend.RequestsPerMinute < 0 {
		return errors.Newf("backend.requests_per_minute must be >= 0, got %d", c.Backend.RequestsPerMinute)
	}

	if provider == "local" && c.Backend.Local.BaseURL == "" {
		return errors.New("backend.local.base_url cannot be empty when backend.provider is local")
	}

	if c.Prompts.RemoteTimeoutSeconds < 0 {
		return errors.Newf("prompts.remote_timeout_seconds must be >= 0, got %d", c.Prompts.RemoteTimeoutSeconds)
	}

	if c.Paths.Output == "" {
		return errors.New("paths.output cannot be empty")
	}
	if c.Paths.Prompts == "" {
		return errors.New("paths.prompts cannot be empty")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		return errors.New("database.path cannot be empty when database.enabled is true")
	}

	if c.Watch.DebounceMS < 0 {
		return errors.Newf("watch.debounce_ms must be >= 0, got %d", c.Watch.DebounceMS)
	}

	return nil
}
