package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default values referenced outside this package
const (
	DefaultProvider        = "auto"
	DefaultModel           = "gemini-2.5-pro"
	DefaultTopP            = 0.9
	DefaultMaxOutputTokens = 8192
	DefaultRemoteBaseURL   = "https://raw.githubusercontent.com/andreocc/XALQ-Agent/main/prompts"
	DefaultVersionURL      = "https://raw.githubusercontent.com/andreocc/XALQ-Agent/main/version.json"
)

// DefaultLegacyMap maps legacy analysis-type labels to canonical prompt files
func DefaultLegacyMap() map[string]string {
	return map[string]string{
		"b2b (vende para outras empresas)": "revenue",
		"revenue":                          "1_diagnostico_revenue_decision_core.md",
		"operations":                       "1_diagnostico_digital_operations_core.md",
	}
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Directory layout (relative to the working directory)
	v.SetDefault("paths.prompts", "prompts")
	v.SetDefault("paths.templates", "templates")
	v.SetDefault("paths.template", "templates/template.docx")
	v.SetDefault("paths.output", "output")
	v.SetDefault("paths.processing", "processing")
	v.SetDefault("paths.error", "error")
	v.SetDefault("paths.logs", "logs")

	// Backend defaults
	v.SetDefault("backend.provider", DefaultProvider)
	v.SetDefault("backend.model", DefaultModel)
	v.SetDefault("backend.top_p", DefaultTopP)
	v.SetDefault("backend.max_output_tokens", DefaultMaxOutputTokens)
	v.SetDefault("backend.timeout_seconds", 120)
	v.SetDefault("backend.requests_per_minute", 30)
	v.SetDefault("backend.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("backend.local.enabled", false)
	v.SetDefault("backend.local.base_url", "http://localhost:11434")

	// Prompt resolution
	v.SetDefault("prompts.remote_base_url", DefaultRemoteBaseURL)
	v.SetDefault("prompts.remote_timeout_seconds", 10)
	v.SetDefault("prompts.legacy_map", DefaultLegacyMap())

	// Ledger
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.path", "xalq.db")

	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "logs/worker.log")

	v.SetDefault("watch.debounce_ms", 500)

	v.SetDefault("update.version_url", DefaultVersionURL)
	v.SetDefault("update.version_file", "version.json")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
// The unprefixed names are the ones users already have in their .env files.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("backend.gemini.api_key", "XALQ_BACKEND_GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("backend.openrouter.api_key", "XALQ_BACKEND_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("prompts.token", "XALQ_PROMPTS_TOKEN", "GITHUB_PAT")

	v.BindEnv("database.path", "XALQ_DATABASE_PATH")
	v.BindEnv("backend.provider", "XALQ_BACKEND_PROVIDER")
	v.BindEnv("backend.model", "XALQ_BACKEND_MODEL")
}

// BackendTimeoutSeconds returns the backend timeout, never zero
func (c *EngineConfig) BackendTimeoutSeconds() int {
	if c.Backend.TimeoutSeconds <= 0 {
		return 120
	}
	return c.Backend.TimeoutSeconds
}

// RemoteTimeoutSeconds returns the remote prompt fetch timeout, never zero
func (c *EngineConfig) RemoteTimeoutSeconds() int {
	if c.Prompts.RemoteTimeoutSeconds <= 0 {
		return 10
	}
	return c.Prompts.RemoteTimeoutSeconds
}

// LegacyMap returns the configured legacy map, or the default one when unset
func (c *EngineConfig) LegacyMap() map[string]string {
	if len(c.Prompts.LegacyMap) == 0 {
		return DefaultLegacyMap()
	}
	return c.Prompts.LegacyMap
}

// String returns a string representation of the config. Secrets are never included.
func (c *EngineConfig) String() string {
	return fmt.Sprintf("EngineConfig{Backend: {Provider: %s, Model: %s}, Template: %s, Output: %s, Database: %s}",
		c.Backend.Provider, c.Backend.Model, c.Paths.Template, c.Paths.Output, c.Database.Path)
}
