package am

// EngineConfig is the resolved xalq configuration.
//
// Treat it as a value: callers that need a variation use With, and Reload
// produces a fresh instance instead of mutating the one already handed out.
type EngineConfig struct {
	Paths    PathsConfig    `mapstructure:"paths" toml:"paths" json:"paths" yaml:"paths"`
	Backend  BackendConfig  `mapstructure:"backend" toml:"backend" json:"backend" yaml:"backend"`
	Prompts  PromptsConfig  `mapstructure:"prompts" toml:"prompts" json:"prompts" yaml:"prompts"`
	Database DatabaseConfig `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
	Watch    WatchConfig    `mapstructure:"watch" toml:"watch" json:"watch" yaml:"watch"`
	Update   UpdateConfig   `mapstructure:"update" toml:"update" json:"update" yaml:"update"`
}

// PathsConfig holds the working directory layout
type PathsConfig struct {
	Prompts    string `mapstructure:"prompts" toml:"prompts" json:"prompts" yaml:"prompts"`
	Templates  string `mapstructure:"templates" toml:"templates" json:"templates" yaml:"templates"`
	Template   string `mapstructure:"template" toml:"template" json:"template" yaml:"template"` // DOCX template used for every report
	Output     string `mapstructure:"output" toml:"output" json:"output" yaml:"output"`
	Processing string `mapstructure:"processing" toml:"processing" json:"processing" yaml:"processing"` // drop folder for `xalq watch`
	Error      string `mapstructure:"error" toml:"error" json:"error" yaml:"error"`
	Logs       string `mapstructure:"logs" toml:"logs" json:"logs" yaml:"logs"`
}

// BackendConfig configures model invocation
type BackendConfig struct {
	Provider          string           `mapstructure:"provider" toml:"provider" json:"provider" yaml:"provider"` // gemini, openrouter, local, auto
	Model             string           `mapstructure:"model" toml:"model" json:"model" yaml:"model"`
	Temperature       *float64         `mapstructure:"temperature" toml:"temperature,omitempty" json:"temperature,omitempty" yaml:"temperature,omitempty"` // nil = per-model policy
	TopP              float64          `mapstructure:"top_p" toml:"top_p" json:"top_p" yaml:"top_p"`
	MaxOutputTokens   int              `mapstructure:"max_output_tokens" toml:"max_output_tokens" json:"max_output_tokens" yaml:"max_output_tokens"`
	TimeoutSeconds    int              `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
	RequestsPerMinute int              `mapstructure:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute" yaml:"requests_per_minute"` // 0 = unlimited
	FallbackModels    []string         `mapstructure:"fallback_models" toml:"fallback_models" json:"fallback_models" yaml:"fallback_models"`
	Gemini            GeminiConfig     `mapstructure:"gemini" toml:"gemini" json:"gemini" yaml:"gemini"`
	OpenRouter        OpenRouterConfig `mapstructure:"openrouter" toml:"openrouter" json:"openrouter" yaml:"openrouter"`
	Local             LocalConfig      `mapstructure:"local" toml:"local" json:"local" yaml:"local"`
}

// GeminiConfig configures the Gemini API backend
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key" toml:"api_key" json:"api_key" yaml:"api_key"`
}

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey  string `mapstructure:"api_key" toml:"api_key" json:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" toml:"base_url" json:"base_url" yaml:"base_url"`
}

// LocalConfig configures an OpenAI-compatible local server (Ollama, LocalAI, etc.)
type LocalConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`
	BaseURL string `mapstructure:"base_url" toml:"base_url" json:"base_url" yaml:"base_url"` // e.g., "http://localhost:11434"
}

// PromptsConfig configures prompt resolution
type PromptsConfig struct {
	RemoteBaseURL        string            `mapstructure:"remote_base_url" toml:"remote_base_url" json:"remote_base_url" yaml:"remote_base_url"`
	Token                string            `mapstructure:"token" toml:"token" json:"token" yaml:"token"`
	RemoteTimeoutSeconds int               `mapstructure:"remote_timeout_seconds" toml:"remote_timeout_seconds" json:"remote_timeout_seconds" yaml:"remote_timeout_seconds"`
	LegacyMap            map[string]string `mapstructure:"legacy_map" toml:"legacy_map" json:"legacy_map" yaml:"legacy_map"` // label -> canonical file name
}

// DatabaseConfig configures the SQLite usage/report ledger
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// LogConfig configures log sinks
type LogConfig struct {
	JSON bool   `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
	File string `mapstructure:"file" toml:"file" json:"file" yaml:"file"` // empty = console only
}

// WatchConfig configures the drop-folder loop
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms" toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// UpdateConfig configures the version check
type UpdateConfig struct {
	VersionURL  string `mapstructure:"version_url" toml:"version_url" json:"version_url" yaml:"version_url"`
	VersionFile string `mapstructure:"version_file" toml:"version_file" json:"version_file" yaml:"version_file"`
}

// With returns a modified copy of the configuration. The receiver is not changed.
func (c *EngineConfig) With(modify func(*EngineConfig)) *EngineConfig {
	next := c.clone()
	modify(next)
	return next
}

func (c *EngineConfig) clone() *EngineConfig {
	next := *c
	if c.Backend.Temperature != nil {
		t := *c.Backend.Temperature
		next.Backend.Temperature = &t
	}
	if c.Backend.FallbackModels != nil {
		next.Backend.FallbackModels = append([]string(nil), c.Backend.FallbackModels...)
	}
	if c.Prompts.LegacyMap != nil {
		next.Prompts.LegacyMap = make(map[string]string, len(c.Prompts.LegacyMap))
		for k, v := range c.Prompts.LegacyMap {
			next.Prompts.LegacyMap[k] = v
		}
	}
	return &next
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
