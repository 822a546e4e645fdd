package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

var (
	loadMu        sync.Mutex
	globalConfig  *EngineConfig
	viperInstance *viper.Viper
)

// ConfigSources records which file or env var supplied each key during the last load
var ConfigSources = map[string]SourceInfo{}

// Load reads the xalq configuration using Viper. The result is cached for the
// process lifetime; use Reload to pick up changes.
func Load() (*EngineConfig, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}
	return loadLocked()
}

// Reload builds a fresh configuration from all sources. Values handed out by
// earlier Load calls are left untouched.
func Reload() (*EngineConfig, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	viperInstance = nil
	return loadLocked()
}

func loadLocked() (*EngineConfig, error) {
	v := initViper()

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	registerSecrets(cfg)

	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	loadMu.Lock()
	defer loadMu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*EngineConfig, error) {
	var config EngineConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*EngineConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Set defaults but don't bind environment variables for this specific load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
}

func registerSecrets(cfg *EngineConfig) {
	logger.RegisterSecret(cfg.Backend.Gemini.APIKey)
	logger.RegisterSecret(cfg.Backend.OpenRouter.APIKey)
	logger.RegisterSecret(cfg.Prompts.Token)
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	// .env values become process env before any binding reads them
	loadDotEnv(".env")

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix("XALQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific sensitive configuration values to environment variables
	BindSensitiveEnvVars(v)

	// Set defaults first
	SetDefaults(v)

	// Manually merge configs in precedence order: system -> user -> project -> env vars
	ConfigSources = mergeConfigFiles(v)

	viperInstance = v
	return v
}

// loadDotEnv copies KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set win.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		logger.Warnw("Ignoring unreadable .env file", logger.FieldPath, path, logger.FieldError, err)
		return
	}

	for _, key := range dv.AllKeys() {
		envKey := strings.ToUpper(key)
		if _, set := os.LookupEnv(envKey); set {
			continue
		}
		_ = os.Setenv(envKey, dv.GetString(key))
	}
}

// findProjectConfig searches for am.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil {
			return amPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// UserConfigDir returns ~/.xalq
func UserConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".xalq")
}

// ConfigFileCandidates lists the config files consulted, lowest precedence first
func ConfigFileCandidates() []ConfigFile {
	files := []ConfigFile{{Source: SourceSystem, Path: "/etc/xalq/am.toml"}}
	if dir := UserConfigDir(); dir != "" {
		files = append(files, ConfigFile{Source: SourceUser, Path: filepath.Join(dir, "am.toml")})
	}
	if project := findProjectConfig(); project != "" {
		files = append(files, ConfigFile{Source: SourceProject, Path: project})
	}
	return files
}

// mergeConfigFiles manually merges configuration files in the correct precedence order.
// Precedence (lowest to highest): system < user < project < env vars
func mergeConfigFiles(v *viper.Viper) map[string]SourceInfo {
	sources := make(map[string]SourceInfo)

	for _, file := range ConfigFileCandidates() {
		if _, err := os.Stat(file.Path); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(file.Path)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err != nil {
			logger.Warnw("Skipping unreadable config file", logger.FieldPath, file.Path, logger.FieldError, err)
			continue
		}

		// MergeConfigMap keeps file values below env vars in viper's precedence
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			logger.Warnw("Skipping config file that failed to merge", logger.FieldPath, file.Path, logger.FieldError, err)
			continue
		}
		for _, key := range tempViper.AllKeys() {
			sources[key] = SourceInfo{Source: file.Source, Path: file.Path}
		}
	}

	return sources
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}
