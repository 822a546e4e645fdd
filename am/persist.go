package am

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/teranos/xalq/errors"
)

const defaultHeader = `# xalq configuration
#
# Precedence (lowest to highest): built-in defaults, /etc/xalq/am.toml,
# ~/.xalq/am.toml, the nearest am.toml above the working directory,
# .env, then XALQ_* environment variables.
#
# API keys are best kept out of this file: set GEMINI_API_KEY,
# OPENROUTER_API_KEY and GITHUB_PAT in the environment or in .env.

`

// Defaults returns a configuration holding only built-in defaults
func Defaults() *EngineConfig {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults are static; a failure here is a programming error
		panic(err)
	}
	return cfg
}

// MarshalTOML renders a configuration as TOML
func MarshalTOML(cfg *EngineConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return buf.Bytes(), nil
}

// WriteDefault writes a commented default am.toml to path. An existing file
// is rotated into .back1/.back2/.back3 first.
func WriteDefault(path string) error {
	cfg := Defaults()
	// Secrets stay out of files written by us
	cfg.Backend.Gemini.APIKey = ""
	cfg.Backend.OpenRouter.APIKey = ""
	cfg.Prompts.Token = ""

	body, err := MarshalTOML(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	// Mark this as our own write to prevent reload loops
	if w := GetGlobalWatcher(); w != nil {
		w.MarkOwnWrite()
	}

	if err := os.WriteFile(path, append([]byte(defaultHeader), body...), DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete old backup %s", back3)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}
