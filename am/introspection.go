package am

import (
	"os"
	"sort"
	"strings"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/xalq/am.toml
	SourceUser        ConfigSource = "user"        // ~/.xalq/am.toml
	SourceProject     ConfigSource = "project"     // project am.toml
	SourceEnvironment ConfigSource = "environment" // XALQ_* env vars and .env
)

// ConfigFile is one file in the cascade
type ConfigFile struct {
	Source ConfigSource `json:"source"`
	Path   string       `json:"path"`
}

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// secretKeys are shown masked by Introspect
var secretKeys = map[string]bool{
	"backend.gemini.api_key":     true,
	"backend.openrouter.api_key": true,
	"prompts.token":              true,
}

// Introspect returns every effective setting with the source it came from.
// Secret values are masked.
func Introspect() ([]SettingInfo, error) {
	if _, err := Load(); err != nil {
		return nil, err
	}
	v := GetViper()

	var settings []SettingInfo
	flattenSettings(v.AllSettings(), "", ConfigSources, &settings)
	return settings, nil
}

func flattenSettings(values map[string]interface{}, prefix string, sourceMap map[string]SourceInfo, out *[]SettingInfo) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := values[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		// legacy_map is a leaf: its keys are labels, not config sections
		if nested, ok := value.(map[string]interface{}); ok && fullKey != "prompts.legacy_map" {
			flattenSettings(nested, fullKey, sourceMap, out)
			continue
		}

		info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sourceMap[fullKey]; ok {
			info = si
		}
		envKey := "XALQ_" + strings.ToUpper(strings.ReplaceAll(fullKey, ".", "_"))
		if os.Getenv(envKey) != "" {
			info = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		if secretKeys[fullKey] {
			if s, _ := value.(string); s != "" {
				value = maskSecret(s)
				if info.Source == SourceDefault {
					info = SourceInfo{Source: SourceEnvironment, Path: "env"}
				}
			}
		}

		*out = append(*out, SettingInfo{
			Key:        fullKey,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
}

// maskSecret keeps the last four characters so users can tell keys apart
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}
