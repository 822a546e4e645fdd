package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/xalq/internal/util"
)

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Backend.Provider)
	assert.Equal(t, DefaultModel, cfg.Backend.Model)
	assert.Nil(t, cfg.Backend.Temperature, "temperature defaults to per-model policy")
	assert.Equal(t, 0.9, cfg.Backend.TopP)
	assert.Equal(t, 8192, cfg.Backend.MaxOutputTokens)
	assert.Equal(t, "templates/template.docx", cfg.Paths.Template)
	assert.Equal(t, "output", cfg.Paths.Output)
	assert.Equal(t, 10, cfg.Prompts.RemoteTimeoutSeconds)
	assert.Equal(t, "revenue", cfg.Prompts.LegacyMap["b2b (vende para outras empresas)"])
	assert.Equal(t, "xalq.db", cfg.Database.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
provider = "gemini"
model = "gemini-2.5-flash"
temperature = 0.4
fallback_models = ["gemini-2.0-flash"]

[prompts.legacy_map]
vendas = "revenue"

[paths]
output = "reports"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Backend.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Backend.Model)
	require.NotNil(t, cfg.Backend.Temperature)
	assert.InDelta(t, 0.4, *cfg.Backend.Temperature, 1e-9)
	assert.Equal(t, []string{"gemini-2.0-flash"}, cfg.Backend.FallbackModels)
	assert.Equal(t, "revenue", cfg.Prompts.LegacyMap["vendas"])
	assert.Equal(t, "reports", cfg.Paths.Output)
	// Untouched keys keep their defaults
	assert.Equal(t, "prompts", cfg.Paths.Prompts)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestWith_DoesNotMutateOriginal(t *testing.T) {
	base := Defaults()
	base.Backend.FallbackModels = []string{"a"}

	next := base.With(func(c *EngineConfig) {
		c.Backend.Model = "gemini-2.0-flash"
		c.Backend.Temperature = util.Ptr(0.7)
		c.Backend.FallbackModels[0] = "b"
		c.Prompts.LegacyMap["extra"] = "x.md"
	})

	assert.Equal(t, DefaultModel, base.Backend.Model)
	assert.Nil(t, base.Backend.Temperature)
	assert.Equal(t, []string{"a"}, base.Backend.FallbackModels)
	assert.NotContains(t, base.Prompts.LegacyMap, "extra")

	assert.Equal(t, "gemini-2.0-flash", next.Backend.Model)
	assert.Equal(t, []string{"b"}, next.Backend.FallbackModels)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*EngineConfig)
		wantErr bool
	}{
		{"defaults are valid", func(*EngineConfig) {}, false},
		{"unknown provider", func(c *EngineConfig) { c.Backend.Provider = "claude" }, true},
		{"provider is case-insensitive", func(c *EngineConfig) { c.Backend.Provider = "Gemini" }, false},
		{"temperature out of range", func(c *EngineConfig) { c.Backend.Temperature = util.Ptr(3.0) }, true},
		{"zero temperature is valid", func(c *EngineConfig) { c.Backend.Temperature = util.Ptr(0.0) }, false},
		{"top_p above one", func(c *EngineConfig) { c.Backend.TopP = 1.5 }, true},
		{"zero rate limit is valid (unlimited)", func(c *EngineConfig) { c.Backend.RequestsPerMinute = 0 }, false},
		{"negative rate limit", func(c *EngineConfig) { c.Backend.RequestsPerMinute = -1 }, true},
		{"local without base url", func(c *EngineConfig) {
			c.Backend.Provider = "local"
			c.Backend.Local.BaseURL = ""
		}, true},
		{"empty output dir", func(c *EngineConfig) { c.Paths.Output = "" }, true},
		{"db enabled without path", func(c *EngineConfig) { c.Database.Path = "" }, true},
		{"db disabled without path", func(c *EngineConfig) {
			c.Database.Enabled = false
			c.Database.Path = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults().With(tt.modify)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "am.toml"), []byte("[backend]\n"), 0o644))

	t.Chdir(nested)

	found := findProjectConfig()
	// macOS temp dirs resolve through /private
	expected, _ := filepath.EvalSymlinks(filepath.Join(tmpDir, "am.toml"))
	got, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, expected, got)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("XALQ_TEST_DOTENV_NEW=from-file\nXALQ_TEST_DOTENV_SET=from-file\n"), 0o644))

	t.Setenv("XALQ_TEST_DOTENV_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("XALQ_TEST_DOTENV_NEW") })

	loadDotEnv(path)

	assert.Equal(t, "from-file", os.Getenv("XALQ_TEST_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("XALQ_TEST_DOTENV_SET"), "existing env wins over .env")
}

func TestBindSensitiveEnvVars(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-test-key")
	t.Setenv("GITHUB_PAT", "ghp_testtoken")

	v := viper.New()
	BindSensitiveEnvVars(v)
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, "gemini-test-key", cfg.Backend.Gemini.APIKey)
	assert.Equal(t, "ghp_testtoken", cfg.Prompts.Token)
}

func TestWriteDefault_RoundTripsAndBacksUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "am.toml")

	require.NoError(t, WriteDefault(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# xalq configuration")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Backend.Model, cfg.Backend.Model)
	assert.Equal(t, Defaults().Prompts.LegacyMap, cfg.Prompts.LegacyMap)

	// Second write rotates the first into .back1
	require.NoError(t, WriteDefault(path))
	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err)
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := Defaults().With(func(c *EngineConfig) {
		c.Paths.Processing = filepath.Join(root, "processing")
		c.Paths.Output = filepath.Join(root, "output")
		c.Paths.Prompts = filepath.Join(root, "prompts")
		c.Paths.Templates = filepath.Join(root, "templates")
		c.Paths.Error = filepath.Join(root, "error")
		c.Paths.Logs = ""
	})

	require.NoError(t, EnsureDirs(cfg))
	for _, name := range []string{"processing", "output", "prompts", "templates", "error"} {
		info, err := os.Stat(filepath.Join(root, name))
		require.NoError(t, err, name)
		assert.True(t, info.IsDir())
	}
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\nmodel = \"first\"\n"), 0o644))

	cw, err := NewConfigWatcher(path,
		WithDebounce(20*time.Millisecond),
		WithLoader(func() (*EngineConfig, error) { return LoadFromFile(path) }),
	)
	require.NoError(t, err)
	defer cw.Stop()

	got := make(chan string, 4)
	cw.OnReload(func(cfg *EngineConfig) error {
		got <- cfg.Backend.Model
		return nil
	})
	cw.Start()

	require.NoError(t, os.WriteFile(path, []byte("[backend]\nmodel = \"second\"\n"), 0o644))

	select {
	case model := <-got:
		assert.Equal(t, "second", model)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}
}

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("/x/am.toml.back1"))
	assert.True(t, isBackupFile("am.toml.back3"))
	assert.False(t, isBackupFile("am.toml"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", maskSecret("short"))
	assert.Equal(t, "***cdef", maskSecret("0123456789abcdef"))
}
