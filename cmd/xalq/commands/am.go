package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage xalq configuration",
	Long: `am - Manage xalq configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (XALQ_* prefix, GEMINI_API_KEY, OPENROUTER_API_KEY, .env)
3. Project config (./am.toml, searched up the directory tree)
4. User config (~/.xalq/am.toml)
5. System config (/etc/xalq/am.toml)
6. Default values

Examples:
  xalq am show                    # Show current configuration
  xalq am show --format json      # Show configuration in JSON format
  xalq am get backend.model       # Get specific config value
  xalq am validate                # Validate current configuration
  xalq am init                    # Write ./am.toml and create the work directories`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective xalq configuration from all sources. API keys are masked.",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., paths.output, backend.model)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration files in order of precedence, which of them
exist, and the source of every effective setting.`,
	RunE: runAmWhere,
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default am.toml and create the work directories",
	Long: `Write a commented default configuration (default ./am.toml) and create
the prompts, templates, output, processing, error and logs directories.

An existing file is rotated to .back1/.back2/.back3 first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAmInit,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amInitCmd)
}

// masked hides credentials before the config is printed
func masked(cfg *am.EngineConfig) *am.EngineConfig {
	return cfg.With(func(c *am.EngineConfig) {
		if c.Backend.Gemini.APIKey != "" {
			c.Backend.Gemini.APIKey = "***"
		}
		if c.Backend.OpenRouter.APIKey != "" {
			c.Backend.OpenRouter.APIKey = "***"
		}
		if c.Prompts.Token != "" {
			c.Prompts.Token = "***"
		}
	})
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = masked(cfg)

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# xalq configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# xalq configuration\n%s", string(data))

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	if _, err := loadConfig(); err != nil {
		return err
	}
	if !am.GetViper().IsSet(key) {
		return errors.WithHint(
			errors.Mark(errors.Newf("configuration key %q not found", key), errors.ErrNotFound),
			"run `xalq am show` to list the available keys",
		)
	}

	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	settings, err := am.Introspect()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	files := am.ConfigFileCandidates()

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"files":    files,
			"settings": settings,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  [DEFAULT]  Built-in defaults")
	for _, f := range files {
		state := "missing"
		if fileExists(f.Path) {
			state = "found"
		}
		fmt.Fprintf(out, "  [%s]  %s (%s)\n", sourceLabel(f.Source), f.Path, state)
	}
	fmt.Fprintln(out, "  [ENV]      XALQ_* environment variables, .env")
	fmt.Fprintln(out)

	// Group settings by the file (or source) that supplied them
	type group struct {
		source   am.ConfigSource
		path     string
		settings []am.SettingInfo
	}
	groups := make(map[string]*group)
	for _, s := range settings {
		key := s.SourcePath
		if key == "" {
			key = string(s.Source)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{source: s.Source, path: s.SourcePath}
			groups[key] = g
		}
		g.settings = append(g.settings, s)
	}

	sourceOrder := []am.ConfigSource{
		am.SourceDefault,
		am.SourceSystem,
		am.SourceUser,
		am.SourceProject,
		am.SourceEnvironment,
	}

	fmt.Fprintln(out, "Active configuration:")
	for _, source := range sourceOrder {
		var ordered []*group
		for _, g := range groups {
			if g.source == source {
				ordered = append(ordered, g)
			}
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].path < ordered[j].path })

		for _, g := range ordered {
			fmt.Fprintf(out, "\n  [%s] %s\n", sourceLabel(g.source), g.path)
			for _, s := range g.settings {
				fmt.Fprintf(out, "    %s = %v\n", s.Key, s.Value)
			}
		}
	}
	return nil
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := "am.toml"
	if len(args) == 1 {
		path = args[0]
	}

	if err := am.WriteDefault(path); err != nil {
		return err
	}

	cfg, err := am.LoadFromFile(path)
	if err != nil {
		return err
	}
	if err := am.EnsureDirs(cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pterm.Success.WithWriter(out).Printfln("Wrote %s", path)
	for _, dir := range cfg.Dirs() {
		fmt.Fprintf(out, "  %s\n", dir)
	}
	return nil
}

func sourceLabel(s am.ConfigSource) string {
	switch s {
	case am.SourceDefault:
		return "DEFAULT"
	case am.SourceSystem:
		return "SYSTEM "
	case am.SourceUser:
		return "USER   "
	case am.SourceProject:
		return "PROJECT"
	case am.SourceEnvironment:
		return "ENV    "
	}
	return string(s)
}
