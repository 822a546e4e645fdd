package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show xalq version information",
	Long: `Display version, build time, commit hash, and platform information for the xalq binary.

With --check, compare the installed version.json against the one published
at update.version_url.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var versionCheck bool

func init() {
	VersionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check whether a newer release is published")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()

	if !versionCheck {
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(info)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, info.String())
		fmt.Fprintf(out, "Platform: %s\n", info.Platform)
		fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Update.VersionURL == "" {
		return errors.WithHint(errors.New("no update URL configured"), "set update.version_url in am.toml")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	result, err := version.NewChecker(cfg.Update.VersionURL).Check(ctx, cfg.Update.VersionFile)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(result)
	}

	out := cmd.OutOrStdout()
	switch {
	case result.Critical:
		pterm.Error.WithWriter(out).Printfln("Critical update: %s -> %s", result.Local, result.Remote)
	case result.UpdateAvailable:
		pterm.Warning.WithWriter(out).Printfln("Update available: %s -> %s", result.Local, result.Remote)
	default:
		pterm.Success.WithWriter(out).Printfln("Up to date (%s)", result.Local)
	}
	if result.UpdateAvailable && result.Notes != "" {
		fmt.Fprintln(out, result.Notes)
	}
	return nil
}
