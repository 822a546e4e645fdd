package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/cmd/xalq/commands"
	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

var rootCmd = &cobra.Command{
	Use:   "xalq",
	Short: "xalq - one report per client row",
	Long: `xalq turns each row of a client spreadsheet into a formatted report.

Every row is routed through a prompt template chosen by its analysis type,
sent to a language model, and the structured answer is poured into the
.docx template.

Available commands:
  run      - Generate reports for a CSV/XLSX file
  rows     - List the rows of a file with their labels
  prompts  - List and inspect prompt templates
  watch    - Process files dropped into the processing folder
  usage    - Show model usage and recent reports
  am       - Manage configuration ("I am")
  version  - Show version and check for updates

Examples:
  xalq run clientes.xlsx                 # One report per row
  xalq run clientes.csv --rows 0,2       # Only rows 0 and 2
  xalq run clientes.csv --type revenue   # Same analysis for every row
  xalq prompts show revenue              # See which prompt a type resolves to
  xalq watch                             # Drop-folder mode`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		opts := logger.Options{
			JSON:      display.ShouldOutputJSON(cmd),
			Verbosity: verbosity,
		}
		// Config problems surface in the commands that need it; logging still starts
		if cfg, err := am.Load(); err == nil {
			opts.JSON = opts.JSON || cfg.Log.JSON
			opts.File = cfg.Log.File
		}
		if err := logger.Initialize(opts); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output machine-readable JSON")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.RowsCmd)
	rootCmd.AddCommand(commands.PromptsCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		logger.Cleanup()
		os.Exit(1)
	}
}
