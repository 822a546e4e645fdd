package commands

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/batch"
	"github.com/teranos/xalq/db"
	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

// signalContext is cancelled on Ctrl-C or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func loadConfig() (*am.EngineConfig, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "failed to load config"), "run `xalq am where` to see which files are read")
	}
	return cfg, nil
}

// openDatabase returns nil when the ledger is disabled
func openDatabase(cfg *am.EngineConfig) (*sql.DB, error) {
	if !cfg.Database.Enabled || cfg.Database.Path == "" {
		return nil, nil
	}
	conn, err := db.OpenWithMigrations(cfg.Database.Path, logger.ComponentLogger("db"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", cfg.Database.Path)
	}
	return conn, nil
}

func verbosity(cmd *cobra.Command) int {
	v, _ := cmd.Flags().GetCount("verbose")
	return v
}

func eventPrinter(cmd *cobra.Command) display.EventPrinter {
	if display.ShouldOutputJSON(cmd) {
		return display.NewJSONPrinter(cmd.OutOrStdout())
	}
	return display.NewCLIPrinter(cmd.OutOrStdout(), verbosity(cmd))
}

// runBatch runs orch on its own goroutine while this one prints its events
func runBatch(ctx context.Context, orch *batch.Orchestrator, req batch.Request, printer display.EventPrinter) (*batch.Result, error) {
	var (
		result *batch.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = orch.Run(ctx, req)
	}()

	display.Follow(orch.Events(), printer)
	<-done
	return result, runErr
}

// outcomeError turns a finished run into the command's exit status
func outcomeError(result *batch.Result) error {
	switch {
	case result == nil:
		return nil
	case result.Cancelled:
		return errors.Newf("run %s cancelled after %d reports", result.RunID, len(result.Reports))
	case len(result.Reports) == 0 && len(result.Failures) > 0:
		return errors.Newf("no report produced: %d rows failed", len(result.Failures))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
