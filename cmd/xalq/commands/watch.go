package commands

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/batch"
	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/inbox"
	"github.com/teranos/xalq/logger"
)

// WatchCmd runs the drop-folder loop
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate reports for every dataset dropped into the processing folder",
	Long: `Watch paths.processing and run every CSV/XLSX file copied into it.

Each file is processed with all rows selected and each row's own analysis
type. Finished files move to processing/done; files that could not be read
or produced no report move to paths.error.

Changes to the project am.toml are picked up for the next file.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchOnce bool

func init() {
	WatchCmd.Flags().BoolVar(&watchOnce, "once", false, "Process the files already present and exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := am.EnsureDirs(cfg); err != nil {
		return err
	}

	var current atomic.Pointer[am.EngineConfig]
	current.Store(cfg)

	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	log := logger.ComponentLogger("watch")

	if !watchOnce {
		if path := projectConfigPath(); path != "" {
			cw, err := am.NewConfigWatcher(path)
			if err != nil {
				log.Warnw("Config changes will not be picked up", logger.FieldPath, path, logger.FieldError, err)
			} else {
				cw.OnReload(func(next *am.EngineConfig) error {
					current.Store(next)
					log.Infow("Configuration reloaded", logger.FieldPath, path)
					return nil
				})
				am.SetGlobalWatcher(cw)
				cw.Start()
				defer cw.Stop()
			}
		}
	}

	printer := eventPrinter(cmd)
	process := func(ctx context.Context, path string) error {
		return processDropped(ctx, current.Load(), conn, path, printer)
	}

	in, err := inbox.FromConfig(cfg, process)
	if err != nil {
		return err
	}

	if watchOnce {
		n, err := in.Drain(ctx)
		log.Infow("Drop folder drained", logger.FieldCount, n)
		return err
	}
	return in.Run(ctx)
}

// processDropped runs one dropped dataset with a fresh orchestrator
func processDropped(ctx context.Context, cfg *am.EngineConfig, conn *sql.DB, path string, printer display.EventPrinter) error {
	backend, err := newBackend(ctx, cfg, "")
	if err != nil {
		return err
	}
	orch := batch.FromConfig(cfg, backend, conn)
	result, err := runBatch(ctx, orch, batch.Request{Path: path, Selection: batch.All}, printer)
	if err != nil {
		return err
	}
	return outcomeError(result)
}

func projectConfigPath() string {
	for _, f := range am.ConfigFileCandidates() {
		if f.Source == am.SourceProject {
			return f.Path
		}
	}
	return ""
}
