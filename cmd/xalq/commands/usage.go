package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/xalq/ai/tracker"
	"github.com/teranos/xalq/batch"
	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/errors"
)

// UsageCmd summarizes model usage and recent reports from the ledger
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show model usage, cost and recent reports",
	Long: `Summarize model calls and generated reports recorded in the database.

Examples:
  xalq usage
  xalq usage --since 168h --limit 50`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

var (
	usageSince time.Duration
	usageLimit int
)

func init() {
	UsageCmd.Flags().DurationVar(&usageSince, "since", 24*time.Hour, "Time window to summarize")
	UsageCmd.Flags().IntVar(&usageLimit, "limit", 20, "Recent reports to list")
}

type usageReport struct {
	Since   time.Time                `json:"since"`
	Stats   *tracker.UsageStats      `json:"stats"`
	Models  []tracker.ModelBreakdown `json:"models"`
	Reports []batch.GeneratedReport  `json:"reports"`
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if conn == nil {
		return errors.WithHint(errors.New("database is disabled"), "set database.enabled = true in am.toml")
	}
	defer conn.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	since := time.Now().Add(-usageSince)
	t := tracker.NewUsageTracker(conn)

	stats, err := t.GetUsageStats(ctx, since)
	if err != nil {
		return err
	}
	models, err := t.GetModelBreakdown(ctx, since)
	if err != nil {
		return err
	}
	reports, err := batch.NewLedger(conn).Recent(ctx, since, usageLimit)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(usageReport{Since: since, Stats: stats, Models: models, Reports: reports})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Since %s: %d requests in %d runs, %.0f%% ok, %d tokens, $%.4f\n\n",
		since.Format(time.RFC3339), stats.TotalRequests, stats.Runs, stats.SuccessRate*100,
		stats.TotalTokens, stats.TotalCost)

	if len(models) > 0 {
		rows := make([][]string, 0, len(models))
		for _, m := range models {
			avg := "-"
			if m.AvgResponseTimeMs != nil {
				avg = strconv.Itoa(int(*m.AvgResponseTimeMs))
			}
			rows = append(rows, []string{
				m.ModelName, m.ModelProvider,
				strconv.Itoa(m.RequestCount), strconv.Itoa(m.FailureCount),
				strconv.Itoa(m.TotalTokens), fmt.Sprintf("%.4f", m.TotalCost), avg,
			})
		}
		if err := display.Table(out, []string{"MODEL", "PROVIDER", "CALLS", "FAILED", "TOKENS", "COST", "AVG MS"}, rows); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports generated in this window")
		return nil
	}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.Timestamp.Local().Format("2006-01-02 15:04"), r.RowID, r.AnalysisType, r.Model, r.OutputPath,
		})
	}
	return display.Table(out, []string{"WHEN", "ROW", "TYPE", "MODEL", "FILE"}, rows)
}
