package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teranos/xalq/ai/provider"
	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/batch"
	"github.com/teranos/xalq/table"
)

// RunCmd generates reports for one dataset
var RunCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Generate one report per row of a CSV/XLSX file",
	Long: `Generate one .docx report per row of a CSV, XLSX or XLSM file.

Each row's analysis type comes from its "Modelo" column unless --type is
given. A failing row is reported and skipped; the run goes on.

The command exits non-zero when the file cannot be read, or when no
report was produced and at least one row failed.

Examples:
  xalq run clientes.xlsx
  xalq run clientes.csv --rows 0,2
  xalq run clientes.csv --rows "3: Acme" --type revenue
  xalq run clientes.csv --model gemini-2.5-flash --temperature 0.3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runRowsFlag     []string
	runType         string
	runModel        string
	runTemperature  float64
	runProviderFlag string
)

func init() {
	RunCmd.Flags().StringSliceVar(&runRowsFlag, "rows", nil, `Rows to process: indices or labels from "xalq rows" (default: all)`)
	RunCmd.Flags().StringVar(&runType, "type", "", "Analysis type for every row (default: each row's Modelo column)")
	RunCmd.Flags().StringVar(&runModel, "model", "", "Model to try first (default: backend.model)")
	RunCmd.Flags().Float64Var(&runTemperature, "temperature", 0, "Sampling temperature (default: per-model policy)")
	RunCmd.Flags().StringVar(&runProviderFlag, "provider", "", "Backend: gemini, openrouter, local or auto (default: backend.provider)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := am.EnsureDirs(cfg); err != nil {
		return err
	}

	selection, err := parseSelection(runRowsFlag)
	if err != nil {
		return err
	}

	req := batch.Request{
		Path:                 args[0],
		Selection:            selection,
		AnalysisTypeOverride: runType,
		Model:                runModel,
	}
	if cmd.Flags().Changed("temperature") {
		t := runTemperature
		req.Temperature = &t
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	backend, err := newBackend(ctx, cfg, runProviderFlag)
	if err != nil {
		return err
	}

	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}

	orch := batch.FromConfig(cfg, backend, conn)
	result, err := runBatch(ctx, orch, req, eventPrinter(cmd))
	if err != nil {
		return err
	}
	return outcomeError(result)
}

// parseSelection accepts "2" and "2: Acme" forms
func parseSelection(values []string) (batch.Selection, error) {
	if len(values) == 0 {
		return batch.All, nil
	}
	sel := make(batch.Selection, 0, len(values))
	for _, v := range values {
		idx, err := table.ParseLabel(v)
		if err != nil {
			return nil, err
		}
		sel = append(sel, idx)
	}
	return sel, nil
}

func newBackend(ctx context.Context, cfg *am.EngineConfig, flag string) (provider.Backend, error) {
	if flag == "" {
		return provider.New(ctx, cfg)
	}
	p, err := provider.ParseProvider(flag)
	if err != nil {
		return nil, err
	}
	return provider.NewWithProvider(ctx, cfg, p)
}
