package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/xalq/display"
	"github.com/teranos/xalq/table"
)

// RowsCmd prints the selectable row labels of a dataset
var RowsCmd = &cobra.Command{
	Use:   "rows <file>",
	Short: "List the rows of a CSV/XLSX file",
	Long: `List the rows of a dataset as "index: identifier" labels.

Any label (or just its index) can be passed to "xalq run --rows".`,
	Args: cobra.ExactArgs(1),
	RunE: runRows,
}

func runRows(cmd *cobra.Command, args []string) error {
	set, err := table.Load(args[0])
	if err != nil {
		return err
	}
	labels := set.Labels()

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"path":              set.Path,
			"identifier_column": set.IdentifierColumn,
			"columns":           set.Columns,
			"labels":            labels,
		})
	}

	out := cmd.OutOrStdout()
	for _, l := range labels {
		fmt.Fprintln(out, l)
	}
	return nil
}
