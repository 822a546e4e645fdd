package display

import (
	"io"

	"github.com/pterm/pterm"
)

// Table renders rows under a header. Empty input prints nothing.
func Table(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render()
}
