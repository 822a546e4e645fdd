package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/xalq/batch"
)

func init() {
	pterm.DisableStyling()
}

func sampleEvents() []batch.Event {
	row := 0
	failedRow := 1
	return []batch.Event{
		{Kind: batch.EventStatus, Message: "Loading clientes.csv"},
		{Kind: batch.EventProgress, Message: "Row 1/2: Acme", Current: 1, Total: 2},
		{Kind: batch.EventRowDone, Message: "Report written: Acme.docx", Row: &row, Report: &batch.GeneratedReport{
			AnalysisType: "revenue", Model: "gemini-2.5-pro", Provenance: "local", SectionsFound: 14,
		}},
		{Kind: batch.EventRowFailed, Message: "Row 1 failed after type_resolved: prompt not found", Row: &failedRow},
		{Kind: batch.EventComplete, Summary: &batch.Summary{Reports: 1, Failures: 1, Selected: 2}},
	}
}

func TestCLIPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIPrinter(&buf, 1)
	for _, ev := range sampleEvents() {
		p.Print(ev)
	}

	out := buf.String()
	assert.Contains(t, out, "[PROGRESS] Loading clientes.csv\n")
	assert.Contains(t, out, "[PROGRESS] Row 1/2: Acme\n")
	assert.Contains(t, out, "Report written: Acme.docx")
	assert.Contains(t, out, "revenue via gemini-2.5-pro (local, 14/14 sections)")
	assert.Contains(t, out, "prompt not found")
	assert.Contains(t, out, "1 reports generated, 1 rows failed (2 selected)")
}

func TestCLIPrinter_QuietHidesDetails(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIPrinter(&buf, 0)
	p.Print(sampleEvents()[2])
	assert.NotContains(t, buf.String(), "sections")
}

func TestJSONPrinter_Follow(t *testing.T) {
	events := make(chan batch.Event, 8)
	for _, ev := range sampleEvents() {
		events <- ev
	}
	close(events)

	var buf bytes.Buffer
	Follow(events, NewJSONPrinter(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)

	var first, last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[4]), &last))
	assert.Equal(t, "status", first["kind"])
	assert.Equal(t, "complete", last["kind"])
	assert.Equal(t, float64(1), last["summary"].(map[string]any)["reports"])
}

func TestShouldOutputJSON(t *testing.T) {
	root := &cobra.Command{Use: "xalq"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "run", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)

	t.Setenv(OutputEnv, "")
	assert.False(t, ShouldOutputJSON(child))

	require.NoError(t, root.PersistentFlags().Set("json", "true"))
	assert.True(t, ShouldOutputJSON(child))

	t.Setenv(OutputEnv, "JSON")
	assert.True(t, ShouldOutputJSON(nil))
}

func TestMarshalJSON(t *testing.T) {
	t.Setenv(OutputEnv, "")
	pretty, err := MarshalJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Contains(t, string(pretty), "\n")

	t.Setenv(OutputEnv, "json")
	compact, err := MarshalJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(compact))
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"Model", "Calls"}, [][]string{{"gemini-2.5-pro", "3"}}))
	assert.Contains(t, buf.String(), "gemini-2.5-pro")

	buf.Reset()
	require.NoError(t, Table(&buf, []string{"Model"}, nil))
	assert.Empty(t, buf.String())
}
