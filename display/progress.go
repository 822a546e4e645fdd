package display

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/teranos/xalq/batch"
	"github.com/teranos/xalq/logger"
	"github.com/teranos/xalq/report"
)

// ProgressTag prefixes every status line
const ProgressTag = "[PROGRESS]"

// EventPrinter renders batch events as they arrive
type EventPrinter interface {
	Print(ev batch.Event)
}

// CLIPrinter prints pterm-styled progress lines
type CLIPrinter struct {
	w         io.Writer
	verbosity int
}

// NewCLIPrinter creates a terminal printer. Verbosity 1 or more adds
// per-report details.
func NewCLIPrinter(w io.Writer, verbosity int) *CLIPrinter {
	return &CLIPrinter{w: w, verbosity: verbosity}
}

// Print writes one event
func (p *CLIPrinter) Print(ev batch.Event) {
	switch ev.Kind {
	case batch.EventStatus, batch.EventProgress:
		fmt.Fprintf(p.w, "%s %s\n", pterm.LightCyan(ProgressTag), ev.Message)

	case batch.EventRowDone:
		pterm.Success.WithWriter(p.w).Println(ev.Message)
		if ev.Report != nil && logger.ShouldOutput(p.verbosity, logger.OutputProgress) {
			fmt.Fprintf(p.w, "  %s %s via %s (%s, %d/%d sections)\n",
				pterm.Gray("→"), ev.Report.AnalysisType, ev.Report.Model,
				ev.Report.Provenance, ev.Report.SectionsFound, len(report.SectionsV1))
		}

	case batch.EventRowFailed:
		pterm.Error.WithWriter(p.w).Println(ev.Message)

	case batch.EventError:
		pterm.Error.WithWriter(p.w).Printf("%s: %s\n", ev.Message, ev.Error)

	case batch.EventComplete:
		p.printSummary(ev.Summary)
	}
}

func (p *CLIPrinter) printSummary(s *batch.Summary) {
	if s == nil {
		return
	}
	msg := fmt.Sprintf("%d reports generated, %d rows failed (%d selected)", s.Reports, s.Failures, s.Selected)
	switch {
	case s.Cancelled:
		pterm.Warning.WithWriter(p.w).Println("Cancelled: " + msg)
	case s.Failures > 0 && s.Reports == 0:
		pterm.Error.WithWriter(p.w).Println(msg)
	case s.Failures > 0:
		pterm.Warning.WithWriter(p.w).Println(msg)
	default:
		pterm.Success.WithWriter(p.w).Println(msg)
	}
}

// JSONPrinter writes one JSON object per event (JSON Lines)
type JSONPrinter struct {
	enc *json.Encoder
}

// NewJSONPrinter creates a JSON Lines printer
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{enc: json.NewEncoder(w)}
}

// Print writes one event
func (p *JSONPrinter) Print(ev batch.Event) {
	_ = p.enc.Encode(ev)
}

// Follow prints events until the channel is closed
func Follow(events <-chan batch.Event, p EventPrinter) {
	for ev := range events {
		p.Print(ev)
	}
}
