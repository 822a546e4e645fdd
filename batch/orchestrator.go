// Package batch drives a dataset through prompt resolution, generation,
// parsing and rendering, one row at a time. A failing row is recorded and
// the run moves on; only dataset-level problems abort a run.
package batch

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/xalq/ai/invoker"
	"github.com/teranos/xalq/ai/provider"
	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/db"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
	"github.com/teranos/xalq/prompt"
	"github.com/teranos/xalq/render"
	"github.com/teranos/xalq/report"
	"github.com/teranos/xalq/table"
)

// ClientDataHeader separates the prompt template from the row data
const ClientDataHeader = "\n\nDADOS DO CLIENTE:\n"

// analysisTypeColumn is the header fragment naming each row's analysis type
const analysisTypeColumn = "modelo"

// prefixColumns name the column used as the report file prefix
var prefixColumns = []string{"nome da empresa", "empresa", "company"}

// PromptResolver resolves an analysis type to a template
type PromptResolver interface {
	Resolve(ctx context.Context, analysisType string) (*prompt.Template, error)
}

// Generator produces model text for a prompt
type Generator interface {
	Invoke(ctx context.Context, prompt string, opts invoker.Options) (*invoker.Result, error)
}

// Renderer writes a report document
type Renderer interface {
	Render(sections report.Sections, meta render.Metadata, templatePath string) (string, error)
}

// Selection lists zero-based row indices. Nil or empty selects every row.
type Selection []int

// All selects every row
var All Selection

// Request describes one run
type Request struct {
	Path      string
	Selection Selection
	// AnalysisTypeOverride applies one analysis type to every row. It is
	// ignored when empty or when it is the "Automático" placeholder.
	AnalysisTypeOverride string
	Model                string
	Temperature          *float64
}

// RowFailure is a row that did not produce a report
type RowFailure struct {
	Index  int     `json:"index"`
	RowID  string  `json:"row_id"`
	Step   RowStep `json:"step"`
	Reason string  `json:"reason"`
	Err    error   `json:"-"`
}

// Result is the outcome of a run that got past loading the dataset
type Result struct {
	RunID     string            `json:"run_id"`
	Reports   []GeneratedReport `json:"reports"`
	Failures  []RowFailure      `json:"failures"`
	Cancelled bool              `json:"cancelled"`
}

// Orchestrator runs one batch. It is single-use: Events is closed when Run
// returns and a second Run fails.
type Orchestrator struct {
	resolver     PromptResolver
	generator    Generator
	renderer     Renderer
	parser       *report.Parser
	ledger       *Ledger
	templatePath string

	events chan Event
	ran    atomic.Bool

	logger *zap.SugaredLogger
	now    func() time.Time
	newID  func() string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLedger records every generated report
func WithLedger(l *Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithParser replaces the default section parser
func WithParser(p *report.Parser) Option {
	return func(o *Orchestrator) { o.parser = p }
}

// WithEventBuffer sets the events channel capacity
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) { o.events = make(chan Event, n) }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator
func New(resolver PromptResolver, generator Generator, renderer Renderer, templatePath string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:     resolver,
		generator:    generator,
		renderer:     renderer,
		parser:       report.NewParser(),
		templatePath: templatePath,
		events:       make(chan Event, DefaultEventBuffer),
		logger:       logger.ComponentLogger("batch"),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FromConfig wires the standard pipeline for cfg. A nil conn disables the
// usage tracker and the report ledger.
func FromConfig(cfg *am.EngineConfig, backend provider.Backend, conn *sql.DB, opts ...Option) *Orchestrator {
	if conn != nil {
		opts = append([]Option{WithLedger(NewLedger(conn))}, opts...)
	}
	return New(
		prompt.FromConfig(cfg),
		invoker.FromConfig(backend, cfg, conn),
		render.New(cfg.Paths.Output),
		cfg.Paths.Template,
		opts...,
	)
}

// Events returns the run's event stream. Events arrive in order and the
// channel is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// IsAutomatic reports whether an override means "use each row's own type"
func IsAutomatic(override string) bool {
	folded := strings.ToLower(strings.TrimSpace(override))
	return folded == "" || strings.Contains(folded, "automático") || strings.Contains(folded, "automatico")
}

// run is the per-Run mutable state
type run struct {
	id     string
	source string
	rows   *table.RowSet
	log    *zap.SugaredLogger
	last   time.Time
}

// Run processes the selected rows sequentially on the calling goroutine.
// Dataset-level failures return a nil result; row failures are collected in
// Result.Failures.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if !o.ran.CompareAndSwap(false, true) {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "orchestrator already ran")
	}
	defer close(o.events)

	r := &run{id: o.newID(), source: req.Path}
	ctx = logger.WithRunID(ctx, r.id)
	r.log = o.logger.With(logger.FieldsFromContext(ctx)...)

	o.emit(ctx, Event{Kind: EventStatus, RunID: r.id, Message: fmt.Sprintf("Loading %s", filepath.Base(req.Path))})

	rows, err := table.Load(req.Path)
	if err != nil {
		r.log.Errorw("Dataset rejected",
			logger.FieldFile, req.Path,
			logger.FieldErrorType, errors.Kind(err),
			logger.FieldError, err)
		o.emit(ctx, Event{Kind: EventError, RunID: r.id, Message: "Dataset rejected", Error: err.Error(), ErrorKind: errors.Kind(err)})
		return nil, err
	}
	r.rows = rows

	indices, invalid := resolveSelection(req.Selection, rows.Len())
	result := &Result{RunID: r.id}

	for _, idx := range invalid {
		failure := RowFailure{
			Index:  idx,
			Step:   StepPending,
			Reason: fmt.Sprintf("row %d out of range (dataset has %d rows)", idx, rows.Len()),
			Err:    errors.Wrapf(errors.ErrInvalidRequest, "row %d out of range", idx),
		}
		result.Failures = append(result.Failures, failure)
		o.emitFailure(ctx, r, failure)
	}

	o.emit(ctx, Event{
		Kind:    EventStatus,
		RunID:   r.id,
		Message: fmt.Sprintf("Processing %d of %d rows from %s", len(indices), rows.Len(), filepath.Base(req.Path)),
		Total:   len(indices),
	})

	for i, idx := range indices {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		row := rows.Rows[idx]
		o.emit(ctx, Event{
			Kind:    EventProgress,
			RunID:   r.id,
			Message: fmt.Sprintf("Row %d/%d: %s", i+1, len(indices), rowID(rows, row)),
			Current: i + 1,
			Total:   len(indices),
		})

		// A stop request is honoured at the next row boundary; the row in
		// flight runs to completion, bounded by the backend timeouts.
		generated, failure := o.processRow(context.WithoutCancel(ctx), r, row, req)
		if failure != nil {
			result.Failures = append(result.Failures, *failure)
			o.emitFailure(ctx, r, *failure)
			continue
		}

		result.Reports = append(result.Reports, *generated)
		index := generated.RowIndex
		o.emit(ctx, Event{
			Kind:    EventRowDone,
			RunID:   r.id,
			Message: fmt.Sprintf("Report written: %s", filepath.Base(generated.OutputPath)),
			Row:     &index,
			RowID:   generated.RowID,
			Step:    StepDone,
			Report:  generated,
		})
	}

	if ctx.Err() != nil {
		result.Cancelled = true
	}

	summary := &Summary{
		Reports:   len(result.Reports),
		Failures:  len(result.Failures),
		Selected:  len(indices) + len(invalid),
		Cancelled: result.Cancelled,
	}
	r.log.Infow("Run finished",
		logger.FieldCount, summary.Reports,
		"failures", summary.Failures,
		"cancelled", summary.Cancelled)
	o.emit(ctx, Event{
		Kind:    EventComplete,
		RunID:   r.id,
		Message: fmt.Sprintf("%d reports, %d failures", summary.Reports, summary.Failures),
		Summary: summary,
	})

	return result, nil
}

// processRow walks one row through the pipeline. Run hands it a context
// that a stop request does not cancel.
func (o *Orchestrator) processRow(ctx context.Context, r *run, row table.Row, req Request) (*GeneratedReport, *RowFailure) {
	state := NewRowState(row.Index)
	id := rowID(r.rows, row)
	log := logger.ChildLogger(r.log, logger.FieldRow, row.Index, logger.FieldRowID, id)
	started := o.now()

	fail := func(err error) (*GeneratedReport, *RowFailure) {
		_ = state.Fail(err.Error())
		log.Errorw("Row failed",
			logger.FieldStep, state.FailedAt,
			logger.FieldErrorType, errors.Kind(err),
			logger.FieldError, err)
		return nil, &RowFailure{Index: row.Index, RowID: id, Step: state.FailedAt, Reason: err.Error(), Err: err}
	}

	analysisType, err := analysisTypeFor(row, req.AnalysisTypeOverride)
	if err != nil {
		return fail(err)
	}
	if err := state.Advance(StepTypeResolved); err != nil {
		return fail(err)
	}

	tmpl, err := o.resolver.Resolve(ctx, analysisType)
	if err != nil {
		return fail(err)
	}
	if err := state.Advance(StepPromptResolved); err != nil {
		return fail(err)
	}

	model := req.Model
	if model == "" {
		model = tmpl.Metadata.Model
	}
	temperature := req.Temperature
	if temperature == nil {
		temperature = tmpl.Metadata.Temperature
	}

	gen, err := o.generator.Invoke(ctx, BuildPrompt(tmpl, row), invoker.Options{
		Model:        model,
		Temperature:  temperature,
		RunID:        r.id,
		RowIndex:     row.Index,
		AnalysisType: analysisType,
		Provenance:   string(tmpl.Provenance),
	})
	if err != nil {
		return fail(err)
	}
	if err := state.Advance(StepGenerated); err != nil {
		return fail(err)
	}

	sections := o.parser.Parse(gen.Text)
	if missing := sections.Missing(); len(missing) > 0 {
		log.Warnw("Sections missing from model output",
			logger.FieldModel, gen.Model,
			logger.FieldCount, len(missing),
			"missing", missing)
	}
	if err := state.Advance(StepParsed); err != nil {
		return fail(err)
	}

	ts := r.nextTimestamp(o.now())
	path, err := o.renderer.Render(sections, render.Metadata{
		AnalysisType: analysisType,
		Model:        gen.Model,
		RowID:        id,
		RowPrefix:    rowPrefix(row),
		Time:         ts,
	}, o.templatePath)
	if err != nil {
		return fail(err)
	}
	if err := state.Advance(StepRendered); err != nil {
		return fail(err)
	}

	generated := &GeneratedReport{
		RunID:         r.id,
		SourcePath:    r.source,
		RowIndex:      row.Index,
		RowID:         id,
		AnalysisType:  analysisType,
		PromptName:    tmpl.Name,
		Provenance:    string(tmpl.Provenance),
		Model:         gen.Model,
		Attempts:      gen.Attempts,
		OutputPath:    path,
		SectionsFound: sections.Found(),
		Timestamp:     ts,
	}

	if o.ledger != nil {
		if err := o.ledger.Record(ctx, generated); err != nil {
			if db.IsDatabaseClosed(err) {
				log.Debugw("Ledger closed, report not recorded", logger.FieldPath, path)
			} else {
				log.Warnw("Failed to record report in ledger", logger.FieldPath, path, logger.FieldError, err)
			}
		}
	}
	_ = state.Advance(StepDone)

	log.Infow("Row rendered",
		logger.FieldAnalysisType, analysisType,
		logger.FieldModel, gen.Model,
		logger.FieldFile, filepath.Base(path),
		logger.FieldDurationMS, o.now().Sub(started).Milliseconds())
	return generated, nil
}

// BuildPrompt appends the row data block to the template text
func BuildPrompt(tmpl *prompt.Template, row table.Row) string {
	return tmpl.Text + ClientDataHeader + row.Format()
}

// analysisTypeFor picks the override, or the row's "modelo" column
func analysisTypeFor(row table.Row, override string) (string, error) {
	if !IsAutomatic(override) {
		return strings.TrimSpace(override), nil
	}

	col, ok := row.FirstColumnContaining(analysisTypeColumn)
	if !ok {
		return "", errors.WithHint(
			errors.Wrapf(errors.ErrInvalidRequest, "row %d has no analysis type column", row.Index),
			`add a column whose header contains "modelo" or pass --type`,
		)
	}
	value := strings.TrimSpace(row.Values[col])
	if value == "" {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "row %d: column %q is blank", row.Index, col)
	}
	return value, nil
}

// rowID is the identifier column value, falling back to the index
func rowID(rows *table.RowSet, row table.Row) string {
	if rows.IdentifierColumn != "" {
		if v := strings.TrimSpace(row.Values[rows.IdentifierColumn]); v != "" {
			return v
		}
	}
	return fmt.Sprintf("Row_%d", row.Index)
}

// rowPrefix is the company name, or Row_{index}
func rowPrefix(row table.Row) string {
	if col, ok := row.FirstColumnContaining(prefixColumns...); ok {
		if v := strings.TrimSpace(row.Values[col]); v != "" {
			return v
		}
	}
	return fmt.Sprintf("Row_%d", row.Index)
}

// resolveSelection returns the valid indices in the requested order (without
// duplicates) and the out-of-range ones
func resolveSelection(sel Selection, n int) (valid, invalid []int) {
	if len(sel) == 0 {
		valid = make([]int, n)
		for i := range valid {
			valid[i] = i
		}
		return valid, nil
	}

	seen := make(map[int]bool, len(sel))
	for _, idx := range sel {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if idx < 0 || idx >= n {
			invalid = append(invalid, idx)
			continue
		}
		valid = append(valid, idx)
	}
	return valid, invalid
}

// nextTimestamp returns now, pushed past the previous report's timestamp at
// microsecond resolution so file names within a run never collide
func (r *run) nextTimestamp(now time.Time) time.Time {
	ts := now.Truncate(time.Microsecond)
	if !r.last.IsZero() && !ts.After(r.last) {
		ts = r.last.Add(time.Microsecond)
	}
	r.last = ts
	return ts
}

func (o *Orchestrator) emitFailure(ctx context.Context, r *run, f RowFailure) {
	index := f.Index
	o.emit(ctx, Event{
		Kind:      EventRowFailed,
		RunID:     r.id,
		Message:   fmt.Sprintf("Row %d failed after %s: %s", f.Index, f.Step, f.Reason),
		Row:       &index,
		RowID:     f.RowID,
		Step:      f.Step,
		Error:     f.Reason,
		ErrorKind: errors.Kind(f.Err),
	})
}

// emit appends to the event stream. Once ctx is cancelled events are only
// delivered if the buffer has room.
func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	ev.Time = o.now()
	if ctx.Err() != nil {
		select {
		case o.events <- ev:
		default:
		}
		return
	}
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}
