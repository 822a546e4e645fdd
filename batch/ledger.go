package batch

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/xalq/errors"
)

// GeneratedReport is a report written by a run
type GeneratedReport struct {
	ID            int64     `json:"id,omitempty"`
	RunID         string    `json:"run_id"`
	SourcePath    string    `json:"source_path"`
	RowIndex      int       `json:"row_index"`
	RowID         string    `json:"row_id"`
	AnalysisType  string    `json:"analysis_type"`
	PromptName    string    `json:"prompt_name"`
	Provenance    string    `json:"provenance"`
	Model         string    `json:"model"`
	Attempts      int       `json:"attempts"`
	OutputPath    string    `json:"output_path"`
	SectionsFound int       `json:"sections_found"`
	Timestamp     time.Time `json:"timestamp"`
}

// Ledger persists generated reports in the generated_reports table
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger over db
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record inserts r and sets r.ID
func (l *Ledger) Record(ctx context.Context, r *GeneratedReport) error {
	query := `
		INSERT INTO generated_reports (
			run_id, source_path, row_index, row_id,
			analysis_type, prompt_name, prompt_provenance,
			model, attempts, output_path, sections_found, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := l.db.ExecContext(ctx, query,
		r.RunID,
		r.SourcePath,
		r.RowIndex,
		r.RowID,
		r.AnalysisType,
		r.PromptName,
		r.Provenance,
		r.Model,
		r.Attempts,
		r.OutputPath,
		r.SectionsFound,
		r.Timestamp.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to record generated report")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read generated report id")
	}
	r.ID = id
	return nil
}

const reportColumns = `id, run_id, source_path, row_index, row_id,
	analysis_type, prompt_name, prompt_provenance,
	model, attempts, output_path, sections_found, created_at`

// ByRun returns the reports of one run in row order
func (l *Ledger) ByRun(ctx context.Context, runID string) ([]GeneratedReport, error) {
	query := `SELECT ` + reportColumns + ` FROM generated_reports WHERE run_id = ? ORDER BY row_index, id`
	return l.query(ctx, query, runID)
}

// Recent returns the newest reports created at or after since, newest first
func (l *Ledger) Recent(ctx context.Context, since time.Time, limit int) ([]GeneratedReport, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + reportColumns + ` FROM generated_reports WHERE created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`
	return l.query(ctx, query, since.UTC(), limit)
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) ([]GeneratedReport, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query generated reports")
	}
	defer rows.Close()

	var reports []GeneratedReport
	for rows.Next() {
		var r GeneratedReport
		if err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.SourcePath,
			&r.RowIndex,
			&r.RowID,
			&r.AnalysisType,
			&r.PromptName,
			&r.Provenance,
			&r.Model,
			&r.Attempts,
			&r.OutputPath,
			&r.SectionsFound,
			&r.Timestamp,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan generated report")
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate generated reports")
	}
	return reports, nil
}
