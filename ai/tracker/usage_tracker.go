// Package tracker records every model call (success or failure) in the
// ai_model_usage table and aggregates it for `xalq usage`.
package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/xalq/errors"
)

// OperationReport is the operation type of report generation calls
const OperationReport = "report"

// ModelUsage is one model call attempt
type ModelUsage struct {
	ID                int64      `json:"id" db:"id"`
	RunID             string     `json:"run_id" db:"run_id"`
	RowIndex          int        `json:"row_index" db:"row_index"`
	AnalysisType      string     `json:"analysis_type" db:"analysis_type"`
	OperationType     string     `json:"operation_type" db:"operation_type"`
	ModelName         string     `json:"model_name" db:"model_name"`
	ModelProvider     string     `json:"model_provider" db:"model_provider"`
	ModelConfig       *string    `json:"model_config,omitempty" db:"model_config"`
	Attempt           int        `json:"attempt" db:"attempt"`
	RequestTimestamp  time.Time  `json:"request_timestamp" db:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty" db:"response_timestamp"`
	TokensUsed        *int       `json:"tokens_used,omitempty" db:"tokens_used"`
	Cost              *float64   `json:"cost,omitempty" db:"cost"`
	Success           bool       `json:"success" db:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	Metadata          *string    `json:"metadata,omitempty" db:"metadata"`
}

// ModelConfig is the sampling configuration of a request, stored as JSON
type ModelConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty"`
}

// UsageMetadata is free-form context stored as JSON
type UsageMetadata struct {
	Provenance   string `json:"provenance,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	PromptLength *int   `json:"prompt_length,omitempty"`
	OutputLength *int   `json:"output_length,omitempty"`
}

// UsageTracker writes and reads ai_model_usage
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a tracker over db
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// TrackUsage records a model call. Timestamps are stored in UTC so that
// range queries compare consistently.
func (t *UsageTracker) TrackUsage(ctx context.Context, usage *ModelUsage) error {
	operation := usage.OperationType
	if operation == "" {
		operation = OperationReport
	}

	var response *time.Time
	if usage.ResponseTimestamp != nil {
		utc := usage.ResponseTimestamp.UTC()
		response = &utc
	}

	query := `
		INSERT INTO ai_model_usage (
			run_id, row_index, analysis_type, operation_type, model_name, model_provider,
			model_config, attempt, request_timestamp, response_timestamp, tokens_used,
			cost, success, error_message, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.ExecContext(ctx, query,
		usage.RunID, usage.RowIndex, usage.AnalysisType, operation,
		usage.ModelName, usage.ModelProvider, usage.ModelConfig, usage.Attempt,
		usage.RequestTimestamp.UTC(), response, usage.TokensUsed,
		usage.Cost, usage.Success, usage.ErrorMessage, usage.Metadata,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to track usage for %s", usage.ModelName)
	}
	return nil
}

// UsageStats represents aggregated usage statistics
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalTokens        int     `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
	UniqueModels       int     `json:"unique_models"`
	Runs               int     `json:"runs"`
}

// GetUsageStats returns usage statistics since the given time
func (t *UsageTracker) GetUsageStats(ctx context.Context, since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost,
			COUNT(DISTINCT model_name) as unique_models,
			COUNT(DISTINCT NULLIF(run_id, '')) as runs
		FROM ai_model_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRowContext(ctx, query, since.UTC()).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.TotalCost, &stats.UniqueModels, &stats.Runs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage stats")
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}

// ModelBreakdown represents usage statistics for a specific model
type ModelBreakdown struct {
	ModelName         string   `json:"model_name"`
	ModelProvider     string   `json:"model_provider"`
	RequestCount      int      `json:"request_count"`
	FailureCount      int      `json:"failure_count"`
	TotalTokens       int      `json:"total_tokens"`
	TotalCost         float64  `json:"total_cost"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms,omitempty"`
}

// GetModelBreakdown returns usage grouped by model, most expensive first.
// Failures are counted so fallback-heavy models stand out.
func (t *UsageTracker) GetModelBreakdown(ctx context.Context, since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model_name,
			model_provider,
			COUNT(*) as request_count,
			COUNT(CASE WHEN success = 0 THEN 1 END) as failure_count,
			SUM(COALESCE(tokens_used, 0)) as total_tokens,
			SUM(COALESCE(cost, 0)) as total_cost,
			AVG(CASE WHEN response_timestamp IS NOT NULL AND success = 1 THEN
				(julianday(response_timestamp) - julianday(request_timestamp)) * 86400000
				ELSE NULL END) as avg_response_time_ms
		FROM ai_model_usage
		WHERE request_timestamp >= ?
		GROUP BY model_name, model_provider
		ORDER BY total_cost DESC, request_count DESC`

	rows, err := t.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model breakdown")
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var mb ModelBreakdown
		var avg sql.NullFloat64
		if err := rows.Scan(&mb.ModelName, &mb.ModelProvider, &mb.RequestCount, &mb.FailureCount,
			&mb.TotalTokens, &mb.TotalCost, &avg); err != nil {
			return nil, errors.Wrap(err, "failed to scan model breakdown")
		}
		if avg.Valid {
			v := avg.Float64
			mb.AvgResponseTimeMs = &v
		}
		breakdown = append(breakdown, mb)
	}
	return breakdown, rows.Err()
}

// NewModelConfig serializes the sampling parameters of a request
func NewModelConfig(temperature, topP *float64, maxOutputTokens *int) *string {
	if temperature == nil && topP == nil && maxOutputTokens == nil {
		return nil
	}

	data, err := json.Marshal(ModelConfig{
		Temperature:     temperature,
		TopP:            topP,
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return nil
	}

	jsonStr := string(data)
	return &jsonStr
}

// NewUsageMetadata serializes metadata to JSON
func NewUsageMetadata(metadata UsageMetadata) *string {
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}

	jsonStr := string(data)
	return &jsonStr
}
