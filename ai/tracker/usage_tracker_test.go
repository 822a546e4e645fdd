package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/internal/util"
	xalqtest "github.com/teranos/xalq/internal/testing"
)

func TestTrackUsage(t *testing.T) {
	conn := xalqtest.CreateTestDB(t)
	tracker := NewUsageTracker(conn)
	ctx := context.Background()

	now := time.Now()
	responseTime := now.Add(2 * time.Second)

	usage := &ModelUsage{
		RunID:             "run-1",
		RowIndex:          3,
		AnalysisType:      "revenue",
		ModelName:         "gemini-2.5-pro",
		ModelProvider:     "gemini",
		ModelConfig:       NewModelConfig(util.Ptr(0.1), util.Ptr(0.9), util.Ptr(8192)),
		Attempt:           1,
		RequestTimestamp:  now,
		ResponseTimestamp: &responseTime,
		TokensUsed:        util.Ptr(150),
		Cost:              util.Ptr(0.05),
		Success:           true,
		Metadata:          NewUsageMetadata(UsageMetadata{Provenance: "local", FinishReason: "STOP"}),
	}
	require.NoError(t, tracker.TrackUsage(ctx, usage))

	var (
		runID, operation, model string
		rowIndex, tokens        int
		success                 bool
	)
	err := conn.QueryRow(`
		SELECT run_id, row_index, operation_type, model_name, tokens_used, success
		FROM ai_model_usage WHERE id = 1`).Scan(&runID, &rowIndex, &operation, &model, &tokens, &success)
	require.NoError(t, err)

	assert.Equal(t, "run-1", runID)
	assert.Equal(t, 3, rowIndex)
	assert.Equal(t, OperationReport, operation)
	assert.Equal(t, "gemini-2.5-pro", model)
	assert.Equal(t, 150, tokens)
	assert.True(t, success)
}

func TestTrackUsage_Failure(t *testing.T) {
	conn := xalqtest.CreateTestDB(t)
	tracker := NewUsageTracker(conn)

	errorMsg := "429 quota exceeded"
	require.NoError(t, tracker.TrackUsage(context.Background(), &ModelUsage{
		ModelName:        "gemini-3-pro-preview",
		ModelProvider:    "gemini",
		RequestTimestamp: time.Now(),
		Success:          false,
		ErrorMessage:     &errorMsg,
	}))

	var storedSuccess bool
	var storedErrorMsg sql.NullString
	require.NoError(t, conn.QueryRow("SELECT success, error_message FROM ai_model_usage WHERE id = 1").Scan(&storedSuccess, &storedErrorMsg))
	assert.False(t, storedSuccess)
	assert.Equal(t, "429 quota exceeded", storedErrorMsg.String)
}

func TestTrackUsage_DatabaseError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO ai_model_usage").WillReturnError(errors.New("disk I/O error"))

	tracker := NewUsageTracker(mockDB)
	err = tracker.TrackUsage(context.Background(), &ModelUsage{
		ModelName:        "gemini-2.5-flash",
		ModelProvider:    "gemini",
		RequestTimestamp: time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini-2.5-flash")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsageStats(t *testing.T) {
	conn := xalqtest.CreateTestDB(t)
	tracker := NewUsageTracker(conn)
	ctx := context.Background()

	now := time.Now()
	oneHourAgo := now.Add(-1 * time.Hour)

	usages := []*ModelUsage{
		{RunID: "a", ModelName: "gemini-2.5-pro", ModelProvider: "gemini", RequestTimestamp: oneHourAgo, TokensUsed: util.Ptr(100), Cost: util.Ptr(0.02), Success: true},
		{RunID: "a", ModelName: "gemini-2.5-flash", ModelProvider: "gemini", RequestTimestamp: oneHourAgo, TokensUsed: util.Ptr(150), Cost: util.Ptr(0.03), Success: true},
		{RunID: "b", ModelName: "gemini-2.5-pro", ModelProvider: "gemini", RequestTimestamp: oneHourAgo, Success: false},
	}
	for _, u := range usages {
		require.NoError(t, tracker.TrackUsage(ctx, u))
	}

	stats, err := tracker.GetUsageStats(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.SuccessfulRequests)
	assert.Equal(t, 250, stats.TotalTokens)
	assert.InDelta(t, 0.05, stats.TotalCost, 1e-9)
	assert.Equal(t, 2, stats.UniqueModels)
	assert.Equal(t, 2, stats.Runs)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)

	recent, err := tracker.GetUsageStats(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, recent.TotalRequests)
	assert.Zero(t, recent.SuccessRate)
}

func TestGetModelBreakdown(t *testing.T) {
	conn := xalqtest.CreateTestDB(t)
	tracker := NewUsageTracker(conn)
	ctx := context.Background()

	oneHourAgo := time.Now().Add(-1 * time.Hour)
	responseTime := oneHourAgo.Add(2 * time.Second)

	usages := []*ModelUsage{
		{ModelName: "gemini-2.5-pro", ModelProvider: "gemini", RequestTimestamp: oneHourAgo, ResponseTimestamp: &responseTime, TokensUsed: util.Ptr(100), Cost: util.Ptr(0.02), Success: true},
		{ModelName: "gemini-2.5-pro", ModelProvider: "gemini", RequestTimestamp: oneHourAgo, ResponseTimestamp: &responseTime, TokensUsed: util.Ptr(200), Cost: util.Ptr(0.04), Success: true},
		{ModelName: "gemini-3-pro-preview", ModelProvider: "gemini", RequestTimestamp: oneHourAgo, Success: false},
	}
	for _, u := range usages {
		require.NoError(t, tracker.TrackUsage(ctx, u))
	}

	breakdown, err := tracker.GetModelBreakdown(ctx, oneHourAgo.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	pro := breakdown[0]
	assert.Equal(t, "gemini-2.5-pro", pro.ModelName)
	assert.Equal(t, 2, pro.RequestCount)
	assert.Equal(t, 0, pro.FailureCount)
	assert.Equal(t, 300, pro.TotalTokens)
	assert.InDelta(t, 0.06, pro.TotalCost, 1e-9)
	require.NotNil(t, pro.AvgResponseTimeMs)
	assert.InDelta(t, 2000, *pro.AvgResponseTimeMs, 1)

	preview := breakdown[1]
	assert.Equal(t, 1, preview.FailureCount)
	assert.Nil(t, preview.AvgResponseTimeMs)
}

func TestGetModelBreakdown_QueryError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("no such table: ai_model_usage"))

	_, err = NewUsageTracker(mockDB).GetModelBreakdown(context.Background(), time.Now())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewModelConfig(t *testing.T) {
	assert.Nil(t, NewModelConfig(nil, nil, nil))

	cfg := NewModelConfig(util.Ptr(0.2), nil, util.Ptr(8192))
	require.NotNil(t, cfg)

	var decoded ModelConfig
	require.NoError(t, json.Unmarshal([]byte(*cfg), &decoded))
	assert.InDelta(t, 0.2, *decoded.Temperature, 1e-9)
	assert.Nil(t, decoded.TopP)
	assert.Equal(t, 8192, *decoded.MaxOutputTokens)
}

func TestCalculateCost(t *testing.T) {
	// ($1.25 * 1000/1M) + ($10.00 * 500/1M)
	assert.InDelta(t, 0.00625, CalculateCost("gemini", "gemini-2.5-pro", 1000, 500), 1e-9)
	assert.InDelta(t, 0.00625, CalculateCost("gemini", "models/gemini-2.5-pro", 1000, 500), 1e-9)
	assert.InDelta(t, 0.00625, CalculateCost("openrouter", "google/gemini-2.5-pro", 1000, 500), 1e-9)
	assert.Equal(t, DefaultPricingFallback, CalculateCost("gemini", "gemini-9-ultra", 1000, 500))
	assert.Zero(t, CalculateCost("local", "llama3", 1000, 500))

	_, ok := GetPricing("models/gemini-2.0-flash")
	assert.True(t, ok)
}
