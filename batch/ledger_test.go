package batch

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/xalq/errors"
	xalqtest "github.com/teranos/xalq/internal/testing"
)

func sampleReport(runID string, row int, ts time.Time) *GeneratedReport {
	return &GeneratedReport{
		RunID:         runID,
		SourcePath:    "processing/clientes.csv",
		RowIndex:      row,
		RowID:         "Acme",
		AnalysisType:  "revenue",
		PromptName:    "1_diagnostico_revenue_decision_core.md",
		Provenance:    "legacy-mapped",
		Model:         "gemini-2.5-pro",
		Attempts:      1,
		OutputPath:    "output/Acme_gemini-2.5-pro_report.docx",
		SectionsFound: 14,
		Timestamp:     ts,
	}
}

func TestLedger_RecordAndByRun(t *testing.T) {
	ledger := NewLedger(xalqtest.CreateTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 123456000, time.UTC)

	second := sampleReport("run-1", 1, base.Add(time.Second))
	first := sampleReport("run-1", 0, base)
	other := sampleReport("run-2", 0, base)

	require.NoError(t, ledger.Record(ctx, second))
	require.NoError(t, ledger.Record(ctx, first))
	require.NoError(t, ledger.Record(ctx, other))
	assert.NotZero(t, first.ID)

	reports, err := ledger.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 0, reports[0].RowIndex)
	assert.Equal(t, 1, reports[1].RowIndex)
	assert.Equal(t, "legacy-mapped", reports[0].Provenance)
	assert.Equal(t, 14, reports[0].SectionsFound)
	assert.True(t, base.Equal(reports[0].Timestamp), "sub-second timestamps survive: %s", reports[0].Timestamp)
}

func TestLedger_Recent(t *testing.T) {
	ledger := NewLedger(xalqtest.CreateTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.Record(ctx, sampleReport("run-1", i, base.Add(time.Duration(i)*time.Hour))))
	}

	reports, err := ledger.Recent(ctx, base.Add(2*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 4, reports[0].RowIndex)
	assert.Equal(t, 3, reports[1].RowIndex)

	reports, err = ledger.Recent(ctx, base.Add(10*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestLedger_RecordError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("INSERT INTO generated_reports").WillReturnError(errors.New("disk I/O error"))

	err = NewLedger(conn).Record(context.Background(), sampleReport("run-1", 0, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record generated report")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_QueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT (.+) FROM generated_reports WHERE run_id").
		WithArgs("run-1").
		WillReturnError(errors.New("database is locked"))

	_, err = NewLedger(conn).ByRun(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
