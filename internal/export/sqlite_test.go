package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustlens/trustlens/internal/model"
)

func openTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.db")
	w, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.Migrate(context.Background()))
	return w, path
}

func sampleRecord(id string, trust float64) model.AuditRecord {
	return model.AuditRecord{
		AuditID:         id,
		Timestamp:       "2026-03-14T12:00:00Z",
		InputSnapshot:   map[string]any{"income": float64(75000)},
		OutputSnapshot:  map[string]any{"decision": "approved"},
		ConfidenceScore: 0.87,
		Result: model.AuditResult{
			Status:     model.AuditStatusLive,
			TrustScore: trust,
			Explanations: model.Explanations{
				Simple: "looks fine",
			},
		},
		RiskFindings: model.RiskFindings{
			BiasLevel:        model.BiasLevelNone,
			LogicConsistency: model.LogicStable,
		},
	}
}

func TestWriteAudits_RoundTrip(t *testing.T) {
	w, path := openTestWriter(t)
	ctx := context.Background()

	records := []model.AuditRecord{sampleRecord("a-1", 80), sampleRecord("a-2", 60)}
	require.NoError(t, w.WriteAudits(ctx, records))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM audit_records").Scan(&count))
	assert.Equal(t, 2, count)

	var status, resultJSON string
	var trust float64
	require.NoError(t, db.QueryRow(
		"SELECT status, trust_score, result FROM audit_records WHERE audit_id = ?", "a-1",
	).Scan(&status, &trust, &resultJSON))
	assert.Equal(t, "live", status)
	assert.Equal(t, float64(80), trust)

	var result model.AuditResult
	require.NoError(t, json.Unmarshal([]byte(resultJSON), &result))
	assert.Equal(t, "looks fine", result.Explanations.Simple)
}

func TestWriteAudits_ReExportIsIdempotent(t *testing.T) {
	w, path := openTestWriter(t)
	ctx := context.Background()

	require.NoError(t, w.WriteAudits(ctx, []model.AuditRecord{sampleRecord("a-1", 80)}))
	// Same audit ID, updated payload: the second export wins.
	require.NoError(t, w.WriteAudits(ctx, []model.AuditRecord{sampleRecord("a-1", 55)}))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM audit_records").Scan(&count))
	assert.Equal(t, 1, count)

	var trust float64
	require.NoError(t, db.QueryRow("SELECT trust_score FROM audit_records WHERE audit_id = ?", "a-1").Scan(&trust))
	assert.Equal(t, float64(55), trust)
}

func TestWriteDrift(t *testing.T) {
	w, path := openTestWriter(t)
	ctx := context.Background()

	points := []model.DriftPoint{
		model.NewDriftPoint("12:00:01", 0.9),
		model.NewDriftPoint("12:00:02", 0.6),
	}
	require.NoError(t, w.WriteDrift(ctx, points))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT confidence, error_rate, anomaly FROM drift_points ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		conf, errRate float64
		anomaly       int
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.conf, &r.errRate, &r.anomaly))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].anomaly)
	assert.Equal(t, 1, got[1].anomaly)
	assert.InDelta(t, 0.4, got[1].errRate, 1e-9)
}

func TestMigrate_Idempotent(t *testing.T) {
	w, _ := openTestWriter(t)
	assert.NoError(t, w.Migrate(context.Background()))
}
