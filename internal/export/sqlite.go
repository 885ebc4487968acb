// Package export writes the in-memory audit history to a SQLite file for
// offline analysis. The export is a one-way artifact: the running process
// never reads it back, so runtime state stays in-memory only.
package export

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/trustlens/trustlens/internal/model"
)

// Writer appends audit records and drift points to a SQLite export file.
type Writer struct {
	db *sql.DB
}

// Open creates or opens a SQLite export file at the given path.
func Open(path string) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open sqlite")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "export: set journal mode")
	}
	return &Writer{db: db}, nil
}

const exportMigration = `
CREATE TABLE IF NOT EXISTS audit_records (
	audit_id    TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	confidence  REAL NOT NULL,
	status      TEXT NOT NULL,
	trust_score REAL NOT NULL,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	result      TEXT NOT NULL,
	findings    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS drift_points (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp  TEXT NOT NULL,
	confidence REAL NOT NULL,
	error_rate REAL NOT NULL,
	anomaly    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp);
`

// Migrate creates the export schema.
func (w *Writer) Migrate(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, exportMigration)
	return eris.Wrap(err, "export: migrate")
}

// WriteAudits upserts the given audit records. Re-exporting an overlapping
// log is safe: records are keyed by audit ID.
func (w *Writer) WriteAudits(ctx context.Context, records []model.AuditRecord) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "export: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO audit_records
		 (audit_id, timestamp, confidence, status, trust_score, input, output, result, findings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "export: prepare insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		input, err := json.Marshal(rec.InputSnapshot)
		if err != nil {
			return eris.Wrapf(err, "export: marshal input %s", rec.AuditID)
		}
		output, err := json.Marshal(rec.OutputSnapshot)
		if err != nil {
			return eris.Wrapf(err, "export: marshal output %s", rec.AuditID)
		}
		result, err := json.Marshal(rec.Result)
		if err != nil {
			return eris.Wrapf(err, "export: marshal result %s", rec.AuditID)
		}
		findings, err := json.Marshal(rec.RiskFindings)
		if err != nil {
			return eris.Wrapf(err, "export: marshal findings %s", rec.AuditID)
		}

		if _, err := stmt.ExecContext(ctx,
			rec.AuditID, rec.Timestamp, rec.ConfidenceScore,
			string(rec.Result.Status), rec.Result.TrustScore,
			string(input), string(output), string(result), string(findings),
		); err != nil {
			return eris.Wrapf(err, "export: insert audit %s", rec.AuditID)
		}
	}

	return eris.Wrap(tx.Commit(), "export: commit audits")
}

// WriteDrift appends the given drift points.
func (w *Writer) WriteDrift(ctx context.Context, points []model.DriftPoint) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "export: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO drift_points (timestamp, confidence, error_rate, anomaly) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "export: prepare insert")
	}
	defer stmt.Close()

	for _, p := range points {
		anomaly := 0
		if p.AnomalyDetected {
			anomaly = 1
		}
		if _, err := stmt.ExecContext(ctx, p.Timestamp, p.Confidence, p.ErrorRate, anomaly); err != nil {
			return eris.Wrap(err, "export: insert drift point")
		}
	}

	return eris.Wrap(tx.Commit(), "export: commit drift")
}

// Close closes the export file.
func (w *Writer) Close() error {
	return w.db.Close()
}
