// Package history keeps the bounded in-memory views the dashboard reads:
// a rolling drift window, an audit log, and the most recent analysis.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/trustlens/trustlens/internal/model"
)

const (
	// DefaultDriftWindow is the number of drift points retained.
	DefaultDriftWindow = 20
	// DefaultAuditLogSize is the number of audit records retained.
	DefaultAuditLogSize = 50

	driftTimestampLayout = "15:04:05"
)

var titleCaser = cases.Title(language.English)

// Aggregator owns the history buffers. All methods are safe for concurrent
// use; writes come from the scheduler tick handler and explicit user
// actions, reads from the dashboard API.
type Aggregator struct {
	mu          sync.RWMutex
	driftWindow int
	auditSize   int
	drift       []model.DriftPoint
	audits      []model.AuditRecord // newest first
	last        *model.AuditRecord

	nowFunc func() time.Time
	idFunc  func() string
}

// New creates an aggregator with the given bounds. Non-positive bounds fall
// back to the defaults.
func New(driftWindow, auditSize int) *Aggregator {
	if driftWindow <= 0 {
		driftWindow = DefaultDriftWindow
	}
	if auditSize <= 0 {
		auditSize = DefaultAuditLogSize
	}
	return &Aggregator{
		driftWindow: driftWindow,
		auditSize:   auditSize,
		nowFunc:     time.Now,
		idFunc:      func() string { return uuid.New().String() },
	}
}

// RecordDrift appends one drift observation for the effective confidence of
// a tick, evicting the oldest point once the window is full.
func (a *Aggregator) RecordDrift(confidence float64) model.DriftPoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	point := model.NewDriftPoint(a.nowFunc().Format(driftTimestampLayout), confidence)
	a.drift = append(a.drift, point)
	if len(a.drift) > a.driftWindow {
		a.drift = a.drift[len(a.drift)-a.driftWindow:]
	}
	return point
}

// RecordAudit derives an audit record from a completed result plus the
// triple that produced it, prepends it to the audit log, and replaces the
// last-analysis slot.
func (a *Aggregator) RecordAudit(triple model.DecisionTriple, result model.AuditResult) model.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	record := model.AuditRecord{
		AuditID:         a.idFunc(),
		Timestamp:       a.nowFunc().UTC().Format(time.RFC3339),
		InputSnapshot:   triple.Input,
		OutputSnapshot:  triple.Output,
		ConfidenceScore: triple.Confidence,
		Result:          result,
		RiskFindings:    DeriveRiskFindings(triple.Confidence, result),
	}

	a.audits = append([]model.AuditRecord{record}, a.audits...)
	if len(a.audits) > a.auditSize {
		a.audits = a.audits[:a.auditSize]
	}
	a.last = &record
	return record
}

// DeriveRiskFindings condenses an audit result into the record-log summary.
func DeriveRiskFindings(confidence float64, result model.AuditResult) model.RiskFindings {
	findings := model.RiskFindings{
		BiasLevel:        model.BiasLevelNone,
		LogicConsistency: model.LogicStable,
	}

	if bias := result.Indicator(model.RiskCategoryBias); bias != nil {
		findings.BiasLevel = model.BiasLevel(titleCaser.String(string(bias.Severity)))
	}

	findings.DriftDetected = confidence < model.AnomalyThreshold
	if drift := result.Indicator(model.RiskCategoryDrift); drift != nil && drift.Severity == model.SeverityHigh {
		findings.DriftDetected = true
	}

	if logic := result.Indicator(model.RiskCategoryLogic); logic != nil {
		switch logic.Severity {
		case model.SeverityHigh:
			findings.LogicConsistency = model.LogicRisk
		case model.SeverityMedium:
			findings.LogicConsistency = model.LogicWarning
		}
	}

	return findings
}

// Drift returns the drift window, oldest first.
func (a *Aggregator) Drift() []model.DriftPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.DriftPoint, len(a.drift))
	copy(out, a.drift)
	return out
}

// Audits returns the audit log, newest first.
func (a *Aggregator) Audits() []model.AuditRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.AuditRecord, len(a.audits))
	copy(out, a.audits)
	return out
}

// Last returns the most recent audit record, or nil before the first
// completed analysis.
func (a *Aggregator) Last() *model.AuditRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return nil
	}
	record := *a.last
	return &record
}
