// Package monitoring summarizes system health for the dashboard and the
// status command.
package monitoring

import (
	"time"

	"github.com/trustlens/trustlens/internal/engine"
	"github.com/trustlens/trustlens/internal/history"
	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/internal/scheduler"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Drift window metrics.
	DriftPoints   int     `json:"drift_points"`
	AnomalyCount  int     `json:"anomaly_count"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgErrorRate  float64 `json:"avg_error_rate"`

	// Audit log metrics.
	AuditTotal    int     `json:"audit_total"`
	AuditLive     int     `json:"audit_live"`
	AuditFallback int     `json:"audit_fallback"`
	FallbackRate  float64 `json:"fallback_rate"`
	AvgTrustScore float64 `json:"avg_trust_score"`
	DriftDetected int     `json:"drift_detected"`

	// Engine and scheduler state.
	Engine    engine.Stats     `json:"engine"`
	Scheduler scheduler.Status `json:"scheduler"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the history buffers, the engine, and the
// scheduler.
type Collector struct {
	hist  *history.Aggregator
	eng   *engine.Engine
	sched *scheduler.Scheduler
}

// NewCollector creates a new metrics collector.
func NewCollector(hist *history.Aggregator, eng *engine.Engine, sched *scheduler.Scheduler) *Collector {
	return &Collector{hist: hist, eng: eng, sched: sched}
}

// Collect gathers a snapshot of system metrics. Everything is in-memory, so
// collection cannot fail.
func (c *Collector) Collect() *MetricsSnapshot {
	snap := &MetricsSnapshot{
		CollectedAt: time.Now().UTC(),
	}

	drift := c.hist.Drift()
	snap.DriftPoints = len(drift)
	var confSum, errSum float64
	for _, p := range drift {
		confSum += p.Confidence
		errSum += p.ErrorRate
		if p.AnomalyDetected {
			snap.AnomalyCount++
		}
	}
	if len(drift) > 0 {
		snap.AvgConfidence = confSum / float64(len(drift))
		snap.AvgErrorRate = errSum / float64(len(drift))
	}

	audits := c.hist.Audits()
	snap.AuditTotal = len(audits)
	var trustSum float64
	for _, rec := range audits {
		switch rec.Result.Status {
		case model.AuditStatusLive:
			snap.AuditLive++
		case model.AuditStatusFallback:
			snap.AuditFallback++
		}
		trustSum += rec.Result.TrustScore
		if rec.RiskFindings.DriftDetected {
			snap.DriftDetected++
		}
	}
	if snap.AuditTotal > 0 {
		snap.FallbackRate = float64(snap.AuditFallback) / float64(snap.AuditTotal)
		snap.AvgTrustScore = trustSum / float64(snap.AuditTotal)
	}

	if c.eng != nil {
		snap.Engine = c.eng.Stats()
	}
	if c.sched != nil {
		snap.Scheduler = c.sched.Status()
	}

	return snap
}
