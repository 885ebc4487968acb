// Package scheduler drives the analysis cadence. A timer fires in live and
// simulation modes; each tick optionally perturbs the decision state,
// optionally dispatches an analysis, and always records one drift point.
package scheduler

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trustlens/trustlens/internal/history"
	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/internal/state"
)

const (
	// confidenceStep bounds the random walk applied per simulation tick.
	confidenceStep = 0.02
	confidenceMin  = 0.4
	confidenceMax  = 1.0

	// earlyWarningThreshold overrides the gating cadence: a tick whose
	// post-perturbation confidence drops below it always analyzes.
	earlyWarningThreshold = 0.68

	// analysisCadence gates simulation analyses to every Nth tick.
	analysisCadence = 3

	incomeStep = 1000
	incomeMin  = 20000
	loanStep   = 500
	loanMin    = 5000
)

// Analyzer produces an audit result for a decision snapshot. Satisfied by
// *engine.Engine; tests substitute deterministic stubs.
type Analyzer interface {
	Analyze(ctx context.Context, triple model.DecisionTriple) model.AuditResult
}

// Rand is the random source behind simulation perturbation. Seeded sources
// make perturbation sequences reproducible in tests.
type Rand interface {
	Float64() float64
}

type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }

// Scheduler is a finite-state, timer-driven controller over the decision
// state, the analysis engine, and the history buffers.
type Scheduler struct {
	analyzer Analyzer
	store    *state.Store
	hist     *history.Aggregator
	rng      Rand

	mu        sync.Mutex
	mode      model.Mode
	interval  time.Duration
	tickCount uint64
	running   bool
	stop      chan struct{}

	// Completion ordering: analyses are issued in sequence and a completion
	// older than the latest applied one is discarded.
	issueSeq   uint64
	appliedSeq uint64

	inflight sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand substitutes the perturbation random source.
func WithRand(r Rand) Option {
	return func(s *Scheduler) { s.rng = r }
}

// WithMode sets the initial mode without starting a timer. Ticks can then be
// driven explicitly via Tick, which the simulate command and tests use.
func WithMode(mode model.Mode) Option {
	return func(s *Scheduler) { s.mode = mode }
}

// New creates a scheduler in manual mode with the given collaborators.
func New(analyzer Analyzer, store *state.Store, hist *history.Aggregator, opts ...Option) *Scheduler {
	s := &Scheduler{
		analyzer: analyzer,
		store:    store,
		hist:     hist,
		rng:      systemRand{},
		mode:     model.ModeManual,
		interval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start applies the initial mode and interval and launches the timer if the
// mode requires one.
func (s *Scheduler) Start(ctx context.Context, mode model.Mode, interval time.Duration) {
	s.mu.Lock()
	s.mode = mode
	if interval > 0 {
		s.interval = interval
	}
	s.restartLocked(ctx)
	s.mu.Unlock()
}

// Stop cancels the timer and waits for in-flight analyses to settle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.inflight.Wait()
}

// SetMode transitions the operating mode. The current timer is stopped and,
// for live or simulation, a fresh one is started: pending ticks are
// cancelled, not deferred. An in-flight analysis is not aborted.
func (s *Scheduler) SetMode(ctx context.Context, mode model.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == s.mode {
		return
	}
	zap.L().Info("scheduler mode change",
		zap.String("from", string(s.mode)),
		zap.String("to", string(mode)),
	)
	s.mode = mode
	s.restartLocked(ctx)
}

// SetInterval changes the tick period, effective immediately via a timer
// restart.
func (s *Scheduler) SetInterval(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval == s.interval {
		return
	}
	s.interval = interval
	s.restartLocked(ctx)
}

// restartLocked stops any running timer and starts a new one when the mode
// calls for it. Callers hold s.mu.
func (s *Scheduler) restartLocked(ctx context.Context) {
	s.stopLocked()
	if s.mode == model.ModeManual {
		return
	}
	stop := make(chan struct{})
	s.stop = stop
	s.running = true
	go s.run(ctx, s.interval, stop)
}

func (s *Scheduler) stopLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.running = false
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick executes one scheduler tick for the current mode. It is exported so
// the simulate command and tests can drive the cadence without real time.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	mode := s.mode
	s.tickCount++
	count := s.tickCount
	s.mu.Unlock()

	analyze := false
	switch mode {
	case model.ModeSimulation:
		confidence := s.perturb()
		analyze = count%analysisCadence == 0 || confidence < earlyWarningThreshold
	case model.ModeLive:
		analyze = true
	case model.ModeManual:
		// A manually driven tick observes state without analyzing.
	}

	// Capture the triple synchronously at tick time so a concurrent edit or
	// the next perturbation cannot leak into this tick's analysis.
	snapshot := s.store.Snapshot()

	if analyze {
		seq := s.nextSeq()
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			result := s.analyzer.Analyze(ctx, snapshot)
			s.apply(seq, snapshot, result)
		}()
	}

	s.hist.RecordDrift(snapshot.Confidence)
}

// AnalyzeNow performs an on-demand analysis of the current decision state,
// synchronously, and returns the derived audit record. Used by manual mode
// and the dashboard's analyze action.
func (s *Scheduler) AnalyzeNow(ctx context.Context) model.AuditRecord {
	snapshot := s.store.Snapshot()
	seq := s.nextSeq()
	result := s.analyzer.Analyze(ctx, snapshot)
	if record, ok := s.apply(seq, snapshot, result); ok {
		return record
	}
	// A newer completion beat this one into the log; still hand the caller
	// their result without recording it.
	return model.AuditRecord{
		ConfidenceScore: snapshot.Confidence,
		InputSnapshot:   snapshot.Input,
		OutputSnapshot:  snapshot.Output,
		Result:          result,
		RiskFindings:    history.DeriveRiskFindings(snapshot.Confidence, result),
	}
}

func (s *Scheduler) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueSeq++
	return s.issueSeq
}

// apply folds a completed analysis into the history unless a later-issued
// completion has already been applied.
func (s *Scheduler) apply(seq uint64, snapshot model.DecisionTriple, result model.AuditResult) (model.AuditRecord, bool) {
	s.mu.Lock()
	if seq < s.appliedSeq {
		s.mu.Unlock()
		zap.L().Debug("discarding stale analysis completion",
			zap.Uint64("seq", seq),
			zap.Uint64("applied_seq", s.appliedSeq),
		)
		return model.AuditRecord{}, false
	}
	s.appliedSeq = seq
	s.mu.Unlock()

	return s.hist.RecordAudit(snapshot, result), true
}

// perturb applies the simulation random walk and returns the new confidence.
func (s *Scheduler) perturb() float64 {
	var confidence float64
	s.store.Mutate(func(t *model.DecisionTriple) {
		c := t.Confidence + (s.rng.Float64()*2-1)*confidenceStep
		c = math.Round(clamp(c, confidenceMin, confidenceMax)*100) / 100
		t.Confidence = c
		confidence = c

		if t.Input == nil {
			t.Input = make(map[string]any)
		}
		t.Input["income"] = perturbAmount(toFloat(t.Input["income"]), incomeStep, incomeMin, s.rng)
		t.Input["loanAmount"] = perturbAmount(toFloat(t.Input["loanAmount"]), loanStep, loanMin, s.rng)
	})
	return confidence
}

// Wait blocks until all in-flight analyses have completed.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Status is a point-in-time view of the scheduler for the dashboard.
type Status struct {
	Mode         model.Mode `json:"mode"`
	IntervalSecs int        `json:"intervalSecs"`
	TickCount    uint64     `json:"tickCount"`
	Running      bool       `json:"running"`
}

// Status reports the current mode, interval, and tick counter.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Mode:         s.mode,
		IntervalSecs: int(s.interval / time.Second),
		TickCount:    s.tickCount,
		Running:      s.running,
	}
}

func perturbAmount(current, step, min float64, rng Rand) float64 {
	v := math.Floor(current + (rng.Float64()*2-1)*step)
	if v < min {
		v = min
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return 0
	}
}
