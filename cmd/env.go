package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/trustlens/trustlens/internal/engine"
	"github.com/trustlens/trustlens/internal/history"
	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/internal/monitoring"
	"github.com/trustlens/trustlens/internal/resilience"
	"github.com/trustlens/trustlens/internal/scheduler"
	"github.com/trustlens/trustlens/internal/state"
	"github.com/trustlens/trustlens/pkg/anthropic"
)

// appEnv bundles the wired core components shared by the commands.
type appEnv struct {
	Engine    *engine.Engine
	State     *state.Store
	History   *history.Aggregator
	Scheduler *scheduler.Scheduler
	Collector *monitoring.Collector
}

// newAppEnv wires the engine, state, history, and scheduler from config.
func newAppEnv(schedOpts ...scheduler.Option) *appEnv {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Engine.CircuitFailureThreshold,
		ResetTimeout:     time.Duration(cfg.Engine.CircuitResetSecs) * time.Second,
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("explainability circuit state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	opts := []engine.Option{
		engine.WithModel(cfg.Anthropic.Model),
		engine.WithMaxTokens(cfg.Anthropic.MaxTokens),
		engine.WithRetry(resilience.RetryConfig{MaxAttempts: cfg.Engine.RetryAttempts}),
		engine.WithBreaker(breaker),
		engine.WithRateLimit(cfg.Engine.RateLimitPerSec, cfg.Engine.RateLimitBurst),
	}
	if cfg.Engine.DedupInFlight {
		opts = append(opts, engine.WithInFlightDedup())
	}

	eng := engine.New(anthropic.NewClient(cfg.Anthropic.Key), opts...)
	store := state.NewStore(model.DefaultDecision())
	hist := history.New(cfg.History.DriftWindow, cfg.History.AuditLog)
	sched := scheduler.New(eng, store, hist, schedOpts...)

	return &appEnv{
		Engine:    eng,
		State:     store,
		History:   hist,
		Scheduler: sched,
		Collector: monitoring.NewCollector(hist, eng, sched),
	}
}
