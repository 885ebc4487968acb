// Package engine turns a decision triple into a structured audit result.
// Every failure path degrades to a deterministic heuristic fallback; Analyze
// never surfaces an error to its caller.
package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/internal/resilience"
	"github.com/trustlens/trustlens/pkg/anthropic"
)

// Engine is the analysis engine. It memoizes live results by canonical
// triple key and synthesizes fallback results when the remote explainability
// service cannot be reached or returns garbage.
type Engine struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	cache     Cache
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	limiter   *rate.Limiter
	group     *singleflight.Group

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	liveResults atomic.Int64
	fallbacks   atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel sets the model used for analysis calls.
func WithModel(m string) Option {
	return func(e *Engine) { e.model = m }
}

// WithMaxTokens caps the response length of analysis calls.
func WithMaxTokens(n int64) Option {
	return func(e *Engine) { e.maxTokens = n }
}

// WithCache substitutes the result cache. Tests inject stubs here to assert
// call counts.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRetry overrides the retry envelope around remote calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// WithBreaker installs a circuit breaker in front of the remote service.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Engine) { e.breaker = cb }
}

// WithRateLimit throttles outbound analysis calls.
func WithRateLimit(perSec float64, burst int) Option {
	return func(e *Engine) { e.limiter = rate.NewLimiter(rate.Limit(perSec), burst) }
}

// WithInFlightDedup collapses concurrent analyses of identical triples into
// a single remote call. Off by default: duplicate concurrent calls are
// accepted behavior, and callers that want the hardening opt in explicitly.
func WithInFlightDedup() Option {
	return func(e *Engine) { e.group = &singleflight.Group{} }
}

// New creates an analysis engine around the given client.
func New(client anthropic.Client, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		model:     "claude-haiku-4-5-20251001",
		maxTokens: 1024,
		cache:     NewMemoryCache(),
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry.OnRetry == nil {
		e.retry.OnRetry = resilience.RetryLogger("anthropic", "audit")
	}
	return e
}

// Analyze produces an audit result for the triple. Identical triples return
// the memoized live result without a remote call. All remote failures —
// transport, quota, schema violations, unparseable payloads, an open circuit
// — collapse into the deterministic fallback, which is not cached.
func (e *Engine) Analyze(ctx context.Context, triple model.DecisionTriple) model.AuditResult {
	key := triple.CanonicalKey()

	if res, ok := e.cache.Get(key); ok {
		e.cacheHits.Add(1)
		return res
	}
	e.cacheMisses.Add(1)

	res, err := e.analyzeRemote(ctx, key, triple)
	if err != nil {
		e.fallbacks.Add(1)
		zap.L().Warn("analysis degraded to heuristic fallback",
			zap.String("reason", failureReason(err)),
			zap.Float64("confidence", triple.Confidence),
			zap.Error(err),
		)
		return FallbackResult(triple.Confidence)
	}

	e.liveResults.Add(1)
	return *res
}

func (e *Engine) analyzeRemote(ctx context.Context, key string, triple model.DecisionTriple) (*model.AuditResult, error) {
	if e.group == nil {
		return e.callAndCache(ctx, key, triple)
	}

	// In-flight dedup: concurrent identical-key callers share one remote
	// call and its result.
	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.callAndCache(ctx, key, triple)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.AuditResult), nil
}

func (e *Engine) callAndCache(ctx context.Context, key string, triple model.DecisionTriple) (*model.AuditResult, error) {
	// Double-check after winning the flight: a concurrent caller may have
	// populated the cache between our miss and now.
	if res, ok := e.cache.Get(key); ok {
		return &res, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(auditSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildUserPrompt(triple)},
		},
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if e.breaker == nil {
			return e.client.CreateMessage(ctx, req)
		}
		return resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return e.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return nil, err
	}

	resp.Usage.LogCost(e.model, "audit")

	result, err := parseAuditResponse(resp)
	if err != nil {
		return nil, err
	}

	// Successful live results only; fallbacks never enter the cache.
	e.cache.Set(key, *result)
	return result, nil
}

// Stats is a point-in-time view of engine counters for monitoring.
type Stats struct {
	CacheHits    int64  `json:"cache_hits"`
	CacheMisses  int64  `json:"cache_misses"`
	LiveResults  int64  `json:"live_results"`
	Fallbacks    int64  `json:"fallbacks"`
	CircuitState string `json:"circuit_state"`
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		CacheHits:   e.cacheHits.Load(),
		CacheMisses: e.cacheMisses.Load(),
		LiveResults: e.liveResults.Load(),
		Fallbacks:   e.fallbacks.Load(),
	}
	if e.breaker != nil {
		s.CircuitState = e.breaker.State().String()
	}
	return s
}

// failureReason buckets an error into the audit failure taxonomy for logs
// and metrics. Every bucket leads to the same fallback; the reason only
// explains why.
func failureReason(err error) string {
	var schemaErr *SchemaError
	var parseErr *ParseError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &schemaErr):
		return "schema_violation"
	case errors.As(err, &parseErr), errors.Is(err, ErrEmptyResponse):
		return "parse_error"
	case resilience.IsQuota(err):
		return "quota"
	default:
		return "transport"
	}
}
