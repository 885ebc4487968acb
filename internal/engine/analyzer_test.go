package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/internal/resilience"
	"github.com/trustlens/trustlens/pkg/anthropic"
)

// stubClient returns canned responses or errors and counts calls.
type stubClient struct {
	mu    sync.Mutex
	calls atomic.Int64
	text  string
	err   error

	// block, when non-nil, is received from before each call returns.
	block chan struct{}
}

func (c *stubClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls.Add(1)
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: c.text}},
	}, nil
}

const validAuditJSON = `{
	"explanations": {
		"simple": "Approved because income comfortably covers the loan.",
		"detailed": "The applicant's income of 75000 against a 25000 loan keeps the debt ratio low.",
		"technical": "Logistic output dominated by income (w=0.61) and loanAmount (w=-0.22)."
	},
	"influencingFactors": [
		{"factor": "income", "impact": "positive", "weight": 0.61, "explanation": "High income"},
		{"factor": "loanAmount", "impact": "negative", "weight": 0.22, "explanation": "Moderate loan"}
	],
	"riskIndicators": [
		{"category": "Bias", "severity": "low", "finding": "No protected-attribute proxy detected"},
		{"category": "Confidence", "severity": "low", "finding": "Confidence well above threshold"}
	],
	"trustScore": 84
}`

func loanTriple(confidence float64) model.DecisionTriple {
	return model.DecisionTriple{
		Input:      map[string]any{"income": float64(75000), "loanAmount": float64(25000)},
		Output:     map[string]any{"decision": "approved"},
		Confidence: confidence,
	}
}

func TestAnalyze_LiveResult(t *testing.T) {
	client := &stubClient{text: validAuditJSON}
	eng := New(client)

	result := eng.Analyze(context.Background(), loanTriple(0.87))

	assert.Equal(t, model.AuditStatusLive, result.Status)
	assert.Equal(t, 84.0, result.TrustScore)
	require.Len(t, result.InfluencingFactors, 2)
	assert.Equal(t, model.ImpactPositive, result.InfluencingFactors[0].Impact)
	require.Len(t, result.RiskIndicators, 2)
	assert.Equal(t, model.RiskCategoryBias, result.RiskIndicators[0].Category)
	assert.Equal(t, "Approved because income comfortably covers the loan.", result.Explanations.Simple)
}

func TestAnalyze_CacheIdempotence(t *testing.T) {
	client := &stubClient{text: validAuditJSON}
	eng := New(client)
	triple := loanTriple(0.87)

	first := eng.Analyze(context.Background(), triple)
	second := eng.Analyze(context.Background(), triple)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), client.calls.Load(), "second call must issue zero remote requests")

	stats := eng.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
}

func TestAnalyze_DistinctTriplesMiss(t *testing.T) {
	client := &stubClient{text: validAuditJSON}
	eng := New(client)

	eng.Analyze(context.Background(), loanTriple(0.87))
	eng.Analyze(context.Background(), loanTriple(0.88))

	assert.Equal(t, int64(2), client.calls.Load())
}

func TestAnalyze_FallbackScenario(t *testing.T) {
	// The canonical degraded scenario: remote call fails at confidence 0.5.
	client := &stubClient{err: eris.New("service unavailable")}
	eng := New(client)

	result := eng.Analyze(context.Background(), loanTriple(0.5))

	assert.Equal(t, model.AuditStatusFallback, result.Status)
	assert.Equal(t, 50.0, result.TrustScore)

	conf := result.Indicator(model.RiskCategoryConfidence)
	require.NotNil(t, conf)
	assert.Equal(t, model.SeverityHigh, conf.Severity)

	require.Len(t, result.InfluencingFactors, 2)
	stability := result.InfluencingFactors[1]
	assert.Equal(t, "Confidence Stability", stability.Factor)
	assert.Equal(t, model.ImpactNegative, stability.Impact)
	assert.Contains(t, stability.Explanation, "50%")
}

func TestAnalyze_FallbackNotCached(t *testing.T) {
	client := &stubClient{err: eris.New("down")}
	eng := New(client)
	triple := loanTriple(0.6)

	eng.Analyze(context.Background(), triple)
	eng.Analyze(context.Background(), triple)

	assert.Equal(t, int64(2), client.calls.Load(), "fallback results must not be cached")
	assert.Equal(t, int64(2), eng.Stats().Fallbacks)
}

func TestAnalyze_SchemaViolationFallsBack(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bad impact", `{"explanations":{"simple":"x","detailed":"y","technical":"z"},"influencingFactors":[{"factor":"a","impact":"sideways","weight":0.5}],"riskIndicators":[],"trustScore":50}`},
		{"bad category", `{"explanations":{"simple":"x","detailed":"y","technical":"z"},"influencingFactors":[],"riskIndicators":[{"category":"Vibes","severity":"low"}],"trustScore":50}`},
		{"trust score out of range", `{"explanations":{"simple":"x","detailed":"y","technical":"z"},"influencingFactors":[],"riskIndicators":[],"trustScore":140}`},
		{"missing explanation", `{"influencingFactors":[],"riskIndicators":[],"trustScore":50}`},
		{"not json", `the model declined to answer`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := New(&stubClient{text: tt.text})
			result := eng.Analyze(context.Background(), loanTriple(0.9))
			assert.Equal(t, model.AuditStatusFallback, result.Status)
			assert.Equal(t, 90.0, result.TrustScore)
		})
	}
}

func TestAnalyze_CodeFencedResponse(t *testing.T) {
	eng := New(&stubClient{text: "```json\n" + validAuditJSON + "\n```"})

	result := eng.Analyze(context.Background(), loanTriple(0.87))

	assert.Equal(t, model.AuditStatusLive, result.Status)
}

func TestAnalyze_OpenCircuitSkipsRemote(t *testing.T) {
	client := &stubClient{err: eris.New("down")}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1})
	eng := New(client, WithBreaker(cb))

	eng.Analyze(context.Background(), loanTriple(0.5))
	require.Equal(t, int64(1), client.calls.Load())

	// Circuit is now open: the next analysis must fall back without a call.
	result := eng.Analyze(context.Background(), loanTriple(0.5))
	assert.Equal(t, model.AuditStatusFallback, result.Status)
	assert.Equal(t, int64(1), client.calls.Load())
	assert.Equal(t, "open", eng.Stats().CircuitState)
}

func TestAnalyze_InFlightDedup(t *testing.T) {
	client := &stubClient{text: validAuditJSON, block: make(chan struct{})}
	eng := New(client, WithInFlightDedup())
	triple := loanTriple(0.87)

	var wg sync.WaitGroup
	results := make([]model.AuditResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = eng.Analyze(context.Background(), triple)
		}()
	}

	// Release the single shared remote call.
	close(client.block)
	wg.Wait()

	assert.Equal(t, int64(1), client.calls.Load(), "identical in-flight triples share one remote call")
	assert.Equal(t, results[0], results[1])
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"circuit open", resilience.ErrCircuitOpen, "circuit_open"},
		{"schema", &SchemaError{Field: "trustScore", Reason: "out of range"}, "schema_violation"},
		{"parse", &ParseError{Err: eris.New("bad json")}, "parse_error"},
		{"empty", ErrEmptyResponse, "parse_error"},
		{"quota", eris.New("rate limit exceeded"), "quota"},
		{"transport", eris.New("connection refused by upstream"), "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureReason(tt.err))
		})
	}
}
