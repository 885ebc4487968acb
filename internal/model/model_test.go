package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKey_Deterministic(t *testing.T) {
	a := DecisionTriple{
		Input:      map[string]any{"income": float64(75000), "creditScore": float64(720)},
		Output:     map[string]any{"decision": "approved"},
		Confidence: 0.87,
	}
	b := DecisionTriple{
		Input:      map[string]any{"creditScore": float64(720), "income": float64(75000)},
		Output:     map[string]any{"decision": "approved"},
		Confidence: 0.87,
	}

	assert.Equal(t, a.CanonicalKey(), b.CanonicalKey(), "map insertion order must not matter")
	assert.Len(t, a.CanonicalKey(), 64)
}

func TestCanonicalKey_SensitiveToEveryField(t *testing.T) {
	base := DefaultDecision()

	input := DefaultDecision()
	input.Input["income"] = float64(75001)

	output := DefaultDecision()
	output.Output["rate"] = 6.3

	confidence := DefaultDecision()
	confidence.Confidence = 0.88

	key := base.CanonicalKey()
	assert.NotEqual(t, key, input.CanonicalKey())
	assert.NotEqual(t, key, output.CanonicalKey())
	assert.NotEqual(t, key, confidence.CanonicalKey())
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"manual", "live", "simulation"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}

	for _, invalid := range []string{"", "Live", "auto", "sim"} {
		_, err := ParseMode(invalid)
		assert.Error(t, err, "mode %q", invalid)
	}
}

func TestNewDriftPoint(t *testing.T) {
	p := NewDriftPoint("09:15:00", 0.65)
	assert.Equal(t, "09:15:00", p.Timestamp)
	assert.InDelta(t, 0.35, p.ErrorRate, 1e-9)
	assert.True(t, p.AnomalyDetected)

	p = NewDriftPoint("09:15:01", 0.7)
	assert.False(t, p.AnomalyDetected, "threshold itself is not anomalous")
}

func TestAuditResult_Indicator(t *testing.T) {
	result := AuditResult{RiskIndicators: []RiskIndicator{
		{Category: RiskCategoryBias, Severity: SeverityLow},
		{Category: RiskCategoryLogic, Severity: SeverityHigh},
	}}

	logic := result.Indicator(RiskCategoryLogic)
	require.NotNil(t, logic)
	assert.Equal(t, SeverityHigh, logic.Severity)
	assert.Nil(t, result.Indicator(RiskCategoryDrift))
}

func TestAllRiskCategories_ReportOrder(t *testing.T) {
	assert.Equal(t, []RiskCategory{
		RiskCategoryBias,
		RiskCategoryConfidence,
		RiskCategoryLogic,
		RiskCategoryDrift,
	}, AllRiskCategories())
}
