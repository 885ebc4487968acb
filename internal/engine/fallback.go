package engine

import (
	"fmt"
	"math"

	"github.com/trustlens/trustlens/internal/model"
)

// FallbackResult synthesizes a deterministic heuristic audit for the given
// confidence. It is used whenever the remote service cannot produce a live
// result. The derivation is pure: the same confidence always yields the same
// result, which keeps dashboards stable under sustained remote failure.
// Fallback results are never cached.
func FallbackResult(confidence float64) model.AuditResult {
	pct := int(math.Round(confidence * 100))

	stabilityImpact := model.ImpactNegative
	if confidence > 0.8 {
		stabilityImpact = model.ImpactPositive
	}

	severity := model.SeverityLow
	if confidence < model.AnomalyThreshold {
		severity = model.SeverityHigh
	}

	return model.AuditResult{
		Status: model.AuditStatusFallback,
		Explanations: model.Explanations{
			Simple:    "The decision was driven primarily by the applicant's income relative to the requested loanAmount.",
			Detailed:  "Heuristic analysis: the income field carries the largest weight in this decision, scaled against the requested loanAmount. The remote explainability service was unavailable, so this audit was derived locally from the confidence score and the standard loan-decision factor profile.",
			Technical: "Fallback path: remote analysis failed, so factor weights were taken from the static loan-decision profile (income scaling dominant, loanAmount secondary) and the trust score was derived linearly from the reported model confidence.",
		},
		InfluencingFactors: []model.InfluencingFactor{
			{
				Factor:      "Income Scaling",
				Impact:      model.ImpactPositive,
				Weight:      0.65,
				Explanation: "Applicant income is the dominant positive driver in the standard loan-decision profile.",
			},
			{
				Factor:      "Confidence Stability",
				Impact:      stabilityImpact,
				Weight:      0.35,
				Explanation: fmt.Sprintf("Model confidence of %d%% factored into decision stability.", pct),
			},
		},
		RiskIndicators: []model.RiskIndicator{
			{
				Category: model.RiskCategoryConfidence,
				Severity: severity,
				Finding:  fmt.Sprintf("Model confidence is %d%%; heuristic audit in effect while the explainability service is unreachable.", pct),
			},
		},
		TrustScore: math.Round(confidence * 100),
	}
}
