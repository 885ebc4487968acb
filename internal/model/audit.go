package model

// AuditStatus distinguishes results computed by the remote explainability
// service from locally synthesized heuristic results.
type AuditStatus string

const (
	AuditStatusLive     AuditStatus = "live"
	AuditStatusFallback AuditStatus = "fallback"
)

// Impact is the direction a factor pushed the decision.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// RiskCategory is one of the four fixed audit dimensions.
type RiskCategory string

const (
	RiskCategoryBias       RiskCategory = "Bias"
	RiskCategoryConfidence RiskCategory = "Confidence"
	RiskCategoryLogic      RiskCategory = "Logic"
	RiskCategoryDrift      RiskCategory = "Drift"
)

// AllRiskCategories returns the fixed audit dimensions in report order.
func AllRiskCategories() []RiskCategory {
	return []RiskCategory{
		RiskCategoryBias,
		RiskCategoryConfidence,
		RiskCategoryLogic,
		RiskCategoryDrift,
	}
}

// Severity grades a risk indicator.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Explanations holds the three narrative tiers of an audit.
type Explanations struct {
	Simple    string `json:"simple"`
	Detailed  string `json:"detailed"`
	Technical string `json:"technical"`
}

// InfluencingFactor describes one input feature's contribution to the decision.
type InfluencingFactor struct {
	Factor      string  `json:"factor"`
	Impact      Impact  `json:"impact"`
	Weight      float64 `json:"weight"`
	Explanation string  `json:"explanation"`
}

// RiskIndicator is a single finding in one of the fixed risk categories.
type RiskIndicator struct {
	Category RiskCategory `json:"category"`
	Severity Severity     `json:"severity"`
	Finding  string       `json:"finding"`
}

// AuditResult is the structured narrative-and-risk audit for one decision
// triple. Immutable once created.
type AuditResult struct {
	Status             AuditStatus         `json:"status"`
	Explanations       Explanations        `json:"explanations"`
	InfluencingFactors []InfluencingFactor `json:"influencingFactors"`
	RiskIndicators     []RiskIndicator     `json:"riskIndicators"`
	TrustScore         float64             `json:"trustScore"`
}

// Indicator returns the first risk indicator in the given category, or nil.
func (r *AuditResult) Indicator(cat RiskCategory) *RiskIndicator {
	for i := range r.RiskIndicators {
		if r.RiskIndicators[i].Category == cat {
			return &r.RiskIndicators[i]
		}
	}
	return nil
}
