package engine

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/pkg/anthropic"
)

// ErrEmptyResponse indicates the remote service returned no text content.
var ErrEmptyResponse = eris.New("engine: empty response")

// SchemaError indicates the remote payload parsed as JSON but violated the
// audit response schema.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return "engine: schema violation at " + e.Field + ": " + e.Reason
}

// ParseError indicates the remote payload was not valid JSON at all.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "engine: parse response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// auditPayload mirrors the response schema sent to the remote service.
// Status is deliberately absent: the engine stamps it after validation.
type auditPayload struct {
	Explanations struct {
		Simple    string `json:"simple"`
		Detailed  string `json:"detailed"`
		Technical string `json:"technical"`
	} `json:"explanations"`
	InfluencingFactors []struct {
		Factor      string  `json:"factor"`
		Impact      string  `json:"impact"`
		Weight      float64 `json:"weight"`
		Explanation string  `json:"explanation"`
	} `json:"influencingFactors"`
	RiskIndicators []struct {
		Category string `json:"category"`
		Severity string `json:"severity"`
		Finding  string `json:"finding"`
	} `json:"riskIndicators"`
	TrustScore float64 `json:"trustScore"`
}

// parseAuditResponse validates the remote payload against the audit schema
// and converts it into a live AuditResult.
func parseAuditResponse(resp *anthropic.MessageResponse) (*model.AuditResult, error) {
	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	var payload auditPayload
	if err := json.Unmarshal([]byte(cleanJSON(text)), &payload); err != nil {
		return nil, &ParseError{Err: err}
	}

	if payload.Explanations.Simple == "" {
		return nil, &SchemaError{Field: "explanations.simple", Reason: "missing"}
	}
	if payload.TrustScore < 0 || payload.TrustScore > 100 {
		return nil, &SchemaError{Field: "trustScore", Reason: "out of range [0,100]"}
	}

	result := model.AuditResult{
		Status: model.AuditStatusLive,
		Explanations: model.Explanations{
			Simple:    payload.Explanations.Simple,
			Detailed:  payload.Explanations.Detailed,
			Technical: payload.Explanations.Technical,
		},
		TrustScore: payload.TrustScore,
	}

	for _, f := range payload.InfluencingFactors {
		impact, ok := parseImpact(f.Impact)
		if !ok {
			return nil, &SchemaError{Field: "influencingFactors.impact", Reason: "unknown value " + f.Impact}
		}
		result.InfluencingFactors = append(result.InfluencingFactors, model.InfluencingFactor{
			Factor:      f.Factor,
			Impact:      impact,
			Weight:      f.Weight,
			Explanation: f.Explanation,
		})
	}

	seen := make(map[model.RiskCategory]bool, 4)
	for _, r := range payload.RiskIndicators {
		cat, ok := parseCategory(r.Category)
		if !ok {
			return nil, &SchemaError{Field: "riskIndicators.category", Reason: "unknown value " + r.Category}
		}
		sev, ok := parseSeverity(r.Severity)
		if !ok {
			return nil, &SchemaError{Field: "riskIndicators.severity", Reason: "unknown value " + r.Severity}
		}
		if seen[cat] {
			// Keep the first indicator per category; later duplicates add
			// nothing the record derivation would use.
			continue
		}
		seen[cat] = true
		result.RiskIndicators = append(result.RiskIndicators, model.RiskIndicator{
			Category: cat,
			Severity: sev,
			Finding:  r.Finding,
		})
	}

	return &result, nil
}

func parseImpact(s string) (model.Impact, bool) {
	switch model.Impact(strings.ToLower(s)) {
	case model.ImpactPositive, model.ImpactNegative, model.ImpactNeutral:
		return model.Impact(strings.ToLower(s)), true
	default:
		return "", false
	}
}

func parseCategory(s string) (model.RiskCategory, bool) {
	for _, cat := range model.AllRiskCategories() {
		if strings.EqualFold(s, string(cat)) {
			return cat, true
		}
	}
	return "", false
}

func parseSeverity(s string) (model.Severity, bool) {
	switch model.Severity(strings.ToLower(s)) {
	case model.SeverityLow, model.SeverityMedium, model.SeverityHigh:
		return model.Severity(strings.ToLower(s)), true
	default:
		return "", false
	}
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
