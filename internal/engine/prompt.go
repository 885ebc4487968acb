package engine

import (
	"encoding/json"
	"fmt"

	"github.com/trustlens/trustlens/internal/model"
)

const auditSystemPrompt = `You are an AI decision auditor. Given a model's input, output, and confidence score, produce a structured explainability audit. Respond with a single valid JSON object, no markdown, matching exactly this schema:
{
  "explanations": {
    "simple": "<one-sentence plain-language explanation>",
    "detailed": "<one-paragraph explanation for a business analyst>",
    "technical": "<one-paragraph explanation for an ML engineer>"
  },
  "influencingFactors": [
    {"factor": "<feature name>", "impact": "positive" | "negative" | "neutral", "weight": <0.0-1.0>, "explanation": "<why>"}
  ],
  "riskIndicators": [
    {"category": "Bias" | "Confidence" | "Logic" | "Drift", "severity": "low" | "medium" | "high", "finding": "<finding>"}
  ],
  "trustScore": <0-100>
}
Order influencing factors by descending weight. Cover each of the four risk categories at most once. The trust score is a single composite reliability metric.`

const auditUserPrompt = `Audit this model decision.

Input:
%s

Output:
%s

Confidence: %.4f`

// buildUserPrompt serializes the triple into the analysis request body.
func buildUserPrompt(triple model.DecisionTriple) string {
	in, err := json.MarshalIndent(triple.Input, "", "  ")
	if err != nil {
		in = []byte(fmt.Sprintf("%v", triple.Input))
	}
	out, err := json.MarshalIndent(triple.Output, "", "  ")
	if err != nil {
		out = []byte(fmt.Sprintf("%v", triple.Output))
	}
	return fmt.Sprintf(auditUserPrompt, in, out, triple.Confidence)
}
