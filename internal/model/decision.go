package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// DecisionTriple is a single model decision under audit: the input the model
// saw, the output it produced, and its confidence in that output.
// Triples are passed by value; the engine never mutates them.
type DecisionTriple struct {
	Input      map[string]any `json:"input"`
	Output     map[string]any `json:"output"`
	Confidence float64        `json:"confidence"`
}

// CanonicalKey returns a deterministic serialization hash of the triple, used
// as the exact-match memoization key for analysis results. encoding/json
// sorts map keys, so identical triples always produce the same key.
func (t DecisionTriple) CanonicalKey() string {
	data, err := json.Marshal(t)
	if err != nil {
		// Maps decoded from JSON always marshal; anything else gets a
		// best-effort key so analysis still proceeds (uncached).
		data = []byte(fmt.Sprintf("%v|%v|%v", t.Input, t.Output, t.Confidence))
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}

// DefaultDecision seeds the dashboard with a representative loan decision.
func DefaultDecision() DecisionTriple {
	return DecisionTriple{
		Input: map[string]any{
			"income":      float64(75000),
			"loanAmount":  float64(25000),
			"creditScore": float64(720),
		},
		Output: map[string]any{
			"decision": "approved",
			"rate":     6.2,
		},
		Confidence: 0.87,
	}
}
