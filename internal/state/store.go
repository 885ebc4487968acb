// Package state holds the current decision under audit. The scheduler and
// the dashboard API are the only writers; the engine only ever sees
// snapshots taken by value.
package state

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/trustlens/trustlens/internal/model"
)

// InvalidInputError indicates a user-supplied edit was rejected. The prior
// valid decision state is retained unchanged.
type InvalidInputError struct {
	Field string
	Err   error
}

func (e *InvalidInputError) Error() string {
	return "state: invalid " + e.Field + ": " + e.Err.Error()
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// Store owns the live decision triple.
type Store struct {
	mu     sync.RWMutex
	triple model.DecisionTriple
}

// NewStore seeds the store with an initial decision.
func NewStore(initial model.DecisionTriple) *Store {
	return &Store{triple: cloneTriple(initial)}
}

// Snapshot returns a deep copy of the current triple. Callers can hold it
// across an analysis round trip without seeing later mutations.
func (s *Store) Snapshot() model.DecisionTriple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTriple(s.triple)
}

// SetInputJSON replaces the input object from raw user-typed JSON. Malformed
// JSON or a non-object payload is rejected with InvalidInputError and the
// prior input is kept.
func (s *Store) SetInputJSON(raw []byte) error {
	obj, err := decodeObject(raw)
	if err != nil {
		return &InvalidInputError{Field: "input", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triple.Input = obj
	return nil
}

// SetOutputJSON replaces the output object from raw user-typed JSON, with
// the same no-partial-update guarantee as SetInputJSON.
func (s *Store) SetOutputJSON(raw []byte) error {
	obj, err := decodeObject(raw)
	if err != nil {
		return &InvalidInputError{Field: "output", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triple.Output = obj
	return nil
}

// SetConfidence replaces the confidence scalar, rejecting values outside [0,1].
func (s *Store) SetConfidence(c float64) error {
	if c < 0 || c > 1 {
		return &InvalidInputError{Field: "confidence", Err: eris.Errorf("%v outside [0,1]", c)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triple.Confidence = c
	return nil
}

// Mutate applies fn to the triple under the write lock. The simulator uses
// this so a perturbation reads and writes one consistent state.
func (s *Store) Mutate(fn func(t *model.DecisionTriple)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.triple)
}

func decodeObject(raw []byte) (map[string]any, error) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "decode json object")
	}
	if obj == nil {
		return nil, eris.New("payload is not a JSON object")
	}
	// Normalize json.Number back to float64 so canonical keys are stable
	// regardless of which edit path produced the value.
	normalized, ok := normalizeValue(obj).(map[string]any)
	if !ok {
		return nil, eris.New("payload is not a JSON object")
	}
	return normalized, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeValue(inner)
		}
		return out
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	default:
		return v
	}
}

func cloneTriple(t model.DecisionTriple) model.DecisionTriple {
	return model.DecisionTriple{
		Input:      cloneMap(t.Input),
		Output:     cloneMap(t.Output),
		Confidence: t.Confidence,
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
