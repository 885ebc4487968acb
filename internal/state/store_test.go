package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustlens/trustlens/internal/model"
)

func TestSetInputJSON_ReplacesObject(t *testing.T) {
	s := NewStore(model.DefaultDecision())

	err := s.SetInputJSON([]byte(`{"income": 90000, "loanAmount": 15000, "creditScore": 710}`))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, float64(90000), snap.Input["income"])
	assert.Equal(t, float64(15000), snap.Input["loanAmount"])
}

func TestSetInputJSON_InvalidRetainsPriorState(t *testing.T) {
	s := NewStore(model.DefaultDecision())
	before := s.Snapshot()

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed", `{"income": `},
		{"array", `[1, 2, 3]`},
		{"scalar", `42`},
		{"null", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetInputJSON([]byte(tt.raw))
			require.Error(t, err)

			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "input", invalid.Field)
			assert.Equal(t, before, s.Snapshot(), "rejected edit must not change state")
		})
	}
}

func TestSetOutputJSON_InvalidRetainsPriorState(t *testing.T) {
	s := NewStore(model.DefaultDecision())
	before := s.Snapshot()

	err := s.SetOutputJSON([]byte(`not json`))
	require.Error(t, err)

	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "output", invalid.Field)
	assert.Equal(t, before, s.Snapshot())
}

func TestSetConfidence_Range(t *testing.T) {
	s := NewStore(model.DefaultDecision())

	require.NoError(t, s.SetConfidence(0))
	require.NoError(t, s.SetConfidence(1))
	require.NoError(t, s.SetConfidence(0.42))
	assert.Equal(t, 0.42, s.Snapshot().Confidence)

	for _, bad := range []float64{-0.01, 1.01, 2} {
		err := s.SetConfidence(bad)
		require.Error(t, err)
		assert.Equal(t, 0.42, s.Snapshot().Confidence, "rejected value must not stick")
	}
}

func TestSnapshot_IsolatedFromLaterMutation(t *testing.T) {
	s := NewStore(model.DefaultDecision())
	snap := s.Snapshot()

	require.NoError(t, s.SetInputJSON([]byte(`{"income": 1}`)))

	assert.Equal(t, float64(75000), snap.Input["income"], "snapshot must not observe later edits")
}

func TestSnapshot_DeepCopy(t *testing.T) {
	s := NewStore(model.DecisionTriple{
		Input:      map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{1.0, 2.0}},
		Output:     map[string]any{"decision": "approved"},
		Confidence: 0.9,
	})

	snap := s.Snapshot()
	snap.Input["nested"].(map[string]any)["k"] = "mutated"
	snap.Input["list"].([]any)[0] = 99.0

	fresh := s.Snapshot()
	assert.Equal(t, "v", fresh.Input["nested"].(map[string]any)["k"])
	assert.Equal(t, 1.0, fresh.Input["list"].([]any)[0])
}

func TestCanonicalKey_StableAcrossEditPaths(t *testing.T) {
	a := NewStore(model.DefaultDecision())
	require.NoError(t, a.SetInputJSON([]byte(`{"income": 90000}`)))

	b := NewStore(model.DecisionTriple{
		Input:      map[string]any{"income": float64(90000)},
		Output:     model.DefaultDecision().Output,
		Confidence: model.DefaultDecision().Confidence,
	})

	assert.Equal(t, a.Snapshot().CanonicalKey(), b.Snapshot().CanonicalKey(),
		"JSON edits and direct values must hash identically")
}

func TestMutate_AppliesUnderLock(t *testing.T) {
	s := NewStore(model.DefaultDecision())

	s.Mutate(func(tr *model.DecisionTriple) {
		tr.Confidence = 0.33
		tr.Input["income"] = float64(20000)
	})

	snap := s.Snapshot()
	assert.Equal(t, 0.33, snap.Confidence)
	assert.Equal(t, float64(20000), snap.Input["income"])
}
