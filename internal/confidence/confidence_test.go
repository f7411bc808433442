package confidence

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateDecisionBoundaries(t *testing.T) {
	e := DefaultEvaluator()
	tests := []struct {
		score float64
		want  Decision
	}{
		{0.40, Uncertain()},
		{0.60, Uncertain()},
		{0.50, Uncertain()},
		{0.39999, Confident(Organic)},
		{0.60001, Confident(Recyclable)},
		{0.10, Confident(Organic)},
		{0.0, Confident(Organic)},
		{1.0, Confident(Recyclable)},
	}
	for _, tt := range tests {
		_, got := e.Evaluate(tt.score)
		assert.Equal(t, tt.want, got, "score %v", tt.score)
	}
}

func TestEvaluateTieBreakOutsideBand(t *testing.T) {
	// With a band that excludes 0.5 the exact midpoint resolves to Recyclable.
	e, err := NewEvaluator(Thresholds{Low: 0.55, High: 0.70})
	require.NoError(t, err)

	_, d := e.Evaluate(0.5)
	assert.Equal(t, Confident(Recyclable), d)
	_, d = e.Evaluate(0.4999)
	assert.Equal(t, Confident(Organic), d)
	_, d = e.Evaluate(0.55)
	assert.Equal(t, Uncertain(), d)
}

func TestEvaluateConfidences(t *testing.T) {
	pair, d := DefaultEvaluator().Evaluate(0.10)
	assert.InDelta(t, 90.0, pair.Organic, 1e-9)
	assert.InDelta(t, 10.0, pair.Recyclable, 1e-9)
	assert.Equal(t, Confident(Organic), d)
	assert.Equal(t, "organic", d.DisposalKey())
	assert.False(t, d.NeedsFeedback())
}

func TestEvaluateAbsorbsDegenerateScores(t *testing.T) {
	e := DefaultEvaluator()

	pair, d := e.Evaluate(-0.3)
	assert.Equal(t, Pair{Organic: 100, Recyclable: 0}, pair)
	assert.Equal(t, Confident(Organic), d)

	pair, d = e.Evaluate(1.7)
	assert.Equal(t, Pair{Organic: 0, Recyclable: 100}, pair)
	assert.Equal(t, Confident(Recyclable), d)

	pair, d = e.Evaluate(math.NaN())
	assert.Equal(t, Pair{Organic: 50, Recyclable: 50}, pair)
	assert.True(t, d.IsUncertain())

	_, d = e.Evaluate(math.Inf(1))
	assert.Equal(t, Confident(Recyclable), d)
}

func TestZeroWidthBand(t *testing.T) {
	e, err := NewEvaluator(Thresholds{Low: 0.5, High: 0.5})
	require.NoError(t, err)
	_, d := e.Evaluate(0.5)
	assert.True(t, d.IsUncertain())
	_, d = e.Evaluate(0.5000001)
	assert.Equal(t, Confident(Recyclable), d)
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Low: 0, High: 1}.Validate())
	assert.Error(t, Thresholds{Low: 0.7, High: 0.3}.Validate())
	assert.Error(t, Thresholds{Low: -0.1, High: 0.3}.Validate())
	assert.Error(t, Thresholds{Low: 0.1, High: 1.3}.Validate())
	assert.Error(t, Thresholds{Low: math.NaN(), High: 0.3}.Validate())

	_, err := NewEvaluator(Thresholds{Low: 0.9, High: 0.1})
	assert.Error(t, err)
}

func TestDecisionHelpers(t *testing.T) {
	u := Uncertain()
	assert.True(t, u.NeedsFeedback())
	assert.Empty(t, u.DisposalKey())
	assert.Equal(t, "Uncertain", u.String())

	r := Confident(Recyclable)
	assert.Equal(t, "recyclable", r.DisposalKey())
	assert.Equal(t, "Confident(Recyclable)", r.String())
}

func TestDecisionJSON(t *testing.T) {
	data, err := json.Marshal(Confident(Organic))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"confident","label":"Organic"}`, string(data))

	data, err = json.Marshal(Uncertain())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"uncertain"}`, string(data))

	var d Decision
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"confident","label":"Recyclable"}`), &d))
	assert.Equal(t, Confident(Recyclable), d)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"confident","label":"Glass"}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"maybe"}`), &d))
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("organic")
	require.NoError(t, err)
	assert.Equal(t, Organic, l)

	l, err = ParseLabel("RECYCLABLE")
	require.NoError(t, err)
	assert.Equal(t, Recyclable, l)

	_, err = ParseLabel("glass")
	assert.Error(t, err)
}
