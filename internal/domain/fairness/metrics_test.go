package fairness

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupsOf(spec ...any) []GroupKey {
	// spec alternates key, count
	var out []GroupKey
	for i := 0; i < len(spec); i += 2 {
		for n := 0; n < spec[i+1].(int); n++ {
			out = append(out, GroupKey(spec[i].(string)))
		}
	}
	return out
}

func parityExample() ([]float64, []GroupKey) {
	preds := []float64{1, 1, 1, 1, 0, 1, 1, 1, 1, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0, 0}
	return preds, groupsOf("0", 10, "1", 10)
}

func TestDemographicParity_Example(t *testing.T) {
	preds, attrs := parityExample()
	r := DemographicParity(preds, attrs)
	assert.Equal(t, OutcomeComputed, r.Outcome)
	assert.InDelta(t, 0.25, r.Value, 1e-12)
}

func TestDemographicParity_PerfectParity(t *testing.T) {
	tests := map[string][]float64{
		"all zero": {0, 0, 0, 0},
		"all one":  {1, 1, 1, 1},
		"equal":    {1, 0, 1, 0},
	}
	attrs := []GroupKey{"a", "a", "b", "b"}
	for name, preds := range tests {
		t.Run(name, func(t *testing.T) {
			r := DemographicParity(preds, attrs)
			assert.Equal(t, 1.0, r.Value)
			assert.Equal(t, OutcomeComputed, r.Outcome)
		})
	}
}

func TestDemographicParity_Degenerate(t *testing.T) {
	r := DemographicParity(nil, nil)
	assert.Equal(t, DefaultParitySingleGroup, r.Value)
	assert.Equal(t, OutcomeDegenerate, r.Outcome)

	r = DemographicParity([]float64{1, 0, 1}, []GroupKey{"a", "a", "a"})
	assert.Equal(t, DefaultParitySingleGroup, r.Value)

	r = DemographicParity([]float64{1, 0}, []GroupKey{"a", "a", "b"})
	assert.Equal(t, DefaultParityEmptyGroups, r.Value)
	assert.NotEmpty(t, r.Reason)
}

func TestDemographicParity_Monotonic(t *testing.T) {
	attrs := groupsOf("a", 10, "b", 10)
	prev := math.Inf(1)
	for posB := 8; posB >= 0; posB-- {
		preds := make([]float64, 20)
		for i := 0; i < 8; i++ {
			preds[i] = 1
		}
		for i := 0; i < posB; i++ {
			preds[10+i] = 1
		}
		v := DemographicParity(preds, attrs).Value
		assert.LessOrEqual(t, v, prev, "posB=%d", posB)
		prev = v
	}
}

func TestEqualizedOdds(t *testing.T) {
	t.Run("perfect classifier", func(t *testing.T) {
		truth := []float64{1, 0, 1, 0}
		r := EqualizedOdds(truth, truth, []GroupKey{"a", "a", "b", "b"})
		assert.Equal(t, 1.0, r.Value)
	})
	t.Run("ratio of rates", func(t *testing.T) {
		preds := []float64{1, 1, 1, 0, 1, 0, 1, 0, 0, 0}
		truth := []float64{1, 1, 0, 0, 1, 1, 0, 0, 0, 0}
		attrs := groupsOf("a", 4, "b", 6)
		r := EqualizedOdds(preds, truth, attrs)
		assert.Equal(t, OutcomeComputed, r.Outcome)
		assert.InDelta(t, 0.5, r.Value, 1e-12)
	})
	t.Run("groups lacking a label class are skipped", func(t *testing.T) {
		preds := []float64{1, 0, 1, 1}
		truth := []float64{1, 0, 1, 1}
		r := EqualizedOdds(preds, truth, []GroupKey{"a", "a", "b", "b"})
		assert.Equal(t, DefaultEqualizedOdds, r.Value)
		assert.Equal(t, OutcomeDegenerate, r.Outcome)
	})
	t.Run("zero false positive rates", func(t *testing.T) {
		preds := []float64{1, 0, 0, 0}
		truth := []float64{1, 0, 1, 0}
		r := EqualizedOdds(preds, truth, []GroupKey{"a", "a", "b", "b"})
		// TPR ratio 0/1, FPR ratio forced to 1.
		assert.InDelta(t, 0.5, r.Value, 1e-12)
	})
}

func TestCalibration(t *testing.T) {
	t.Run("no probabilities delegates to parity", func(t *testing.T) {
		preds, attrs := parityExample()
		r := Calibration(nil, nil, preds, attrs)
		assert.InDelta(t, 0.25, r.Value, 1e-12)
		assert.NotEmpty(t, r.Reason)
	})
	t.Run("length mismatch", func(t *testing.T) {
		r := Calibration([]float64{0.5}, []float64{1, 0}, nil, []GroupKey{"a"})
		assert.Equal(t, DefaultCalibrationMismatch, r.Value)
	})
	t.Run("NaN", func(t *testing.T) {
		r := Calibration([]float64{math.NaN(), 0.2}, []float64{1, 0}, nil, []GroupKey{"a", "b"})
		assert.Equal(t, DefaultCalibrationNaN, r.Value)
	})
	t.Run("single group", func(t *testing.T) {
		r := Calibration([]float64{0.1, 0.2}, []float64{0, 0}, nil, []GroupKey{"a", "a"})
		assert.Equal(t, DefaultCalibrationGroups, r.Value)
	})
	t.Run("sparse bins", func(t *testing.T) {
		probs := []float64{0.1, 0.2, 0.3, 0.1, 0.2, 0.3}
		truth := []float64{0, 0, 1, 0, 1, 0}
		r := Calibration(probs, truth, nil, groupsOf("a", 3, "b", 3))
		assert.Equal(t, DefaultCalibrationNoBins, r.Value)
		assert.Equal(t, OutcomeDegenerate, r.Outcome)
	})
	t.Run("well calibrated", func(t *testing.T) {
		probs := make([]float64, 20)
		truth := make([]float64, 20)
		for i := range probs {
			probs[i] = 0.95
			truth[i] = 1
		}
		r := Calibration(probs, truth, nil, groupsOf("a", 10, "b", 10))
		assert.Equal(t, OutcomeComputed, r.Outcome)
		assert.InDelta(t, 0.95, r.Value, 1e-9)
	})
	t.Run("probability of one lands in last bin", func(t *testing.T) {
		probs := []float64{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
		truth := []float64{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
		r := Calibration(probs, truth, nil, groupsOf("a", 5, "b", 5))
		assert.Equal(t, 1.0, r.Value)
	})
}

func TestIndividualFairness(t *testing.T) {
	t.Run("consistent twins", func(t *testing.T) {
		r := IndividualFairness([][]float64{{1, 2}, {1, 2}, {9, 9}}, []float64{1, 1, 0})
		assert.Equal(t, OutcomeComputed, r.Outcome)
		assert.Equal(t, 1.0, r.Value)
	})
	t.Run("inconsistent twins", func(t *testing.T) {
		r := IndividualFairness([][]float64{{1, 2}, {1, 2}}, []float64{1, 0})
		assert.Equal(t, 0.0, r.Value)
	})
	t.Run("no similar pairs", func(t *testing.T) {
		r := IndividualFairness([][]float64{{0}, {1}}, []float64{1, 0})
		assert.Equal(t, DefaultIndividualNoPairs, r.Value)
		assert.Equal(t, OutcomeDegenerate, r.Outcome)
	})
	t.Run("ragged rows", func(t *testing.T) {
		r := IndividualFairness([][]float64{{0, 1}, {1}}, []float64{1, 0})
		assert.Equal(t, DefaultIndividualNoPairs, r.Value)
	})
	t.Run("sampled pairs are deterministic", func(t *testing.T) {
		features := make([][]float64, 40)
		preds := make([]float64, 40)
		for i := range features {
			features[i] = []float64{float64(i % 4), float64(i % 3)}
			preds[i] = float64(i % 2)
		}
		first := IndividualFairness(features, preds)
		second := IndividualFairness(features, preds)
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first.Value, 0.0)
		assert.LessOrEqual(t, first.Value, 1.0)
	})
}

func TestMetrics_RangeOnDegenerateInputs(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	inputs := []TestData{
		{},
		{Predictions: []float64{1}, SensitiveAttributes: []GroupKey{"a"}},
		{Predictions: []float64{nan, 1, inf, 0}, GroundTruth: []float64{1, nan, 0, 1}, SensitiveAttributes: []GroupKey{"a", "b", "a", "b"}},
		{Predictions: []float64{5, -3}, GroundTruth: []float64{2, -1}, Probabilities: []float64{7, -2}, SensitiveAttributes: []GroupKey{"a", "b"}},
		{Predictions: []float64{1, 0}, Features: [][]float64{{nan}, {inf}}},
		{Predictions: []float64{0.3, 0.7}, Features: [][]float64{{}, {}}},
	}
	for i, td := range inputs {
		for name, r := range map[string]MetricResult{
			"dp":    DemographicParity(td.Predictions, td.SensitiveAttributes),
			"eo":    EqualizedOdds(td.Predictions, td.GroundTruth, td.SensitiveAttributes),
			"cal":   Calibration(td.Probabilities, td.GroundTruth, td.Predictions, td.SensitiveAttributes),
			"indiv": IndividualFairness(td.Features, td.Predictions),
		} {
			assert.False(t, math.IsNaN(r.Value), "input %d %s", i, name)
			assert.GreaterOrEqual(t, r.Value, 0.0, "input %d %s", i, name)
			assert.LessOrEqual(t, r.Value, 1.0, "input %d %s", i, name)
		}
	}
}

func TestGroupKey_UnmarshalJSON(t *testing.T) {
	var td TestData
	err := json.Unmarshal([]byte(`{"predictions":[1,0,1],"sensitive_attributes":[0,"female",1.0]}`), &td)
	require.NoError(t, err)
	assert.Equal(t, []GroupKey{"0", "female", "1"}, td.SensitiveAttributes)

	var g GroupKey
	assert.Error(t, json.Unmarshal([]byte(`{}`), &g))
}
