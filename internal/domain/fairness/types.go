package fairness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// GroupKey identifies a protected-attribute group. JSON strings, numbers and
// booleans are all accepted; numbers are normalised so 1 and 1.0 collide.
type GroupKey string

// UnmarshalJSON implements json.Unmarshaler.
func (g *GroupKey) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*g = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GroupKey(s)
		return nil
	case bytes.Equal(b, []byte("true")), bytes.Equal(b, []byte("false")):
		*g = GroupKey(b)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("group key %s: %w", b, err)
	}
	*g = GroupKey(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// TestData is labelled evaluation output used to compute real statistics.
// All slices are indexed by individual.
type TestData struct {
	Predictions         []float64   `json:"predictions"`
	GroundTruth         []float64   `json:"ground_truth"`
	Probabilities       []float64   `json:"probabilities,omitempty"`
	SensitiveAttributes []GroupKey  `json:"sensitive_attributes"`
	Features            [][]float64 `json:"features,omitempty"`
}

// Results carries fairness scores computed outside this package. Nil fields
// are filled by computation or estimation.
type Results struct {
	DemographicParity  *float64 `json:"demographic_parity,omitempty"`
	EqualizedOdds      *float64 `json:"equalized_odds,omitempty"`
	Calibration        *float64 `json:"calibration,omitempty"`
	IndividualFairness *float64 `json:"individual_fairness,omitempty"`
}

// ModelMetadata describes the model under assessment. Every field is optional;
// zero values mean "unknown".
type ModelMetadata struct {
	ModelName               string    `json:"model_name,omitempty"`
	ModelType               string    `json:"model_type,omitempty"`
	Framework               string    `json:"framework,omitempty"`
	UseCase                 string    `json:"use_case,omitempty"`
	ParameterCount          int64     `json:"parameter_count,omitempty"`
	BalancedDataset         bool      `json:"balanced_dataset,omitempty"`
	DiverseTrainingData     bool      `json:"diverse_training_data,omitempty"`
	FairnessConstraints     bool      `json:"fairness_constraints,omitempty"`
	BiasMitigation          bool      `json:"bias_mitigation,omitempty"`
	CalibratedProbabilities bool      `json:"calibrated_probabilities,omitempty"`
	ProtectedAttributes     []string  `json:"protected_attributes,omitempty"`
	BiasTestResults         *Results  `json:"bias_test_results,omitempty"`
	BiasTestData            *TestData `json:"bias_test_data,omitempty"`
}

// Outcome records how a metric value was obtained.
type Outcome string

const (
	OutcomeComputed    Outcome = "computed"
	OutcomePrecomputed Outcome = "precomputed"
	OutcomeDegenerate  Outcome = "degenerate"
	OutcomeEstimated   Outcome = "estimated"
)

// MetricResult is a fairness score in [0,1] with its provenance.
type MetricResult struct {
	Value   float64 `json:"value"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

func computed(v float64) MetricResult {
	return MetricResult{Value: clamp01(v), Outcome: OutcomeComputed}
}

func degenerate(v float64, reason string) MetricResult {
	return MetricResult{Value: clamp01(v), Outcome: OutcomeDegenerate, Reason: reason}
}

// clamp01 bounds v to [0,1]; NaN maps to 0.
func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func positive(v float64) bool { return v >= 0.5 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
