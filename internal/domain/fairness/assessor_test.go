package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestEstimator_Baselines(t *testing.T) {
	e := NewEstimator(DefaultWeights())
	got := e.Estimate("", ModelMetadata{BalancedDataset: true})
	assert.InDelta(t, 0.83, got.DemographicParity, 1e-9)
	assert.InDelta(t, 0.78, got.EqualizedOdds, 1e-9)
	assert.InDelta(t, BaselineCalibration, got.Calibration, 1e-9)
	assert.InDelta(t, BaselineIndividualFairness, got.IndividualFairness, 1e-9)
}

func TestEstimator_Clamped(t *testing.T) {
	e := NewEstimator(DefaultWeights())
	best := e.Estimate("", ModelMetadata{
		ModelType: "logistic regression", BalancedDataset: true, DiverseTrainingData: true,
		FairnessConstraints: true, BiasMitigation: true, CalibratedProbabilities: true,
	})
	assert.Equal(t, estimateCeiling, best.DemographicParity)
	assert.Equal(t, estimateCeiling, best.EqualizedOdds)

	heavy := HeuristicWeights{NeuralNetwork: -1, UnbalancedDataset: -1}
	worst := NewEstimator(heavy).Estimate("model.onnx", ModelMetadata{})
	assert.Equal(t, estimateFloor, worst.DemographicParity)
	assert.Equal(t, estimateFloor, worst.Calibration)
}

func TestEstimator_UseCaseAndSize(t *testing.T) {
	e := NewEstimator(DefaultWeights())
	base := e.Estimate("", ModelMetadata{BalancedDataset: true})
	risky := e.Estimate("", ModelMetadata{BalancedDataset: true, UseCase: "Credit scoring for consumer loans", ParameterCount: 7_000_000_000})
	assert.InDelta(t, base.Calibration-0.13, risky.Calibration, 1e-9)
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, FamilyTree, FamilyOf("Gradient Boosting Regressor", ""))
	assert.Equal(t, FamilyLinear, FamilyOf("LogisticRegression", ""))
	assert.Equal(t, FamilyNeural, FamilyOf("", "weights.pt"))
	assert.Equal(t, FamilyUnknown, FamilyOf("", "model.pkl"))
	assert.Equal(t, FamilyUnknown, FamilyOf("knn", "model.pt"))
}

func TestAssessModelBias_Precomputed(t *testing.T) {
	a := NewAssessor(nil, nil)
	res := a.AssessModelBias("model.pkl", ModelMetadata{
		BiasTestResults: &Results{
			DemographicParity:  ptr(0.9),
			EqualizedOdds:      ptr(0.8),
			Calibration:        ptr(1.4),
			IndividualFairness: ptr(0.7),
		},
	})
	assert.Equal(t, MethodPrecomputed, res.Method)
	assert.Equal(t, 0.9, res.DemographicParity)
	assert.Equal(t, 1.0, res.CalibrationScore)
	assert.InDelta(t, (0.9+0.8+1.0+0.7)/4, res.OverallBiasScore, 1e-12)
	assert.Equal(t, OutcomePrecomputed, res.MetricDetails[MetricEqualizedOdds].Outcome)
}

func TestAssessModelBias_TestData(t *testing.T) {
	preds, attrs := parityExample()
	truth := make([]float64, len(preds))
	copy(truth, preds)
	truth[4], truth[11] = 1, 1

	a := NewAssessor(nil, nil)
	res := a.AssessModelBias("model.pkl", ModelMetadata{
		ProtectedAttributes: []string{"gender"},
		BiasTestData: &TestData{
			Predictions:         preds,
			GroundTruth:         truth,
			SensitiveAttributes: attrs,
		},
	})

	assert.InDelta(t, 0.25, res.DemographicParity, 1e-12)
	assert.Equal(t, OutcomeComputed, res.MetricDetails[MetricDemographicParity].Outcome)
	assert.Equal(t, OutcomeEstimated, res.MetricDetails[MetricIndividualFairness].Outcome)
	assert.Equal(t, "features missing", res.MetricDetails[MetricIndividualFairness].Reason)
	assert.Equal(t, MethodMixed, res.Method)
	assert.Equal(t, []string{"gender=1"}, res.AffectedGroups)

	ids := make([]string, 0, len(res.MitigationRecommendations))
	for _, r := range res.MitigationRecommendations {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, "bias-demographic-parity")
	assert.Contains(t, ids, "bias-affected-groups")
	assert.Contains(t, ids, "bias-collect-test-data")
}

func TestAssessModelBias_InvalidTestDataFallsBack(t *testing.T) {
	a := NewAssessor(nil, nil)
	res := a.AssessModelBias("", ModelMetadata{
		BiasTestData: &TestData{Predictions: []float64{1, 0, 1}, SensitiveAttributes: []GroupKey{"a"}},
	})
	assert.Equal(t, MethodEstimated, res.Method)
	for name, d := range res.MetricDetails {
		assert.Equal(t, OutcomeEstimated, d.Outcome, name)
		assert.NotEmpty(t, d.Reason, name)
	}
}

func TestAssessModelBias_MetadataOnlyDeterministic(t *testing.T) {
	a := NewAssessor(nil, nil)
	meta := ModelMetadata{
		ModelType:           "random forest",
		UseCase:             "hiring",
		ProtectedAttributes: []string{"race", "age"},
	}
	first := a.AssessModelBias("model.joblib", meta)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.AssessModelBias("model.joblib", meta))
	}
	require.Equal(t, MethodEstimated, first.Method)
	for _, v := range []float64{first.DemographicParity, first.EqualizedOdds, first.CalibrationScore, first.FairnessThroughAwareness} {
		assert.GreaterOrEqual(t, v, estimateFloor)
		assert.LessOrEqual(t, v, estimateCeiling)
	}
	mean := (first.DemographicParity + first.EqualizedOdds + first.CalibrationScore + first.FairnessThroughAwareness) / 4
	assert.Equal(t, mean, first.OverallBiasScore)
	assert.Equal(t, []string{"age", "race"}, first.AffectedGroups)
	assert.Equal(t, BiasRiskMedium, first.BiasRisk)
}

func TestRiskFor(t *testing.T) {
	assert.Equal(t, BiasRiskLow, RiskFor(0.85))
	assert.Equal(t, BiasRiskMedium, RiskFor(0.6))
	assert.Equal(t, BiasRiskHigh, RiskFor(0.59))
}
