package fairness

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Heuristic baselines and bounds for metadata-only estimation.
const (
	BaselineDemographicParity  = 0.75
	BaselineEqualizedOdds      = 0.70
	BaselineCalibration        = 0.72
	BaselineIndividualFairness = 0.68

	estimateFloor   = 0.5
	estimateCeiling = 0.95
)

// HeuristicWeights are the additive deltas applied by the Estimator. They are
// illustrative and intended to be tuned through configuration.
type HeuristicWeights struct {
	LinearModel             float64 `yaml:"linear_model" json:"linear_model"`
	TreeModel               float64 `yaml:"tree_model" json:"tree_model"`
	NeuralNetwork           float64 `yaml:"neural_network" json:"neural_network"`
	BalancedDataset         float64 `yaml:"balanced_dataset" json:"balanced_dataset"`
	UnbalancedDataset       float64 `yaml:"unbalanced_dataset" json:"unbalanced_dataset"`
	DiverseTrainingData     float64 `yaml:"diverse_training_data" json:"diverse_training_data"`
	FairnessConstraints     float64 `yaml:"fairness_constraints" json:"fairness_constraints"`
	BiasMitigation          float64 `yaml:"bias_mitigation" json:"bias_mitigation"`
	CalibratedProbabilities float64 `yaml:"calibrated_probabilities" json:"calibrated_probabilities"`
	LargeModel              float64 `yaml:"large_model" json:"large_model"`
	LargeModelParameters    int64   `yaml:"large_model_parameters" json:"large_model_parameters"`
	HighRiskUseCase         float64 `yaml:"high_risk_use_case" json:"high_risk_use_case"`
}

// DefaultWeights returns the built-in heuristic deltas.
func DefaultWeights() HeuristicWeights {
	return HeuristicWeights{
		LinearModel:             0.10,
		TreeModel:               0.05,
		NeuralNetwork:           -0.05,
		BalancedDataset:         0.08,
		UnbalancedDataset:       -0.05,
		DiverseTrainingData:     0.05,
		FairnessConstraints:     0.10,
		BiasMitigation:          0.07,
		CalibratedProbabilities: 0.08,
		LargeModel:              -0.05,
		LargeModelParameters:    1_000_000_000,
		HighRiskUseCase:         -0.08,
	}
}

// Scores holds the four fairness scores.
type Scores struct {
	DemographicParity  float64 `json:"demographic_parity"`
	EqualizedOdds      float64 `json:"equalized_odds"`
	Calibration        float64 `json:"calibration"`
	IndividualFairness float64 `json:"individual_fairness"`
}

// ModelFamily is the coarse model type used by the heuristics.
type ModelFamily string

const (
	FamilyLinear  ModelFamily = "linear"
	FamilyTree    ModelFamily = "tree"
	FamilyNeural  ModelFamily = "neural_network"
	FamilyUnknown ModelFamily = "unknown"
)

var highRiskUseCase = regexp.MustCompile(`\b(hiring|recruit\w*|employment|credit|lending|loans?|insurance|medical|health\w*|criminal|justice|policing|education|admissions?|housing|welfare)\b`)

// FamilyOf maps a free-form model type, falling back to the model file
// extension when the type is empty.
func FamilyOf(modelType, modelFile string) ModelFamily {
	t := strings.ToLower(modelType)
	switch {
	case containsAny(t, "tree", "forest", "boost", "xgb", "lightgbm", "catboost"):
		return FamilyTree
	case containsAny(t, "neural", "deep", "cnn", "rnn", "lstm", "transformer", "bert", "gpt", "llm"):
		return FamilyNeural
	case containsAny(t, "linear", "logistic", "regression", "svm"):
		return FamilyLinear
	}
	if t != "" {
		return FamilyUnknown
	}
	switch strings.ToLower(filepath.Ext(modelFile)) {
	case ".h5", ".keras", ".pb", ".pt", ".pth", ".onnx", ".tflite", ".safetensors", ".gguf":
		return FamilyNeural
	}
	return FamilyUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Estimator derives fairness scores from model metadata alone. It is pure:
// identical metadata always yields identical scores.
type Estimator struct {
	w HeuristicWeights
}

// NewEstimator returns an Estimator using w.
func NewEstimator(w HeuristicWeights) *Estimator {
	return &Estimator{w: w}
}

// Estimate applies the weighted deltas to the baselines and clamps the result.
func (e *Estimator) Estimate(modelFile string, meta ModelMetadata) Scores {
	var all, parity, odds, calib, individual float64

	switch FamilyOf(meta.ModelType, modelFile) {
	case FamilyLinear:
		all += e.w.LinearModel
	case FamilyTree:
		all += e.w.TreeModel
	case FamilyNeural:
		all += e.w.NeuralNetwork
	}
	if meta.BalancedDataset {
		parity += e.w.BalancedDataset
		odds += e.w.BalancedDataset
	} else {
		parity += e.w.UnbalancedDataset
		odds += e.w.UnbalancedDataset
	}
	if meta.DiverseTrainingData {
		parity += e.w.DiverseTrainingData
		individual += e.w.DiverseTrainingData
	}
	if meta.FairnessConstraints {
		parity += e.w.FairnessConstraints
		odds += e.w.FairnessConstraints
	}
	if meta.BiasMitigation {
		all += e.w.BiasMitigation
	}
	if meta.CalibratedProbabilities {
		calib += e.w.CalibratedProbabilities
	}
	if e.w.LargeModelParameters > 0 && meta.ParameterCount > e.w.LargeModelParameters {
		all += e.w.LargeModel
	}
	if highRiskUseCase.MatchString(strings.ToLower(meta.UseCase)) {
		all += e.w.HighRiskUseCase
	}

	return Scores{
		DemographicParity:  bound(BaselineDemographicParity + all + parity),
		EqualizedOdds:      bound(BaselineEqualizedOdds + all + odds),
		Calibration:        bound(BaselineCalibration + all + calib),
		IndividualFairness: bound(BaselineIndividualFairness + all + individual),
	}
}

func bound(v float64) float64 {
	return clamp(v, estimateFloor, estimateCeiling)
}
