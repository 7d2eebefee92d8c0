package fairness

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/domain/recommend"
)

// Metric names used in BiasAssessment.MetricDetails.
const (
	MetricDemographicParity  = "demographic_parity"
	MetricEqualizedOdds      = "equalized_odds"
	MetricCalibration        = "calibration"
	MetricIndividualFairness = "individual_fairness"
)

// Assessment methods.
const (
	MethodPrecomputed = "precomputed"
	MethodComputed    = "computed"
	MethodEstimated   = "estimated"
	MethodMixed       = "mixed"
)

const (
	// fairnessThreshold is the score below which a metric gets a remediation.
	fairnessThreshold = 0.8
	// fourFifths flags groups whose positive rate is under 80% of the best group.
	fourFifths = 0.8
)

// BiasRisk buckets the overall score.
type BiasRisk string

const (
	BiasRiskLow    BiasRisk = "low"
	BiasRiskMedium BiasRisk = "medium"
	BiasRiskHigh   BiasRisk = "high"
)

// RiskFor maps an overall fairness score to a risk bucket.
func RiskFor(overall float64) BiasRisk {
	switch {
	case overall >= 0.8:
		return BiasRiskLow
	case overall >= 0.6:
		return BiasRiskMedium
	}
	return BiasRiskHigh
}

// BiasAssessment is the outcome of one model bias assessment. All four
// component scores are in [0,1] and OverallBiasScore is their mean.
type BiasAssessment struct {
	ModelFile                 string                     `json:"model_file,omitempty"`
	ModelName                 string                     `json:"model_name,omitempty"`
	OverallBiasScore          float64                    `json:"overall_bias_score"`
	DemographicParity         float64                    `json:"demographic_parity"`
	EqualizedOdds             float64                    `json:"equalized_odds"`
	CalibrationScore          float64                    `json:"calibration_score"`
	FairnessThroughAwareness  float64                    `json:"fairness_through_awareness"`
	AffectedGroups            []string                   `json:"affected_groups"`
	MitigationRecommendations []recommend.Recommendation `json:"mitigation_recommendations"`
	Method                    string                     `json:"method"`
	BiasRisk                  BiasRisk                   `json:"bias_risk"`
	MetricDetails             map[string]MetricResult    `json:"metric_details"`
}

// Assessor runs bias assessments with the precedence: precomputed results,
// then statistics over test data, then the metadata heuristic. Precedence is
// applied per metric.
type Assessor struct {
	est *Estimator
	log *zap.SugaredLogger
}

// NewAssessor builds an Assessor. A nil estimator uses DefaultWeights.
func NewAssessor(est *Estimator, log *zap.SugaredLogger) *Assessor {
	if est == nil {
		est = NewEstimator(DefaultWeights())
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Assessor{est: est, log: log}
}

// AssessModelBias never fails; every fallback is recorded in MetricDetails and logged.
func (a *Assessor) AssessModelBias(modelFile string, meta ModelMetadata) BiasAssessment {
	estimate := a.est.Estimate(modelFile, meta)
	var pre Results
	if meta.BiasTestResults != nil {
		pre = *meta.BiasTestResults
	}
	td := meta.BiasTestData

	details := map[string]MetricResult{
		MetricDemographicParity: a.resolve(MetricDemographicParity, pre.DemographicParity, estimate.DemographicParity,
			func() (MetricResult, string) {
				if reason := validateParity(td); reason != "" {
					return MetricResult{}, reason
				}
				return DemographicParity(td.Predictions, td.SensitiveAttributes), ""
			}),
		MetricEqualizedOdds: a.resolve(MetricEqualizedOdds, pre.EqualizedOdds, estimate.EqualizedOdds,
			func() (MetricResult, string) {
				if reason := validateOdds(td); reason != "" {
					return MetricResult{}, reason
				}
				return EqualizedOdds(td.Predictions, td.GroundTruth, td.SensitiveAttributes), ""
			}),
		MetricCalibration: a.resolve(MetricCalibration, pre.Calibration, estimate.Calibration,
			func() (MetricResult, string) {
				if reason := validateCalibration(td); reason != "" {
					return MetricResult{}, reason
				}
				return Calibration(td.Probabilities, td.GroundTruth, td.Predictions, td.SensitiveAttributes), ""
			}),
		MetricIndividualFairness: a.resolve(MetricIndividualFairness, pre.IndividualFairness, estimate.IndividualFairness,
			func() (MetricResult, string) {
				if reason := validateIndividual(td); reason != "" {
					return MetricResult{}, reason
				}
				return IndividualFairness(td.Features, td.Predictions), ""
			}),
	}

	res := BiasAssessment{
		ModelFile:                modelFile,
		ModelName:                meta.ModelName,
		DemographicParity:        details[MetricDemographicParity].Value,
		EqualizedOdds:            details[MetricEqualizedOdds].Value,
		CalibrationScore:         details[MetricCalibration].Value,
		FairnessThroughAwareness: details[MetricIndividualFairness].Value,
		MetricDetails:            details,
	}
	res.OverallBiasScore = (res.DemographicParity + res.EqualizedOdds + res.CalibrationScore + res.FairnessThroughAwareness) / 4
	res.BiasRisk = RiskFor(res.OverallBiasScore)
	res.Method = methodOf(details)
	res.AffectedGroups = affectedGroups(meta, validateParity(td) == "", res.OverallBiasScore)
	res.MitigationRecommendations = mitigations(res)
	return res
}

// resolve picks the value for one metric. compute reports a non-empty reason
// when test data cannot serve the metric.
func (a *Assessor) resolve(name string, pre *float64, estimate float64, compute func() (MetricResult, string)) MetricResult {
	if pre != nil {
		if finite(*pre) {
			return MetricResult{Value: clamp01(*pre), Outcome: OutcomePrecomputed}
		}
		a.log.Infow("ignoring non-finite precomputed bias metric", "metric", name)
	}
	r, reason := compute()
	if reason == "" {
		if r.Outcome == OutcomeDegenerate {
			a.log.Infow("bias metric degenerate", "metric", name, "value", r.Value, "reason", r.Reason)
		}
		return r
	}
	a.log.Infow("bias metric estimated from metadata", "metric", name, "value", estimate, "reason", reason)
	return MetricResult{Value: clamp01(estimate), Outcome: OutcomeEstimated, Reason: reason}
}

func validateParity(td *TestData) string {
	switch {
	case td == nil:
		return "no test data"
	case len(td.Predictions) == 0:
		return "predictions missing"
	case len(td.SensitiveAttributes) == 0:
		return "sensitive_attributes missing"
	case len(td.Predictions) != len(td.SensitiveAttributes):
		return "predictions and sensitive_attributes differ in length"
	}
	return ""
}

func validateOdds(td *TestData) string {
	if reason := validateParity(td); reason != "" {
		return reason
	}
	switch {
	case len(td.GroundTruth) == 0:
		return "ground_truth missing"
	case len(td.GroundTruth) != len(td.Predictions):
		return "ground_truth and predictions differ in length"
	}
	return ""
}

func validateCalibration(td *TestData) string {
	if td != nil && len(td.Probabilities) == 0 {
		return validateParity(td)
	}
	if reason := validateOdds(td); reason != "" {
		return reason
	}
	if len(td.Probabilities) != len(td.Predictions) {
		return "probabilities and predictions differ in length"
	}
	return ""
}

func validateIndividual(td *TestData) string {
	switch {
	case td == nil:
		return "no test data"
	case len(td.Features) == 0:
		return "features missing"
	case len(td.Predictions) == 0:
		return "predictions missing"
	case len(td.Features) != len(td.Predictions):
		return "features and predictions differ in length"
	}
	return ""
}

func methodOf(details map[string]MetricResult) string {
	seen := map[string]struct{}{}
	for _, d := range details {
		switch d.Outcome {
		case OutcomePrecomputed:
			seen[MethodPrecomputed] = struct{}{}
		case OutcomeComputed, OutcomeDegenerate:
			seen[MethodComputed] = struct{}{}
		default:
			seen[MethodEstimated] = struct{}{}
		}
	}
	if len(seen) != 1 {
		return MethodMixed
	}
	for m := range seen {
		return m
	}
	return MethodMixed
}

// affectedGroups applies the four-fifths rule to test data when available,
// otherwise reports declared protected attributes for a weak overall score.
func affectedGroups(meta ModelMetadata, haveData bool, overall float64) []string {
	out := []string{}
	if haveData {
		td := meta.BiasTestData
		groups := positiveRates(td.Predictions, td.SensitiveAttributes)
		best := 0.0
		for _, g := range groups {
			if g.n > 0 {
				best = math.Max(best, float64(g.pos)/float64(g.n))
			}
		}
		if best == 0 {
			return out
		}
		attr := "group"
		if len(meta.ProtectedAttributes) == 1 {
			attr = meta.ProtectedAttributes[0]
		}
		for _, g := range groups {
			if g.n == 0 {
				continue
			}
			if float64(g.pos)/float64(g.n) < fourFifths*best {
				out = append(out, fmt.Sprintf("%s=%s", attr, g.key))
			}
		}
		return out
	}
	if overall < fairnessThreshold {
		out = append(out, meta.ProtectedAttributes...)
		sort.Strings(out)
	}
	return out
}

func mitigations(res BiasAssessment) []recommend.Recommendation {
	var b recommend.Builder
	sev := func(v float64) recommend.Severity {
		if v < 0.6 {
			return recommend.SeverityHigh
		}
		return recommend.SeverityMedium
	}
	if v := res.DemographicParity; v < fairnessThreshold {
		b.Add(recommend.Item{
			Key:         "bias:demographic-parity",
			Title:       "Reduce disparity in positive prediction rates",
			Severity:    sev(v),
			Category:    MetricDemographicParity,
			Description: fmt.Sprintf("Demographic parity is %.2f; groups receive positive outcomes at markedly different rates.", v),
			Steps: []string{
				"Re-weight or re-sample training data to balance outcomes across groups.",
				"Evaluate per-group decision thresholds.",
				"Apply a fairness constraint during training.",
			},
			Source: "bias",
		})
	}
	if v := res.EqualizedOdds; v < fairnessThreshold {
		b.Add(recommend.Item{
			Key:         "bias:equalized-odds",
			Title:       "Align error rates across groups",
			Severity:    sev(v),
			Category:    MetricEqualizedOdds,
			Description: fmt.Sprintf("Equalized odds is %.2f; true and false positive rates differ between groups.", v),
			Steps: []string{
				"Apply post-processing to equalize TPR and FPR.",
				"Collect additional labelled data for under-represented groups.",
			},
			Source: "bias",
		})
	}
	if v := res.CalibrationScore; v < fairnessThreshold {
		b.Add(recommend.Item{
			Key:         "bias:calibration",
			Title:       "Recalibrate predicted probabilities per group",
			Severity:    sev(v),
			Category:    MetricCalibration,
			Description: fmt.Sprintf("Calibration is %.2f; predicted probabilities do not match observed outcomes.", v),
			Steps: []string{
				"Fit Platt scaling or isotonic regression on a held-out set.",
				"Monitor calibration per group after each release.",
			},
			Source: "bias",
		})
	}
	if v := res.FairnessThroughAwareness; v < fairnessThreshold {
		b.Add(recommend.Item{
			Key:         "bias:individual-fairness",
			Title:       "Treat similar individuals consistently",
			Severity:    sev(v),
			Category:    MetricIndividualFairness,
			Description: fmt.Sprintf("Individual fairness is %.2f; similar individuals receive different predictions.", v),
			Steps: []string{
				"Review features that proxy protected attributes.",
				"Add a consistency regulariser or smoothing step.",
			},
			Source: "bias",
		})
	}
	if res.Method == MethodEstimated || res.Method == MethodMixed {
		b.Add(recommend.Item{
			Key:         "bias:collect-test-data",
			Title:       "Evaluate the model on labelled test data",
			Severity:    recommend.SeverityInfo,
			Category:    "methodology",
			Description: "Some scores were estimated from model metadata. Supply predictions, ground truth and sensitive attributes for measured results.",
			Steps:       []string{"Export predictions, ground_truth, probabilities and sensitive_attributes for a representative evaluation set."},
			Source:      "bias",
		})
	}
	if len(res.AffectedGroups) > 0 {
		b.Add(recommend.Item{
			Key:         "bias:affected-groups",
			Title:       "Investigate outcomes for affected groups",
			Severity:    recommend.SeverityHigh,
			Category:    "groups",
			Description: "Groups flagged: " + strings.Join(res.AffectedGroups, ", ") + ".",
			Steps:       []string{"Audit decisions for the flagged groups with domain experts.", "Document the mitigation in the model card."},
			Source:      "bias",
		})
	}
	return b.Build()
}
