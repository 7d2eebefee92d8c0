package prompt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/dataguardian/internal/domain/ai"
	"github.com/bryanwahyu/dataguardian/internal/domain/recommend"
)

const maxOfflineFindings = 20

type Finding struct {
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Suggestion matches the schema used by the system prompt.
type Suggestion struct {
	ScanID   string    `json:"scan_id"`
	Kind     string    `json:"kind"`
	Score    float64   `json:"score"`
	Headline string    `json:"headline"`
	Counts   Counts    `json:"counts"`
	Findings []Finding `json:"findings"`
	Advice   string    `json:"advice"`
}

// report picks the recommendation lists and headline fields out of any of
// the three report shapes.
type report struct {
	Recommendations           []recommend.Recommendation `json:"recommendations"`
	MitigationRecommendations []recommend.Recommendation `json:"mitigation_recommendations"`
	ComplianceScore           *float64                   `json:"compliance_score"`
	RiskLevel                 string                     `json:"risk_level"`
	OverallBiasScore          *float64                   `json:"overall_bias_score"`
	BiasRisk                  string                     `json:"bias_risk"`
	Totals                    *struct {
		High, Medium, Low, Total int
	} `json:"totals"`
}

// Offline is a deterministic ai.Client used when no provider key is configured.
type Offline struct{}

func (Offline) Name() string { return "offline" }

func (Offline) Analyze(_ context.Context, req ai.Request) (string, error) {
	return Summarize(req)
}

// Summarize builds a Suggestion from the report's own recommendations.
func Summarize(req ai.Request) (string, error) {
	var rep report
	if err := json.Unmarshal(req.Report, &rep); err != nil {
		return "", fmt.Errorf("parse report: %w", err)
	}
	recs := rep.Recommendations
	if len(recs) == 0 {
		recs = rep.MitigationRecommendations
	}

	out := Suggestion{ScanID: req.ScanID, Kind: req.Kind, Score: req.Score, Findings: []Finding{}}
	for _, r := range recs {
		switch r.Severity {
		case recommend.SeverityCritical:
			out.Counts.Critical++
		case recommend.SeverityHigh:
			out.Counts.High++
		case recommend.SeverityMedium:
			out.Counts.Medium++
		case recommend.SeverityLow:
			out.Counts.Low++
		}
		if len(out.Findings) < maxOfflineFindings {
			action := r.Description
			if len(r.Steps) > 0 {
				action = r.Steps[0]
			}
			out.Findings = append(out.Findings, Finding{
				Title:          r.Title,
				Severity:       string(r.Severity),
				Summary:        summaryOf(r),
				Recommendation: action,
			})
		}
	}
	out.Counts.Total = out.Counts.Critical + out.Counts.High + out.Counts.Medium + out.Counts.Low
	out.Headline = headline(req, rep)

	switch {
	case out.Counts.Critical > 0:
		out.Advice = "Immediate action required: resolve critical items before the next release and document the remediation for auditors."
	case out.Counts.High+out.Counts.Medium > 0:
		out.Advice = "Plan remediation of high and medium items this cycle, then re-run the assessment to confirm the score improves."
	default:
		out.Advice = "No material issues reported. Keep scanning on every change and review the results periodically."
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal suggestion: %w", err)
	}
	return string(b), nil
}

func summaryOf(r recommend.Recommendation) string {
	switch n := len(r.AffectedFiles); {
	case n == 1:
		return fmt.Sprintf("%s Affects %s.", r.Description, r.AffectedFiles[0])
	case n > 1:
		return fmt.Sprintf("%s Affects %d files.", r.Description, n)
	}
	return r.Description
}

func headline(req ai.Request, rep report) string {
	switch req.Kind {
	case "ai_act":
		return fmt.Sprintf("AI Act tier %s with compliance score %.1f%%.", rep.RiskLevel, req.Score)
	case "bias":
		score := req.Score
		if rep.OverallBiasScore != nil {
			score = *rep.OverallBiasScore
		}
		return fmt.Sprintf("Bias risk %s with overall fairness %.2f.", rep.BiasRisk, score)
	}
	if rep.Totals != nil {
		return fmt.Sprintf("SOC 2 score %.0f with %d findings (%d high).", req.Score, rep.Totals.Total, rep.Totals.High)
	}
	return fmt.Sprintf("SOC 2 score %.0f.", req.Score)
}
