package aiact

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/domain/recommend"
)

// Gap is an applicable requirement that is not implemented yet.
type Gap struct {
	Article     string             `json:"article"`
	Title       string             `json:"title"`
	Severity    recommend.Severity `json:"severity"`
	Description string             `json:"description"`
}

// ComplianceAssessment aggregates classification, scoring and estimation.
// JSON field names are consumed by report renderers.
type ComplianceAssessment struct {
	SystemProfile          AISystemProfile            `json:"system_profile"`
	RiskLevel              RiskTier                   `json:"risk_level"`
	ClassificationReason   string                     `json:"classification_reason"`
	ComplianceScore        float64                    `json:"compliance_score"`
	Requirements           []ComplianceRequirement    `json:"requirements"`
	Gaps                   []Gap                      `json:"gaps"`
	Recommendations        []recommend.Recommendation `json:"recommendations"`
	ImplementationTimeline []TimelinePhase            `json:"implementation_timeline"`
	CostEstimate           CostEstimate               `json:"cost_estimate"`
	FineRisk               FineRisk                   `json:"fine_risk"`
	AssessedAt             time.Time                  `json:"assessed_at"`
}

// Assessor produces ComplianceAssessments.
type Assessor struct {
	Now func() time.Time
	log *zap.SugaredLogger
}

// NewAssessor returns an Assessor stamping assessments with the current UTC time.
func NewAssessor(log *zap.SugaredLogger) *Assessor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Assessor{Now: func() time.Time { return time.Now().UTC() }, log: log}
}

// Assess classifies the profile and evaluates it against the applicable articles.
func (a *Assessor) Assess(profile AISystemProfile, compliance map[string]bool, annualTurnover float64) ComplianceAssessment {
	cls := Explain(profile)
	reqs := Requirements(cls.Tier, compliance)
	score := ComplianceScore(cls.Tier, reqs)
	gaps := gapsFor(cls.Tier, reqs)

	a.log.Debugw("ai act assessment",
		"system", profile.SystemName,
		"tier", cls.Tier,
		"reason", cls.Reason,
		"score", score,
		"gaps", len(gaps))

	return ComplianceAssessment{
		SystemProfile:          profile,
		RiskLevel:              cls.Tier,
		ClassificationReason:   cls.Reason,
		ComplianceScore:        score,
		Requirements:           reqs,
		Gaps:                   gaps,
		Recommendations:        recommendationsFor(cls.Tier, gaps),
		ImplementationTimeline: BuildTimeline(cls.Tier, reqs),
		CostEstimate:           EstimateCost(cls.Tier, reqs),
		FineRisk:               EstimateFineRisk(cls.Tier, score, annualTurnover),
		AssessedAt:             a.Now(),
	}
}

func gapSeverity(tier RiskTier) recommend.Severity {
	switch tier {
	case TierProhibited:
		return recommend.SeverityCritical
	case TierHighRisk, TierGeneralPurpose:
		return recommend.SeverityHigh
	case TierLimitedRisk:
		return recommend.SeverityMedium
	}
	return recommend.SeverityLow
}

func gapsFor(tier RiskTier, reqs []ComplianceRequirement) []Gap {
	gaps := []Gap{}
	if tier == TierProhibited {
		return append(gaps, Gap{
			Article:     "Article 5",
			Title:       "Prohibited AI practice",
			Severity:    recommend.SeverityCritical,
			Description: "The system matches a practice banned outright; it cannot be brought into compliance.",
		})
	}
	sev := gapSeverity(tier)
	for _, r := range reqs {
		if r.Implemented {
			continue
		}
		gaps = append(gaps, Gap{
			Article:     r.Article,
			Title:       r.Title,
			Severity:    sev,
			Description: r.Description,
		})
	}
	return gaps
}

func recommendationsFor(tier RiskTier, gaps []Gap) []recommend.Recommendation {
	var b recommend.Builder
	for _, g := range gaps {
		steps := []string{g.Description}
		if tier == TierProhibited {
			steps = []string{
				"Suspend the system and stop processing immediately.",
				"Notify affected users and document the decision.",
				"Obtain legal advice before any redesign.",
			}
		}
		b.Add(recommend.Item{
			Key:         "aiact:" + g.Article,
			Title:       fmt.Sprintf("%s: %s", g.Article, g.Title),
			Severity:    g.Severity,
			Category:    string(tier),
			Description: g.Description,
			Steps:       steps,
			Criteria:    []string{g.Article},
			Source:      "ai_act",
		})
	}
	if tier == TierHighRisk {
		b.Add(recommend.Item{
			Key:         "aiact:registration",
			Title:       "Register the system in the EU database before deployment",
			Severity:    recommend.SeverityMedium,
			Category:    string(tier),
			Description: "High-risk systems must be registered and carry a CE marking after conformity assessment.",
			Steps:       []string{"Complete the conformity assessment.", "Affix the CE marking.", "Register in the EU database."},
			Source:      "ai_act",
		})
	}
	return b.Build()
}

// ExportAssessmentReport writes the assessment as indented JSON.
func ExportAssessmentReport(w io.Writer, a ComplianceAssessment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode assessment report: %w", err)
	}
	return nil
}
