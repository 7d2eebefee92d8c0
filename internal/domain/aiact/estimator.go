package aiact

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Article is one regulatory obligation applicable to a tier.
type Article struct {
	Number      int     `json:"number"`
	Key         string  `json:"key"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	BaseCost    float64 `json:"base_cost"`
}

// Label renders the article reference, e.g. "Article 9".
func (a Article) Label() string { return "Article " + strconv.Itoa(a.Number) }

var articlesByTier = map[RiskTier][]Article{
	TierMinimalRisk: {
		{95, "voluntary_codes_of_conduct", "Voluntary codes of conduct",
			"Adopt voluntary codes of conduct for trustworthy AI.", 5_000},
	},
	TierLimitedRisk: {
		{4, "ai_literacy", "AI literacy",
			"Ensure staff operating the system have sufficient AI literacy.", 8_000},
		{50, "transparency_obligations", "Transparency obligations",
			"Inform people they are interacting with an AI system and label generated content.", 15_000},
	},
	TierHighRisk: {
		{9, "risk_management_system", "Risk management system",
			"Establish and maintain a documented risk management process across the lifecycle.", 45_000},
		{10, "data_governance", "Data and data governance",
			"Govern training, validation and test data for relevance, representativeness and bias.", 40_000},
		{11, "technical_documentation", "Technical documentation",
			"Draw up technical documentation before the system is placed on the market.", 25_000},
		{12, "record_keeping", "Record-keeping",
			"Enable automatic logging of events over the system lifetime.", 20_000},
		{13, "transparency_to_deployers", "Transparency and provision of information to deployers",
			"Provide instructions for use that let deployers interpret and use output appropriately.", 15_000},
		{14, "human_oversight", "Human oversight",
			"Design the system so natural persons can effectively oversee and override it.", 30_000},
		{15, "accuracy_robustness_cybersecurity", "Accuracy, robustness and cybersecurity",
			"Achieve and declare appropriate accuracy, robustness and cybersecurity levels.", 35_000},
	},
	TierGeneralPurpose: {
		{53, "gpai_provider_obligations", "Obligations for providers of general-purpose AI models",
			"Maintain technical documentation, a copyright policy and a training-content summary.", 60_000},
		{55, "gpai_systemic_risk", "Obligations for general-purpose AI models with systemic risk",
			"Perform model evaluations, adversarial testing, incident reporting and cybersecurity protection.", 80_000},
	},
	TierProhibited: nil,
}

// ApplicableArticles returns a copy of the articles for tier. Prohibited
// systems have none: the only obligation is to stop (Article 5).
func ApplicableArticles(tier RiskTier) []Article {
	return append([]Article(nil), articlesByTier[tier]...)
}

// ComplianceRequirement is an applicable article with its implementation status.
type ComplianceRequirement struct {
	Article       string  `json:"article"`
	Key           string  `json:"key"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Implemented   bool    `json:"implemented"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Requirements resolves tier articles against an implementation map. Keys may
// be article keys ("human_oversight") or references ("Article 14", "art_14").
func Requirements(tier RiskTier, implemented map[string]bool) []ComplianceRequirement {
	arts := articlesByTier[tier]
	out := make([]ComplianceRequirement, 0, len(arts))
	for _, a := range arts {
		out = append(out, ComplianceRequirement{
			Article:       a.Label(),
			Key:           a.Key,
			Title:         a.Title,
			Description:   a.Description,
			Implemented:   isImplemented(a, implemented),
			EstimatedCost: a.BaseCost,
		})
	}
	return out
}

func isImplemented(a Article, implemented map[string]bool) bool {
	num := strconv.Itoa(a.Number)
	for k, v := range implemented {
		if !v {
			continue
		}
		n := strings.ReplaceAll(normalize(k), " ", "_")
		if n == a.Key {
			return true
		}
		compact := strings.ReplaceAll(n, "_", "")
		for _, prefix := range []string{"article", "art"} {
			if rest, ok := strings.CutPrefix(compact, prefix); ok && rest == num {
				return true
			}
		}
	}
	return false
}

// Fixed score points and multipliers.
const (
	minimalRiskScore    = 95.0
	highRiskMultiplier  = 0.9
	prohibitedRiskScore = 0.0
)

// ComplianceScore is the implemented share of requirements as a percentage,
// rounded to one decimal.
func ComplianceScore(tier RiskTier, reqs []ComplianceRequirement) float64 {
	switch tier {
	case TierMinimalRisk:
		return minimalRiskScore
	case TierProhibited:
		return prohibitedRiskScore
	}
	if len(reqs) == 0 {
		return 0
	}
	done := 0
	for _, r := range reqs {
		if r.Implemented {
			done++
		}
	}
	score := float64(done) / float64(len(reqs)) * 100
	if tier == TierHighRisk {
		score *= highRiskMultiplier
	}
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*10) / 10
}

// Fine caps in euro and as a share of worldwide annual turnover.
const (
	highRiskFineCap      = 35_000_000.0
	highRiskFineRate     = 0.07
	transparencyFineCap  = 15_000_000.0
	transparencyFineRate = 0.03
)

// FineRisk estimates monetary exposure. It is a heuristic business estimate.
type FineRisk struct {
	Currency            string  `json:"currency"`
	MaxFine             float64 `json:"max_fine"`
	NonComplianceFactor float64 `json:"non_compliance_factor"`
	EstimatedExposure   float64 `json:"estimated_exposure"`
	Level               string  `json:"level"`
	Explanation         string  `json:"explanation"`
}

// EstimateFineRisk scales the maximum fine for tier by how far score is from
// full compliance. High scores sharply cut exposure while the tier itself is
// unchanged. A non-positive turnover uses the fixed euro cap.
func EstimateFineRisk(tier RiskTier, score, annualTurnover float64) FineRisk {
	fr := FineRisk{Currency: "EUR"}
	var limit, rate float64
	switch tier {
	case TierHighRisk, TierProhibited:
		limit, rate = highRiskFineCap, highRiskFineRate
	case TierLimitedRisk, TierGeneralPurpose:
		limit, rate = transparencyFineCap, transparencyFineRate
	default:
		fr.Level = "none"
		fr.Explanation = "Minimal-risk systems carry no mandatory obligations and no fine exposure."
		return fr
	}
	fr.MaxFine = limit
	if annualTurnover > 0 {
		fr.MaxFine = math.Round(math.Min(limit, annualTurnover*rate))
	}

	score = math.Max(0, math.Min(100, score))
	factor := (100 - score) / 100
	switch {
	case tier == TierProhibited:
		factor = 1.0
	case score >= 85:
		factor *= 0.1
	case score >= 70:
		factor *= 0.3
	}
	fr.NonComplianceFactor = math.Round(factor*10000) / 10000
	fr.EstimatedExposure = math.Round(fr.MaxFine * factor)

	switch {
	case tier == TierProhibited:
		fr.Level = "critical"
	case factor >= 0.5:
		fr.Level = "high"
	case factor >= 0.2:
		fr.Level = "medium"
	default:
		fr.Level = "low"
	}
	if tier == TierProhibited {
		fr.Explanation = fmt.Sprintf(
			"Prohibited practices must stop immediately; full exposure of up to €%s applies regardless of other controls.",
			humanize.Commaf(fr.MaxFine))
		return fr
	}
	fr.Explanation = fmt.Sprintf(
		"The %s classification is unchanged by compliance progress. A compliance score of %.1f%% reduces estimated exposure to €%s of a €%s maximum. This is a heuristic business estimate, not a legal determination.",
		tier, score, humanize.Commaf(fr.EstimatedExposure), humanize.Commaf(fr.MaxFine))
	return fr
}

// Fixed cost line items in euro.
const (
	projectManagementRate = 0.15
	legalReviewCost       = 15_000.0
	conformityAuditCost   = 25_000.0
)

// CostItem is one line of the implementation cost breakdown.
type CostItem struct {
	Article string  `json:"article"`
	Title   string  `json:"title"`
	Cost    float64 `json:"cost"`
}

// CostEstimate is the implementation cost for outstanding requirements.
type CostEstimate struct {
	Currency             string     `json:"currency"`
	Items                []CostItem `json:"items"`
	Subtotal             float64    `json:"subtotal"`
	ProjectManagement    float64    `json:"project_management"`
	LegalReview          float64    `json:"legal_review"`
	ConformityAssessment float64    `json:"conformity_assessment"`
	Total                float64    `json:"total"`
}

// EstimateCost sums base costs of unimplemented requirements plus overhead and
// fixed legal and audit items.
func EstimateCost(tier RiskTier, reqs []ComplianceRequirement) CostEstimate {
	ce := CostEstimate{Currency: "EUR", Items: []CostItem{}}
	for _, r := range reqs {
		if r.Implemented {
			continue
		}
		ce.Items = append(ce.Items, CostItem{Article: r.Article, Title: r.Title, Cost: r.EstimatedCost})
		ce.Subtotal += r.EstimatedCost
	}
	ce.ProjectManagement = math.Round(ce.Subtotal * projectManagementRate)
	ce.LegalReview = legalReviewCost
	if tier == TierHighRisk {
		ce.ConformityAssessment = conformityAuditCost
	}
	ce.Total = ce.Subtotal + ce.ProjectManagement + ce.LegalReview + ce.ConformityAssessment
	return ce
}

// TimelinePhase is one step of the implementation plan.
type TimelinePhase struct {
	Phase         string   `json:"phase"`
	Description   string   `json:"description"`
	StartWeek     int      `json:"start_week"`
	DurationWeeks int      `json:"duration_weeks"`
	Articles      []string `json:"articles,omitempty"`
}

const weeksPerRequirement = 3

// BuildTimeline lays out assessment, implementation, conformity and
// monitoring phases. Prohibited systems get an immediate cessation plan.
func BuildTimeline(tier RiskTier, reqs []ComplianceRequirement) []TimelinePhase {
	if tier == TierProhibited {
		return []TimelinePhase{
			{Phase: "immediate_cessation", Description: "Stop operating the system and withdraw it from the market (Article 5).", StartWeek: 0, DurationWeeks: 1},
			{Phase: "legal_review", Description: "Engage counsel to assess liability and document the shutdown.", StartWeek: 1, DurationWeeks: 2},
		}
	}

	var open []string
	for _, r := range reqs {
		if !r.Implemented {
			open = append(open, r.Article)
		}
	}
	week := 0
	phases := []TimelinePhase{{Phase: "assessment", Description: "Confirm scope, classification and gap analysis.", StartWeek: week, DurationWeeks: 2}}
	week += 2

	if len(open) > 0 {
		d := max(2, len(open)*weeksPerRequirement)
		phases = append(phases, TimelinePhase{Phase: "implementation", Description: "Implement outstanding requirements.", StartWeek: week, DurationWeeks: d, Articles: open})
		week += d
	}

	docWeeks, docDesc := 2, "Update documentation and transparency notices."
	if tier == TierHighRisk {
		docWeeks, docDesc = 6, "Complete technical documentation and the conformity assessment."
	}
	phases = append(phases, TimelinePhase{Phase: "conformity_documentation", Description: docDesc, StartWeek: week, DurationWeeks: docWeeks})
	week += docWeeks

	phases = append(phases, TimelinePhase{Phase: "monitoring", Description: "Run post-market monitoring and periodic reassessment.", StartWeek: week, DurationWeeks: 4})
	return phases
}
