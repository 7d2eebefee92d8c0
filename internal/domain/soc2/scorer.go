package soc2

import "math"

// Impact weights per risk level and score bounds.
const (
	weightHigh   = 10
	weightMedium = 5
	weightLow    = 2

	maxImpact = 95.0
	minScore  = 5
)

// ComputeScore converts findings into a 0-100 score normalised by the number
// of IaC files scanned. The score never drops below minScore.
func ComputeScore(findings []Finding, iacFileCount int) int {
	var weighted int
	for _, f := range findings {
		switch f.RiskLevel {
		case RiskHigh:
			weighted += weightHigh
		case RiskMedium:
			weighted += weightMedium
		case RiskLow:
			weighted += weightLow
		}
	}
	impact := math.Min(maxImpact, float64(weighted)/float64(max(iacFileCount, 1)))
	score := int(math.RoundToEven(100 - impact))
	return max(minScore, score)
}

func statusFor(r RiskLevel) CheckStatus {
	switch r {
	case RiskHigh:
		return StatusFailed
	case RiskMedium:
		return StatusWarning
	case RiskLow:
		return StatusInfo
	}
	return StatusNotAssessed
}

// BuildChecklist derives the status of every known criterion from findings.
// Status only escalates; criteria no finding references end up passed.
func BuildChecklist(findings []Finding) map[string]ChecklistEntry {
	checklist := make(map[string]ChecklistEntry, len(tscCodes))
	for _, c := range tscCodes {
		cat, _ := CategoryOf(c.Code)
		checklist[c.Code] = ChecklistEntry{
			Criterion:   c.Code,
			Description: c.Description,
			Status:      StatusNotAssessed,
			Violations:  []Finding{},
			Category:    cat,
		}
	}

	for _, f := range findings {
		status := statusFor(f.RiskLevel)
		for _, code := range f.TSCCriteria {
			e, ok := checklist[code]
			if !ok {
				desc, _ := DescribeCode(code)
				cat, _ := CategoryOf(code)
				e = ChecklistEntry{Criterion: code, Description: desc, Status: StatusNotAssessed, Violations: []Finding{}, Category: cat}
			}
			if status.severity() > e.Status.severity() {
				e.Status = status
			}
			e.Violations = append(e.Violations, f)
			checklist[code] = e
		}
	}

	for code, e := range checklist {
		if e.Status == StatusNotAssessed && len(e.Violations) == 0 {
			e.Status = StatusPassed
			checklist[code] = e
		}
	}
	return checklist
}

// Score returns the compliance score and the TSC checklist together.
func Score(findings []Finding, iacFileCount int) (int, map[string]ChecklistEntry) {
	return ComputeScore(findings, iacFileCount), BuildChecklist(findings)
}

// Summarize counts findings per category and risk level. All five categories
// are always present.
func Summarize(findings []Finding) (Summary, LevelCounts) {
	summary := make(Summary, len(Categories()))
	for _, c := range Categories() {
		summary[c] = LevelCounts{}
	}
	var totals LevelCounts
	for _, f := range findings {
		counts := summary[f.Category]
		counts.add(f.RiskLevel)
		summary[f.Category] = counts
		totals.add(f.RiskLevel)
	}
	return summary, totals
}
