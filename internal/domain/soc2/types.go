package soc2

// Technology is an infrastructure-as-code or source dialect the scanner understands.
type Technology string

const (
	Terraform      Technology = "terraform"
	CloudFormation Technology = "cloudformation"
	Kubernetes     Technology = "kubernetes"
	Docker         Technology = "docker"
	JavaScript     Technology = "javascript"
	Ansible        Technology = "ansible"
)

// Technologies lists every supported technology in a fixed order.
func Technologies() []Technology {
	return []Technology{Terraform, CloudFormation, Kubernetes, Docker, JavaScript, Ansible}
}

// Valid reports whether t is a known technology.
func (t Technology) Valid() bool {
	switch t {
	case Terraform, CloudFormation, Kubernetes, Docker, JavaScript, Ansible:
		return true
	}
	return false
}

// RiskLevel of a finding.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// Rank returns 3/2/1 for high/medium/low and 0 otherwise.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool { return r.Rank() > 0 }

// Category is a SOC2 Trust Services category.
type Category string

const (
	CategorySecurity            Category = "security"
	CategoryAvailability        Category = "availability"
	CategoryProcessingIntegrity Category = "processing_integrity"
	CategoryConfidentiality     Category = "confidentiality"
	CategoryPrivacy             Category = "privacy"
)

// Categories lists the five trust services categories in report order.
func Categories() []Category {
	return []Category{
		CategorySecurity,
		CategoryAvailability,
		CategoryProcessingIntegrity,
		CategoryConfidentiality,
		CategoryPrivacy,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategorySecurity, CategoryAvailability, CategoryProcessingIntegrity,
		CategoryConfidentiality, CategoryPrivacy:
		return true
	}
	return false
}

// Finding is one regex match of a risk pattern in a scanned file.
type Finding struct {
	PatternID      string     `json:"pattern_id,omitempty"`
	File           string     `json:"file"`
	Line           int        `json:"line"`
	Description    string     `json:"description"`
	RiskLevel      RiskLevel  `json:"risk_level"`
	Recommendation string     `json:"recommendation"`
	Category       Category   `json:"category"`
	Technology     Technology `json:"technology"`
	MatchedSnippet string     `json:"matched_snippet"`
	TSCCriteria    []string   `json:"tsc_criteria"`
}

// ID returns the pattern identifier, deriving it for findings built without one.
func (f Finding) ID() string {
	if f.PatternID != "" {
		return f.PatternID
	}
	return PatternID(f.Technology, f.Description)
}

// LevelCounts tallies findings per risk level.
type LevelCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Total  int `json:"total"`
}

func (c *LevelCounts) add(level RiskLevel) {
	switch level {
	case RiskHigh:
		c.High++
	case RiskMedium:
		c.Medium++
	case RiskLow:
		c.Low++
	}
	c.Total++
}

// Summary is the category x risk-level count matrix of a scan.
type Summary map[Category]LevelCounts

// CheckStatus of a TSC checklist entry.
type CheckStatus string

const (
	StatusNotAssessed CheckStatus = "not_assessed"
	StatusPassed      CheckStatus = "passed"
	StatusWarning     CheckStatus = "warning"
	StatusFailed      CheckStatus = "failed"
	StatusInfo        CheckStatus = "info"
)

// severity orders statuses so escalation never downgrades an entry.
func (s CheckStatus) severity() int {
	switch s {
	case StatusFailed:
		return 3
	case StatusWarning:
		return 2
	case StatusInfo:
		return 1
	}
	return 0
}

// ChecklistEntry is the assessed state of one TSC criterion.
type ChecklistEntry struct {
	Criterion   string      `json:"criterion"`
	Description string      `json:"description"`
	Status      CheckStatus `json:"status"`
	Violations  []Finding   `json:"violations"`
	Category    Category    `json:"category"`
}

// SkippedFile records a file the repository walk could not scan.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}
