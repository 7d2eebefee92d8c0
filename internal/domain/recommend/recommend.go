package recommend

import (
	"sort"
	"strings"
)

// Severity of a recommendation, shared by every scanner that emits one.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank orders severities; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Recommendation is a de-duplicated, report-ready remediation record.
type Recommendation struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Severity      Severity `json:"severity"`
	Category      string   `json:"category,omitempty"`
	Description   string   `json:"description"`
	Steps         []string `json:"steps"`
	AffectedFiles []string `json:"affected_files,omitempty"`
	Criteria      []string `json:"criteria,omitempty"`
	Source        string   `json:"source"`
}

// Item is one raw input to the builder. Items sharing a Key collapse into a
// single Recommendation.
type Item struct {
	Key         string
	Title       string
	Severity    Severity
	Category    string
	Description string
	Steps       []string
	File        string
	Criteria    []string
	Source      string
}

// Builder collects items and emits de-duplicated recommendations.
// The zero value is ready to use.
type Builder struct {
	order []string
	byKey map[string]*entry
}

type entry struct {
	rec      Recommendation
	files    map[string]struct{}
	criteria map[string]struct{}
}

// Add merges an item into the builder.
func (b *Builder) Add(it Item) {
	if b.byKey == nil {
		b.byKey = make(map[string]*entry)
	}
	key := it.Key
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(it.Title))
	}
	e, ok := b.byKey[key]
	if !ok {
		e = &entry{
			rec: Recommendation{
				ID:          slug(key),
				Title:       it.Title,
				Severity:    it.Severity,
				Category:    it.Category,
				Description: it.Description,
				Steps:       append([]string(nil), it.Steps...),
				Source:      it.Source,
			},
			files:    make(map[string]struct{}),
			criteria: make(map[string]struct{}),
		}
		b.byKey[key] = e
		b.order = append(b.order, key)
	}
	if it.Severity.Rank() > e.rec.Severity.Rank() {
		e.rec.Severity = it.Severity
	}
	if it.File != "" {
		e.files[it.File] = struct{}{}
	}
	for _, c := range it.Criteria {
		if c != "" {
			e.criteria[c] = struct{}{}
		}
	}
}

// Len reports how many distinct recommendations have been collected.
func (b *Builder) Len() int { return len(b.order) }

// Build returns recommendations ordered by severity (highest first), then title.
func (b *Builder) Build() []Recommendation {
	out := make([]Recommendation, 0, len(b.order))
	for _, k := range b.order {
		e := b.byKey[k]
		rec := e.rec
		rec.AffectedFiles = sortedKeys(e.files)
		rec.Criteria = sortedKeys(e.criteria)
		if rec.Steps == nil {
			rec.Steps = []string{}
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// slug turns a free-form key into a stable identifier.
func slug(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > 64 {
		out = strings.TrimSuffix(out[:64], "-")
	}
	if out == "" {
		return "recommendation"
	}
	return out
}
