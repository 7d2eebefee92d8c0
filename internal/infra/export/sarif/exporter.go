package sarif

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
)

const (
	Version = "2.1.0"
	Schema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules"`
}

type Rule struct {
	ID               string         `json:"id"`
	ShortDescription Message        `json:"shortDescription"`
	Help             Message        `json:"help"`
	Properties       RuleProperties `json:"properties"`
}

type RuleProperties struct {
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

type Result struct {
	RuleID    string     `json:"ruleId"`
	Message   Message    `json:"message"`
	Level     string     `json:"level"` // error, warning, note
	Locations []Location `json:"locations"`
}

type Message struct {
	Text string `json:"text"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine int      `json:"startLine"`
	Snippet   *Message `json:"snippet,omitempty"`
}

// Build converts SOC2 findings into a single-run SARIF log.
func Build(findings []soc2.Finding, toolName, toolVersion string) Log {
	results := make([]Result, 0, len(findings))
	rules := map[string]Rule{}
	for _, f := range findings {
		id := RuleID(f)
		if _, ok := rules[id]; !ok {
			rules[id] = Rule{
				ID:               id,
				ShortDescription: Message{Text: f.Description},
				Help:             Message{Text: f.Recommendation},
				Properties: RuleProperties{
					Tags:     append([]string{string(f.Technology)}, f.TSCCriteria...),
					Category: string(f.Category),
				},
			}
		}
		uri := toURI(f.File)
		if uri == "" {
			uri = "UNKNOWN"
		}
		region := Region{StartLine: max(1, f.Line)}
		if f.MatchedSnippet != "" {
			region.Snippet = &Message{Text: f.MatchedSnippet}
		}
		results = append(results, Result{
			RuleID:  id,
			Level:   levelOf(f.RiskLevel),
			Message: Message{Text: strings.TrimSpace(f.Description + ". " + f.Recommendation)},
			Locations: []Location{{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{URI: uri},
					Region:           region,
				},
			}},
		})
	}

	ruleList := make([]Rule, 0, len(rules))
	for _, r := range rules {
		ruleList = append(ruleList, r)
	}
	sort.Slice(ruleList, func(i, j int) bool { return ruleList[i].ID < ruleList[j].ID })

	return Log{
		Version: Version,
		Schema:  Schema,
		Runs: []Run{{
			Tool:    Tool{Driver: Driver{Name: toolName, Version: toolVersion, Rules: ruleList}},
			Results: results,
		}},
	}
}

// Write encodes the SARIF log for findings as indented JSON.
func Write(w io.Writer, findings []soc2.Finding, toolName, toolVersion string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Build(findings, toolName, toolVersion)); err != nil {
		return fmt.Errorf("encode sarif: %w", err)
	}
	return nil
}

// RuleID is the finding's pattern identifier, e.g. "terraform/storage-encryption-is-disabled".
func RuleID(f soc2.Finding) string {
	return f.ID()
}

func levelOf(r soc2.RiskLevel) string {
	switch r {
	case soc2.RiskHigh:
		return "error"
	case soc2.RiskMedium:
		return "warning"
	default:
		return "note"
	}
}

func toURI(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	return strings.TrimPrefix(p, "./")
}
