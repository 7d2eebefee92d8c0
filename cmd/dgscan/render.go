package main

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/bryanwahyu/dataguardian/internal/domain/aiact"
	"github.com/bryanwahyu/dataguardian/internal/domain/fairness"
	"github.com/bryanwahyu/dataguardian/internal/domain/recommend"
	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
)

// maxRecommendations shown in text output; json carries all of them.
const maxRecommendations = 5

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	high   lipgloss.Style
	medium lipgloss.Style
	low    lipgloss.Style
	ok     lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		label: lipgloss.NewStyle().
			Bold(true),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		high: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		medium: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		low: lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")),
		ok: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
	}
}

// level picks a style for a severity, risk level or tier name.
func (s styles) level(name string) lipgloss.Style {
	switch name {
	case "critical", "high", "prohibited", "high_risk":
		return s.high
	case "medium", "limited_risk", "general_purpose":
		return s.medium
	case "low":
		return s.low
	case "none", "minimal_risk":
		return s.ok
	}
	return s.muted
}

func euro(v float64) string { return "€" + humanize.Commaf(v) }

func renderSOC2Text(w io.Writer, st styles, r *soc2.ScanResult) {
	fmt.Fprintln(w, st.title.Render("SOC2 scan  "+r.Target))
	fmt.Fprintf(w, "%s %d/100\n", st.label.Render("Compliance score:"), r.ComplianceScore)
	techs := make([]string, 0, len(r.TechnologiesDetected))
	for _, t := range r.TechnologiesDetected {
		techs = append(techs, string(t))
	}
	if len(techs) == 0 {
		techs = append(techs, "none")
	}
	fmt.Fprintf(w, "%s %s scanned, %s IaC (%s)\n",
		st.label.Render("Files:"),
		humanize.Comma(int64(r.FilesScanned)),
		humanize.Comma(int64(r.IaCFilesScanned)),
		strings.Join(techs, ", "))
	fmt.Fprintf(w, "%s %s, %s, %s\n",
		st.label.Render("Findings:"),
		st.high.Render(fmt.Sprintf("%d high", r.Totals.High)),
		st.medium.Render(fmt.Sprintf("%d medium", r.Totals.Medium)),
		st.low.Render(fmt.Sprintf("%d low", r.Totals.Low)))

	findings := slices.Clone(r.Findings)
	soc2.SortFindings(findings)
	for _, f := range findings {
		lvl := st.level(string(f.RiskLevel)).Render(fmt.Sprintf("%-6s", strings.ToUpper(string(f.RiskLevel))))
		loc := fmt.Sprintf("%s:%d", f.File, f.Line)
		fmt.Fprintf(w, "  %s %s  %s", lvl, loc, f.Description)
		if len(f.TSCCriteria) > 0 {
			fmt.Fprint(w, st.muted.Render(" ["+strings.Join(f.TSCCriteria, ", ")+"]"))
		}
		fmt.Fprintln(w)
	}
	if n := len(r.SkippedFiles); n > 0 {
		fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("Skipped %s file(s)", humanize.Comma(int64(n)))))
	}
	renderRecommendations(w, st, r.Recommendations)
}

func renderRecommendations(w io.Writer, st styles, recs []recommend.Recommendation) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(w, st.label.Render("Recommendations:"))
	for i, rec := range recs {
		if i == maxRecommendations {
			fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("  ... and %d more", len(recs)-i)))
			break
		}
		fmt.Fprintf(w, "  - %s %s\n", st.level(string(rec.Severity)).Render("["+string(rec.Severity)+"]"), rec.Title)
	}
}

func renderClassificationText(w io.Writer, st styles, system string, cls aiact.Classification) {
	fmt.Fprintln(w, st.title.Render("EU AI Act classification  "+system))
	fmt.Fprintf(w, "%s %s\n", st.label.Render("Risk tier:"), st.level(string(cls.Tier)).Render(string(cls.Tier)))
	fmt.Fprintf(w, "%s %s\n", st.label.Render("Reason:"), cls.Reason)
	if len(cls.Matched) > 0 {
		fmt.Fprintf(w, "%s %s\n", st.label.Render("Matched:"), strings.Join(cls.Matched, ", "))
	}
}

func renderAssessmentText(w io.Writer, st styles, a aiact.ComplianceAssessment) {
	fmt.Fprintln(w, st.title.Render("EU AI Act assessment  "+a.SystemProfile.SystemName))
	fmt.Fprintf(w, "%s %s\n", st.label.Render("Risk tier:"), st.level(string(a.RiskLevel)).Render(string(a.RiskLevel)))
	fmt.Fprintf(w, "%s %s\n", st.label.Render("Reason:"), a.ClassificationReason)
	fmt.Fprintf(w, "%s %.1f%%\n", st.label.Render("Compliance score:"), a.ComplianceScore)

	if len(a.Requirements) > 0 {
		fmt.Fprintln(w, st.label.Render("Requirements:"))
		for _, r := range a.Requirements {
			mark := st.high.Render("[ ]")
			if r.Implemented {
				mark = st.ok.Render("[x]")
			}
			fmt.Fprintf(w, "  %s %s %s\n", mark, r.Article, r.Title)
		}
	}

	fr := a.FineRisk
	fmt.Fprintf(w, "%s %s, exposure %s of %s maximum\n",
		st.label.Render("Fine risk:"),
		st.level(fr.Level).Render(fr.Level),
		euro(fr.EstimatedExposure),
		euro(fr.MaxFine))
	ce := a.CostEstimate
	fmt.Fprintf(w, "%s %s (requirements %s, project management %s, legal %s, conformity %s)\n",
		st.label.Render("Implementation cost:"),
		euro(ce.Total), euro(ce.Subtotal), euro(ce.ProjectManagement), euro(ce.LegalReview), euro(ce.ConformityAssessment))

	if len(a.ImplementationTimeline) > 0 {
		fmt.Fprintln(w, st.label.Render("Timeline:"))
		for _, p := range a.ImplementationTimeline {
			fmt.Fprintf(w, "  week %2d-%-2d %s %s\n",
				p.StartWeek, p.StartWeek+p.DurationWeeks, p.Phase, st.muted.Render(p.Description))
		}
	}
	renderRecommendations(w, st, a.Recommendations)
}

func renderBiasText(w io.Writer, st styles, b fairness.BiasAssessment) {
	name := b.ModelName
	if name == "" {
		name = b.ModelFile
	}
	fmt.Fprintln(w, st.title.Render("Bias assessment  "+name))
	fmt.Fprintf(w, "%s %.2f (%s risk, %s)\n",
		st.label.Render("Overall score:"),
		b.OverallBiasScore,
		st.level(string(b.BiasRisk)).Render(string(b.BiasRisk)),
		b.Method)

	names := make([]string, 0, len(b.MetricDetails))
	for n := range b.MetricDetails {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		m := b.MetricDetails[n]
		line := fmt.Sprintf("  %-28s %.2f  %s", n, m.Value, m.Outcome)
		if m.Reason != "" {
			line += st.muted.Render("  " + m.Reason)
		}
		fmt.Fprintln(w, line)
	}
	if len(b.AffectedGroups) > 0 {
		fmt.Fprintf(w, "%s %s\n", st.label.Render("Affected groups:"), strings.Join(b.AffectedGroups, ", "))
	}
	renderRecommendations(w, st, b.MitigationRecommendations)
}
