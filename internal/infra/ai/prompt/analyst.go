package prompt

import (
	"fmt"

	"github.com/bryanwahyu/dataguardian/internal/domain/ai"
)

// MaxReportBytes bounds how much of a report is sent to the model.
const MaxReportBytes = 48 << 10

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior compliance analyst covering SOC 2, the EU AI Act and algorithmic fairness. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: critical, high, medium, low, info.
- counts.total must equal counts.critical + counts.high + counts.medium + counts.low.
- findings summarise the most important issues in the report; include a title, severity, summary and recommendation. Keep items concise.
- Only use facts present in the report. If the report was truncated, say so in advice.
- Never present fine or cost figures as legal advice.

Schema (example with empty values):
{
  "scan_id": "<string>",
  "kind": "<soc2|ai_act|bias>",
  "score": 0,
  "headline": "<string>",
  "counts": {"critical": 0, "high": 0, "medium": 0, "low": 0, "total": 0},
  "findings": [
    {
      "title": "<string>",
      "severity": "<critical|high|medium|low|info>",
      "summary": "<string>",
      "recommendation": "<string>"
    }
  ],
  "advice": "<string>"
}`
}

// GetUserPrompt wraps the (possibly truncated) report.
func GetUserPrompt(req ai.Request) string {
	report := req.Report
	truncated := ""
	if len(report) > MaxReportBytes {
		report = report[:MaxReportBytes]
		truncated = " (truncated)"
	}
	return fmt.Sprintf("Summarise this %s report for scan %s of %q (score %.1f) and respond with the JSON per schema.\nReport%s:\n%s",
		req.Kind, req.ScanID, req.Target, req.Score, truncated, report)
}
