package prompt

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/dataguardian/internal/domain/ai"
)

const soc2Report = `{
  "scan_type": "soc2",
  "compliance_score": 83,
  "totals": {"high": 1, "medium": 1, "low": 0, "total": 2},
  "recommendations": [
    {"id": "a", "title": "Restrict ingress", "severity": "high", "description": "Open to the world.",
     "steps": ["Limit CIDR ranges."], "affected_files": ["main.tf"], "source": "soc2"},
    {"id": "b", "title": "Enable logging", "severity": "medium", "description": "No access logs.",
     "steps": [], "source": "soc2"}
  ]
}`

func TestSummarize_SOC2(t *testing.T) {
	out, err := Offline{}.Analyze(context.Background(), ai.Request{ScanID: "s1", Kind: "soc2", Score: 83, Report: []byte(soc2Report)})
	require.NoError(t, err)

	var s Suggestion
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, Counts{High: 1, Medium: 1, Total: 2}, s.Counts)
	require.Len(t, s.Findings, 2)
	assert.Equal(t, "Limit CIDR ranges.", s.Findings[0].Recommendation)
	assert.Contains(t, s.Findings[0].Summary, "main.tf")
	assert.Equal(t, "No access logs.", s.Findings[1].Recommendation)
	assert.Contains(t, s.Headline, "2 findings")
	assert.Contains(t, s.Advice, "high and medium")
}

func TestSummarize_Bias(t *testing.T) {
	rep := `{"overall_bias_score": 0.55, "bias_risk": "high",
	  "mitigation_recommendations": [{"title": "Rebalance data", "severity": "critical", "description": "Skewed."}]}`
	out, err := Summarize(ai.Request{Kind: "bias", Report: []byte(rep)})
	require.NoError(t, err)
	assert.Contains(t, out, `"critical":1`)
	assert.Contains(t, out, "Bias risk high")
	assert.Contains(t, out, "Immediate action")
}

func TestSummarize_BadReport(t *testing.T) {
	_, err := Summarize(ai.Request{Report: []byte("not json")})
	assert.Error(t, err)
}

func TestGetUserPrompt_Truncates(t *testing.T) {
	big := []byte(`"` + strings.Repeat("x", MaxReportBytes+10) + `"`)
	p := GetUserPrompt(ai.Request{ScanID: "s1", Kind: "soc2", Report: big})
	assert.Contains(t, p, "(truncated)")
	assert.Less(t, len(p), MaxReportBytes+500)
}
