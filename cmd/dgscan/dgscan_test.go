package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/dataguardian/internal/domain/aiact"
	"github.com/bryanwahyu/dataguardian/internal/domain/fairness"
	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
	"github.com/bryanwahyu/dataguardian/internal/infra/export/sarif"
)

const openIngressTF = `resource "aws_security_group" "web" {
  ingress {
    from_port   = 22
    to_port     = 22
    cidr_blocks = ["0.0.0.0/0"]
  }
}
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func tfRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte(openIngressTF), 0o644))
	return dir
}

func writeJSONFile(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestSOC2Text(t *testing.T) {
	out, err := run(t, "", "soc2", tfRepo(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Compliance score:")
	assert.Contains(t, out, "1 high")
	assert.Contains(t, out, "main.tf:")
	assert.Contains(t, out, "terraform")
	assert.NotContains(t, out, "\x1b[", "no escape codes without a terminal")
}

func TestSOC2Text_FindingsInFileOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:latest\nUSER root\n"), 0o644))

	out, err := run(t, "", "soc2", dir)
	require.NoError(t, err)
	first, second := strings.Index(out, "Dockerfile:1"), strings.Index(out, "Dockerfile:2")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestSOC2JSON_MultipleTargets(t *testing.T) {
	a, b := tfRepo(t), t.TempDir()
	out, err := run(t, "", "soc2", "-f", "json", "-p", "1", a, b)
	require.NoError(t, err)

	var results []soc2.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].Target)
	assert.Len(t, results[0].Findings, 1)
	assert.Empty(t, results[1].Findings)
}

func TestSOC2SARIF(t *testing.T) {
	out, err := run(t, "", "soc2", "--format", "sarif", tfRepo(t))
	require.NoError(t, err)

	var log sarif.Log
	require.NoError(t, json.Unmarshal([]byte(out), &log))
	assert.Equal(t, sarif.Version, log.Version)
	require.Len(t, log.Runs, 1)
	assert.Equal(t, "dgscan", log.Runs[0].Tool.Driver.Name)
	require.Len(t, log.Runs[0].Results, 1)
	assert.Equal(t, "main.tf", log.Runs[0].Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI)
}

func TestSOC2FailOn(t *testing.T) {
	_, err := run(t, "", "soc2", "--fail-on", "high", tfRepo(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 finding(s) at or above high")

	_, err = run(t, "", "soc2", "--fail-on", "high", t.TempDir())
	assert.NoError(t, err)

	_, err = run(t, "", "soc2", "--fail-on", "severe", t.TempDir())
	assert.Error(t, err)
}

func TestSOC2MissingTarget(t *testing.T) {
	_, err := run(t, "", "soc2", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	out, err := run(t, `{"system_name":"bot","use_case":"Customer support chatbot"}`, "classify")
	require.NoError(t, err)
	assert.Contains(t, out, "limited_risk")

	out, err = run(t, `{"system_name":"bot","use_case":"Customer support chatbot"}`, "classify", "-f", "json")
	require.NoError(t, err)
	var cls aiact.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &cls))
	assert.Equal(t, aiact.TierLimitedRisk, cls.Tier)

	_, err = run(t, `{"use_case":"chatbot"}`, "classify")
	assert.ErrorIs(t, err, aiact.ErrInvalidProfile)

	_, err = run(t, `{"system_name":"bot"}`, "classify", "-f", "sarif")
	assert.Error(t, err)
}

func TestAssess(t *testing.T) {
	profile := writeJSONFile(t, aiact.AISystemProfile{SystemName: "screener", UseCase: "hiring"})

	out, err := run(t, "", "assess", "--profile", profile, "--implemented", "human_oversight,art_12", "--turnover", "50000000", "-f", "json")
	require.NoError(t, err)
	var a aiact.ComplianceAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, aiact.TierHighRisk, a.RiskLevel)
	assert.Equal(t, 3_500_000.0, a.FineRisk.MaxFine)
	implemented := 0
	for _, r := range a.Requirements {
		if r.Implemented {
			implemented++
		}
	}
	assert.Equal(t, 2, implemented)

	out, err = run(t, "", "assess", "--profile", profile, "--implemented", "human_oversight", "--turnover", "50000000")
	require.NoError(t, err)
	assert.Contains(t, out, "high_risk")
	assert.Contains(t, out, "€3,500,000 maximum")
	assert.Contains(t, out, "[x]")
	assert.Contains(t, out, "[ ]")

	_, err = run(t, "", "assess", "--profile", profile, "--turnover", "-1")
	assert.ErrorIs(t, err, aiact.ErrInvalidProfile)

	_, err = run(t, "", "assess", "--profile", "-", "--compliance", "-")
	assert.Error(t, err)
}

func TestBias(t *testing.T) {
	meta := writeJSONFile(t, fairness.ModelMetadata{
		ModelName: "credit",
		BiasTestResults: &fairness.Results{
			DemographicParity:  ptr(0.5),
			EqualizedOdds:      ptr(0.5),
			Calibration:        ptr(0.5),
			IndividualFairness: ptr(0.5),
		},
	})

	out, err := run(t, "", "bias", "--metadata", meta, "-f", "json")
	require.NoError(t, err)
	var b fairness.BiasAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.InDelta(t, 0.5, b.OverallBiasScore, 1e-9)
	assert.Equal(t, fairness.BiasRiskHigh, b.BiasRisk)
	assert.Equal(t, fairness.MethodPrecomputed, b.Method)

	out, err = run(t, "", "bias", "--model-file", "model.pkl")
	require.NoError(t, err)
	assert.Contains(t, out, "Bias assessment  model.pkl")
	assert.Contains(t, out, fairness.MethodEstimated)

	_, err = run(t, "", "bias")
	assert.Error(t, err)
}

func TestUnknownFormat(t *testing.T) {
	_, err := run(t, "", "soc2", "-f", "xml", t.TempDir())
	assert.Error(t, err)
}

func ptr(v float64) *float64 { return &v }
