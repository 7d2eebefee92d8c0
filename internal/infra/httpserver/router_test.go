package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appai "github.com/bryanwahyu/dataguardian/internal/application/ai"
	"github.com/bryanwahyu/dataguardian/internal/application/assessments"
	appscans "github.com/bryanwahyu/dataguardian/internal/application/scans"
	"github.com/bryanwahyu/dataguardian/internal/domain/aiact"
	"github.com/bryanwahyu/dataguardian/internal/domain/fairness"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/memory"
	"github.com/bryanwahyu/dataguardian/internal/infra/export/sarif"
	"github.com/bryanwahyu/dataguardian/internal/infra/storage"
)

const mainTF = `resource "aws_security_group" "web" {
  ingress {
    from_port   = 22
    to_port     = 22
    cidr_blocks = ["0.0.0.0/0"]
  }
}
`

type dirCloner struct{ dir string }

func (c dirCloner) Clone(context.Context, string, string) (string, func(), error) {
	return c.dir, func() {}, nil
}

type fixture struct {
	handler http.Handler
	repo    *memory.ScanRepository
}

func newFixture(t *testing.T, keys map[string]string) fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte(mainTF), 0o644))

	repo := memory.NewScanRepository()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	scansSvc := &appscans.Service{
		Repo:      repo,
		Errors:    memory.NewScanErrorRepository(),
		Cloner:    dirCloner{dir: dir},
		Artifacts: store,
		Scanner:   soc2.NewScanner(),
	}
	h := NewRouter(Deps{
		Scans:       scansSvc,
		Assessments: assessments.New(repo, store, fairness.DefaultWeights(), nil),
		AI:          appai.NewService(nil, scansSvc, memory.NewAnalystRepository(), nil, nil),
		APIKeys:     keys,
	})
	return fixture{handler: h, repo: repo}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestSOC2ScanFlow(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/v1/acme/scans/soc2", map[string]any{"repo_url": "https://github.com/acme/infra.git", "ref": "main"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res appscans.TriggerScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 1, res.Counts.High)
	assert.Less(t, res.Score, 100)

	rec = f.do(t, http.MethodGet, "/v1/acme/scans/"+res.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scan domain.Scan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scan))
	assert.Equal(t, "main", scan.Branch)

	rec = f.do(t, http.MethodGet, "/v1/acme/scans/"+res.ID+"/report?format=sarif", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var log sarif.Log
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	assert.Equal(t, sarif.Version, log.Version)
	require.Len(t, log.Runs, 1)
	assert.Len(t, log.Runs[0].Results, 1)
	assert.Equal(t, "error", log.Runs[0].Results[0].Level)

	rec = f.do(t, http.MethodGet, "/v1/acme/scans/"+res.ID+"/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/acme/scans?kind=soc2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.PaginatedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)

	rec = f.do(t, http.MethodGet, "/v1/acme/summary?days=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_scans":1`)

	rec = f.do(t, http.MethodPost, "/v1/acme/ai/analyze", map[string]string{"scan_id": res.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"provider":"offline"`)

	rec = f.do(t, http.MethodGet, "/v1/acme/scans/"+res.ID+"/analysis", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSOC2ScanAsync(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/v1/acme/scans/soc2?async=true", map[string]any{"repo_url": "git@github.com:acme/infra.git"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var body struct{ ID string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Eventually(t, func() bool {
		s, err := f.repo.Get(context.Background(), "acme", domain.ScanID(body.ID))
		return err == nil && s.Status == domain.StatusSuccess
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"private host", http.MethodPost, "/v1/acme/scans/soc2", map[string]any{"repo_url": "https://10.1.2.3/a/b"}, http.StatusBadRequest},
		{"http scheme", http.MethodPost, "/v1/acme/scans/soc2", map[string]any{"repo_url": "http://github.com/a/b"}, http.StatusBadRequest},
		{"bad ref", http.MethodPost, "/v1/acme/scans/soc2", map[string]any{"repo_url": "https://github.com/a/b", "ref": "--upload-pack=x"}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/v1/acme/scans/soc2", nil, http.StatusBadRequest},
		{"bad scan id", http.MethodGet, "/v1/acme/scans/123", nil, http.StatusBadRequest},
		{"unknown scan", http.MethodGet, "/v1/acme/scans/0b6c8d3e-6a55-4c61-9a55-3f6c1d2e4b7a-soc2", nil, http.StatusNotFound},
		{"bad kind filter", http.MethodGet, "/v1/acme/scans?kind=trivy", nil, http.StatusBadRequest},
		{"invalid profile", http.MethodPost, "/v1/acme/ai-act/classify", map[string]any{"use_case": "chatbot"}, http.StatusBadRequest},
		{"bad tenant", http.MethodGet, "/v1/a.b/scans/latest", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestAssessmentEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/v1/acme/ai-act/classify", aiact.AISystemProfile{SystemName: "bot", UseCase: "Customer support chatbot"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tier":"limited_risk"`)

	rec = f.do(t, http.MethodPost, "/v1/acme/ai-act/assess", map[string]any{
		"profile":         aiact.AISystemProfile{SystemName: "screener", UseCase: "hiring"},
		"compliance":      map[string]bool{"human_oversight": true},
		"annual_turnover": 50_000_000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var aa assessments.AssessAIActResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &aa))
	assert.Equal(t, aiact.TierHighRisk, aa.Assessment.RiskLevel)

	rec = f.do(t, http.MethodPost, "/v1/acme/bias/assess", map[string]any{
		"model_file": "model.pkl",
		"metadata":   map[string]any{"model_type": "logistic regression", "balanced_dataset": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ba assessments.AssessBiasResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ba))
	assert.Equal(t, fairness.MethodEstimated, ba.Assessment.Method)

	rec = f.do(t, http.MethodGet, "/v1/acme/scans?kind=bias", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ba.ID)
}

func TestAuthAndOps(t *testing.T) {
	f := newFixture(t, map[string]string{"acme": "k-acme", "globex": "k-globex"})

	for _, p := range []string{"/health", "/readyz", "/livez", "/metrics"} {
		rec := f.do(t, http.MethodGet, p, nil)
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/acme/scans/latest", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/acme/scans/latest", nil)
	req.Header.Set("Authorization", "Bearer k-globex")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/acme/scans/latest", nil)
	req.Header.Set("Authorization", "Bearer k-acme")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
