package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/dataguardian/internal/application"
	"github.com/bryanwahyu/dataguardian/internal/domain/ai"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/memory"
)

type stubReports struct {
	scan *domain.Scan
	data []byte
}

func (s stubReports) Report(_ context.Context, tenant string, id domain.ScanID) (*domain.Scan, []byte, error) {
	if s.scan == nil || s.scan.TenantID != tenant || s.scan.ID != id {
		return nil, nil, domain.ErrNotFound
	}
	return s.scan, s.data, nil
}

type quotaClient struct{}

func (quotaClient) Name() string { return "openai" }
func (quotaClient) Analyze(context.Context, ai.Request) (string, error) {
	return "", ai.ErrQuotaExceeded
}

const report = `{"compliance_score": 90, "recommendations": [
  {"title": "Restrict ingress", "severity": "high", "description": "Open.", "steps": ["Limit CIDR."]}]}`

func TestAnalyzeScan_Offline(t *testing.T) {
	reports := stubReports{
		scan: &domain.Scan{ID: "s1-soc2", TenantID: "acme", Kind: domain.KindSOC2, Score: 90},
		data: []byte(report),
	}
	repo := memory.NewAnalystRepository()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(nil, reports, repo, application.FixedClock(now), nil)
	ctx := context.Background()

	a, err := svc.AnalyzeScan(ctx, "acme", "s1-soc2")
	require.NoError(t, err)
	assert.Equal(t, "offline", a.Provider)
	assert.Equal(t, now, a.CreatedAt)
	assert.Contains(t, a.Result, "Restrict ingress")

	latest, err := svc.LatestForScan(ctx, "acme", "s1-soc2")
	require.NoError(t, err)
	assert.Equal(t, a.ID, latest.ID)

	list, err := svc.ListAnalyses(ctx, "acme", 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAnalyzeScan_Errors(t *testing.T) {
	reports := stubReports{
		scan: &domain.Scan{ID: "s1-soc2", TenantID: "acme", Kind: domain.KindSOC2},
		data: []byte(report),
	}
	svc := NewService(quotaClient{}, reports, nil, nil, nil)

	_, err := svc.AnalyzeScan(context.Background(), "acme", "s1-soc2")
	assert.True(t, errors.Is(err, ai.ErrQuotaExceeded))

	_, err = svc.AnalyzeScan(context.Background(), "globex", "s1-soc2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.LatestForScan(context.Background(), "acme", "s1-soc2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
