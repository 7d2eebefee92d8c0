package scans

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bryanwahyu/dataguardian/internal/application"
	"github.com/bryanwahyu/dataguardian/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/memory"
	"github.com/bryanwahyu/dataguardian/internal/infra/storage"
)

const openIngress = `resource "aws_security_group" "web" {
  ingress {
    from_port   = 443
    to_port     = 443
    cidr_blocks = ["0.0.0.0/0"]
  }
}
`

type fakeCloner struct {
	dir     string
	err     error
	mu      sync.Mutex
	cleaned bool
	gotRef  string
}

func (f *fakeCloner) Clone(_ context.Context, _, ref string) (string, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotRef = ref
	if f.err != nil {
		return "", nil, f.err
	}
	return f.dir, func() {
		f.mu.Lock()
		f.cleaned = true
		f.mu.Unlock()
	}, nil
}

func repoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte(openIngress), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# demo\n"), 0o644))
	return dir
}

func newService(t *testing.T, cloner domain.Cloner) (*Service, *memory.ScanRepository, *memory.ScanErrorRepository) {
	t.Helper()
	repo := memory.NewScanRepository()
	errs := memory.NewScanErrorRepository()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return &Service{
		Repo:      repo,
		Errors:    errs,
		Cloner:    cloner,
		Artifacts: store,
		Scanner:   soc2.NewScanner(),
		Clock:     application.FixedClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
	}, repo, errs
}

func TestTriggerScan_Remote(t *testing.T) {
	cl := &fakeCloner{dir: repoDir(t)}
	svc, repo, _ := newService(t, cl)
	ctx := context.Background()

	res, err := svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: "https://github.com/acme/infra.git", Ref: "main"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSuccess), res.Status)
	assert.Equal(t, 1, res.Counts.High)
	require.NotNil(t, res.Report)
	assert.Equal(t, "https://github.com/acme/infra.git", res.Report.Target)
	assert.Equal(t, res.Report.ComplianceScore, res.Score)
	assert.NotEmpty(t, res.ArtifactURL)
	assert.True(t, cl.cleaned)
	assert.Equal(t, "main", cl.gotRef)

	stored, err := repo.Get(ctx, "acme", domain.ScanID(res.ID))
	require.NoError(t, err)
	assert.Equal(t, domain.KindSOC2, stored.Kind)
	assert.Equal(t, "high", stored.RiskLevel)
	assert.Equal(t, "main", stored.Branch)

	_, data, err := svc.Report(ctx, "acme", domain.ScanID(res.ID))
	require.NoError(t, err)
	var decoded soc2.ScanResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.Report.ComplianceScore, decoded.ComplianceScore)
}

func TestTriggerScan_CloneFailureIsStructured(t *testing.T) {
	cl := &fakeCloner{err: errors.New("clone https://x/y.git: timed out after 2m0s")}
	svc, repo, errs := newService(t, cl)
	ctx := context.Background()

	res, err := svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: "https://x/y.git"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusFailed), res.Status)
	assert.Contains(t, res.Error, "timed out")
	assert.Nil(t, res.Report)

	stored, err := repo.Get(ctx, "acme", domain.ScanID(res.ID))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "timed out")

	list, err := errs.ListByScan(ctx, "acme", res.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, scanerrors.PhaseClone, list[0].Phase)
}

func TestTriggerScan_LocalPathPolicy(t *testing.T) {
	dir := repoDir(t)
	svc, _, _ := newService(t, nil)
	ctx := context.Background()

	res, err := svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: dir})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusFailed), res.Status)
	assert.Contains(t, res.Error, "local paths")

	svc.AllowLocal = true
	res, err = svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: dir})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSuccess), res.Status)
	assert.Equal(t, 2, res.Report.FilesScanned)
}

func TestTriggerScan_FileURLIsLocal(t *testing.T) {
	dir := repoDir(t)
	svc, _, _ := newService(t, &fakeCloner{err: errors.New("must not clone")})
	ctx := context.Background()
	target := "file://" + filepath.ToSlash(dir)

	res, err := svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: target})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusFailed), res.Status)
	assert.Contains(t, res.Error, "local paths")

	svc.AllowLocal = true
	res, err = svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: target})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSuccess), res.Status)
	assert.Equal(t, 1, res.Counts.High)
}

func TestTriggerScan_RemoteDisabled(t *testing.T) {
	svc, _, _ := newService(t, nil)
	res, err := svc.TriggerScan(context.Background(), TriggerScanCommand{TenantID: "acme", Target: "https://github.com/a/b"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusFailed), res.Status)
}

func TestTriggerScanAsync(t *testing.T) {
	svc, repo, _ := newService(t, &fakeCloner{dir: repoDir(t)})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan TriggerScanResult, 1)
	id, err := svc.TriggerScanAsync(ctx, TriggerScanCommand{TenantID: "acme", Target: "https://github.com/a/b"},
		func(r TriggerScanResult, _ error) { done <- r })
	require.NoError(t, err)
	cancel() // request context ends; the scan must still complete

	select {
	case r := <-done:
		assert.Equal(t, id, r.ID)
		assert.Equal(t, string(domain.StatusSuccess), r.Status)
	case <-time.After(10 * time.Second):
		t.Fatal("background scan did not finish")
	}
	stored, err := repo.Get(context.Background(), "acme", domain.ScanID(id))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)
}

func TestRetryScan(t *testing.T) {
	cl := &fakeCloner{err: errors.New("network down")}
	svc, _, _ := newService(t, cl)
	ctx := context.Background()

	first, err := svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: "https://github.com/a/b", Ref: "dev"})
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusFailed), first.Status)

	core, logs := observer.New(zap.InfoLevel)
	svc.Log = zap.New(core).Sugar()
	cl.err, cl.dir = nil, repoDir(t)
	again, err := svc.RetryScan(ctx, "acme", domain.ScanID(first.ID))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, string(domain.StatusSuccess), again.Status)
	assert.Empty(t, again.Error)
	assert.Equal(t, "dev", cl.gotRef)

	list, err := svc.ErrorsFor(ctx, "acme", domain.ScanID(first.ID), 10)
	require.NoError(t, err)
	require.Len(t, list, 1, "only the original clone failure is an error")
	assert.Equal(t, scanerrors.PhaseClone, list[0].Phase)

	retries := logs.FilterMessage("retrying scan").All()
	require.Len(t, retries, 1)
	assert.Equal(t, first.ID, retries[0].ContextMap()["scan_id"])

	_, err = svc.RetryScan(ctx, "acme", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSummary(t *testing.T) {
	svc, _, _ := newService(t, &fakeCloner{dir: repoDir(t)})
	ctx := context.Background()
	_, err := svc.TriggerScan(ctx, TriggerScanCommand{TenantID: "acme", Target: "https://github.com/a/b"})
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, sum.SinceDays)
	assert.Equal(t, 1, sum.TotalScans)
	assert.Equal(t, 1, sum.High)
}

func TestIsRemote(t *testing.T) {
	for _, s := range []string{"https://github.com/a/b", "git@github.com:a/b.git", "ssh://git@host/a.git"} {
		assert.True(t, IsRemote(s), s)
	}
	for _, s := range []string{"/srv/repo", "./infra", "C:\\repo", "", "file:///tmp/repo"} {
		assert.False(t, IsRemote(s), s)
	}
}
