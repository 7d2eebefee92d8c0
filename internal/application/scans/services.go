package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/application"
	"github.com/bryanwahyu/dataguardian/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
)

// Service implements use-cases untuk Scan.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Repo      domain.Repository
	Errors    scanerrors.Repository // optional
	Cloner    domain.Cloner         // nil disables remote targets
	Artifacts domain.ArtifactStore  // nil skips report upload
	Scanner   *soc2.Scanner
	Clock     application.Clock
	Log       *zap.SugaredLogger

	// AllowLocal permits filesystem paths as targets. The HTTP API keeps it off.
	AllowLocal bool
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func (s *Service) log() *zap.SugaredLogger {
	if s.Log == nil {
		return zap.NewNop().Sugar()
	}
	return s.Log
}

//
// ==== USE CASES ====
//

// Command untuk trigger scan SOC2
type TriggerScanCommand struct {
	TenantID  string
	Target    string // git URL, or a local path when AllowLocal
	Ref       string
	Source    string
	CommitSHA string
}

type TriggerScanResult struct {
	ID          string                `json:"id"`
	Status      string                `json:"status"`
	Score       int                   `json:"compliance_score"`
	Counts      domain.SeverityCounts `json:"counts"`
	ArtifactURL string                `json:"artifact_url,omitempty"`
	DurationMS  int64                 `json:"duration_ms"`
	Error       string                `json:"error,omitempty"`
	Report      *soc2.ScanResult      `json:"report,omitempty"`
}

// IsRemote reports whether target should be cloned rather than read from disk.
// file:// URLs are local paths.
func IsRemote(target string) bool {
	if strings.HasPrefix(target, "git@") {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ssh", "git":
		return true
	}
	return false
}

// localPath strips a file:// scheme from a local target.
func localPath(target string) string {
	if u, err := url.Parse(target); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return target
}

// TriggerScan clones (if needed), scans, uploads the report and persists the
// outcome. Clone and scan failures come back as a failed result with a nil
// error; the error return is reserved for persistence failures.
func (s *Service) TriggerScan(ctx context.Context, cmd TriggerScanCommand) (TriggerScanResult, error) {
	scan, err := s.queue(ctx, cmd)
	if err != nil {
		return TriggerScanResult{ID: string(scan.ID), Status: string(domain.StatusFailed)}, err
	}
	return s.execute(ctx, scan, cmd.Ref)
}

// TriggerScanAsync records a queued scan and runs it in the background with
// its own context, so the caller's request context cannot cancel it. done,
// if non-nil, receives the final result.
func (s *Service) TriggerScanAsync(ctx context.Context, cmd TriggerScanCommand, done func(TriggerScanResult, error)) (string, error) {
	scan, err := s.queue(ctx, cmd)
	if err != nil {
		return string(scan.ID), err
	}
	go func() {
		res, err := s.execute(context.Background(), scan, cmd.Ref)
		if err != nil {
			s.log().Errorw("background scan", "tenant", scan.TenantID, "scan_id", scan.ID, "error", err)
		}
		if done != nil {
			done(res, err)
		}
	}()
	return string(scan.ID), nil
}

// RetryScan: jalankan ulang sebuah scan SOC2 yang sudah ada
func (s *Service) RetryScan(ctx context.Context, tenant string, id domain.ScanID) (TriggerScanResult, error) {
	existing, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return TriggerScanResult{}, err
	}
	if existing.Kind != domain.KindSOC2 {
		return TriggerScanResult{}, fmt.Errorf("%w: scan %s is %s, only soc2 scans can be retried", domain.ErrInvalidTarget, id, existing.Kind)
	}
	existing.Status = domain.StatusQueued
	existing.Error = ""
	if err := s.Repo.Save(ctx, existing); err != nil {
		return TriggerScanResult{ID: string(id), Status: string(domain.StatusFailed)}, err
	}
	s.log().Infow("retrying scan", "tenant", tenant, "scan_id", string(id), "target", existing.Target, "ref", existing.Branch)
	return s.execute(ctx, existing, existing.Branch)
}

func (s *Service) queue(ctx context.Context, cmd TriggerScanCommand) (*domain.Scan, error) {
	scan := &domain.Scan{
		ID:          domain.ScanID(uuid.New().String() + "-" + string(domain.KindSOC2)),
		TenantID:    cmd.TenantID,
		TriggeredAt: s.clock().Now(),
		Kind:        domain.KindSOC2,
		Target:      cmd.Target,
		Status:      domain.StatusQueued,
		Source:      cmd.Source,
		CommitSHA:   cmd.CommitSHA,
		Branch:      cmd.Ref,
	}
	// Create an initial scan row so we always have an ID to reference
	if err := s.Repo.Save(ctx, scan); err != nil {
		return scan, fmt.Errorf("save queued scan: %w", err)
	}
	return scan, nil
}

func (s *Service) execute(ctx context.Context, scan *domain.Scan, ref string) (TriggerScanResult, error) {
	start := s.clock().Now()
	scan.Status = domain.StatusRunning
	if err := s.Repo.Save(ctx, scan); err != nil {
		return TriggerScanResult{ID: string(scan.ID), Status: string(domain.StatusFailed)}, err
	}

	root, cleanup, phase, err := s.resolve(ctx, scan.Target, ref)
	if err != nil {
		return s.fail(ctx, scan, start, phase, err)
	}
	defer cleanup()

	report, err := s.Scanner.ScanRepository(ctx, root)
	if err != nil {
		return s.fail(ctx, scan, start, scanerrors.PhaseScan, err)
	}
	report.Target = scan.Target

	scan.ArtifactURL, scan.ReportKey = s.upload(ctx, scan, report)
	scan.Status = domain.StatusSuccess
	scan.Score = float64(report.ComplianceScore)
	scan.RiskLevel = highestLevel(report.Totals)
	scan.Counts = domain.SeverityCounts{
		High:   report.Totals.High,
		Medium: report.Totals.Medium,
		Low:    report.Totals.Low,
		Total:  report.Totals.Total,
	}
	scan.DurationMS = s.clock().Now().Sub(start).Milliseconds()
	if err := s.Repo.Save(ctx, scan); err != nil {
		s.recordError(ctx, scan, scanerrors.PhasePersist, err.Error(), nil)
		return s.resultOf(scan, report), fmt.Errorf("save scan result: %w", err)
	}

	s.log().Infow("soc2 scan finished",
		"tenant", scan.TenantID,
		"scan_id", scan.ID,
		"score", report.ComplianceScore,
		"findings", report.Totals.Total,
		"files", report.FilesScanned,
		"duration_ms", scan.DurationMS)
	return s.resultOf(scan, report), nil
}

// resolve returns the directory to scan plus a cleanup func.
func (s *Service) resolve(ctx context.Context, target, ref string) (string, func(), scanerrors.Phase, error) {
	noop := func() {}
	if strings.TrimSpace(target) == "" {
		return "", noop, scanerrors.PhaseScan, fmt.Errorf("%w: empty target", domain.ErrInvalidTarget)
	}
	if !IsRemote(target) {
		if !s.AllowLocal {
			return "", noop, scanerrors.PhaseScan, fmt.Errorf("%w: local paths are not accepted", domain.ErrInvalidTarget)
		}
		return localPath(target), noop, "", nil
	}
	if s.Cloner == nil {
		return "", noop, scanerrors.PhaseClone, fmt.Errorf("%w: remote repositories are not enabled", domain.ErrInvalidTarget)
	}
	dir, cleanup, err := s.Cloner.Clone(ctx, target, ref)
	if err != nil {
		return "", noop, scanerrors.PhaseClone, err
	}
	return dir, cleanup, "", nil
}

func (s *Service) upload(ctx context.Context, scan *domain.Scan, report *soc2.ScanResult) (string, string) {
	if s.Artifacts == nil {
		return "", ""
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		s.recordError(ctx, scan, scanerrors.PhaseUpload, err.Error(), nil)
		return "", ""
	}
	key := ReportKey(scan)
	url, err := s.Artifacts.Put(ctx, key, "application/json", data)
	if err != nil {
		// report upload is best effort; the scan row still carries the score
		s.recordError(ctx, scan, scanerrors.PhaseUpload, err.Error(), map[string]string{"key": key})
		return "", ""
	}
	return url, key
}

// ReportKey is the artifact key of a scan's JSON report.
func ReportKey(scan *domain.Scan) string {
	return fmt.Sprintf("%s/%s/%s.json", scan.TenantID, scan.Kind, scan.ID)
}

func (s *Service) fail(ctx context.Context, scan *domain.Scan, start time.Time, phase scanerrors.Phase, cause error) (TriggerScanResult, error) {
	if errors.Is(cause, context.Canceled) {
		cause = errors.New("scan cancelled")
	}
	scan.Status = domain.StatusFailed
	scan.Error = cause.Error()
	scan.DurationMS = s.clock().Now().Sub(start).Milliseconds()
	s.recordError(ctx, scan, phase, cause.Error(), nil)
	s.log().Warnw("soc2 scan failed", "tenant", scan.TenantID, "scan_id", scan.ID, "phase", phase, "error", cause)

	// persist with a fresh context: the scan context may be the reason we failed
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Repo.Save(saveCtx, scan); err != nil {
		return s.resultOf(scan, nil), fmt.Errorf("save failed scan: %w", err)
	}
	return s.resultOf(scan, nil), nil
}

func (s *Service) recordError(ctx context.Context, scan *domain.Scan, phase scanerrors.Phase, msg string, details any) {
	if s.Errors == nil {
		return
	}
	e := &scanerrors.ScanError{
		TenantID:  scan.TenantID,
		ScanID:    string(scan.ID),
		Kind:      string(scan.Kind),
		Phase:     phase,
		Message:   msg,
		CreatedAt: s.clock().Now(),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			e.DetailsJSON = string(b)
		}
	}
	if err := s.Errors.Save(context.WithoutCancel(ctx), e); err != nil {
		s.log().Warnw("record scan error", "scan_id", scan.ID, "error", err)
	}
}

func (s *Service) resultOf(scan *domain.Scan, report *soc2.ScanResult) TriggerScanResult {
	return TriggerScanResult{
		ID:          string(scan.ID),
		Status:      string(scan.Status),
		Score:       int(scan.Score),
		Counts:      scan.Counts,
		ArtifactURL: scan.ArtifactURL,
		DurationMS:  scan.DurationMS,
		Error:       scan.Error,
		Report:      report,
	}
}

func highestLevel(c soc2.LevelCounts) string {
	switch {
	case c.High > 0:
		return string(soc2.RiskHigh)
	case c.Medium > 0:
		return string(soc2.RiskMedium)
	case c.Low > 0:
		return string(soc2.RiskLow)
	}
	return "none"
}

// Latest ambil N scan terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Scan, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// Get ambil 1 scan by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.ScanID) (*domain.Scan, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// List pages through scans with optional filters.
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int, f domain.Filter) (domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize, f)
}

// ErrorsFor returns recorded failures for a scan, newest first.
func (s *Service) ErrorsFor(ctx context.Context, tenant string, id domain.ScanID, limit int) ([]*scanerrors.ScanError, error) {
	if s.Errors == nil {
		return []*scanerrors.ScanError{}, nil
	}
	return s.Errors.ListByScan(ctx, tenant, string(id), limit)
}

// Report loads the stored JSON report of a scan.
func (s *Service) Report(ctx context.Context, tenant string, id domain.ScanID) (*domain.Scan, []byte, error) {
	scan, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, nil, err
	}
	if s.Artifacts == nil || scan.ReportKey == "" {
		return scan, nil, fmt.Errorf("report for scan %s: %w", id, domain.ErrNotFound)
	}
	data, err := s.Artifacts.Get(ctx, scan.ReportKey)
	if err != nil {
		return scan, nil, err
	}
	return scan, data, nil
}

// Summary rekap hasil scan N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	sum, err := s.Repo.Summary(ctx, tenant, s.clock().Now().AddDate(0, 0, -sinceDays))
	if err != nil {
		return domain.Summary{}, err
	}
	sum.SinceDays = sinceDays
	return sum, nil
}
