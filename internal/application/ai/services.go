package ai

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/application"
	"github.com/bryanwahyu/dataguardian/internal/domain/ai"
	"github.com/bryanwahyu/dataguardian/internal/domain/analyst"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/infra/ai/prompt"
)

// ReportLoader returns a scan with its stored JSON report.
type ReportLoader interface {
	Report(ctx context.Context, tenant string, id domain.ScanID) (*domain.Scan, []byte, error)
}

type Service struct {
	client   ai.Client
	reports  ReportLoader
	analyses analyst.Repository // optional
	clock    application.Clock
	log      *zap.SugaredLogger
}

// NewService wires the analyst. A nil client falls back to the offline summariser.
func NewService(client ai.Client, reports ReportLoader, analyses analyst.Repository, clock application.Clock, log *zap.SugaredLogger) *Service {
	if client == nil {
		client = prompt.Offline{}
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{client: client, reports: reports, analyses: analyses, clock: clock, log: log}
}

// Provider names the backing client.
func (s *Service) Provider() string { return s.client.Name() }

// AnalyzeScan summarises a stored scan report and keeps the result.
func (s *Service) AnalyzeScan(ctx context.Context, tenant string, id domain.ScanID) (*analyst.Analysis, error) {
	scan, data, err := s.reports.Report(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	result, err := s.client.Analyze(ctx, ai.Request{
		ScanID: string(scan.ID),
		Kind:   string(scan.Kind),
		Target: scan.Target,
		Score:  scan.Score,
		Report: data,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze scan %s with %s: %w", id, s.client.Name(), err)
	}

	a := &analyst.Analysis{
		ID:        analyst.AnalysisID(uuid.New().String()),
		TenantID:  tenant,
		ScanID:    string(scan.ID),
		Provider:  s.client.Name(),
		Result:    result,
		CreatedAt: s.clock.Now(),
	}
	if s.analyses != nil {
		if err := s.analyses.Save(ctx, a); err != nil {
			// analisa tetap dikembalikan walau gagal disimpan
			s.log.Warnw("save analysis", "tenant", tenant, "scan_id", id, "error", err)
		}
	}
	s.log.Infow("scan analyzed", "tenant", tenant, "scan_id", id, "provider", a.Provider)
	return a, nil
}

// ListAnalyses pages through stored analyses, newest first.
func (s *Service) ListAnalyses(ctx context.Context, tenant string, page, pageSize int) ([]*analyst.Analysis, error) {
	if s.analyses == nil {
		return []*analyst.Analysis{}, nil
	}
	return s.analyses.Paginate(ctx, tenant, page, pageSize)
}

// LatestForScan returns the most recent analysis of a scan.
func (s *Service) LatestForScan(ctx context.Context, tenant string, id domain.ScanID) (*analyst.Analysis, error) {
	if s.analyses == nil {
		return nil, domain.ErrNotFound
	}
	return s.analyses.LatestByScan(ctx, tenant, string(id))
}
