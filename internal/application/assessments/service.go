package assessments

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/application"
	appscans "github.com/bryanwahyu/dataguardian/internal/application/scans"
	"github.com/bryanwahyu/dataguardian/internal/domain/aiact"
	"github.com/bryanwahyu/dataguardian/internal/domain/fairness"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

// Service runs AI-Act and bias assessments and records each one as a Scan.
type Service struct {
	Repo      domain.Repository    // nil skips persistence
	Artifacts domain.ArtifactStore // nil skips report upload
	AIAct     *aiact.Assessor
	Bias      *fairness.Assessor
	Clock     application.Clock
	Log       *zap.SugaredLogger
}

// New builds a Service with default assessors.
func New(repo domain.Repository, artifacts domain.ArtifactStore, weights fairness.HeuristicWeights, log *zap.SugaredLogger) *Service {
	return &Service{
		Repo:      repo,
		Artifacts: artifacts,
		AIAct:     aiact.NewAssessor(log),
		Bias:      fairness.NewAssessor(fairness.NewEstimator(weights), log),
		Log:       log,
	}
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

// ClassifyAIAct returns the risk tier of a profile with the matching rule.
func (s *Service) ClassifyAIAct(profile aiact.AISystemProfile) (aiact.Classification, error) {
	if err := profile.Validate(); err != nil {
		return aiact.Classification{}, err
	}
	return aiact.Explain(profile), nil
}

type AssessAIActCommand struct {
	TenantID       string
	Profile        aiact.AISystemProfile
	Compliance     map[string]bool
	AnnualTurnover float64
}

type AssessAIActResult struct {
	ID          string                     `json:"id"`
	ArtifactURL string                     `json:"artifact_url,omitempty"`
	Assessment  aiact.ComplianceAssessment `json:"assessment"`
}

// AssessAIAct evaluates a profile against the applicable articles and stores
// the outcome as an ai_act scan.
func (s *Service) AssessAIAct(ctx context.Context, cmd AssessAIActCommand) (AssessAIActResult, error) {
	if err := cmd.Profile.Validate(); err != nil {
		return AssessAIActResult{}, err
	}
	if cmd.AnnualTurnover < 0 || math.IsNaN(cmd.AnnualTurnover) || math.IsInf(cmd.AnnualTurnover, 0) {
		return AssessAIActResult{}, fmt.Errorf("%w: annual turnover must be a non-negative number", aiact.ErrInvalidProfile)
	}
	assessor := s.AIAct
	if assessor == nil {
		assessor = aiact.NewAssessor(s.log())
	}
	a := assessor.Assess(cmd.Profile, cmd.Compliance, cmd.AnnualTurnover)

	var counts domain.SeverityCounts
	for _, g := range a.Gaps {
		counts.Add(string(g.Severity))
	}
	scan := s.newScan(cmd.TenantID, domain.KindAIAct, cmd.Profile.SystemName)
	scan.Score = a.ComplianceScore
	scan.RiskLevel = string(a.RiskLevel)
	scan.Counts = counts

	if err := s.record(ctx, scan, a); err != nil {
		return AssessAIActResult{ID: string(scan.ID), Assessment: a}, err
	}
	s.log().Infow("ai act assessment recorded",
		"tenant", scan.TenantID,
		"scan_id", scan.ID,
		"tier", a.RiskLevel,
		"score", a.ComplianceScore,
		"gaps", len(a.Gaps))
	return AssessAIActResult{ID: string(scan.ID), ArtifactURL: scan.ArtifactURL, Assessment: a}, nil
}

type AssessBiasCommand struct {
	TenantID  string
	ModelFile string
	Metadata  fairness.ModelMetadata
}

type AssessBiasResult struct {
	ID          string                  `json:"id"`
	ArtifactURL string                  `json:"artifact_url,omitempty"`
	Assessment  fairness.BiasAssessment `json:"assessment"`
}

// AssessBias scores a model for fairness and stores the outcome as a bias scan.
// The stored score is the overall bias score scaled to 0-100.
func (s *Service) AssessBias(ctx context.Context, cmd AssessBiasCommand) (AssessBiasResult, error) {
	assessor := s.Bias
	if assessor == nil {
		assessor = fairness.NewAssessor(nil, s.log())
	}
	a := assessor.AssessModelBias(cmd.ModelFile, cmd.Metadata)

	var counts domain.SeverityCounts
	for _, r := range a.MitigationRecommendations {
		counts.Add(string(r.Severity))
	}
	target := cmd.Metadata.ModelName
	if strings.TrimSpace(target) == "" {
		target = cmd.ModelFile
	}
	scan := s.newScan(cmd.TenantID, domain.KindBias, target)
	scan.Score = math.Round(a.OverallBiasScore*1000) / 10
	scan.RiskLevel = string(a.BiasRisk)
	scan.Counts = counts

	if err := s.record(ctx, scan, a); err != nil {
		return AssessBiasResult{ID: string(scan.ID), Assessment: a}, err
	}
	s.log().Infow("bias assessment recorded",
		"tenant", scan.TenantID,
		"scan_id", scan.ID,
		"overall", a.OverallBiasScore,
		"risk", a.BiasRisk,
		"method", a.Method)
	return AssessBiasResult{ID: string(scan.ID), ArtifactURL: scan.ArtifactURL, Assessment: a}, nil
}

func (s *Service) newScan(tenant string, kind domain.Kind, target string) *domain.Scan {
	return &domain.Scan{
		ID:          domain.ScanID(uuid.New().String() + "-" + string(kind)),
		TenantID:    tenant,
		TriggeredAt: s.clock().Now(),
		Kind:        kind,
		Target:      target,
		Status:      domain.StatusSuccess,
		Source:      "api",
	}
}

// record uploads the report (best effort) and saves the scan row.
func (s *Service) record(ctx context.Context, scan *domain.Scan, report any) error {
	if s.Artifacts != nil {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s report: %w", scan.Kind, err)
		}
		key := appscans.ReportKey(scan)
		url, err := s.Artifacts.Put(ctx, key, "application/json", data)
		if err != nil {
			s.log().Warnw("upload assessment report", "scan_id", scan.ID, "key", key, "error", err)
		} else {
			scan.ArtifactURL, scan.ReportKey = url, key
		}
	}
	if s.Repo == nil {
		return nil
	}
	if err := s.Repo.Save(ctx, scan); err != nil {
		return fmt.Errorf("save %s assessment: %w", scan.Kind, err)
	}
	return nil
}
