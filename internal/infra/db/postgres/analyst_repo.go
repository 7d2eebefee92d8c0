package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/analyst"
	"github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/sqlutil"
)

type AnalystRepository struct {
	db *sql.DB
}

func NewAnalystRepository(db *sql.DB) *AnalystRepository {
	return &AnalystRepository{db: db}
}

// Save inserts or updates an analysis record
func (r *AnalystRepository) Save(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO compliance_analyses
  (id, tenant_id, scan_id, provider, result_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  provider=EXCLUDED.provider,
  result_json=EXCLUDED.result_json;
`
	result := a.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, a.ID, sqlutil.DashIfEmpty(a.TenantID), a.ScanID, a.Provider, result, createdAt)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalystRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Analysis, error) {
	page, pageSize = scans.NormalizePage(page, pageSize)
	const q = `
SELECT id, tenant_id, scan_id, provider, result_json, created_at
FROM compliance_analyses
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	return sqlutil.AnalysisRows(rows)
}

// LatestByScan returns the most recent analysis for a scan
func (r *AnalystRepository) LatestByScan(ctx context.Context, tenant string, scanID string) (*domain.Analysis, error) {
	const q = `
SELECT id, tenant_id, scan_id, provider, result_json, created_at
FROM compliance_analyses
WHERE tenant_id=$1 AND scan_id=$2
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	var a domain.Analysis
	err := r.db.QueryRowContext(ctx, q, tenant, scanID).
		Scan(&a.ID, &a.TenantID, &a.ScanID, &a.Provider, &a.Result, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scans.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis: %w", err)
	}
	return &a, nil
}
