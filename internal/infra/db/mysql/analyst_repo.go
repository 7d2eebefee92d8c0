package mysql

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

// Save inserts an analysis record
func (r *AnalystRepository) Save(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO compliance_analyses
  (id, tenant_id, scan_id, provider, result_json, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  provider=VALUES(provider), result_json=VALUES(result_json);
`
	result := a.Result
	if strings.TrimSpace(result) == "" {
		// result_json column requires valid JSON; use empty object
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
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	return sqlutil.AnalysisRows(rows)
}

// LatestByScan returns the newest analysis for a scan
func (r *AnalystRepository) LatestByScan(ctx context.Context, tenant, scanID string) (*domain.Analysis, error) {
	const q = `
SELECT id, tenant_id, scan_id, provider, result_json, created_at
FROM compliance_analyses
WHERE tenant_id=? AND scan_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
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
