package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scanerrors"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/sqlutil"
)

type ScanErrorRepository struct{ db *sql.DB }

func NewScanErrorRepository(db *sql.DB) *ScanErrorRepository { return &ScanErrorRepository{db: db} }

func (r *ScanErrorRepository) Save(ctx context.Context, e *domain.ScanError) error {
	const q = `
INSERT INTO compliance_scan_errors
  (tenant_id, scan_id, kind, phase, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	err := r.db.QueryRowContext(ctx, q,
		sqlutil.DashIfEmpty(e.TenantID), sqlutil.DashIfEmpty(e.ScanID), sqlutil.DashIfEmpty(e.Kind),
		sqlutil.DashIfEmpty(string(e.Phase)), sqlutil.DashIfEmpty(e.Message),
		sqlutil.JSONOrWrap(e.DetailsJSON), created).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("save scan error: %w", err)
	}
	return nil
}

func (r *ScanErrorRepository) ListByScan(ctx context.Context, tenant string, scanID string, limit int) ([]*domain.ScanError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, scan_id, kind, phase, message, details_json, created_at
FROM compliance_scan_errors
WHERE tenant_id = $1 AND scan_id = $2
ORDER BY created_at DESC, id DESC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, scanID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying scan errors: %w", err)
	}
	return sqlutil.ScanErrorRows(rows)
}
