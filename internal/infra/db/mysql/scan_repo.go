package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/sqlutil"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `id, tenant_id, triggered_at, kind, target, status, score, risk_level,
       critical, high, medium, low, findings_total,
       artifact_url, report_key, duration_ms, source, commit_sha, branch, error_message`

// Save insert/update Scan record
func (r *ScanRepository) Save(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO compliance_scans
(` + scanColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status), score=VALUES(score), risk_level=VALUES(risk_level),
 critical=VALUES(critical), high=VALUES(high), medium=VALUES(medium), low=VALUES(low),
 findings_total=VALUES(findings_total),
 artifact_url=VALUES(artifact_url), report_key=VALUES(report_key),
 duration_ms=VALUES(duration_ms), error_message=VALUES(error_message);
`
	_, err := r.db.ExecContext(ctx, q, sqlutil.ScanArgs(s)...)
	if err != nil {
		return fmt.Errorf("save scan %s: %w", s.ID, err)
	}
	return nil
}

// Get by ID + Tenant
func (r *ScanRepository) Get(ctx context.Context, tenant string, id domain.ScanID) (*domain.Scan, error) {
	q := `SELECT ` + scanColumns + ` FROM compliance_scans WHERE tenant_id=? AND id=? LIMIT 1;`
	s, err := sqlutil.ScanRow(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

// Latest scans per tenant
func (r *ScanRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + scanColumns + ` FROM compliance_scans
WHERE tenant_id=? ORDER BY triggered_at DESC, id DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("querying latest scans: %w", err)
	}
	return sqlutil.ScanRows(rows)
}

// summaryQuery totals every severity column of scans triggered since a point in time.
const summaryQuery = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END),0),
       COALESCE(SUM(critical),0),
       COALESCE(SUM(high),0),
       COALESCE(SUM(medium),0),
       COALESCE(SUM(low),0),
       COALESCE(AVG(CASE WHEN status='success' THEN score END),0)
FROM compliance_scans
WHERE tenant_id=? AND triggered_at >= ?;
`

// Summary counts scan results since a point in time
func (r *ScanRepository) Summary(ctx context.Context, tenant string, since time.Time) (domain.Summary, error) {
	var s domain.Summary
	err := r.db.QueryRowContext(ctx, summaryQuery, tenant, since).
		Scan(&s.TotalScans, &s.FailedScans, &s.Critical, &s.High, &s.Medium, &s.Low, &s.AverageScore)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summarising scans: %w", err)
	}
	return s, nil
}

// Paginate with offset + limit (classic pagination)
func (r *ScanRepository) Paginate(ctx context.Context, tenant string, page, pageSize int, f domain.Filter) (domain.PaginatedResult, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	where, args := filterClause(tenant, f)

	query := `SELECT ` + scanColumns + ` FROM compliance_scans` + where +
		"\nORDER BY triggered_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying scans: %w", err)
	}
	list, err := sqlutil.ScanRows(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	// Get total count for pagination
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM compliance_scans"+where, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}
	return domain.NewPage(list, page, pageSize, total), nil
}

func filterClause(tenant string, f domain.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(" WHERE tenant_id = ?")
	args := []any{tenant}
	if f.Kind != "" {
		b.WriteString(" AND kind = ?")
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		b.WriteString(" AND status = ?")
		args = append(args, f.Status)
	}
	if f.Branch != "" {
		b.WriteString(" AND branch = ?")
		args = append(args, f.Branch)
	}
	if f.Target != "" {
		b.WriteString(" AND target LIKE ?")
		args = append(args, "%"+sqlutil.EscapeLike(f.Target)+"%")
	}
	return b.String(), args
}
