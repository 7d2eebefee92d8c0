package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/infra/db/sqlutil"
)

type ScanRepository struct{ db *sql.DB }

func NewScanRepository(db *sql.DB) *ScanRepository { return &ScanRepository{db: db} }

const scanColumns = `id, tenant_id, triggered_at, kind, target, status, score, risk_level,
       critical, high, medium, low, findings_total,
       artifact_url, report_key, duration_ms, source, commit_sha, branch, error_message`

// Save insert/update Scan record
func (r *ScanRepository) Save(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO compliance_scans
(` + scanColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,
        $9,$10,$11,$12,$13,
        $14,$15,$16,$17,$18,$19,$20)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 score = EXCLUDED.score,
 risk_level = EXCLUDED.risk_level,
 critical = EXCLUDED.critical,
 high = EXCLUDED.high,
 medium = EXCLUDED.medium,
 low = EXCLUDED.low,
 findings_total = EXCLUDED.findings_total,
 artifact_url = EXCLUDED.artifact_url,
 report_key = EXCLUDED.report_key,
 duration_ms = EXCLUDED.duration_ms,
 error_message = EXCLUDED.error_message;`

	if _, err := r.db.ExecContext(ctx, q, sqlutil.ScanArgs(s)...); err != nil {
		return fmt.Errorf("save scan %s: %w", s.ID, err)
	}
	return nil
}

// Get by ID + Tenant
func (r *ScanRepository) Get(ctx context.Context, tenant string, id domain.ScanID) (*domain.Scan, error) {
	q := `SELECT ` + scanColumns + ` FROM compliance_scans WHERE tenant_id=$1 AND id=$2 LIMIT 1;`
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
WHERE tenant_id=$1 ORDER BY triggered_at DESC, id DESC LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("querying latest scans: %w", err)
	}
	return sqlutil.ScanRows(rows)
}

// summaryQuery totals every severity column of scans triggered since a point in time.
const summaryQuery = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'failed'),
       COALESCE(SUM(critical),0),
       COALESCE(SUM(high),0),
       COALESCE(SUM(medium),0),
       COALESCE(SUM(low),0),
       COALESCE(AVG(score) FILTER (WHERE status = 'success'),0)
FROM compliance_scans
WHERE tenant_id=$1 AND triggered_at >= $2;
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

// Paginate with offset + limit
func (r *ScanRepository) Paginate(ctx context.Context, tenant string, page, pageSize int, f domain.Filter) (domain.PaginatedResult, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	where, args := filterClause(tenant, f)

	n := len(args)
	query := `SELECT ` + scanColumns + ` FROM compliance_scans` + where +
		"\nORDER BY triggered_at DESC, id DESC LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying scans: %w", err)
	}
	list, err := sqlutil.ScanRows(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM compliance_scans"+where, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}
	return domain.NewPage(list, page, pageSize, total), nil
}

func filterClause(tenant string, f domain.Filter) (string, []any) {
	var b strings.Builder
	args := []any{tenant}
	b.WriteString(" WHERE tenant_id = $1")
	add := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&b, " AND %s $%d", cond, len(args))
	}
	if f.Kind != "" {
		add("kind =", f.Kind)
	}
	if f.Status != "" {
		add("status =", f.Status)
	}
	if f.Branch != "" {
		add("branch =", f.Branch)
	}
	if f.Target != "" {
		add("target LIKE", "%"+sqlutil.EscapeLike(f.Target)+"%")
	}
	return b.String(), args
}
