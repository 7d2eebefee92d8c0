package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/dataguardian/internal/domain/analyst"
	"github.com/bryanwahyu/dataguardian/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

// ScanRepository keeps scans in process memory. Used when no database is
// configured and in tests.
type ScanRepository struct {
	mu    sync.RWMutex
	scans map[string]domain.Scan
}

func NewScanRepository() *ScanRepository {
	return &ScanRepository{scans: make(map[string]domain.Scan)}
}

func key(tenant, id string) string { return tenant + "\x00" + id }

func (r *ScanRepository) Save(_ context.Context, s *domain.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	if cp.TriggeredAt.IsZero() {
		cp.TriggeredAt = time.Now()
	}
	r.scans[key(s.TenantID, string(s.ID))] = cp
	return nil
}

func (r *ScanRepository) Get(_ context.Context, tenant string, id domain.ScanID) (*domain.Scan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scans[key(tenant, string(id))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

// sorted returns tenant scans newest first.
func (r *ScanRepository) sorted(tenant string, keep func(domain.Scan) bool) []*domain.Scan {
	var out []*domain.Scan
	for _, s := range r.scans {
		if s.TenantID != tenant || !keep(s) {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out
}

func (r *ScanRepository) Latest(_ context.Context, tenant string, limit int) ([]*domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sorted(tenant, func(domain.Scan) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ScanRepository) Summary(_ context.Context, tenant string, since time.Time) (domain.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum domain.Summary
	var scored int
	var total float64
	for _, s := range r.sorted(tenant, func(s domain.Scan) bool { return !s.TriggeredAt.Before(since) }) {
		sum.TotalScans++
		if s.Status == domain.StatusFailed {
			sum.FailedScans++
		}
		sum.Critical += s.Counts.Critical
		sum.High += s.Counts.High
		sum.Medium += s.Counts.Medium
		sum.Low += s.Counts.Low
		if s.Status == domain.StatusSuccess {
			scored++
			total += s.Score
		}
	}
	if scored > 0 {
		sum.AverageScore = total / float64(scored)
	}
	return sum, nil
}

func (r *ScanRepository) Paginate(_ context.Context, tenant string, page, pageSize int, f domain.Filter) (domain.PaginatedResult, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.sorted(tenant, func(s domain.Scan) bool {
		return (f.Kind == "" || s.Kind == f.Kind) &&
			(f.Status == "" || s.Status == f.Status) &&
			(f.Branch == "" || s.Branch == f.Branch) &&
			(f.Target == "" || strings.Contains(s.Target, f.Target))
	})
	total := int64(len(all))
	start := min((page-1)*pageSize, len(all))
	end := min(start+pageSize, len(all))
	return domain.NewPage(all[start:end], page, pageSize, total), nil
}

// ScanErrorRepository keeps scan errors in memory.
type ScanErrorRepository struct {
	mu     sync.Mutex
	nextID int64
	errs   []scanerrors.ScanError
}

func NewScanErrorRepository() *ScanErrorRepository { return &ScanErrorRepository{} }

func (r *ScanErrorRepository) Save(_ context.Context, e *scanerrors.ScanError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.errs = append(r.errs, *e)
	return nil
}

func (r *ScanErrorRepository) ListByScan(_ context.Context, tenant, scanID string, limit int) ([]*scanerrors.ScanError, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scanerrors.ScanError
	for i := len(r.errs) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.errs[i]
		if e.TenantID == tenant && e.ScanID == scanID {
			out = append(out, &e)
		}
	}
	return out, nil
}

// AnalystRepository keeps analyses in memory.
type AnalystRepository struct {
	mu   sync.Mutex
	list []analyst.Analysis
}

func NewAnalystRepository() *AnalystRepository { return &AnalystRepository{} }

func (r *AnalystRepository) Save(_ context.Context, a *analyst.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	r.list = append(r.list, *a)
	return nil
}

func (r *AnalystRepository) Paginate(_ context.Context, tenant string, page, pageSize int) ([]*analyst.Analysis, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*analyst.Analysis
	for i := len(r.list) - 1; i >= 0; i-- {
		if a := r.list[i]; a.TenantID == tenant {
			all = append(all, &a)
		}
	}
	start := min((page-1)*pageSize, len(all))
	end := min(start+pageSize, len(all))
	return all[start:end], nil
}

func (r *AnalystRepository) LatestByScan(_ context.Context, tenant, scanID string) (*analyst.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.list) - 1; i >= 0; i-- {
		if a := r.list[i]; a.TenantID == tenant && a.ScanID == scanID {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}
