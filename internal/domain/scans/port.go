package scans

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, s *Scan) error
	Get(ctx context.Context, tenant string, id ScanID) (*Scan, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Scan, error)
	Summary(ctx context.Context, tenant string, since time.Time) (Summary, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int, f Filter) (PaginatedResult, error)
}

// Cloner port: checkout repository remote ke direktori sementara
type Cloner interface {
	// Clone returns the checkout directory and a cleanup func that removes it.
	Clone(ctx context.Context, repoURL, ref string) (dir string, cleanup func(), err error)
}

// ArtifactStore port (interface untuk penyimpanan report)
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}
