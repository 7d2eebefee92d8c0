package ai

import "context"

// Request carries a stored report to summarise.
type Request struct {
	ScanID string
	Kind   string
	Target string
	Score  float64
	Report []byte // JSON report as stored in the artifact store
}

type Client interface {
	Analyze(ctx context.Context, req Request) (string, error)
	Name() string
}
