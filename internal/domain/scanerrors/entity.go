package scanerrors

import "time"

// Phase of a scan where the error happened.
type Phase string

const (
	PhaseClone   Phase = "clone"
	PhaseScan    Phase = "scan"
	PhaseUpload  Phase = "upload"
	PhasePersist Phase = "persist"
)

// ScanError represents a persisted scan error entry
type ScanError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ScanID      string    `json:"scan_id"`
	Kind        string    `json:"kind,omitempty"`
	Phase       Phase     `json:"phase,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
