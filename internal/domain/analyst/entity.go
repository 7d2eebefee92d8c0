package analyst

import "time"

// AnalysisID identifier type
type AnalysisID string

// Analysis is a narrative summary of a stored scan report, kept for auditing.
type Analysis struct {
	ID        AnalysisID `json:"id"`
	TenantID  string     `json:"tenant_id"`
	ScanID    string     `json:"scan_id,omitempty"`
	Provider  string     `json:"provider"` // openai | offline
	Result    string     `json:"result"`   // JSON string
	CreatedAt time.Time  `json:"created_at"`
}
