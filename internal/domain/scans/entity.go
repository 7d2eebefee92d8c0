package scans

import (
	"errors"
	"time"
)

// ID tipe untuk Scan
type ScanID string

// Kind of compliance run recorded as a Scan.
type Kind string

const (
	KindSOC2  Kind = "soc2"
	KindAIAct Kind = "ai_act"
	KindBias  Kind = "bias"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSOC2, KindAIAct, KindBias:
		return true
	}
	return false
}

// Status enum
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

var (
	ErrNotFound      = errors.New("scan not found")
	ErrInvalidTarget = errors.New("invalid scan target")
)

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Add increments the bucket for severity; unknown severities only count toward Total.
func (c *SeverityCounts) Add(severity string) {
	switch severity {
	case "critical":
		c.Critical++
	case "high":
		c.High++
	case "medium":
		c.Medium++
	case "low":
		c.Low++
	}
	c.Total++
}

// Aggregate Root: Scan
type Scan struct {
	ID          ScanID         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	TriggeredAt time.Time      `json:"triggered_at"`
	Kind        Kind           `json:"kind"`
	Target      string         `json:"target,omitempty"`
	Status      Status         `json:"status"`
	Score       float64        `json:"score"`
	RiskLevel   string         `json:"risk_level,omitempty"`
	Counts      SeverityCounts `json:"counts"`
	ArtifactURL string         `json:"artifact_url,omitempty"`
	ReportKey   string         `json:"report_key,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Source      string         `json:"source,omitempty"`
	CommitSHA   string         `json:"commit_sha,omitempty"`
	Branch      string         `json:"branch,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Summary rekap scan dalam rentang waktu
type Summary struct {
	TotalScans   int     `json:"total_scans"`
	FailedScans  int     `json:"failed_scans"`
	Critical     int     `json:"critical"`
	High         int     `json:"high"`
	Medium       int     `json:"medium"`
	Low          int     `json:"low"`
	AverageScore float64 `json:"average_score"`
	SinceDays    int     `json:"since_days"`
}

// Filter narrows Paginate results; empty fields match everything.
type Filter struct {
	Kind   Kind
	Status Status
	Target string // substring match
	Branch string
}
