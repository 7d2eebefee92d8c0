// Package sqlutil holds row mapping shared by the mysql and postgres adapters.
package sqlutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/dataguardian/internal/domain/analyst"
	"github.com/bryanwahyu/dataguardian/internal/domain/scanerrors"
	"github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanArgs returns insert arguments in scan column order.
func ScanArgs(s *scans.Scan) []any {
	triggered := s.TriggeredAt
	if triggered.IsZero() {
		triggered = time.Now()
	}
	return []any{
		string(s.ID), DashIfEmpty(s.TenantID), triggered, DashIfEmpty(string(s.Kind)), s.Target,
		DashIfEmpty(string(s.Status)), s.Score, s.RiskLevel,
		s.Counts.Critical, s.Counts.High, s.Counts.Medium, s.Counts.Low, s.Counts.Total,
		s.ArtifactURL, s.ReportKey, s.DurationMS, s.Source, s.CommitSHA, s.Branch, s.Error,
	}
}

// ScanRow maps one row selected in scan column order.
func ScanRow(row RowScanner) (*scans.Scan, error) {
	var s scans.Scan
	c := &s.Counts
	if err := row.Scan(
		&s.ID, &s.TenantID, &s.TriggeredAt, &s.Kind, &s.Target, &s.Status, &s.Score, &s.RiskLevel,
		&c.Critical, &c.High, &c.Medium, &c.Low, &c.Total,
		&s.ArtifactURL, &s.ReportKey, &s.DurationMS, &s.Source, &s.CommitSHA, &s.Branch, &s.Error,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// ScanRows maps and closes rows.
func ScanRows(rows *sql.Rows) ([]*scans.Scan, error) {
	defer rows.Close()
	out := []*scans.Scan{}
	for rows.Next() {
		s, err := ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// ScanErrorRows maps and closes scan error rows.
func ScanErrorRows(rows *sql.Rows) ([]*scanerrors.ScanError, error) {
	defer rows.Close()
	var out []*scanerrors.ScanError
	for rows.Next() {
		var e scanerrors.ScanError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ScanID, &e.Kind, &e.Phase, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning error row: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// AnalysisRows maps and closes analysis rows.
func AnalysisRows(rows *sql.Rows) ([]*analyst.Analysis, error) {
	defer rows.Close()
	var out []*analyst.Analysis
	for rows.Next() {
		var a analyst.Analysis
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ScanID, &a.Provider, &a.Result, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning analysis row: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// DashIfEmpty returns "-" when the input is empty/whitespace
func DashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// JSONOrWrap returns s when it is valid JSON, "{}" when blank, and otherwise
// wraps it as {"raw": s}.
func JSONOrWrap(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	if json.Valid([]byte(s)) {
		return s
	}
	b, _ := json.Marshal(map[string]string{"raw": s})
	return string(b)
}

// EscapeLike escapes special characters in LIKE patterns
func EscapeLike(s string) string {
	// Escape backslash first, then other LIKE special characters
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
