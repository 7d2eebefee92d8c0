package soc2

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bryanwahyu/dataguardian/internal/domain/recommend"
)

// ScanType is the scan_type reported on every SOC2 result.
const ScanType = "soc2"

const (
	defaultMaxFileBytes = 2 << 20
	maxSnippetRunes     = 200
)

// ScanResult is the aggregated outcome of one repository scan. JSON field
// names are consumed verbatim by report renderers.
type ScanResult struct {
	ScanType             string                     `json:"scan_type"`
	Target               string                     `json:"target"`
	Findings             []Finding                  `json:"findings"`
	Summary              Summary                    `json:"summary"`
	Totals               LevelCounts                `json:"totals"`
	ComplianceScore      int                        `json:"compliance_score"`
	TechnologiesDetected []Technology               `json:"technologies_detected"`
	TSCChecklist         map[string]ChecklistEntry  `json:"tsc_checklist"`
	FilesScanned         int                        `json:"files_scanned"`
	IaCFilesScanned      int                        `json:"iac_files_scanned"`
	SkippedFiles         []SkippedFile              `json:"skipped_files"`
	Recommendations      []recommend.Recommendation `json:"recommendations"`
}

// Scanner applies a pattern library to files and repositories.
type Scanner struct {
	lib          *Library
	log          *zap.SugaredLogger
	maxFileBytes int64
	excludeDirs  map[string]struct{}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLibrary replaces the built-in pattern library.
func WithLibrary(lib *Library) Option {
	return func(s *Scanner) {
		if lib != nil {
			s.lib = lib
		}
	}
}

// WithLogger sets the logger used for skipped files and pattern diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Scanner) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxFileBytes skips files larger than n bytes. Zero keeps the default.
func WithMaxFileBytes(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxFileBytes = n
		}
	}
}

// WithExcludeDirs skips directories with any of the given base names.
func WithExcludeDirs(dirs ...string) Option {
	return func(s *Scanner) {
		for _, d := range dirs {
			if d = strings.TrimSpace(d); d != "" {
				s.excludeDirs[d] = struct{}{}
			}
		}
	}
}

// NewScanner builds a Scanner over DefaultLibrary unless overridden.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		lib:          DefaultLibrary(),
		log:          zap.NewNop().Sugar(),
		maxFileBytes: defaultMaxFileBytes,
		excludeDirs:  map[string]struct{}{".git": {}},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ScanContent returns one finding per pattern match, ordered by pattern then offset.
func (s *Scanner) ScanContent(file, content string, tech Technology) []Finding {
	var out []Finding
	for _, p := range s.lib.PatternsFor(tech) {
		for _, m := range p.FindAll(content) {
			out = append(out, Finding{
				PatternID:      p.ID,
				File:           file,
				Line:           strings.Count(content[:m[0]], "\n") + 1,
				Description:    p.Description,
				RiskLevel:      p.Severity,
				Recommendation: p.Recommendation,
				Category:       p.Category,
				Technology:     tech,
				MatchedSnippet: enclosingLine(content, m[0]),
				TSCCriteria:    CriteriaFor(p.Description, p.Category),
			})
		}
	}
	return out
}

// ScanFile reads path and scans it as tech. Read and decode failures are returned.
func (s *Scanner) ScanFile(path string, tech Technology) ([]Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if isBinary(data) {
		return nil, fmt.Errorf("%s: binary content", path)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: not valid UTF-8", path)
	}
	return s.ScanContent(filepath.ToSlash(path), string(data), tech), nil
}

// ScanRepository walks root in lexical order, scanning every recognised file.
// Only a missing or unreadable root is an error; per-file problems are recorded
// in SkippedFiles. Cancellation is checked between files. A symlinked root is
// resolved first; symlinks below it are skipped.
func (s *Scanner) ScanRepository(ctx context.Context, target string) (*ScanResult, error) {
	root, err := filepath.EvalSymlinks(target)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}

	acc := &accumulator{techs: make(map[Technology]struct{})}
	if !info.IsDir() {
		s.scanOne(acc, root, filepath.Base(target), info.Size())
		return acc.result(target), nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			acc.skip(rel, walkErr.Error())
			s.log.Debugw("skipping unreadable path", "path", rel, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, ok := s.excludeDirs[d.Name()]; ok && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			acc.skip(rel, "not a regular file")
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			acc.skip(rel, err.Error())
			return nil
		}
		s.scanOne(acc, path, rel, fi.Size())
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("walk %s: %w", target, err)
	}
	return acc.result(target), nil
}

func (s *Scanner) scanOne(acc *accumulator, path, rel string, size int64) {
	acc.files++
	if size > s.maxFileBytes {
		acc.skip(rel, fmt.Sprintf("larger than %d bytes", s.maxFileBytes))
		s.log.Debugw("skipping oversized file", "path", rel, "size", size)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		acc.skip(rel, err.Error())
		s.log.Debugw("skipping unreadable file", "path", rel, "error", err)
		return
	}
	if isBinary(data) {
		acc.skip(rel, "binary content")
		return
	}
	if !utf8.Valid(data) {
		acc.skip(rel, "not valid UTF-8")
		return
	}
	content := string(data)
	tech, ok := ClassifyContent(rel, content)
	if !ok {
		return
	}
	acc.iacFiles++
	acc.techs[tech] = struct{}{}
	acc.findings = append(acc.findings, s.ScanContent(rel, content, tech)...)
}

type accumulator struct {
	files    int
	iacFiles int
	techs    map[Technology]struct{}
	findings []Finding
	skipped  []SkippedFile
}

func (a *accumulator) skip(path, reason string) {
	a.skipped = append(a.skipped, SkippedFile{Path: path, Reason: reason})
}

func (a *accumulator) result(target string) *ScanResult {
	techs := make([]Technology, 0, len(a.techs))
	for _, t := range Technologies() {
		if _, ok := a.techs[t]; ok {
			techs = append(techs, t)
		}
	}
	r := Assemble(target, a.findings, a.iacFiles, techs)
	r.FilesScanned = a.files
	if a.skipped != nil {
		r.SkippedFiles = a.skipped
	}
	return r
}

// Assemble builds a ScanResult from findings gathered elsewhere, computing the
// summary, score, checklist and recommendations.
func Assemble(target string, findings []Finding, iacFiles int, techs []Technology) *ScanResult {
	if findings == nil {
		findings = []Finding{}
	}
	if techs == nil {
		techs = []Technology{}
	}
	summary, totals := Summarize(findings)
	score, checklist := Score(findings, iacFiles)
	return &ScanResult{
		ScanType:             ScanType,
		Target:               target,
		Findings:             findings,
		Summary:              summary,
		Totals:               totals,
		ComplianceScore:      score,
		TechnologiesDetected: techs,
		TSCChecklist:         checklist,
		FilesScanned:         iacFiles,
		IaCFilesScanned:      iacFiles,
		SkippedFiles:         []SkippedFile{},
		Recommendations:      Recommendations(findings),
	}
}

// Recommendations collapses findings into one recommendation per risk pattern.
func Recommendations(findings []Finding) []recommend.Recommendation {
	var b recommend.Builder
	for _, f := range findings {
		b.Add(recommend.Item{
			Key:         "soc2:" + f.ID(),
			Title:       f.Description,
			Severity:    severityOf(f.RiskLevel),
			Category:    string(f.Category),
			Description: f.Recommendation,
			Steps: []string{
				f.Recommendation,
				"Re-run the SOC2 scan and confirm the finding no longer appears.",
			},
			File:     f.File,
			Criteria: f.TSCCriteria,
			Source:   ScanType,
		})
	}
	return b.Build()
}

func severityOf(r RiskLevel) recommend.Severity {
	switch r {
	case RiskHigh:
		return recommend.SeverityHigh
	case RiskMedium:
		return recommend.SeverityMedium
	case RiskLow:
		return recommend.SeverityLow
	}
	return recommend.SeverityInfo
}

// SortFindings orders findings by file, line, then description.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Description < b.Description
	})
}

func enclosingLine(content string, offset int) string {
	start := strings.LastIndexByte(content[:offset], '\n') + 1
	end := strings.IndexByte(content[offset:], '\n')
	if end < 0 {
		end = len(content)
	} else {
		end += offset
	}
	line := strings.TrimSpace(content[start:end])
	if utf8.RuneCountInString(line) > maxSnippetRunes {
		line = string([]rune(line)[:maxSnippetRunes])
	}
	return line
}
