package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
	"github.com/bryanwahyu/dataguardian/internal/infra/export/sarif"
)

func (a *app) soc2Cmd() *cobra.Command {
	var (
		parallel int
		failOn   string
		patterns string
	)
	cmd := &cobra.Command{
		Use:   "soc2 <path>...",
		Short: "Scan IaC directories or files for SOC2 control gaps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold := soc2.RiskLevel(strings.ToLower(failOn))
			if threshold == "none" {
				threshold = ""
			}
			if threshold != "" && !threshold.Valid() {
				return fmt.Errorf("--fail-on %q: want high, medium, low or none", failOn)
			}

			scanner, err := a.scanner(patterns)
			if err != nil {
				return err
			}
			results, err := scanAll(cmd.Context(), scanner, args, parallel)
			if err != nil {
				return err
			}
			if err := a.renderSOC2(results); err != nil {
				return err
			}
			if n := countAtOrAbove(results, threshold); n > 0 {
				return fmt.Errorf("%d finding(s) at or above %s", n, threshold)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "maximum targets scanned at once")
	cmd.Flags().StringVar(&failOn, "fail-on", "none", "exit non-zero on findings at or above: high, medium, low or none")
	cmd.Flags().StringVar(&patterns, "patterns", "", "YAML pattern pack merged into the built-in library")
	return cmd
}

func (a *app) scanner(patternPack string) (*soc2.Scanner, error) {
	opts := []soc2.Option{
		soc2.WithLogger(a.log.Named("soc2")),
		soc2.WithMaxFileBytes(a.cfg.Scanner.MaxFileBytes),
		soc2.WithExcludeDirs(a.cfg.Scanner.ExcludeDirs...),
	}
	if patternPack == "" {
		patternPack = a.cfg.Scanner.PatternPack
	}
	if patternPack != "" {
		extra, err := soc2.LoadPatternPack(patternPack)
		if err != nil {
			return nil, err
		}
		opts = append(opts, soc2.WithLibrary(soc2.NewLibrary(extra, a.log.Named("soc2"))))
	}
	return soc2.NewScanner(opts...), nil
}

// scanAll keeps results in target order.
func scanAll(ctx context.Context, s *soc2.Scanner, targets []string, parallel int) ([]*soc2.ScanResult, error) {
	results := make([]*soc2.ScanResult, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, parallel))
	for i, target := range targets {
		g.Go(func() error {
			res, err := s.ScanRepository(ctx, target)
			if err != nil {
				return fmt.Errorf("scan %s: %w", target, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func countAtOrAbove(results []*soc2.ScanResult, threshold soc2.RiskLevel) int {
	if threshold == "" {
		return 0
	}
	n := 0
	for _, r := range results {
		for _, f := range r.Findings {
			if f.RiskLevel.Rank() >= threshold.Rank() {
				n++
			}
		}
	}
	return n
}

func (a *app) renderSOC2(results []*soc2.ScanResult) error {
	switch a.format {
	case formatJSON:
		if len(results) == 1 {
			return a.writeJSON(results[0])
		}
		return a.writeJSON(results)
	case formatSARIF:
		var findings []soc2.Finding
		for _, r := range results {
			for _, f := range r.Findings {
				// file paths are relative to each target; qualify them when several are merged
				if len(results) > 1 {
					f.File = filepath.ToSlash(filepath.Join(r.Target, f.File))
				}
				findings = append(findings, f)
			}
		}
		soc2.SortFindings(findings)
		return sarif.Write(a.out, findings, "dgscan", version)
	}
	st := a.styles()
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		renderSOC2Text(a.out, st, r)
	}
	return nil
}
