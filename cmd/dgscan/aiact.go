package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/dataguardian/internal/application/assessments"
	"github.com/bryanwahyu/dataguardian/internal/domain/aiact"
)

func (a *app) classifyCmd() *cobra.Command {
	var profilePath string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify an AI system into an EU AI Act risk tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireNotSARIF(cmd); err != nil {
				return err
			}
			var profile aiact.AISystemProfile
			if err := a.readJSON(profilePath, &profile); err != nil {
				return err
			}
			cls, err := a.assessments().ClassifyAIAct(profile)
			if err != nil {
				return err
			}
			if a.format == formatJSON {
				return a.writeJSON(cls)
			}
			renderClassificationText(a.out, a.styles(), profile.SystemName, cls)
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "-", "AI system profile as JSON (- for stdin)")
	return cmd
}

func (a *app) assessCmd() *cobra.Command {
	var (
		profilePath    string
		compliancePath string
		implemented    []string
		turnover       float64
	)
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess an AI system against the EU AI Act: score, gaps, cost and fine exposure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireNotSARIF(cmd); err != nil {
				return err
			}
			if profilePath == "-" && compliancePath == "-" {
				return fmt.Errorf("--profile and --compliance cannot both read stdin")
			}
			var profile aiact.AISystemProfile
			if err := a.readJSON(profilePath, &profile); err != nil {
				return err
			}
			compliance := map[string]bool{}
			if compliancePath != "" {
				if err := a.readJSON(compliancePath, &compliance); err != nil {
					return err
				}
			}
			for _, k := range implemented {
				if k = strings.TrimSpace(k); k != "" {
					compliance[k] = true
				}
			}

			res, err := a.assessments().AssessAIAct(cmd.Context(), assessments.AssessAIActCommand{
				TenantID:       "local",
				Profile:        profile,
				Compliance:     compliance,
				AnnualTurnover: turnover,
			})
			if err != nil {
				return err
			}
			if a.format == formatJSON {
				return a.writeJSON(res.Assessment)
			}
			renderAssessmentText(a.out, a.styles(), res.Assessment)
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "-", "AI system profile as JSON (- for stdin)")
	cmd.Flags().StringVar(&compliancePath, "compliance", "", "JSON object of requirement -> implemented")
	cmd.Flags().StringSliceVar(&implemented, "implemented", nil, "implemented requirements, e.g. human_oversight,art_12")
	cmd.Flags().Float64Var(&turnover, "turnover", 0, "annual worldwide turnover in euro (0 uses the fixed fine cap)")
	return cmd
}
