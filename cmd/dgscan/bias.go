package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/dataguardian/internal/application/assessments"
	"github.com/bryanwahyu/dataguardian/internal/domain/fairness"
)

func (a *app) biasCmd() *cobra.Command {
	var (
		modelFile    string
		metadataPath string
	)
	cmd := &cobra.Command{
		Use:   "bias",
		Short: "Score a model for bias from test data, precomputed results or metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireNotSARIF(cmd); err != nil {
				return err
			}
			var meta fairness.ModelMetadata
			if metadataPath != "" {
				if err := a.readJSON(metadataPath, &meta); err != nil {
					return err
				}
			}
			if modelFile == "" && meta.ModelName == "" {
				return fmt.Errorf("either --model-file or a model_name in --metadata is required")
			}

			res, err := a.assessments().AssessBias(cmd.Context(), assessments.AssessBiasCommand{
				TenantID:  "local",
				ModelFile: modelFile,
				Metadata:  meta,
			})
			if err != nil {
				return err
			}
			if a.format == formatJSON {
				return a.writeJSON(res.Assessment)
			}
			renderBiasText(a.out, a.styles(), res.Assessment)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelFile, "model-file", "", "model artifact name, used by the metadata heuristic")
	cmd.Flags().StringVar(&metadataPath, "metadata", "", "model metadata as JSON, may embed bias_test_data (- for stdin)")
	return cmd
}
