package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hexrelief/internal/pipeline"
)

type renderOutput struct {
	RunID     string                 `json:"run_id"`
	Render    string                 `json:"render"`
	Annotated string                 `json:"annotated"`
	Manifest  string                 `json:"manifest,omitempty"`
	Cols      int                    `json:"cols"`
	Rows      int                    `json:"rows"`
	Stages    []pipeline.StageResult `json:"stages"`
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Run the full pipeline and write the annotated relief",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyFlags(cmd, cfg)

		result, err := pipeline.Run(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("relief rendered",
			zap.String("run_id", result.RunID),
			zap.String("output", result.AnnotatedPath),
		)

		out := renderOutput{
			RunID:     result.RunID,
			Render:    result.RenderPath,
			Annotated: result.AnnotatedPath,
			Manifest:  result.ManifestPath,
			Cols:      result.Prepared.Dims.Cols,
			Rows:      result.Prepared.Dims.Rows,
			Stages:    result.Stages,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	addGeoFlags(renderCmd)
	renderCmd.Flags().IntVar(&flagSamples, "samples", 0, "path tracer samples per pixel (default: render.samples)")
	renderCmd.Flags().StringVar(&flagOut, "out", "", "annotated image path (default: annotate.path)")
	rootCmd.AddCommand(renderCmd)
}
