package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hexrelief/internal/annotate"
	"github.com/sells-group/hexrelief/internal/pipeline"
)

var annotateIn string

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Draw the configured labels onto an existing render",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyFlags(cmd, cfg)

		src := cfg.Render.Path
		if annotateIn != "" {
			src = annotateIn
		}

		spec := pipeline.AnnotationSpec(cfg)
		if err := annotate.CheckFonts(spec); err != nil {
			return err
		}
		if err := annotate.Annotate(cmd.Context(), src, cfg.Annotate.Path, spec); err != nil {
			return eris.Wrap(err, "annotate")
		}
		return nil
	},
}

func init() {
	annotateCmd.Flags().StringVar(&annotateIn, "in", "", "source image (default: render.path)")
	annotateCmd.Flags().StringVar(&flagOut, "out", "", "annotated image path (default: annotate.path)")
	rootCmd.AddCommand(annotateCmd)
}
