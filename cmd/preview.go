package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hexrelief/internal/pipeline"
	"github.com/sells-group/hexrelief/internal/preview"
)

var previewWidth int

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Rasterize the boundary and show the grid in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyFlags(cmd, cfg)

		p, err := pipeline.Prepare(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "prepare")
		}

		summary := preview.Summary{
			Names:  p.Boundary.Names,
			CRS:    p.Boundary.CRS,
			Ratios: p.Ratios,
			Dims:   p.Dims,
			Stats:  p.Grid.Stats(),
		}
		if m, err := pipeline.LastRun(cfg.Output.Manifest); err != nil {
			zap.L().Warn("preview: unreadable manifest", zap.String("path", cfg.Output.Manifest), zap.Error(err))
		} else if m != nil {
			summary.LastRun = m.Describe()
		}
		box := preview.Box(summary)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", preview.Heatmap(p.Grid, p.Colors, previewWidth), box)
		return err
	},
}

func init() {
	addGeoFlags(previewCmd)
	previewCmd.Flags().IntVar(&previewWidth, "width", 80, "terminal columns to draw")
	rootCmd.AddCommand(previewCmd)
}
