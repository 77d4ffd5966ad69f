package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hexrelief/internal/config"
)

var cfg *config.Config

// Overrides shared by the commands that run the geo stages.
var (
	flagCountry []string
	flagSize    int
	flagSamples int
	flagOut     string
)

var rootCmd = &cobra.Command{
	Use:   "hexrelief",
	Short: "3D population density relief renderer",
	Long:  "Rasterizes a hexagon population grid over a country boundary, extrudes it into a shaded 3D relief, path-traces a still and annotates it.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// addGeoFlags registers the boundary and raster overrides on cmd.
func addGeoFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&flagCountry, "country", nil, "boundary names to keep (default: boundary.names)")
	cmd.Flags().IntVar(&flagSize, "size", 0, "raster size along the longer axis (default: raster.size)")
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Lookup("country") != nil && f.Changed("country") {
		c.Boundary.Names = flagCountry
	}
	if f.Lookup("size") != nil && f.Changed("size") {
		c.Raster.Size = flagSize
	}
	if f.Lookup("samples") != nil && f.Changed("samples") {
		c.Render.Samples = flagSamples
	}
	if f.Lookup("out") != nil && f.Changed("out") {
		c.Annotate.Path = flagOut
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
