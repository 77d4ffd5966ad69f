package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hexrelief/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"render", "preview", "annotate", "fetch"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hexrelief", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRenderCommand_Flags(t *testing.T) {
	for _, name := range []string{"country", "size", "samples", "out"} {
		assert.NotNil(t, renderCmd.Flags().Lookup(name), "render should have --%s flag", name)
	}
}

func TestPreviewCommand_Flags(t *testing.T) {
	flag := previewCmd.Flags().Lookup("width")
	require.NotNil(t, flag)
	assert.Equal(t, "80", flag.DefValue)
	assert.NotNil(t, previewCmd.Flags().Lookup("country"))
	assert.Nil(t, previewCmd.Flags().Lookup("samples"))
}

func TestFetchCommand_Flags(t *testing.T) {
	flag := fetchCmd.Flags().Lookup("ext")
	require.NotNil(t, flag)
	assert.Equal(t, ".gpkg", flag.DefValue)
}

func TestAnnotateCommand_Flags(t *testing.T) {
	assert.NotNil(t, annotateCmd.Flags().Lookup("in"))
	assert.NotNil(t, annotateCmd.Flags().Lookup("out"))
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addGeoFlags(cmd)
	cmd.Flags().IntVar(&flagSamples, "samples", 0, "")
	cmd.Flags().StringVar(&flagOut, "out", "", "")

	c := &config.Config{
		Boundary: config.BoundaryConfig{Names: []string{"Lisboa"}},
		Raster:   config.RasterConfig{Size: 1000},
		Render:   config.RenderConfig{Samples: 300},
		Annotate: config.AnnotateConfig{Path: "out/relief_annotated.png"},
	}

	require.NoError(t, cmd.ParseFlags([]string{"--size", "250", "--country", "Porto,Braga"}))
	applyFlags(cmd, c)

	assert.Equal(t, 250, c.Raster.Size)
	assert.Equal(t, []string{"Porto", "Braga"}, c.Boundary.Names)
	assert.Equal(t, 300, c.Render.Samples, "unset flags keep config values")
	assert.Equal(t, "out/relief_annotated.png", c.Annotate.Path)
}

func TestApplyFlags_MissingFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	c := &config.Config{Raster: config.RasterConfig{Size: 1000}}
	applyFlags(cmd, c)
	assert.Equal(t, 1000, c.Raster.Size)
}
