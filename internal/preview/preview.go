// Package preview draws a rasterized grid in the terminal so a run can be
// checked before the path tracer is started.
package preview

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/sells-group/hexrelief/internal/aspect"
	"github.com/sells-group/hexrelief/internal/ramp"
	"github.com/sells-group/hexrelief/internal/raster"
)

const halfBlock = "▀"

var (
	borderCol  = lipgloss.Color("#243141")
	accentFg   = lipgloss.Color("#f2b134")
	dimFg      = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(dimFg)
)

// Heatmap renders g at most width terminal cells wide. Each cell shows two
// blocks of the grid stacked vertically. Blocks are reduced to their
// largest value; blocks with no data are left blank.
func Heatmap(g *raster.Grid, colors []colorful.Color, width int) string {
	if g == nil || g.Rows == 0 || g.Cols == 0 || len(colors) == 0 || width < 1 {
		return ""
	}
	step := 1
	if g.Cols > width {
		step = (g.Cols + width - 1) / width
	}
	cols := (g.Cols + step - 1) / step
	rows := (g.Rows + step - 1) / step

	s := g.Stats()
	lo, hi := s.Min, s.Max

	var b strings.Builder
	for r := 0; r < rows; r += 2 {
		for c := 0; c < cols; c++ {
			top := block(g, r, c, step)
			bottom := math.NaN()
			if r+1 < rows {
				bottom = block(g, r+1, c, step)
			}
			b.WriteString(cell(top, bottom, colors, lo, hi))
		}
		if r+2 < rows {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// block returns the largest non-null value in the step×step block at
// (r, c), or NaN.
func block(g *raster.Grid, r, c, step int) float64 {
	out := math.NaN()
	for y := r * step; y < min((r+1)*step, g.Rows); y++ {
		for x := c * step; x < min((c+1)*step, g.Cols); x++ {
			v := g.At(y, x)
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(out) || v > out {
				out = v
			}
		}
	}
	return out
}

func cell(top, bottom float64, colors []colorful.Color, lo, hi float64) string {
	switch {
	case math.IsNaN(top) && math.IsNaN(bottom):
		return " "
	case math.IsNaN(bottom):
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(ramp.Pick(colors, top, lo, hi).Hex())).
			Render(halfBlock)
	case math.IsNaN(top):
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color(ramp.Pick(colors, bottom, lo, hi).Hex())).
			Render("▄")
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ramp.Pick(colors, top, lo, hi).Hex())).
		Background(lipgloss.Color(ramp.Pick(colors, bottom, lo, hi).Hex())).
		Render(halfBlock)
}

// Summary describes a prepared grid.
type Summary struct {
	Names  []string
	CRS    string
	Ratios aspect.Ratios
	Dims   aspect.Dims
	Stats  raster.Stats

	LastRun string // previous render, if a manifest exists
}

// Box renders s as a bordered key/value panel.
func Box(s Summary) string {
	names := strings.Join(s.Names, ", ")
	if names == "" {
		names = "(all features)"
	}
	rows := [][2]string{
		{"boundary", names},
		{"crs", s.CRS},
		{"ratios", fmt.Sprintf("%.3f × %.3f", s.Ratios.Width, s.Ratios.Height)},
		{"raster", fmt.Sprintf("%d cols × %d rows", s.Dims.Cols, s.Dims.Rows)},
		{"cells", fmt.Sprintf("%d of %d populated", s.Stats.Count, s.Dims.Cols*s.Dims.Rows)},
	}
	if s.Stats.Count > 0 {
		rows = append(rows,
			[2]string{"range", fmt.Sprintf("%g to %g", s.Stats.Min, s.Stats.Max)},
			[2]string{"total", fmt.Sprintf("%.0f", s.Stats.Sum)},
		)
	}

	if s.LastRun != "" {
		rows = append(rows, [2]string{"last run", s.LastRun})
	}

	lines := []string{titleStyle.Render("hexrelief preview")}
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-9s", r[0]))+" "+r[1])
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
