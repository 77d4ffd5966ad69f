package aspect

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestBoundsOf(t *testing.T) {
	flat := []float64{3, 1, 7, 1, 7, 4, 3, 4, 3, 1}
	mp := geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}})

	b, err := BoundsOf(mp)
	require.NoError(t, err)
	assert.Equal(t, BBox{MinX: 3, MinY: 1, MaxX: 7, MaxY: 4}, b)
	assert.InDelta(t, 4.0, b.Width(), 1e-12)
	assert.InDelta(t, 3.0, b.Height(), 1e-12)
}

func TestBoundsOf_Empty(t *testing.T) {
	_, err := BoundsOf(geom.NewMultiPolygon(geom.XY))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateBounds))

	_, err = BoundsOf(nil)
	require.Error(t, err)
}

func TestCorners(t *testing.T) {
	c := BBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 1}.Corners()
	assert.Equal(t, Point{0, 0}, c.BottomLeft)
	assert.Equal(t, Point{2, 0}, c.BottomRight)
	assert.Equal(t, Point{0, 1}, c.TopLeft)
	assert.Equal(t, Point{2, 1}, c.TopRight)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		box  BBox
		want Ratios
	}{
		{"wide", BBox{0, 0, 4, 2}, Ratios{Width: 1, Height: 0.5}},
		{"tall", BBox{0, 0, 2, 4}, Ratios{Width: 0.5, Height: 1.1}},
		{"square takes the else branch", BBox{0, 0, 3, 3}, Ratios{Width: 1, Height: 1.1}},
		{"offset origin", BBox{100, -50, 110, -45}, Ratios{Width: 1, Height: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.box)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Width, got.Width, 1e-12)
			assert.InDelta(t, tt.want.Height, got.Height, 1e-12)
		})
	}
}

func TestCompute_Degenerate(t *testing.T) {
	for _, b := range []BBox{{0, 0, 0, 1}, {0, 0, 1, 0}, {0, 0, 0, 0}} {
		_, err := Compute(b)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDegenerateBounds))
	}
}

func TestCompute_PolicyHoldsForRandomBoxes(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		x0, y0 := r.Float64()*1e6-5e5, r.Float64()*1e6-5e5
		b := BBox{MinX: x0, MinY: y0, MaxX: x0 + 1 + r.Float64()*1e5, MaxY: y0 + 1 + r.Float64()*1e5}

		require.LessOrEqual(t, b.MinX, b.MaxX)
		require.LessOrEqual(t, b.MinY, b.MaxY)

		got, err := Compute(b)
		require.NoError(t, err)
		if b.Width() > b.Height() {
			assert.Equal(t, 1.0, got.Width)
			assert.Greater(t, got.Height, 0.0)
			assert.LessOrEqual(t, got.Height, 1.0)
		} else {
			assert.Equal(t, HeightBias, got.Height)
			assert.Greater(t, got.Width, 0.0)
			assert.LessOrEqual(t, got.Width, 1.0)
		}
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		size int
		r    Ratios
		want Dims
	}{
		{100, Ratios{1, 1}, Dims{Cols: 100, Rows: 100}},
		{100, Ratios{1, 0.5}, Dims{Cols: 100, Rows: 50}},
		{100, Ratios{0.5, 1.1}, Dims{Cols: 50, Rows: 110}},
		{1000, Ratios{1, 0.9999}, Dims{Cols: 1000, Rows: 999}},
		{7, Ratios{1, 1.0 / 3}, Dims{Cols: 7, Rows: 2}},
	}
	for _, tt := range tests {
		got := Dimensions(tt.size, tt.r)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, Dimensions(tt.size, tt.r), "deterministic")
	}
}

func TestDims_Valid(t *testing.T) {
	assert.True(t, Dims{1, 1}.Valid())
	assert.False(t, Dims{0, 5}.Valid())
	assert.False(t, Dims{5, 0}.Valid())
}
