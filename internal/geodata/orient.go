package geodata

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Orient returns a copy of mp with every shell counter-clockwise and every
// hole clockwise, so go-geom's signed Area is never negative. Rings with
// fewer than three distinct points are left as they are.
func Orient(mp *geom.MultiPolygon) *geom.MultiPolygon {
	if mp == nil {
		return nil
	}
	layout := mp.Layout()
	stride := layout.Stride()
	flat := append([]float64(nil), mp.FlatCoords()...)

	start := 0
	for _, ends := range mp.Endss() {
		for j, end := range ends {
			ring := flat[start:end]
			start = end
			if len(ring) < 4*stride {
				continue
			}
			if xy.IsRingCounterClockwise(layout, ring) != (j == 0) {
				reverseRing(ring, stride)
			}
		}
	}
	return geom.NewMultiPolygonFlat(layout, flat, mp.Endss())
}

func reverseRing(ring []float64, stride int) {
	n := len(ring) / stride
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		for k := 0; k < stride; k++ {
			ring[i*stride+k], ring[j*stride+k] = ring[j*stride+k], ring[i*stride+k]
		}
	}
}
