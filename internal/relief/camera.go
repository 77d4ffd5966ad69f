package relief

import (
	"math"

	"github.com/fogleman/pt/pt"
	"github.com/rotisserie/eris"
)

// DefaultFOV is the vertical field of view used when a camera asks for
// fov <= 0. The path tracer has no orthographic projection; a narrow
// perspective stands in for it.
const DefaultFOV = 25.0

// Camera orbits the mesh center. Theta is the azimuth in degrees (0 looks
// north from the south side), Phi the elevation above the horizon in
// degrees, Zoom scales the orbit distance (smaller is closer) and FOV is
// the vertical field of view in degrees.
type Camera struct {
	Theta float64
	Phi   float64
	Zoom  float64
	FOV   float64
}

// Light is a distant emitter placed around the mesh. Direction is the
// azimuth in degrees clockwise from north, Altitude degrees above the
// horizon.
type Light struct {
	Direction float64
	Altitude  float64
	Color     string
	Intensity float64
}

// Lights zips parallel per-light settings. Every slice must have the same
// length.
func Lights(directions, altitudes []float64, colors []string, intensities []float64) ([]Light, error) {
	n := len(directions)
	if len(altitudes) != n || len(colors) != n || len(intensities) != n {
		return nil, eris.Errorf("relief: light settings differ in length: %d directions, %d altitudes, %d colors, %d intensities",
			n, len(altitudes), len(colors), len(intensities))
	}
	out := make([]Light, n)
	for i := range out {
		out[i] = Light{Direction: directions[i], Altitude: altitudes[i], Color: colors[i], Intensity: intensities[i]}
	}
	return out, nil
}

func (c Camera) fov() float64 {
	if c.FOV <= 0 {
		return DefaultFOV
	}
	return c.FOV
}

// eye places the camera so that a zoom of 1 frames the whole mesh.
func (c Camera) eye(m *Mesh) (eye, center, up pt.Vector) {
	center = m.Center()
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	radius := math.Max(m.Diagonal(), m.MaxHeight) / 2
	dist := radius / math.Tan(c.fov()*math.Pi/360) * zoom

	theta := c.Theta * math.Pi / 180
	phi := math.Max(-89.9, math.Min(89.9, c.Phi)) * math.Pi / 180
	dir := pt.V(math.Cos(phi)*math.Sin(theta), -math.Cos(phi)*math.Cos(theta), math.Sin(phi))

	return center.Add(dir.MulScalar(dist)), center, pt.V(0, 0, 1)
}

// lookAt builds the path tracer camera for m.
func (c Camera) lookAt(m *Mesh) pt.Camera {
	eye, center, up := c.eye(m)
	return pt.LookAt(eye, center, up, c.fov())
}

// emitter turns l into a spherical light far from m. The sphere's
// emittance is Intensity/100.
func (l Light) emitter(m *Mesh) (pt.Shape, error) {
	col, err := hexColor(l.Color)
	if err != nil {
		return nil, err
	}
	az := l.Direction * math.Pi / 180
	alt := l.Altitude * math.Pi / 180
	dir := pt.V(math.Cos(alt)*math.Sin(az), math.Cos(alt)*math.Cos(az), math.Sin(alt))

	d := math.Max(m.Diagonal(), 1)
	pos := m.Center().Add(dir.MulScalar(4 * d))
	return pt.NewSphere(pos, d/4, pt.LightMaterial(col, l.Intensity/100)), nil
}
