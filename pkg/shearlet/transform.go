// Package shearlet detects edges and their orientations with a bank of
// directional band-pass filters applied in the frequency domain. Each
// filter pairs a dyadic radial window with a sheared angular window, and
// keeps only one half plane so the response magnitude peaks on the edge
// itself instead of ringing around it.
package shearlet

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Transform holds the filter bank geometry. The zero value is not usable,
// construct with NewTransform.
type Transform struct {
	scales int
	shears int
	sigma  float64
}

// EdgeInfo carries per-pixel edge strength and the orientation of the
// strongest response. Orientations are edge normal angles in radians
// within [-pi/2, pi/2).
type EdgeInfo struct {
	Edges        []float64
	Orientations []float64
}

// NewTransform returns a transform with three dyadic scales and five shear
// steps per frequency cone.
func NewTransform() *Transform {
	return &Transform{scales: 3, shears: 2, sigma: 0.25}
}

// DetectEdges returns the normalized edge strength map of a grayscale
// image, one value per pixel in [0, 1].
func (t *Transform) DetectEdges(data []float64, width, height int) ([]float64, error) {
	info, err := t.DetectEdgesWithOrientation(data, width, height)
	return info.Edges, err
}

// DetectEdgesWithOrientation computes edge strength and orientation. The
// image is replicate-padded to power-of-two dimensions, transformed once,
// and each filter response comes back through an inverse transform. The
// strongest filter at a pixel decides its orientation.
func (t *Transform) DetectEdgesWithOrientation(data []float64, width, height int) (EdgeInfo, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return EdgeInfo{}, fmt.Errorf("image is %dx%d but carries %d samples", width, height, len(data))
	}

	info := EdgeInfo{
		Edges:        make([]float64, len(data)),
		Orientations: make([]float64, len(data)),
	}
	if flat(data) {
		return info, nil
	}

	pw, ph := nextPow2(width), nextPow2(height)
	spec := fft2D(replicatePad(data, width, height, pw, ph), pw, ph)

	window := make([]float64, pw*ph)
	filtered := make([]complex128, pw*ph)
	for _, f := range t.bank() {
		f.fill(window, pw, ph, t.sigma)
		for i := range spec {
			filtered[i] = spec[i] * complex(window[i], 0)
		}
		resp := ifft2D(filtered, pw, ph)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				if mag := cmplx.Abs(resp[y*pw+x]); mag > info.Edges[i] {
					info.Edges[i] = mag
					info.Orientations[i] = f.angle
				}
			}
		}
	}

	maxEdge := 0.0
	for _, e := range info.Edges {
		if e > maxEdge {
			maxEdge = e
		}
	}
	if maxEdge > 0 {
		for i := range info.Edges {
			info.Edges[i] /= maxEdge
		}
	}
	return info, nil
}

// filterSpec describes one directional band-pass filter: a dyadic radial
// band around center, an angular window around slope, and the cone it
// lives in. Horizontal cone filters select mostly-vertical edges.
type filterSpec struct {
	center     float64
	slope      float64
	horizontal bool
	angle      float64
}

func (t *Transform) bank() []filterSpec {
	var bank []filterSpec
	for j := 0; j < t.scales; j++ {
		center := 0.25 / math.Pow(2, float64(j))
		for k := -t.shears; k <= t.shears; k++ {
			slope := 0.0
			if t.shears > 0 {
				slope = float64(k) / float64(t.shears)
			}
			bank = append(bank,
				filterSpec{center: center, slope: slope, horizontal: true, angle: normalAngle(1, slope)},
				filterSpec{center: center, slope: slope, horizontal: false, angle: normalAngle(slope, 1)},
			)
		}
	}
	return bank
}

// fill renders the filter over the padded frequency grid. Only the half
// plane with a positive axis frequency is kept, which makes the spatial
// response analytic: its magnitude is the local edge envelope.
func (f filterSpec) fill(window []float64, width, height int, sigma float64) {
	for y := 0; y < height; y++ {
		fy := freq(y, height)
		for x := 0; x < width; x++ {
			fx := freq(x, width)
			window[y*width+x] = 0

			axis, off := fx, fy
			if !f.horizontal {
				axis, off = fy, fx
			}
			if axis <= 0 {
				continue
			}
			r := radialWindow(math.Hypot(fx, fy), f.center)
			if r == 0 {
				continue
			}
			d := off/axis - f.slope
			window[y*width+x] = r * math.Exp(-d*d/(2*sigma*sigma))
		}
	}
}

// freq maps a DFT bin index to a normalized frequency in [-0.5, 0.5).
func freq(i, n int) float64 {
	if i > n/2 {
		i -= n
	}
	return float64(i) / float64(n)
}

// radialWindow is a cosine bump over one octave either side of center on a
// log-frequency axis. It vanishes at zero frequency, so constant images
// produce no response at all.
func radialWindow(rho, center float64) float64 {
	if rho <= 0 {
		return 0
	}
	l := math.Log2(rho / center)
	if l <= -1 || l >= 1 {
		return 0
	}
	c := math.Cos(math.Pi / 2 * l)
	return c * c
}

// normalAngle folds the direction (dx, dy) into an edge normal angle in
// [-pi/2, pi/2).
func normalAngle(dx, dy float64) float64 {
	a := math.Atan2(dy, dx)
	if a >= math.Pi/2 {
		a -= math.Pi
	}
	if a < -math.Pi/2 {
		a += math.Pi
	}
	return a
}

func flat(data []float64) bool {
	for _, v := range data {
		if v != data[0] {
			return false
		}
	}
	return true
}

// replicatePad grows the image to the padded size by repeating the last
// row and column, which adds no artificial steps inside the frame.
func replicatePad(data []float64, width, height, pw, ph int) []float64 {
	if pw == width && ph == height {
		return data
	}
	out := make([]float64, pw*ph)
	for y := 0; y < ph; y++ {
		sy := y
		if sy >= height {
			sy = height - 1
		}
		for x := 0; x < pw; x++ {
			sx := x
			if sx >= width {
				sx = width - 1
			}
			out[y*pw+x] = data[sy*width+sx]
		}
	}
	return out
}
