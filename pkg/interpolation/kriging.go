// Package interpolation upsamples CT volumes along the slice axis with
// ordinary kriging. Abdominal scans are usually anisotropic, with slice
// spacing several times the in-plane pixel size, and the stair-stepping
// that causes is visible in any surface extracted from them. Kriging
// estimates the missing slices from a variogram fitted to the scan itself.
package interpolation

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"liverextract/pkg/volume"
)

// ErrBadFactor is returned when the upsample factor is below 1.
var ErrBadFactor = errors.New("upsample factor must be at least 1")

// Model selects the variogram family used to describe spatial correlation.
type Model int

const (
	Spherical Model = iota
	Exponential
	Gaussian
)

func (m Model) String() string {
	switch m {
	case Spherical:
		return "spherical"
	case Exponential:
		return "exponential"
	case Gaussian:
		return "gaussian"
	}
	return "unknown"
}

// Params is a fitted variogram: semivariance rises from Nugget at the origin
// toward Nugget+Sill, reaching it at (or asymptotically approaching it near)
// the Range distance.
type Params struct {
	Range  float64
	Sill   float64
	Nugget float64
	Model  Model
}

// Variogram returns the semivariance at lag h in millimeters.
func (p Params) Variogram(h float64) float64 {
	if h == 0 {
		return 0
	}
	gamma := p.Nugget
	switch p.Model {
	case Spherical:
		if h < p.Range {
			r := h / p.Range
			gamma += p.Sill * (1.5*r - 0.5*r*r*r)
		} else {
			gamma += p.Sill
		}
	case Exponential:
		gamma += p.Sill * (1 - math.Exp(-3*h/p.Range))
	case Gaussian:
		gamma += p.Sill * (1 - math.Exp(-3*h*h/(p.Range*p.Range)))
	}
	return gamma
}

// Kriging interpolates new slices between the existing slices of a volume.
// The variogram is fitted once at construction from the empirical
// semivariance of the volume's own slice pairs.
type Kriging struct {
	vol    *volume.Volume
	factor int
	params Params
}

// NewKriging builds an interpolator that inserts factor-1 estimated slices
// into every original slice gap.
func NewKriging(vol *volume.Volume, factor int) *Kriging {
	return &Kriging{
		vol:    vol,
		factor: factor,
		params: fitVariogram(vol),
	}
}

// Params returns the fitted variogram parameters.
func (k *Kriging) Params() Params {
	return k.params
}

// maxLags bounds how many slice offsets contribute to the empirical
// variogram; correlation beyond a handful of slices carries no signal
// for gap filling.
const maxLags = 6

// variogramSampleBudget caps the voxel pairs examined per lag so fitting
// stays cheap on full-resolution scans.
const variogramSampleBudget = 65536

// fitVariogram estimates variogram parameters from the volume by computing
// the empirical semivariance at the available slice lags and grid-searching
// a small family of candidate models against it.
func fitVariogram(vol *volume.Volume) Params {
	sliceSpacing := vol.Spacing[2]
	fallback := Params{Range: 4 * sliceSpacing, Sill: 1, Nugget: 0, Model: Gaussian}
	if vol.Depth < 2 {
		return fallback
	}

	plane := vol.Width * vol.Height
	stride := 1
	if plane > variogramSampleBudget {
		stride = plane / variogramSampleBudget
	}

	samples := make([]float64, 0, len(vol.Data)/stride+1)
	for i := 0; i < len(vol.Data); i += stride {
		samples = append(samples, vol.Data[i])
	}
	variance := stat.Variance(samples, nil)
	if variance == 0 {
		return fallback
	}

	lags := vol.Depth - 1
	if lags > maxLags {
		lags = maxLags
	}
	hs := make([]float64, lags)
	gammas := make([]float64, lags)
	for dz := 1; dz <= lags; dz++ {
		sum := 0.0
		count := 0
		for z := 0; z+dz < vol.Depth; z++ {
			base := z * plane
			ahead := (z + dz) * plane
			for i := 0; i < plane; i += stride {
				d := vol.Data[base+i] - vol.Data[ahead+i]
				sum += d * d / 2
				count++
			}
		}
		hs[dz-1] = float64(dz) * sliceSpacing
		gammas[dz-1] = sum / float64(count)
	}

	best := fallback
	bestErr := math.MaxFloat64
	for _, model := range []Model{Spherical, Exponential, Gaussian} {
		for _, rng := range []float64{2 * sliceSpacing, 4 * sliceSpacing, 8 * sliceSpacing} {
			for _, sill := range []float64{0.5 * variance, variance, 1.5 * variance} {
				for _, nugget := range []float64{0, 0.1 * variance} {
					p := Params{Range: rng, Sill: sill, Nugget: nugget, Model: model}
					sse := 0.0
					for i, h := range hs {
						d := p.Variogram(h) - gammas[i]
						sse += d * d
					}
					if sse < bestErr {
						bestErr = sse
						best = p
					}
				}
			}
		}
	}
	return best
}

// stencilPoint is one sample position of the interpolation stencil, as an
// offset from the target voxel's column. dz selects the slice below (0) or
// above (1) the target.
type stencilPoint struct {
	dx, dy, dz int
}

// buildStencil returns the 3x3x2 sample layout shared by the weight solve
// and the per-voxel estimate. The fixed order ties the two together.
func buildStencil() []stencilPoint {
	pts := make([]stencilPoint, 0, 18)
	for dz := 0; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				pts = append(pts, stencilPoint{dx, dy, dz})
			}
		}
	}
	return pts
}

// stencilWeights solves the ordinary kriging system for a target lying at
// fraction f of the gap between two consecutive slices. On a regular grid
// the system depends only on the stencil geometry, never on the voxel
// values, so one solve covers every voxel interpolated at that fraction.
func (k *Kriging) stencilWeights(stencil []stencilPoint, f float64) ([]float64, error) {
	n := len(stencil)
	sx, sy, sz := k.vol.Spacing[0], k.vol.Spacing[1], k.vol.Spacing[2]

	pos := make([][3]float64, n)
	for i, p := range stencil {
		pos[i] = [3]float64{float64(p.dx) * sx, float64(p.dy) * sy, float64(p.dz) * sz}
	}
	target := [3]float64{0, 0, f * sz}

	// Ordinary kriging system with a Lagrange row forcing the weights to
	// sum to 1. The variogram block gets a tiny nugget on its diagonal for
	// numerical stability; the constraint row stays exact so constant
	// fields are reproduced without bias.
	K := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			K.Set(i, j, k.params.Variogram(dist(pos[i], pos[j])))
		}
		K.Set(i, i, K.At(i, i)+1e-6)
		K.Set(i, n, 1)
		K.Set(n, i, 1)
	}

	rhs := mat.NewVecDense(n+1, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, k.params.Variogram(dist(pos[i], target)))
	}
	rhs.SetVec(n, 1)

	var qr mat.QR
	qr.Factorize(K)
	var w mat.VecDense
	if err := qr.SolveVecTo(&w, false, rhs); err != nil {
		// Near-singular geometry; a stronger ridge on the variogram block
		// trades a little smoothing for a solvable system.
		for i := 0; i < n; i++ {
			K.Set(i, i, K.At(i, i)+1e-3)
		}
		qr.Factorize(K)
		if err := qr.SolveVecTo(&w, false, rhs); err != nil {
			return nil, fmt.Errorf("kriging system is singular: %w", err)
		}
	}

	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[i] = w.AtVec(i)
	}
	return weights, nil
}

func dist(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Interpolate returns a volume with factor-1 kriged slices inserted into
// every slice gap. Original slices are copied through unchanged and the
// slice spacing shrinks by the factor.
func (k *Kriging) Interpolate() (*volume.Volume, error) {
	if k.factor < 1 {
		return nil, ErrBadFactor
	}
	if k.vol.Depth < 2 {
		return nil, fmt.Errorf("volume has %d slices, interpolation needs at least 2", k.vol.Depth)
	}
	if k.factor == 1 {
		return k.vol.Clone(), nil
	}

	stencil := buildStencil()
	weights := make([][]float64, k.factor)
	for j := 1; j < k.factor; j++ {
		w, err := k.stencilWeights(stencil, float64(j)/float64(k.factor))
		if err != nil {
			return nil, err
		}
		weights[j] = w
	}

	src := k.vol
	out := volume.New(src.Width, src.Height, (src.Depth-1)*k.factor+1)
	out.Spacing = [3]float64{src.Spacing[0], src.Spacing[1], src.Spacing[2] / float64(k.factor)}
	out.Origin = src.Origin

	workers := runtime.GOMAXPROCS(0)
	if workers > out.Depth {
		workers = out.Depth
	}
	if workers <= 1 {
		for z := 0; z < out.Depth; z++ {
			k.fillSlice(out, stencil, weights, z)
		}
		return out, nil
	}

	var wg sync.WaitGroup
	chunk := (out.Depth + workers - 1) / workers
	for start := 0; start < out.Depth; start += chunk {
		end := start + chunk
		if end > out.Depth {
			end = out.Depth
		}
		wg.Add(1)
		go func(z0, z1 int) {
			defer wg.Done()
			for z := z0; z < z1; z++ {
				k.fillSlice(out, stencil, weights, z)
			}
		}(start, end)
	}
	wg.Wait()
	return out, nil
}

// fillSlice writes one output slice: originals are copied, intermediates
// are estimated with the precomputed weights. Stencil columns outside the
// volume clamp to the border, matching the replicate convention of the
// preprocessing filters.
func (k *Kriging) fillSlice(out *volume.Volume, stencil []stencilPoint, weights [][]float64, z int) {
	src := k.vol
	if z%k.factor == 0 {
		out.SetSlice(z, src.Slice(z/k.factor))
		return
	}

	zLow := z / k.factor
	w := weights[z%k.factor]
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			est := 0.0
			for i, p := range stencil {
				nx := clamp(x+p.dx, 0, src.Width-1)
				ny := clamp(y+p.dy, 0, src.Height-1)
				est += w[i] * src.At(nx, ny, zLow+p.dz)
			}
			out.Set(x, y, z, est)
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
