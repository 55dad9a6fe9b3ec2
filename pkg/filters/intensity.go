package filters

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"liverextract/pkg/volume"
)

// histogramBins is the number of intensity bins used when equalizing. CT
// volumes span a few thousand distinct values, so 512 bins keep the remap
// smooth without flattening genuine tissue contrast.
const histogramBins = 512

// HistogramEqualize spreads the volume's intensities so their cumulative
// distribution becomes approximately linear between the current minimum and
// maximum. Flat regions of the histogram get compressed and crowded regions
// stretched, which lifts the soft tissue contrast the growing step relies
// on.
func HistogramEqualize(vol *volume.Volume) *volume.Volume {
	min, max := vol.MinMax()
	if max <= min {
		return vol.Clone()
	}

	binFor := func(s float64) int {
		b := int((s - min) / (max - min) * histogramBins)
		if b >= histogramBins {
			b = histogramBins - 1
		}
		return b
	}

	var hist [histogramBins]int
	for _, s := range vol.Data {
		hist[binFor(s)]++
	}

	// Cumulative counts, then the usual remap anchored at the first
	// occupied bin so the darkest tissue stays at the volume minimum.
	var cdf [histogramBins]float64
	total := 0
	for b, n := range hist {
		total += n
		cdf[b] = float64(total)
	}
	cdfMin := 0.0
	for _, c := range cdf {
		if c > 0 {
			cdfMin = c
			break
		}
	}
	denom := float64(total) - cdfMin
	if denom <= 0 {
		return vol.Clone()
	}

	out := volume.NewLike(vol)
	for i, s := range vol.Data {
		out.Data[i] = min + (cdf[binFor(s)]-cdfMin)/denom*(max-min)
	}
	return out
}

// Sigmoid remaps the whole volume through a logistic curve whose center and
// width are estimated from a small square region of one slice. The region
// starts at (px, py) on the given slice and extends regionSize samples in
// each direction, clamped to the slice bounds. The curve's midpoint beta is
// the region mean and its width alpha is the region's intensity range, so
// tissue resembling the region lands on the steep part of the curve while
// everything brighter or darker saturates. Output values span the chosen
// slice's own minimum and maximum.
func Sigmoid(vol *volume.Volume, sliceIdx, px, py, regionSize int) (*volume.Volume, error) {
	if sliceIdx < 0 || sliceIdx >= vol.Depth {
		return nil, fmt.Errorf("sigmoid filter: slice %d out of range [0, %d)", sliceIdx, vol.Depth)
	}
	if regionSize < 1 {
		return nil, fmt.Errorf("sigmoid filter: region size must be at least 1, got %d", regionSize)
	}

	x0 := clamp(px, 0, vol.Width-1)
	y0 := clamp(py, 0, vol.Height-1)
	x1 := clamp(x0+regionSize, 1, vol.Width)
	y1 := clamp(y0+regionSize, 1, vol.Height)

	region := make([]float64, 0, (x1-x0)*(y1-y0))
	roiMin, roiMax := math.Inf(1), math.Inf(-1)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			s := vol.Data[vol.Idx(x, y, sliceIdx)]
			region = append(region, s)
			if s < roiMin {
				roiMin = s
			}
			if s > roiMax {
				roiMax = s
			}
		}
	}

	alpha := roiMax - roiMin
	if alpha == 0 {
		alpha = 1
	}
	beta := stat.Mean(region, nil)

	outMin, outMax := vol.SliceMinMax(sliceIdx)
	span := outMax - outMin

	out := volume.NewLike(vol)
	parallelSlabs(vol.Depth, func(z0, z1 int) {
		base := z0 * vol.Width * vol.Height
		for i := base; i < z1*vol.Width*vol.Height; i++ {
			out.Data[i] = outMin + span/(1+math.Exp(-(vol.Data[i]-beta)/alpha))
		}
	})
	return out, nil
}
