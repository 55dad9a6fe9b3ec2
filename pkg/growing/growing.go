// Package growing implements confidence connected region growing, the
// segmentation core of both extraction pipelines. The region is defined by
// an intensity interval derived from seed statistics rather than fixed
// thresholds, so it adapts to the brightness of the scanned tissue.
package growing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"liverextract/pkg/volume"
)

// ErrNoSeeds is returned when region growing is started without any seed
// points.
var ErrNoSeeds = errors.New("no seed points given")

// ConfidenceConnected grows a region from the given seeds. The voxels in a
// box of the given radius around every seed are pooled, and their mean and
// standard deviation define the acceptance interval mean ± multiplier*sd. A
// radius of zero pools just the seed voxels themselves. Voxels reachable
// from a seed through face neighbors whose intensity lies inside the
// interval become part of the region.
//
// When iterations is positive the interval is recomputed that many times
// from the statistics of the current region and the flood repeated, letting
// the region adapt to intensity drift away from the seeds.
//
// The result is a binary volume sharing the input geometry, with region
// voxels set to one.
func ConfidenceConnected(vol *volume.Volume, seedPts []volume.Point, multiplier float64, radius, iterations int) (*volume.Volume, error) {
	if len(seedPts) == 0 {
		return nil, ErrNoSeeds
	}
	if multiplier <= 0 {
		return nil, fmt.Errorf("confidence multiplier must be positive, got %g", multiplier)
	}
	if radius < 0 {
		return nil, fmt.Errorf("neighborhood radius must not be negative, got %d", radius)
	}
	for _, s := range seedPts {
		if !vol.InBounds(s.X, s.Y, s.Z) {
			return nil, fmt.Errorf("seed (%d,%d,%d) outside volume %dx%dx%d",
				s.X, s.Y, s.Z, vol.Width, vol.Height, vol.Depth)
		}
	}

	seedIdx := make([]int, len(seedPts))
	for i, s := range seedPts {
		seedIdx[i] = vol.Idx(s.X, s.Y, s.Z)
	}

	lo, hi := seedInterval(vol, seedPts, multiplier, radius)
	region := floodFill(vol, seedIdx, lo, hi)

	for it := 0; it < iterations; it++ {
		samples := regionSamples(vol, region)
		if len(samples) == 0 {
			break
		}
		lo, hi = interval(samples, multiplier)
		region = floodFill(vol, seedIdx, lo, hi)
	}

	out := volume.NewLike(vol)
	for i, in := range region {
		if in {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// seedInterval pools the box neighborhoods of all seeds, clipped to the
// volume bounds, and derives the initial acceptance interval.
func seedInterval(vol *volume.Volume, seedPts []volume.Point, multiplier float64, radius int) (float64, float64) {
	var samples []float64
	for _, s := range seedPts {
		for dz := -radius; dz <= radius; dz++ {
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					x, y, z := s.X+dx, s.Y+dy, s.Z+dz
					if vol.InBounds(x, y, z) {
						samples = append(samples, vol.Data[vol.Idx(x, y, z)])
					}
				}
			}
		}
	}
	return interval(samples, multiplier)
}

// regionSamples collects the intensities of all voxels currently inside the
// region.
func regionSamples(vol *volume.Volume, region []bool) []float64 {
	var samples []float64
	for i, in := range region {
		if in {
			samples = append(samples, vol.Data[i])
		}
	}
	return samples
}

// interval turns a sample pool into the acceptance interval. A pool with a
// single sample has no spread, collapsing the interval onto that value.
func interval(samples []float64, multiplier float64) (float64, float64) {
	mean, sd := stat.MeanStdDev(samples, nil)
	if math.IsNaN(sd) {
		sd = 0
	}
	return mean - multiplier*sd, mean + multiplier*sd
}

// floodFill walks face connected neighbors from the seeds and keeps every
// voxel whose intensity lies within [lo, hi]. Seeds outside the interval do
// not start a region.
func floodFill(vol *volume.Volume, seedIdx []int, lo, hi float64) []bool {
	region := make([]bool, len(vol.Data))
	visited := make([]bool, len(vol.Data))
	plane := vol.Width * vol.Height

	var queue []int
	for _, i := range seedIdx {
		if !visited[i] {
			visited[i] = true
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		if s := vol.Data[p]; s < lo || s > hi {
			continue
		}
		region[p] = true

		x := p % vol.Width
		y := (p / vol.Width) % vol.Height
		z := p / plane

		push := func(n int) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
		if x > 0 {
			push(p - 1)
		}
		if x < vol.Width-1 {
			push(p + 1)
		}
		if y > 0 {
			push(p - vol.Width)
		}
		if y < vol.Height-1 {
			push(p + vol.Width)
		}
		if z > 0 {
			push(p - plane)
		}
		if z < vol.Depth-1 {
			push(p + plane)
		}
	}
	return region
}
