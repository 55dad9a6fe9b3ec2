// Package filters implements the voxel-level preprocessing passes of the
// extraction pipeline: cropping, smoothing, thresholding, morphology and
// intensity remapping. Every filter allocates a fresh output volume and
// leaves its input untouched.
package filters

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"liverextract/pkg/volume"
)

// ErrBadRadius is returned by all neighborhood filters when the radius is
// smaller than one voxel.
var ErrBadRadius = errors.New("radius must be greater than or equal to 1")

// CropRightHalf keeps the left half of the sample grid, x in [0, Width/2).
// In radiological orientation that is the patient's right side, which is
// where the liver sits; dropping the other half removes most of the
// stomach and spleen before any thresholding happens.
func CropRightHalf(vol *volume.Volume) *volume.Volume {
	outW := vol.Width / 2
	out := volume.New(outW, vol.Height, vol.Depth)
	out.Spacing = vol.Spacing
	out.Origin = vol.Origin

	for z := 0; z < vol.Depth; z++ {
		for y := 0; y < vol.Height; y++ {
			srcRow := vol.Idx(0, y, z)
			dstRow := out.Idx(0, y, z)
			copy(out.Data[dstRow:dstRow+outW], vol.Data[srcRow:srcRow+outW])
		}
	}
	return out
}

// Mean applies a box mean of the given radius, a cube of side 2*radius+1
// around every voxel. Coordinates outside the volume are clamped to the
// nearest border voxel, so edges keep their local brightness instead of
// darkening toward zero.
func Mean(vol *volume.Volume, radius int) (*volume.Volume, error) {
	if radius < 1 {
		return nil, fmt.Errorf("mean filter: %w, got %d", ErrBadRadius, radius)
	}

	out := volume.NewLike(vol)
	side := 2*radius + 1
	norm := 1.0 / float64(side*side*side)

	parallelSlabs(vol.Depth, func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			for y := 0; y < vol.Height; y++ {
				for x := 0; x < vol.Width; x++ {
					sum := 0.0
					for dz := -radius; dz <= radius; dz++ {
						zz := clamp(z+dz, 0, vol.Depth-1)
						for dy := -radius; dy <= radius; dy++ {
							yy := clamp(y+dy, 0, vol.Height-1)
							rowBase := zz*vol.Width*vol.Height + yy*vol.Width
							for dx := -radius; dx <= radius; dx++ {
								xx := clamp(x+dx, 0, vol.Width-1)
								sum += vol.Data[rowBase+xx]
							}
						}
					}
					out.Data[out.Idx(x, y, z)] = sum * norm
				}
			}
		}
	})
	return out, nil
}

// Threshold maps every voxel inside [lower, upper] to insideValue and every
// other voxel to outsideValue.
func Threshold(vol *volume.Volume, lower, upper, insideValue, outsideValue float64) *volume.Volume {
	out := volume.NewLike(vol)
	for i, s := range vol.Data {
		if s >= lower && s <= upper {
			out.Data[i] = insideValue
		} else {
			out.Data[i] = outsideValue
		}
	}
	return out
}

// Mask keeps vol where the mask is nonzero and replaces everything else
// with the volume's global minimum, the darkest value present, so masked-out
// tissue reads as background in later passes.
func Mask(vol, mask *volume.Volume) (*volume.Volume, error) {
	if vol.Width != mask.Width || vol.Height != mask.Height || vol.Depth != mask.Depth {
		return nil, fmt.Errorf("mask filter: volume is %dx%dx%d but mask is %dx%dx%d",
			vol.Width, vol.Height, vol.Depth, mask.Width, mask.Height, mask.Depth)
	}

	outside, _ := vol.MinMax()
	out := volume.NewLike(vol)
	for i, s := range vol.Data {
		if mask.Data[i] != 0 {
			out.Data[i] = s
		} else {
			out.Data[i] = outside
		}
	}
	return out, nil
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

// parallelSlabs fans fn out over contiguous z ranges, one goroutine per
// available core, and waits for all of them. fn must only write voxels
// inside its own range.
func parallelSlabs(depth int, fn func(z0, z1 int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > depth {
		workers = depth
	}
	if workers <= 1 {
		fn(0, depth)
		return
	}

	perWorker := (depth + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		z0 := w * perWorker
		z1 := z0 + perWorker
		if z1 > depth {
			z1 = depth
		}
		if z0 >= z1 {
			break
		}
		wg.Add(1)
		go func(z0, z1 int) {
			defer wg.Done()
			fn(z0, z1)
		}(z0, z1)
	}
	wg.Wait()
}
