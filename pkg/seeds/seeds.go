// Package seeds locates starting points for region growing. The one seed
// pipeline derives a single anchor from the biggest blob of a thresholded
// slice; the multi seed pipeline draws a reproducible random sample from an
// eroded mask slice.
package seeds

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"liverextract/pkg/volume"
)

// ErrNoForeground is returned when an operation needs foreground pixels and
// the mask has none.
var ErrNoForeground = errors.New("mask has no foreground")

// ComponentStats describes one connected component of a labeled slice.
// Label 0 always describes the background pixels.
type ComponentStats struct {
	// Left and Top are the bounding box corner closest to the origin.
	Left int
	Top  int
	// Width and Height span the bounding box.
	Width  int
	Height int
	// Area is the pixel count of the component.
	Area int
	// CentroidX and CentroidY are the mean pixel coordinates.
	CentroidX float64
	CentroidY float64
}

// SliceAreas counts the foreground pixels of every slice, giving the area
// profile of a mask along the scan axis.
func SliceAreas(vol *volume.Volume) []int {
	areas := make([]int, vol.Depth)
	for z := 0; z < vol.Depth; z++ {
		base := z * vol.Width * vol.Height
		n := 0
		for _, s := range vol.Data[base : base+vol.Width*vol.Height] {
			if s != 0 {
				n++
			}
		}
		areas[z] = n
	}
	return areas
}

// LargestMaskSlice returns the index of the slice with the most foreground
// pixels. Ties go to the lower index. An all background mask is an error.
func LargestMaskSlice(vol *volume.Volume) (int, error) {
	areas := SliceAreas(vol)
	best, bestArea := 0, 0
	for z, a := range areas {
		if a > bestArea {
			best, bestArea = z, a
		}
	}
	if bestArea == 0 {
		return 0, ErrNoForeground
	}
	return best, nil
}

// LabelSlice performs four connected component labeling of the nonzero
// pixels of a row major slice. The returned labels assign 0 to background
// pixels and 1..n to the components in discovery order, scanning row by
// row. The stats slice has one entry per label including the background
// entry at index 0.
func LabelSlice(data []float64, width, height int) ([]int, []ComponentStats) {
	labels := make([]int, width*height)
	stats := []ComponentStats{backgroundStats(data, width, height)}

	var queue []int
	next := 0
	for start, s := range data {
		if s == 0 || labels[start] != 0 {
			continue
		}
		next++
		cur := ComponentStats{Left: width, Top: height}
		sumX, sumY := 0, 0
		right, bottom := -1, -1

		labels[start] = next
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := p%width, p/width

			cur.Area++
			sumX += x
			sumY += y
			if x < cur.Left {
				cur.Left = x
			}
			if y < cur.Top {
				cur.Top = y
			}
			if x > right {
				right = x
			}
			if y > bottom {
				bottom = y
			}

			visit := func(n int) {
				if data[n] != 0 && labels[n] == 0 {
					labels[n] = next
					queue = append(queue, n)
				}
			}
			if x > 0 {
				visit(p - 1)
			}
			if x < width-1 {
				visit(p + 1)
			}
			if y > 0 {
				visit(p - width)
			}
			if y < height-1 {
				visit(p + width)
			}
		}

		cur.Width = right - cur.Left + 1
		cur.Height = bottom - cur.Top + 1
		cur.CentroidX = float64(sumX) / float64(cur.Area)
		cur.CentroidY = float64(sumY) / float64(cur.Area)
		stats = append(stats, cur)
	}
	return labels, stats
}

// backgroundStats builds the label 0 entry over the zero valued pixels.
func backgroundStats(data []float64, width, height int) ComponentStats {
	bg := ComponentStats{Left: width, Top: height}
	sumX, sumY := 0, 0
	right, bottom := -1, -1
	for p, s := range data {
		if s != 0 {
			continue
		}
		x, y := p%width, p/width
		bg.Area++
		sumX += x
		sumY += y
		if x < bg.Left {
			bg.Left = x
		}
		if y < bg.Top {
			bg.Top = y
		}
		if x > right {
			right = x
		}
		if y > bottom {
			bottom = y
		}
	}
	if bg.Area == 0 {
		return ComponentStats{}
	}
	bg.Width = right - bg.Left + 1
	bg.Height = bottom - bg.Top + 1
	bg.CentroidX = float64(sumX) / float64(bg.Area)
	bg.CentroidY = float64(sumY) / float64(bg.Area)
	return bg
}

// LiverCentroid locates the liver candidate on a thresholded slice. The
// background is normally the biggest labeled region, so the component with
// the second largest area is taken as the organ and its centroid returned,
// truncated to pixel coordinates.
func LiverCentroid(data []float64, width, height int) (int, int, error) {
	_, stats := LabelSlice(data, width, height)
	if len(stats) < 2 {
		return 0, 0, ErrNoForeground
	}

	order := make([]int, len(stats))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return stats[order[a]].Area < stats[order[b]].Area
	})

	pick := stats[order[len(order)-2]]
	return int(pick.CentroidX), int(pick.CentroidY), nil
}

// SamplePixels draws n distinct foreground pixels from a row major slice
// and returns them as voxel coordinates on slice sliceIdx. The draw uses a
// fixed PCG stream, so the same mask, count and seed always produce the
// same pixels.
func SamplePixels(data []float64, width, height, sliceIdx, n int, seed uint64) ([]volume.Point, error) {
	var coords []volume.Point
	for p, s := range data {
		if s != 0 {
			coords = append(coords, volume.Point{X: p % width, Y: p / width, Z: sliceIdx})
		}
	}
	if len(coords) < n {
		return nil, fmt.Errorf("sampling %d seeds: %w, only %d foreground pixels", n, ErrNoForeground, len(coords))
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	picks := make([]volume.Point, 0, n)
	for _, i := range rng.Perm(len(coords))[:n] {
		picks = append(picks, coords[i])
	}
	return picks, nil
}
