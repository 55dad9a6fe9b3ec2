// Package evaluation scores a segmentation against a reference annotation
// and records pipeline runs. The five reported numbers are the ones liver
// segmentation challenges rank by: volumetric overlap error, relative
// volume difference, Dice, Jaccard and the average symmetric surface
// distance in millimeters.
package evaluation

import (
	"errors"
	"fmt"
	"math"

	"liverextract/pkg/volume"
)

var (
	// ErrEmptyReference is returned when the annotation contains no liver
	// voxels.
	ErrEmptyReference = errors.New("reference annotation contains no liver voxels")
	// ErrEmptySegmentation is returned when the segmentation is empty.
	ErrEmptySegmentation = errors.New("segmentation contains no voxels")
)

// liverLabel marks liver tissue in reference annotations. Other labels,
// like the tumor label 2 used by public liver datasets, stay out of the
// comparison.
const liverLabel = 1

// Metrics holds the five segmentation quality scores.
type Metrics struct {
	// VOE is the volumetric overlap error in percent, 0 for a perfect
	// match and 100 for disjoint volumes.
	VOE float64
	// RVD is the absolute relative volume difference in percent.
	RVD float64
	// Dice is the Sørensen-Dice coefficient in [0, 1].
	Dice float64
	// Jaccard is the intersection over union in [0, 1].
	Jaccard float64
	// ASSD is the average symmetric surface distance in millimeters.
	ASSD float64
}

// Compare scores a binary segmentation against a reference annotation of
// the same grid. Only annotation voxels carrying the liver label count as
// reference foreground. Surface distances use the reference volume's
// voxel spacing.
func Compare(seg, ref *volume.Volume) (Metrics, error) {
	if seg.Width != ref.Width || seg.Height != ref.Height || seg.Depth != ref.Depth {
		return Metrics{}, fmt.Errorf("segmentation is %dx%dx%d but reference is %dx%dx%d",
			seg.Width, seg.Height, seg.Depth, ref.Width, ref.Height, ref.Depth)
	}

	segMask := make([]bool, len(seg.Data))
	refMask := make([]bool, len(ref.Data))
	var nSeg, nRef, inter, union int
	for i := range seg.Data {
		s := seg.Data[i] != 0
		r := ref.Data[i] == liverLabel
		segMask[i] = s
		refMask[i] = r
		if s {
			nSeg++
		}
		if r {
			nRef++
		}
		if s && r {
			inter++
		}
		if s || r {
			union++
		}
	}
	if nRef == 0 {
		return Metrics{}, ErrEmptyReference
	}
	if nSeg == 0 {
		return Metrics{}, ErrEmptySegmentation
	}

	m := Metrics{
		VOE:     100 * (1 - float64(inter)/float64(union)),
		RVD:     100 * math.Abs(float64(nSeg-nRef)/float64(nRef)),
		Dice:    2 * float64(inter) / float64(nSeg+nRef),
		Jaccard: float64(inter) / float64(union),
	}

	m.ASSD = averageSurfaceDistance(segMask, refMask, seg.Width, seg.Height, seg.Depth, ref.Spacing)
	return m, nil
}

// averageSurfaceDistance computes the mean of all distances from each
// surface voxel of one mask to the closest surface voxel of the other,
// pooled over both directions.
func averageSurfaceDistance(segMask, refMask []bool, w, h, d int, spacing [3]float64) float64 {
	segSurf := surfaceVoxels(segMask, w, h, d)
	refSurf := surfaceVoxels(refMask, w, h, d)

	distToRef := distanceTransform(refSurf, w, h, d, spacing)
	distToSeg := distanceTransform(segSurf, w, h, d, spacing)

	sum := 0.0
	count := 0
	for i, on := range segSurf {
		if on {
			sum += math.Sqrt(distToRef[i])
			count++
		}
	}
	for i, on := range refSurf {
		if on {
			sum += math.Sqrt(distToSeg[i])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// surfaceVoxels marks every foreground voxel with at least one background
// face neighbor. Voxels on the volume border count their missing neighbors
// as background, so a mask touching the border still has a surface there.
func surfaceVoxels(mask []bool, w, h, d int) []bool {
	surf := make([]bool, len(mask))
	plane := w * h
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p := z*plane + y*w + x
				if !mask[p] {
					continue
				}
				if x == 0 || x == w-1 || y == 0 || y == h-1 || z == 0 || z == d-1 ||
					!mask[p-1] || !mask[p+1] ||
					!mask[p-w] || !mask[p+w] ||
					!mask[p-plane] || !mask[p+plane] {
					surf[p] = true
				}
			}
		}
	}
	return surf
}
