package filters

import (
	"fmt"
	"math"

	"liverextract/pkg/volume"
)

// ballOffsets returns every integer offset whose euclidean distance from the
// origin is at most radius. The center offset is included, so erosion can
// only shrink a region and dilation can only grow it.
func ballOffsets(radius int) [][3]int {
	r2 := radius * radius
	var offs [][3]int
	for dz := -radius; dz <= radius; dz++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx*dx+dy*dy+dz*dz <= r2 {
					offs = append(offs, [3]int{dx, dy, dz})
				}
			}
		}
	}
	return offs
}

// discOffsets is the two dimensional counterpart of ballOffsets.
func discOffsets(radius int) [][2]int {
	r2 := radius * radius
	var offs [][2]int
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offs = append(offs, [2]int{dx, dy})
			}
		}
	}
	return offs
}

// binaryErode keeps a voxel only when every structuring element neighbor
// inside the volume is foreground. Neighbors falling outside the volume do
// not participate, which matches padding the border with foreground.
func binaryErode(vol *volume.Volume, offs [][3]int) *volume.Volume {
	out := volume.NewLike(vol)
	parallelSlabs(vol.Depth, func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			for y := 0; y < vol.Height; y++ {
				for x := 0; x < vol.Width; x++ {
					keep := vol.Data[vol.Idx(x, y, z)] != 0
					if keep {
						for _, o := range offs {
							xx, yy, zz := x+o[0], y+o[1], z+o[2]
							if !vol.InBounds(xx, yy, zz) {
								continue
							}
							if vol.Data[vol.Idx(xx, yy, zz)] == 0 {
								keep = false
								break
							}
						}
					}
					if keep {
						out.Data[out.Idx(x, y, z)] = 1
					}
				}
			}
		}
	})
	return out
}

// binaryDilate marks a voxel when any structuring element neighbor inside
// the volume is foreground. Neighbors falling outside the volume do not
// participate, which matches padding the border with background.
func binaryDilate(vol *volume.Volume, offs [][3]int) *volume.Volume {
	out := volume.NewLike(vol)
	parallelSlabs(vol.Depth, func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			for y := 0; y < vol.Height; y++ {
				for x := 0; x < vol.Width; x++ {
					for _, o := range offs {
						xx, yy, zz := x+o[0], y+o[1], z+o[2]
						if !vol.InBounds(xx, yy, zz) {
							continue
						}
						if vol.Data[vol.Idx(xx, yy, zz)] != 0 {
							out.Data[out.Idx(x, y, z)] = 1
							break
						}
					}
				}
			}
		}
	})
	return out
}

// BinaryOpen erodes and then dilates the mask with a ball of the given
// radius. Opening removes protrusions and speckles narrower than the ball
// while leaving the bulk of each region in place.
func BinaryOpen(vol *volume.Volume, radius int) (*volume.Volume, error) {
	if radius < 1 {
		return nil, fmt.Errorf("binary opening: %w, got %d", ErrBadRadius, radius)
	}
	offs := ballOffsets(radius)
	return binaryDilate(binaryErode(vol, offs), offs), nil
}

// BinaryClose dilates and then erodes the mask with a ball of the given
// radius, sealing gaps and holes narrower than the ball.
func BinaryClose(vol *volume.Volume, radius int) (*volume.Volume, error) {
	if radius < 1 {
		return nil, fmt.Errorf("binary closing: %w, got %d", ErrBadRadius, radius)
	}
	offs := ballOffsets(radius)
	return binaryErode(binaryDilate(vol, offs), offs), nil
}

// BinaryCloseByReconstruction dilates the mask with a ball of the given
// radius and then shrinks the result back by geodesic erosion until it
// stabilizes. Unlike a plain closing the reconstruction recovers the exact
// original contour everywhere, so only enclosed holes and concavities
// within reach of the ball end up filled.
func BinaryCloseByReconstruction(vol *volume.Volume, radius int) (*volume.Volume, error) {
	if radius < 1 {
		return nil, fmt.Errorf("closing by reconstruction: %w, got %d", ErrBadRadius, radius)
	}

	marker := binaryDilate(vol, ballOffsets(radius))
	unit := ballOffsets(1)
	for {
		next := binaryErode(marker, unit)
		// Geodesic step: the marker may never drop below the original mask.
		for i, s := range vol.Data {
			if s != 0 {
				next.Data[i] = 1
			}
		}
		if equalData(next.Data, marker.Data) {
			return next, nil
		}
		marker = next
	}
}

// Erode applies a grayscale minimum filter over a ball of the given radius,
// repeated iterations times. Neighbors outside the volume do not take part
// in the minimum. Zero or negative iterations return an unchanged copy.
func Erode(vol *volume.Volume, radius, iterations int) (*volume.Volume, error) {
	if radius < 1 {
		return nil, fmt.Errorf("grayscale erosion: %w, got %d", ErrBadRadius, radius)
	}
	offs := ballOffsets(radius)

	cur := vol
	for it := 0; it < iterations; it++ {
		out := volume.NewLike(cur)
		src := cur
		parallelSlabs(src.Depth, func(z0, z1 int) {
			for z := z0; z < z1; z++ {
				for y := 0; y < src.Height; y++ {
					for x := 0; x < src.Width; x++ {
						min := math.Inf(1)
						for _, o := range offs {
							xx, yy, zz := x+o[0], y+o[1], z+o[2]
							if !src.InBounds(xx, yy, zz) {
								continue
							}
							if s := src.Data[src.Idx(xx, yy, zz)]; s < min {
								min = s
							}
						}
						out.Data[out.Idx(x, y, z)] = min
					}
				}
			}
		})
		cur = out
	}
	if cur == vol {
		return vol.Clone(), nil
	}
	return cur, nil
}

// ErodeSlice applies the grayscale minimum filter to a single slice using a
// disc structuring element, repeated iterations times. The slice data is
// row major with the given width and height and is not modified.
func ErodeSlice(data []float64, width, height, radius, iterations int) ([]float64, error) {
	if radius < 1 {
		return nil, fmt.Errorf("slice erosion: %w, got %d", ErrBadRadius, radius)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("slice erosion: data length %d does not match %dx%d", len(data), width, height)
	}
	offs := discOffsets(radius)

	cur := append([]float64(nil), data...)
	next := make([]float64, len(data))
	for it := 0; it < iterations; it++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				min := math.Inf(1)
				for _, o := range offs {
					xx, yy := x+o[0], y+o[1]
					if xx < 0 || xx >= width || yy < 0 || yy >= height {
						continue
					}
					if s := cur[yy*width+xx]; s < min {
						min = s
					}
				}
				next[y*width+x] = min
			}
		}
		cur, next = next, cur
	}
	return cur, nil
}

func equalData(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
