// Package volume provides the in-memory representation of CT volumes and the
// readers and writers used to move them between disk formats (NIfTI-1 files,
// DICOM series and zip archives of either).
package volume

// Volume is a 3D scalar field of voxel intensities. Samples are stored in a
// flat slice in x-fastest order, so the voxel at (x, y, z) lives at index
// z*Width*Height + y*Width + x. Filters never mutate their input volume;
// they allocate and return a new one.
type Volume struct {
	// Data holds the voxel intensities. Its length is always Width*Height*Depth.
	Data []float64

	// Width, Height and Depth are the voxel counts along x, y and z.
	Width  int
	Height int
	Depth  int

	// Spacing is the physical voxel size in millimeters along x, y and z.
	// Loaders fill it from file metadata; New defaults it to 1mm isotropic.
	Spacing [3]float64

	// Origin is the scanner-space position of the first voxel.
	Origin [3]float64
}

// New allocates a zero-filled volume with the given dimensions and
// unit spacing.
func New(width, height, depth int) *Volume {
	return &Volume{
		Data:    make([]float64, width*height*depth),
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: [3]float64{1, 1, 1},
	}
}

// NewLike allocates a zero-filled volume with the same dimensions, spacing
// and origin as ref.
func NewLike(ref *Volume) *Volume {
	v := New(ref.Width, ref.Height, ref.Depth)
	v.Spacing = ref.Spacing
	v.Origin = ref.Origin
	return v
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := NewLike(v)
	copy(out.Data, v.Data)
	return out
}

// Idx returns the flat index of voxel (x, y, z).
func (v *Volume) Idx(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the intensity of voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Idx(x, y, z)]
}

// Set assigns the intensity of voxel (x, y, z).
func (v *Volume) Set(x, y, z int, val float64) {
	v.Data[v.Idx(x, y, z)] = val
}

// InBounds reports whether (x, y, z) is a valid voxel coordinate.
func (v *Volume) InBounds(x, y, z int) bool {
	return x >= 0 && x < v.Width && y >= 0 && y < v.Height && z >= 0 && z < v.Depth
}

// Slice returns a copy of the axial slice at depth z as a flat row-major
// array of Width*Height samples.
func (v *Volume) Slice(z int) []float64 {
	out := make([]float64, v.Width*v.Height)
	copy(out, v.Data[z*v.Width*v.Height:(z+1)*v.Width*v.Height])
	return out
}

// SetSlice overwrites the axial slice at depth z with the given samples.
// The slice must hold exactly Width*Height values.
func (v *Volume) SetSlice(z int, data []float64) {
	copy(v.Data[z*v.Width*v.Height:(z+1)*v.Width*v.Height], data)
}

// NonzeroCount returns the number of voxels with a nonzero intensity.
func (v *Volume) NonzeroCount() int {
	n := 0
	for _, s := range v.Data {
		if s != 0 {
			n++
		}
	}
	return n
}

// MinMax returns the smallest and largest intensity in the volume.
func (v *Volume) MinMax() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min = v.Data[0]
	max = v.Data[0]
	for _, s := range v.Data {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}

// IsBinary reports whether every voxel is exactly 0 or 1. Binary masks are
// ordinary volumes restricted to these two values.
func (v *Volume) IsBinary() bool {
	for _, s := range v.Data {
		if s != 0 && s != 1 {
			return false
		}
	}
	return true
}

// sliceMinMax scans one axial slice without copying it.
func sliceMinMax(data []float64) (min, max float64) {
	if len(data) == 0 {
		return 0, 0
	}
	min = data[0]
	max = data[0]
	for _, s := range data {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}

// SliceMinMax returns the smallest and largest intensity on the axial slice
// at depth z.
func (v *Volume) SliceMinMax(z int) (min, max float64) {
	return sliceMinMax(v.Data[z*v.Width*v.Height : (z+1)*v.Width*v.Height])
}
