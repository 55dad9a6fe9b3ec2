package volume

// Point is a voxel coordinate. X runs along the width axis, Y along the
// height axis and Z across slices.
type Point struct {
	X int
	Y int
	Z int
}
