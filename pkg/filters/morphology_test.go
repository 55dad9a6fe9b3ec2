package filters

import (
	"testing"

	"liverextract/pkg/volume"
)

// plusShape marks a five voxel cross centered on (cx, cy) of slice z. The
// cross is exactly the unit ball, so it survives a radius one opening
// unchanged.
func plusShape(vol *volume.Volume, cx, cy, z int) {
	vol.Set(cx, cy, z, 1)
	vol.Set(cx-1, cy, z, 1)
	vol.Set(cx+1, cy, z, 1)
	vol.Set(cx, cy-1, z, 1)
	vol.Set(cx, cy+1, z, 1)
}

// ringShape marks the eight voxels of a 3x3 square with the center left
// empty, the smallest region with an enclosed hole.
func ringShape(vol *volume.Volume, cx, cy, z int) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			vol.Set(cx+dx, cy+dy, z, 1)
		}
	}
}

func TestBinaryOpenRemovesSpeckle(t *testing.T) {
	vol := volume.New(9, 9, 1)
	plusShape(vol, 4, 4, 0)
	vol.Set(1, 1, 0, 1)

	got, err := BinaryOpen(vol, 1)
	if err != nil {
		t.Fatal(err)
	}

	if got.At(1, 1, 0) != 0 {
		t.Error("opening kept the isolated voxel")
	}
	// The cross is its own opening, so it must come back exactly.
	want := volume.New(9, 9, 1)
	plusShape(want, 4, 4, 0)
	if !equalData(got.Data, want.Data) {
		t.Error("opening did not preserve the cross shape")
	}
}

func TestBinaryCloseFillsHole(t *testing.T) {
	vol := volume.New(9, 9, 1)
	ringShape(vol, 4, 4, 0)

	got, err := BinaryClose(vol, 1)
	if err != nil {
		t.Fatal(err)
	}

	if got.At(4, 4, 0) != 1 {
		t.Error("closing left the enclosed hole open")
	}
	// Closing is extensive and here adds nothing beyond the hole.
	want := volume.New(9, 9, 1)
	ringShape(want, 4, 4, 0)
	want.Set(4, 4, 0, 1)
	if !equalData(got.Data, want.Data) {
		t.Error("closing changed voxels outside the hole")
	}
}

func TestCloseByReconstructionPreservesContour(t *testing.T) {
	vol := volume.New(9, 9, 1)
	ringShape(vol, 4, 4, 0)

	got, err := BinaryCloseByReconstruction(vol, 1)
	if err != nil {
		t.Fatal(err)
	}

	// The hole gets filled while the outer contour stays untouched, so the
	// result is exactly the ring plus its center.
	want := volume.New(9, 9, 1)
	ringShape(want, 4, 4, 0)
	want.Set(4, 4, 0, 1)
	if !equalData(got.Data, want.Data) {
		t.Error("reconstruction altered the outer contour or missed the hole")
	}
}

// TestAlternatingFilterIdempotent checks the smoothing property the mask
// cleanup relies on: applying open followed by close a second time changes
// nothing.
func TestAlternatingFilterIdempotent(t *testing.T) {
	vol := volume.New(16, 16, 1)
	for y := 4; y <= 11; y++ {
		for x := 4; x <= 11; x++ {
			vol.Set(x, y, 0, 1)
		}
	}
	vol.Set(12, 7, 0, 1)  // bump on the right edge
	vol.Set(7, 7, 0, 0)   // pit inside
	vol.Set(14, 14, 0, 1) // speckle

	smooth := func(v *volume.Volume) *volume.Volume {
		opened, err := BinaryOpen(v, 1)
		if err != nil {
			t.Fatal(err)
		}
		closed, err := BinaryClose(opened, 1)
		if err != nil {
			t.Fatal(err)
		}
		return closed
	}

	once := smooth(vol)
	twice := smooth(once)

	if once.NonzeroCount() == 0 {
		t.Fatal("smoothing erased the whole region")
	}
	if !equalData(once.Data, twice.Data) {
		t.Error("open plus close is not idempotent on this region")
	}
}

// TestBinaryOpenAtBorder checks the padding convention: erosion treats the
// outside as foreground, so a region hugging the volume border does not get
// eaten from that side.
func TestBinaryOpenAtBorder(t *testing.T) {
	vol := volume.New(4, 4, 1)
	vol.Set(0, 0, 0, 1)
	vol.Set(1, 0, 0, 1)
	vol.Set(0, 1, 0, 1)
	vol.Set(1, 1, 0, 1)

	got, err := BinaryOpen(vol, 1)
	if err != nil {
		t.Fatal(err)
	}

	if got.At(0, 0, 0) != 1 {
		t.Error("opening removed the corner voxel despite foreground padding")
	}
	if got.At(1, 1, 0) != 0 {
		t.Error("opening kept the interior corner that erosion should remove")
	}
}

func TestErodeGrayscale(t *testing.T) {
	vol := volume.New(5, 1, 1)
	vol.Data = []float64{0, 1, 2, 3, 4}

	got, err := Erode(vol, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 1, 2, 3}
	if !equalData(got.Data, want) {
		t.Errorf("one pass = %v, want %v", got.Data, want)
	}

	got, err = Erode(vol, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	want = []float64{0, 0, 0, 1, 2}
	if !equalData(got.Data, want) {
		t.Errorf("two passes = %v, want %v", got.Data, want)
	}
}

func TestErodeZeroIterations(t *testing.T) {
	vol := volume.New(3, 1, 1)
	vol.Data = []float64{5, 6, 7}

	got, err := Erode(vol, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !equalData(got.Data, vol.Data) {
		t.Errorf("zero iterations changed the data: %v", got.Data)
	}

	// The copy must be independent of the input.
	got.Data[0] = -1
	if vol.Data[0] != 5 {
		t.Error("zero iteration erosion aliased its input")
	}
}

func TestErodeSlice(t *testing.T) {
	const w, h = 7, 7
	data := make([]float64, w*h)
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			data[y*w+x] = 1
		}
	}

	got, err := ErodeSlice(data, w, h, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	// One pass shrinks the 3x3 block to its center.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := 0.0
			if x == 3 && y == 3 {
				want = 1
			}
			if got[y*w+x] != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got[y*w+x], want)
			}
		}
	}

	// A second pass removes the lone survivor.
	got, err = ErodeSlice(data, w, h, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range got {
		if s != 0 {
			t.Fatalf("pixel %d = %v after two passes, want 0", i, s)
		}
	}
}

func TestErodeSliceLengthMismatch(t *testing.T) {
	if _, err := ErodeSlice(make([]float64, 10), 4, 4, 1, 1); err == nil {
		t.Fatal("expected an error for a data length mismatch")
	}
}
