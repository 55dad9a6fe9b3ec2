package filters

import (
	"errors"
	"math"
	"testing"

	"liverextract/pkg/volume"
)

// TestRadiusValidation verifies that every neighborhood filter rejects radii
// smaller than one and accepts a radius of exactly one.
func TestRadiusValidation(t *testing.T) {
	vol := volume.New(4, 4, 2)

	calls := map[string]func(radius int) error{
		"mean": func(r int) error {
			_, err := Mean(vol, r)
			return err
		},
		"open": func(r int) error {
			_, err := BinaryOpen(vol, r)
			return err
		},
		"close": func(r int) error {
			_, err := BinaryClose(vol, r)
			return err
		},
		"closeByReconstruction": func(r int) error {
			_, err := BinaryCloseByReconstruction(vol, r)
			return err
		},
		"erode": func(r int) error {
			_, err := Erode(vol, r, 1)
			return err
		},
		"erodeSlice": func(r int) error {
			_, err := ErodeSlice(vol.Slice(0), vol.Width, vol.Height, r, 1)
			return err
		},
	}

	for name, call := range calls {
		for _, r := range []int{0, -1} {
			if err := call(r); !errors.Is(err, ErrBadRadius) {
				t.Errorf("%s with radius %d: got %v, want ErrBadRadius", name, r, err)
			}
		}
		if err := call(1); err != nil {
			t.Errorf("%s with radius 1: unexpected error %v", name, err)
		}
	}
}

func TestCropRightHalf(t *testing.T) {
	vol := volume.New(6, 2, 2)
	vol.Spacing = [3]float64{0.7, 0.7, 2.5}
	for i := range vol.Data {
		vol.Data[i] = float64(i)
	}

	got := CropRightHalf(vol)
	if got.Width != 3 || got.Height != 2 || got.Depth != 2 {
		t.Fatalf("cropped dimensions = %dx%dx%d, want 3x2x2", got.Width, got.Height, got.Depth)
	}
	if got.Spacing != vol.Spacing {
		t.Errorf("crop dropped spacing: got %v", got.Spacing)
	}

	// Only columns x < 3 of each row survive.
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				want := vol.At(x, y, z)
				if got.At(x, y, z) != want {
					t.Fatalf("cropped voxel (%d,%d,%d) = %v, want %v", x, y, z, got.At(x, y, z), want)
				}
			}
		}
	}
}

// TestMeanConstant checks the replicate border handling: a constant volume
// must come out of the mean filter exactly unchanged, because every clamped
// neighborhood averages identical samples.
func TestMeanConstant(t *testing.T) {
	vol := volume.New(5, 4, 3)
	for i := range vol.Data {
		vol.Data[i] = 42.5
	}

	got, err := Mean(vol, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range got.Data {
		if math.Abs(s-42.5) > 1e-12 {
			t.Fatalf("sample %d = %v, want 42.5", i, s)
		}
	}
}

// TestMeanValues checks hand computed averages on a single slice. With depth
// one the z neighbors all clamp onto the same slice, so the result equals
// the in-plane box mean.
func TestMeanValues(t *testing.T) {
	vol := volume.New(3, 3, 1)
	vol.Data = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}

	got, err := Mean(vol, 1)
	if err != nil {
		t.Fatal(err)
	}

	if s := got.At(1, 1, 0); math.Abs(s-5) > 1e-9 {
		t.Errorf("center = %v, want 5", s)
	}
	// The corner neighborhood clamps onto samples 1, 2, 4, 5 with weights
	// 4, 2, 2, 1 per plane: (4+4+8+5)/9.
	if s := got.At(0, 0, 0); math.Abs(s-21.0/9.0) > 1e-9 {
		t.Errorf("corner = %v, want %v", s, 21.0/9.0)
	}
}

func TestThreshold(t *testing.T) {
	vol := volume.New(5, 1, 1)
	vol.Data = []float64{59.9, 60, 95, 130, 130.1}

	got := Threshold(vol, 60, 130, 1, 0)
	want := []float64{0, 1, 1, 1, 0}
	for i := range want {
		if got.Data[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got.Data[i], want[i])
		}
	}

	// The inside count can never exceed the voxel count.
	inside := got.NonzeroCount()
	if inside > len(vol.Data) {
		t.Errorf("inside count %d exceeds voxel count %d", inside, len(vol.Data))
	}
	if inside != 3 {
		t.Errorf("inside count = %d, want 3", inside)
	}

	// The input volume must be left alone.
	if vol.Data[1] != 60 {
		t.Errorf("threshold mutated its input: %v", vol.Data)
	}
}

func TestMask(t *testing.T) {
	vol := volume.New(2, 2, 1)
	vol.Data = []float64{-5, 3, 8, 12}

	mask := volume.New(2, 2, 1)
	mask.Data = []float64{0, 1, 1, 0}

	got, err := Mask(vol, mask)
	if err != nil {
		t.Fatal(err)
	}
	// Masked out voxels take the global minimum of the input, here -5.
	want := []float64{-5, 3, 8, -5}
	for i := range want {
		if got.Data[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got.Data[i], want[i])
		}
	}
}

func TestMaskDimensionMismatch(t *testing.T) {
	vol := volume.New(2, 2, 2)
	mask := volume.New(2, 2, 1)
	if _, err := Mask(vol, mask); err == nil {
		t.Fatal("expected an error for mismatched mask dimensions")
	}
}
