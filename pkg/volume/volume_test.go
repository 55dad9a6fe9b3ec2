package volume

import (
	"testing"
)

// TestIndexing verifies the x-fastest flat layout of volume samples.
func TestIndexing(t *testing.T) {
	v := New(4, 3, 2)

	if got := v.Idx(0, 0, 0); got != 0 {
		t.Errorf("Idx(0,0,0) = %d, want 0", got)
	}
	if got := v.Idx(1, 0, 0); got != 1 {
		t.Errorf("Idx(1,0,0) = %d, want 1", got)
	}
	if got := v.Idx(0, 1, 0); got != 4 {
		t.Errorf("Idx(0,1,0) = %d, want 4", got)
	}
	if got := v.Idx(0, 0, 1); got != 12 {
		t.Errorf("Idx(0,0,1) = %d, want 12", got)
	}

	v.Set(3, 2, 1, 7)
	if got := v.At(3, 2, 1); got != 7 {
		t.Errorf("At(3,2,1) = %v, want 7", got)
	}
	if got := v.Data[len(v.Data)-1]; got != 7 {
		t.Errorf("last sample = %v, want 7", got)
	}
}

// TestSliceRoundTrip verifies extraction and insertion of axial slices.
func TestSliceRoundTrip(t *testing.T) {
	v := New(3, 2, 3)
	plane := []float64{1, 2, 3, 4, 5, 6}
	v.SetSlice(1, plane)

	got := v.Slice(1)
	for i := range plane {
		if got[i] != plane[i] {
			t.Fatalf("slice sample %d = %v, want %v", i, got[i], plane[i])
		}
	}

	// Neighboring slices must stay untouched.
	for _, z := range []int{0, 2} {
		for i, s := range v.Slice(z) {
			if s != 0 {
				t.Errorf("slice %d sample %d = %v, want 0", z, i, s)
			}
		}
	}

	// Mutating the extracted copy must not write through.
	got[0] = 99
	if v.At(0, 0, 1) != 1 {
		t.Error("Slice returned a live reference instead of a copy")
	}
}

// TestStats verifies the counting and range helpers used by seed selection.
func TestStats(t *testing.T) {
	v := New(2, 2, 2)
	v.Data = []float64{0, -3, 0, 5, 1, 0, 0, 2}

	if got := v.NonzeroCount(); got != 4 {
		t.Errorf("NonzeroCount = %d, want 4", got)
	}
	min, max := v.MinMax()
	if min != -3 || max != 5 {
		t.Errorf("MinMax = (%v, %v), want (-3, 5)", min, max)
	}

	min, max = v.SliceMinMax(1)
	if min != 0 || max != 2 {
		t.Errorf("SliceMinMax(1) = (%v, %v), want (0, 2)", min, max)
	}
}

// TestIsBinary verifies the mask predicate that decides the output encoding.
func TestIsBinary(t *testing.T) {
	v := New(2, 1, 1)
	v.Data = []float64{0, 1}
	if !v.IsBinary() {
		t.Error("0/1 volume not recognized as binary")
	}
	v.Data[1] = 0.5
	if v.IsBinary() {
		t.Error("volume with fractional sample recognized as binary")
	}
}

// TestCloneIsolation verifies that Clone produces an independent copy.
func TestCloneIsolation(t *testing.T) {
	v := New(2, 2, 1)
	v.Spacing = [3]float64{0.7, 0.7, 2.5}
	v.Set(0, 0, 0, 4)

	c := v.Clone()
	c.Set(0, 0, 0, 9)

	if v.At(0, 0, 0) != 4 {
		t.Error("mutating the clone changed the original")
	}
	if c.Spacing != v.Spacing {
		t.Errorf("clone spacing = %v, want %v", c.Spacing, v.Spacing)
	}
}
