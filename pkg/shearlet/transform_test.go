package shearlet

import (
	"math"
	"testing"
)

// stepImage builds a grayscale image split into a low left half and a high
// right half, with the step in front of column edge.
func stepImage(width, height, edge int) []float64 {
	img := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= edge {
				img[y*width+x] = 20
			} else {
				img[y*width+x] = 10
			}
		}
	}
	return img
}

// columnStrength sums edge responses down one column.
func columnStrength(edges []float64, width, height, x int) float64 {
	sum := 0.0
	for y := 0; y < height; y++ {
		sum += edges[y*width+x]
	}
	return sum
}

// TestDetectEdgesFlat verifies that an image without any variation
// produces a strictly zero edge map.
func TestDetectEdgesFlat(t *testing.T) {
	img := make([]float64, 32*32)
	for i := range img {
		img[i] = 7
	}

	info, err := NewTransform().DetectEdgesWithOrientation(img, 32, 32)
	if err != nil {
		t.Fatalf("DetectEdgesWithOrientation failed: %v", err)
	}
	if len(info.Edges) != 32*32 || len(info.Orientations) != 32*32 {
		t.Fatalf("Wrong output sizes: %d edges, %d orientations", len(info.Edges), len(info.Orientations))
	}
	for i, e := range info.Edges {
		if e != 0 {
			t.Fatalf("Flat image produced edge strength %v at pixel %d", e, i)
		}
	}
}

// TestDetectEdgesVerticalStep verifies that the strongest response of a
// vertical step sits on the step and reports a horizontal edge normal.
// The spectrum is periodic, so the columns where the image wraps count as
// an edge too.
func TestDetectEdgesVerticalStep(t *testing.T) {
	const width, height, edge = 32, 32, 16
	img := stepImage(width, height, edge)

	info, err := NewTransform().DetectEdgesWithOrientation(img, width, height)
	if err != nil {
		t.Fatalf("DetectEdgesWithOrientation failed: %v", err)
	}

	best := 0
	maxEdge := 0.0
	for i, e := range info.Edges {
		if e < 0 || e > 1 {
			t.Fatalf("Edge strength %v at pixel %d is outside [0, 1]", e, i)
		}
		if e > maxEdge {
			maxEdge = e
			best = i
		}
	}
	if maxEdge != 1 {
		t.Fatalf("Expected a normalized maximum of 1, got %v", maxEdge)
	}

	switch x := best % width; x {
	case 0, edge - 1, edge, width - 1:
	default:
		t.Fatalf("Strongest response at column %d, expected the step or wrap columns", x)
	}
	if a := info.Orientations[best]; math.Abs(a) > 1e-9 {
		t.Errorf("Expected an edge normal along x, got angle %v", a)
	}

	onStep := columnStrength(info.Edges, width, height, edge)
	between := columnStrength(info.Edges, width, height, edge/2)
	if onStep <= between {
		t.Errorf("Step column strength %v should exceed mid column strength %v", onStep, between)
	}
}

// TestDetectEdgesHorizontalStep transposes the previous case and expects
// the orientation to flip by a quarter turn.
func TestDetectEdgesHorizontalStep(t *testing.T) {
	const width, height, edge = 32, 32, 16
	img := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if y >= edge {
				img[y*width+x] = 20
			} else {
				img[y*width+x] = 10
			}
		}
	}

	info, err := NewTransform().DetectEdgesWithOrientation(img, width, height)
	if err != nil {
		t.Fatalf("DetectEdgesWithOrientation failed: %v", err)
	}

	best := 0
	for i, e := range info.Edges {
		if e > info.Edges[best] {
			best = i
		}
	}
	switch y := best / width; y {
	case 0, edge - 1, edge, height - 1:
	default:
		t.Fatalf("Strongest response at row %d, expected the step or wrap rows", y)
	}
	if a := info.Orientations[best]; math.Abs(math.Abs(a)-math.Pi/2) > 1e-9 {
		t.Errorf("Expected an edge normal along y, got angle %v", a)
	}
}

// TestDetectEdgesNonSquare runs a width that needs padding and a height
// that does not.
func TestDetectEdgesNonSquare(t *testing.T) {
	const width, height, edge = 48, 16, 24
	img := stepImage(width, height, edge)

	edges, err := NewTransform().DetectEdges(img, width, height)
	if err != nil {
		t.Fatalf("DetectEdges failed: %v", err)
	}
	if len(edges) != width*height {
		t.Fatalf("Expected %d samples, got %d", width*height, len(edges))
	}

	best := 0
	for i, e := range edges {
		if e > edges[best] {
			best = i
		}
	}
	switch x := best % width; x {
	case 0, edge - 1, edge:
	default:
		t.Fatalf("Strongest response at column %d, expected the step or wrap columns", x)
	}
}

func TestDetectEdgesBadInput(t *testing.T) {
	if _, err := NewTransform().DetectEdges(make([]float64, 10), 4, 4); err == nil {
		t.Error("Expected an error for a short sample slice")
	}
	if _, err := NewTransform().DetectEdges(nil, 0, 0); err == nil {
		t.Error("Expected an error for empty dimensions")
	}
}

// TestRadialWindow pins the band edges of the dyadic window.
func TestRadialWindow(t *testing.T) {
	if got := radialWindow(0, 0.25); got != 0 {
		t.Errorf("Window at zero frequency should vanish, got %v", got)
	}
	if got := radialWindow(0.25, 0.25); math.Abs(got-1) > 1e-12 {
		t.Errorf("Window at its center should be 1, got %v", got)
	}
	if got := radialWindow(0.5, 0.25); got != 0 {
		t.Errorf("Window one octave up should vanish, got %v", got)
	}
	if got := radialWindow(0.125, 0.25); got != 0 {
		t.Errorf("Window one octave down should vanish, got %v", got)
	}
}

// TestNormalAngle checks the fold into [-pi/2, pi/2).
func TestNormalAngle(t *testing.T) {
	cases := []struct {
		dx, dy float64
		want   float64
	}{
		{1, 0, 0},
		{1, 1, math.Pi / 4},
		{0, 1, -math.Pi / 2},
		{-1, 1, -math.Pi / 4},
		{-1, 0, 0},
	}
	for _, c := range cases {
		if got := normalAngle(c.dx, c.dy); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("normalAngle(%v, %v) = %v, want %v", c.dx, c.dy, got, c.want)
		}
	}
}
