package seeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liverextract/pkg/volume"
)

// sliceFromRows builds a row major slice from a textual grid where X marks
// foreground.
func sliceFromRows(rows []string) ([]float64, int, int) {
	h := len(rows)
	w := len(rows[0])
	data := make([]float64, w*h)
	for y, row := range rows {
		for x, c := range row {
			if c == 'X' {
				data[y*w+x] = 1
			}
		}
	}
	return data, w, h
}

func TestSliceAreasAndLargest(t *testing.T) {
	vol := volume.New(3, 3, 3)
	vol.Set(0, 0, 0, 1)
	vol.Set(1, 0, 0, 1)
	for i := 0; i < 5; i++ {
		vol.Set(i%3, i/3, 1, 1)
		vol.Set(i%3, i/3, 2, 1)
	}

	assert.Equal(t, []int{2, 5, 5}, SliceAreas(vol))

	// Slices 1 and 2 tie, the lower index wins.
	idx, err := LargestMaskSlice(vol)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestLargestMaskSliceEmpty(t *testing.T) {
	_, err := LargestMaskSlice(volume.New(4, 4, 2))
	assert.ErrorIs(t, err, ErrNoForeground)
}

func TestLabelSlice(t *testing.T) {
	data, w, h := sliceFromRows([]string{
		".XX...",
		".XX...",
		"......",
		"...XXX",
		"...XXX",
	})

	labels, stats := LabelSlice(data, w, h)
	require.Len(t, stats, 3)

	// Discovery order scans rows first, so the top block is label 1.
	assert.Equal(t, 1, labels[0*w+1])
	assert.Equal(t, 1, labels[1*w+2])
	assert.Equal(t, 2, labels[3*w+3])
	assert.Equal(t, 2, labels[4*w+5])
	assert.Equal(t, 0, labels[2*w+0])

	assert.Equal(t, 4, stats[1].Area)
	assert.Equal(t, 1, stats[1].Left)
	assert.Equal(t, 0, stats[1].Top)
	assert.Equal(t, 2, stats[1].Width)
	assert.Equal(t, 2, stats[1].Height)
	assert.InDelta(t, 1.5, stats[1].CentroidX, 1e-12)
	assert.InDelta(t, 0.5, stats[1].CentroidY, 1e-12)

	assert.Equal(t, 6, stats[2].Area)
	assert.Equal(t, 3, stats[2].Left)
	assert.Equal(t, 3, stats[2].Top)
	assert.Equal(t, 3, stats[2].Width)
	assert.Equal(t, 2, stats[2].Height)
	assert.InDelta(t, 4.0, stats[2].CentroidX, 1e-12)
	assert.InDelta(t, 3.5, stats[2].CentroidY, 1e-12)

	// Background entry covers everything that is not foreground.
	assert.Equal(t, w*h-10, stats[0].Area)
	assert.Equal(t, 0, stats[0].Left)
	assert.Equal(t, 0, stats[0].Top)
	assert.Equal(t, w, stats[0].Width)
	assert.Equal(t, h, stats[0].Height)
}

func TestLabelSliceDiagonalsSeparate(t *testing.T) {
	data, w, h := sliceFromRows([]string{
		"X.",
		".X",
	})
	labels, stats := LabelSlice(data, w, h)

	// Diagonal neighbors are not connected under four connectivity.
	assert.Len(t, stats, 3)
	assert.NotEqual(t, labels[0], labels[3])
}

func TestLiverCentroid(t *testing.T) {
	data, w, h := sliceFromRows([]string{
		".XX...",
		".XX...",
		"......",
		"...XXX",
		"...XXX",
	})

	// The background is the biggest region, so the second biggest is the
	// 3x2 block and its centroid truncates to (4, 3).
	x, y, err := LiverCentroid(data, w, h)
	require.NoError(t, err)
	assert.Equal(t, 4, x)
	assert.Equal(t, 3, y)
}

func TestLiverCentroidEmpty(t *testing.T) {
	data := make([]float64, 16)
	_, _, err := LiverCentroid(data, 4, 4)
	assert.ErrorIs(t, err, ErrNoForeground)
}

func TestSamplePixels(t *testing.T) {
	data, w, h := sliceFromRows([]string{
		"XXXX....",
		"XXXX....",
		"....XXXX",
		"....XXXX",
	})

	picks, err := SamplePixels(data, w, h, 7, 10, 9)
	require.NoError(t, err)
	require.Len(t, picks, 10)

	seen := map[volume.Point]bool{}
	for _, p := range picks {
		assert.Equal(t, 7, p.Z)
		assert.NotZero(t, data[p.Y*w+p.X], "sampled a background pixel at (%d,%d)", p.X, p.Y)
		assert.False(t, seen[p], "pixel (%d,%d) sampled twice", p.X, p.Y)
		seen[p] = true
	}

	// The same seed must reproduce the same sample.
	again, err := SamplePixels(data, w, h, 7, 10, 9)
	require.NoError(t, err)
	assert.Equal(t, picks, again)
}

func TestSamplePixelsTooFew(t *testing.T) {
	data, w, h := sliceFromRows([]string{
		"X...",
		"....",
	})
	_, err := SamplePixels(data, w, h, 0, 2, 9)
	assert.ErrorIs(t, err, ErrNoForeground)
}
