package volume

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// dicomSlice is one parsed single-frame file before stacking.
type dicomSlice struct {
	instance  int
	position  float64 // z component of ImagePositionPatient, or SliceLocation
	hasPos    bool
	rows      int
	cols      int
	samples   []float64
	spacingXY [2]float64
	thickness float64
	gap       float64
	originXY  [2]float64
}

// ReadDICOMDir loads a CT series from a directory of single-frame .dcm
// files. Slices are ordered by InstanceNumber when present and by slice
// position otherwise, and stored values are rescaled to Hounsfield units
// with RescaleSlope and RescaleIntercept.
func ReadDICOMDir(dir string) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dicom directory: %w", err)
	}

	var slices []dicomSlice
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".dcm") {
			continue
		}
		s, err := readDICOMSlice(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		slices = append(slices, s)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("no .dcm files in %s", dir)
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].instance != slices[j].instance {
			return slices[i].instance < slices[j].instance
		}
		return slices[i].position < slices[j].position
	})

	w, h := slices[0].cols, slices[0].rows
	for _, s := range slices {
		if s.cols != w || s.rows != h {
			return nil, fmt.Errorf("inconsistent slice dimensions: %dx%d vs %dx%d", s.cols, s.rows, w, h)
		}
	}

	vol := New(w, h, len(slices))
	for z, s := range slices {
		vol.SetSlice(z, s.samples)
	}

	vol.Spacing[0] = slices[0].spacingXY[0]
	vol.Spacing[1] = slices[0].spacingXY[1]
	vol.Spacing[2] = sliceSpacing(slices)
	vol.Origin[0] = slices[0].originXY[0]
	vol.Origin[1] = slices[0].originXY[1]
	if slices[0].hasPos {
		vol.Origin[2] = slices[0].position
	}
	for i, s := range vol.Spacing {
		if s <= 0 {
			vol.Spacing[i] = 1
		}
	}
	return vol, nil
}

// sliceSpacing derives the z step from consecutive slice positions, falling
// back to the tagged spacing or thickness when positions are missing.
func sliceSpacing(slices []dicomSlice) float64 {
	if len(slices) > 1 && slices[0].hasPos && slices[1].hasPos {
		if d := math.Abs(slices[1].position - slices[0].position); d > 0 {
			return d
		}
	}
	if slices[0].gap > 0 {
		return slices[0].gap
	}
	return slices[0].thickness
}

func readDICOMSlice(path string) (dicomSlice, error) {
	var s dicomSlice

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return s, fmt.Errorf("parse dicom: %w", err)
	}

	rows, ok := elementInt(&ds, tag.Rows)
	if !ok {
		return s, fmt.Errorf("missing Rows")
	}
	cols, ok := elementInt(&ds, tag.Columns)
	if !ok {
		return s, fmt.Errorf("missing Columns")
	}
	s.rows, s.cols = rows, cols

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return s, fmt.Errorf("missing PixelData")
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if info.IsEncapsulated {
		return s, fmt.Errorf("encapsulated transfer syntaxes are not supported")
	}
	if len(info.Frames) != 1 {
		return s, fmt.Errorf("expected a single frame, got %d", len(info.Frames))
	}
	img, err := info.Frames[0].GetImage()
	if err != nil {
		return s, fmt.Errorf("decode frame: %w", err)
	}

	signed := false
	if rep, ok := elementInt(&ds, tag.PixelRepresentation); ok && rep == 1 {
		signed = true
	}
	slope := 1.0
	if v, ok := elementFloat(&ds, tag.RescaleSlope); ok {
		slope = v
	}
	intercept := 0.0
	if v, ok := elementFloat(&ds, tag.RescaleIntercept); ok {
		intercept = v
	}

	s.samples = make([]float64, rows*cols)
	switch g := img.(type) {
	case *image.Gray16:
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				raw := g.Gray16At(x, y).Y
				stored := float64(raw)
				if signed {
					stored = float64(int16(raw))
				}
				s.samples[y*cols+x] = slope*stored + intercept
			}
		}
	case *image.Gray:
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				s.samples[y*cols+x] = slope*float64(g.GrayAt(x, y).Y) + intercept
			}
		}
	default:
		return s, fmt.Errorf("unsupported pixel format %T", img)
	}

	if v, ok := elementString(&ds, tag.InstanceNumber); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			s.instance = n
		}
	}
	if vals, ok := elementFloats(&ds, tag.ImagePositionPatient); ok && len(vals) == 3 {
		s.originXY = [2]float64{vals[0], vals[1]}
		s.position = vals[2]
		s.hasPos = true
	} else if v, ok := elementFloat(&ds, tag.SliceLocation); ok {
		s.position = v
		s.hasPos = true
	}
	// PixelSpacing is row spacing then column spacing, so y comes first.
	if vals, ok := elementFloats(&ds, tag.PixelSpacing); ok && len(vals) == 2 {
		s.spacingXY = [2]float64{vals[1], vals[0]}
	}
	if v, ok := elementFloat(&ds, tag.SliceThickness); ok {
		s.thickness = v
	}
	if v, ok := elementFloat(&ds, tag.SpacingBetweenSlices); ok {
		s.gap = v
	}
	return s, nil
}

func elementInt(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	vals, ok := el.Value.GetValue().([]int)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func elementString(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func elementFloat(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	vals, ok := elementFloats(ds, t)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// elementFloats decodes a decimal string element into float64 values.
func elementFloats(ds *dicom.Dataset, t tag.Tag) ([]float64, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, false
	}
	strs, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(strs))
	for _, s := range strs {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, f)
	}
	return out, len(out) > 0
}
