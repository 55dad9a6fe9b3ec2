// Package segmentation implements the two stage liver extraction pipelines.
// Stage one derives a single seed from anatomical heuristics and grows a
// coarse liver mask from it; stage two refines that mask by growing again
// from many seeds sampled inside it. Both stages share the preprocessing
// filters and the confidence connected growing core.
package segmentation

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"liverextract/pkg/filters"
	"liverextract/pkg/growing"
	"liverextract/pkg/seeds"
	"liverextract/pkg/shearlet"
	"liverextract/pkg/visualization"
	"liverextract/pkg/volume"
)

// Result holds the output of an extraction pipeline.
type Result struct {
	// Intensity carries the original scan intensities inside the final
	// mask, with everything else set to the scan minimum. This is the
	// volume written as the primary output.
	Intensity *volume.Volume

	// Mask is the final binary liver mask.
	Mask *volume.Volume

	// SeedSlice is the index of the slice the seeds were derived from.
	SeedSlice int

	// Areas is the per slice foreground area profile of the mask.
	Areas []int
}

// OneSeedParams configures the stage one pipeline.
type OneSeedParams struct {
	// SmoothRadius is the box mean radius used both for the slice finding
	// pass and for the growing input.
	SmoothRadius int

	// ThresholdLow and ThresholdHigh bound the soft tissue intensity band
	// used to locate the liver bearing slice.
	ThresholdLow  float64
	ThresholdHigh float64

	// SigmoidRegion is the side length of the square region around the
	// seed that calibrates the sigmoid contrast remap.
	SigmoidRegion int

	// GrowMultiplier scales the standard deviation of the seed
	// neighborhood when building the acceptance interval.
	GrowMultiplier float64

	// SeedRadius is the neighborhood radius pooled around the seed for the
	// initial growing statistics.
	SeedRadius int

	// GrowIterations recomputes the growing statistics that many times.
	GrowIterations int

	// OpenRadius, ReconstructionRadius and CloseRadius drive the mask
	// cleanup after growing.
	OpenRadius           int
	ReconstructionRadius int
	CloseRadius          int

	// SavePreviews writes stage preview images to PreviewDir.
	SavePreviews bool
	PreviewDir   string
}

// OneSeed runs the stage one extraction: locate the liver bearing slice on
// the thresholded right half of the scan, derive one seed from the biggest
// tissue blob, enhance contrast around it and grow a mask that is then
// cleaned up morphologically.
type OneSeed struct {
	// params stores the pipeline configuration
	params *OneSeedParams

	// input is the scan being segmented
	input *volume.Volume

	// log receives the step by step progress
	log zerolog.Logger
}

// NewOneSeed creates a stage one pipeline for the given scan.
func NewOneSeed(input *volume.Volume, params *OneSeedParams, log zerolog.Logger) *OneSeed {
	return &OneSeed{
		params: params,
		input:  input,
		log:    log.With().Str("pipeline", "one-seed").Logger(),
	}
}

// Process runs the complete stage one pipeline.
func (s *OneSeed) Process() (*Result, error) {
	p := s.params

	// Step 1: restrict the search to the patient's right side, where the
	// liver sits. The growing itself still runs on the full grid.
	s.log.Info().Msg("step 1: cropping to the liver side")
	cropped := filters.CropRightHalf(s.input)

	// Step 2: smooth and threshold the cropped half to find liver tissue.
	s.log.Info().Int("radius", p.SmoothRadius).Msg("step 2: smoothing cropped volume")
	smoothed, err := filters.Mean(cropped, p.SmoothRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to smooth cropped volume: %w", err)
	}

	s.log.Info().
		Float64("low", p.ThresholdLow).
		Float64("high", p.ThresholdHigh).
		Msg("step 3: thresholding soft tissue band")
	tissue := filters.Threshold(smoothed, p.ThresholdLow, p.ThresholdHigh, 1, 0)

	// Step 4: the slice with the most tissue is where the liver dominates.
	sliceIdx, err := seeds.LargestMaskSlice(tissue)
	if err != nil {
		return nil, fmt.Errorf("failed to locate liver slice: %w", err)
	}
	s.log.Info().Int("slice", sliceIdx).Msg("step 4: selected liver bearing slice")
	s.savePreview("01_tissue_slice", tissue, sliceIdx)

	// Step 5: the biggest tissue blob on that slice gives the seed.
	cx, cy, err := seeds.LiverCentroid(tissue.Slice(sliceIdx), tissue.Width, tissue.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to derive seed from slice %d: %w", sliceIdx, err)
	}
	seed := volume.Point{X: cx, Y: cy, Z: sliceIdx}
	s.log.Info().Int("x", cx).Int("y", cy).Int("z", sliceIdx).Msg("step 5: seed located")

	// Step 6: back on the full grid, smooth and re-center the contrast
	// around the seed region, then equalize.
	s.log.Info().Msg("step 6: preparing growing input")
	prepared, err := filters.Mean(s.input, p.SmoothRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to smooth volume: %w", err)
	}
	prepared, err = filters.Sigmoid(prepared, seed.Z, seed.X, seed.Y, p.SigmoidRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to apply sigmoid remap: %w", err)
	}
	prepared = filters.HistogramEqualize(prepared)
	s.savePreview("02_prepared", prepared, sliceIdx)
	s.saveEdgePreview("03_edges", sliceIdx)

	// Step 7: grow the liver region from the single seed.
	s.log.Info().
		Float64("multiplier", p.GrowMultiplier).
		Int("radius", p.SeedRadius).
		Int("iterations", p.GrowIterations).
		Msg("step 7: growing region")
	mask, err := growing.ConfidenceConnected(prepared, []volume.Point{seed}, p.GrowMultiplier, p.SeedRadius, p.GrowIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to grow region: %w", err)
	}
	s.log.Info().Int("voxels", mask.NonzeroCount()).Msg("region grown")
	s.saveOverlay("04_grown", mask, sliceIdx)

	// Step 8: clean the mask up. Opening drops leaked speckles, the
	// reconstruction fills vessels and tumors enclosed in the liver, the
	// final closing smooths the contour.
	s.log.Info().Msg("step 8: cleaning mask")
	mask, err = filters.BinaryOpen(mask, p.OpenRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to open mask: %w", err)
	}
	mask, err = filters.BinaryCloseByReconstruction(mask, p.ReconstructionRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to close mask by reconstruction: %w", err)
	}
	mask, err = filters.BinaryClose(mask, p.CloseRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to close mask: %w", err)
	}
	s.log.Info().Int("voxels", mask.NonzeroCount()).Msg("mask cleaned")
	s.saveOverlay("05_mask", mask, sliceIdx)

	// Step 9: carry the original intensities through the mask.
	intensity, err := filters.Mask(s.input, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to mask volume: %w", err)
	}

	return &Result{
		Intensity: intensity,
		Mask:      mask,
		SeedSlice: sliceIdx,
		Areas:     seeds.SliceAreas(mask),
	}, nil
}

// savePreview writes a windowed slice image when previews are enabled.
// Preview failures only warn, they never abort a run.
func (s *OneSeed) savePreview(name string, vol *volume.Volume, z int) {
	if !s.params.SavePreviews {
		return
	}
	path := filepath.Join(s.params.PreviewDir, name+".png")
	if err := visualization.SaveSlicePNG(vol, z, path); err != nil {
		s.log.Warn().Err(err).Str("preview", name).Msg("failed to save preview")
	}
}

// saveOverlay writes the input slice with the mask contour when previews
// are enabled.
func (s *OneSeed) saveOverlay(name string, mask *volume.Volume, z int) {
	if !s.params.SavePreviews {
		return
	}
	path := filepath.Join(s.params.PreviewDir, name+".png")
	if err := visualization.SaveOverlayPNG(s.input, mask, z, path); err != nil {
		s.log.Warn().Err(err).Str("preview", name).Msg("failed to save preview")
	}
}

// saveEdgePreview renders the directional edge map of one scan slice when
// previews are enabled. The map shows how well the liver boundary stands
// out on the slice the seed came from.
func (s *OneSeed) saveEdgePreview(name string, z int) {
	if !s.params.SavePreviews {
		return
	}
	edges, err := shearlet.NewTransform().DetectEdges(s.input.Slice(z), s.input.Width, s.input.Height)
	if err != nil {
		s.log.Warn().Err(err).Str("preview", name).Msg("failed to compute edge map")
		return
	}
	edgeSlice := volume.New(s.input.Width, s.input.Height, 1)
	edgeSlice.SetSlice(0, edges)
	path := filepath.Join(s.params.PreviewDir, name+".png")
	if err := visualization.SaveSlicePNG(edgeSlice, 0, path); err != nil {
		s.log.Warn().Err(err).Str("preview", name).Msg("failed to save preview")
	}
}
