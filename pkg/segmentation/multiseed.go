package segmentation

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"liverextract/pkg/filters"
	"liverextract/pkg/growing"
	"liverextract/pkg/seeds"
	"liverextract/pkg/visualization"
	"liverextract/pkg/volume"
)

// MultiSeedParams configures the stage two pipeline, including the stage
// one run it builds on.
type MultiSeedParams struct {
	// OneSeed configures the stage one run that produces the coarse mask.
	OneSeed *OneSeedParams

	// SmoothRadius is the box mean radius applied to the scan before the
	// coarse mask restricts it.
	SmoothRadius int

	// ErodeRadius and ErodeIterations shrink the coarse mask slice before
	// seeds are drawn, keeping the sample away from the mask boundary.
	ErodeRadius     int
	ErodeIterations int

	// SeedCount is how many seed pixels are drawn from the eroded slice.
	SeedCount int

	// SeedStream selects the deterministic random stream for the draw.
	SeedStream uint64

	// GrowMultiplier scales the standard deviation of the pooled seed
	// values when building the acceptance interval.
	GrowMultiplier float64

	// GrowIterations recomputes the growing statistics that many times.
	GrowIterations int

	// OpenRadius drives the mask cleanup after growing.
	OpenRadius int

	// SavePreviews writes stage preview images to PreviewDir.
	SavePreviews bool
	PreviewDir   string
}

// MultiSeed runs the stage two extraction: a stage one run yields a coarse
// mask, the scan is smoothed and restricted to that mask, and a second
// growing pass from many seeds sampled well inside the mask recovers the
// liver with tighter boundaries.
type MultiSeed struct {
	// params stores the pipeline configuration
	params *MultiSeedParams

	// input is the scan being segmented
	input *volume.Volume

	// log receives the step by step progress
	log zerolog.Logger
}

// NewMultiSeed creates a stage two pipeline for the given scan.
func NewMultiSeed(input *volume.Volume, params *MultiSeedParams, log zerolog.Logger) *MultiSeed {
	return &MultiSeed{
		params: params,
		input:  input,
		log:    log.With().Str("pipeline", "multi-seed").Logger(),
	}
}

// Process runs stage one followed by the complete stage two pipeline.
func (s *MultiSeed) Process() (*Result, error) {
	p := s.params

	// Step 1: obtain the coarse mask.
	s.log.Info().Msg("step 1: running stage one for the coarse mask")
	coarse, err := NewOneSeed(s.input, p.OneSeed, s.log).Process()
	if err != nil {
		return nil, fmt.Errorf("stage one failed: %w", err)
	}

	// Step 2: smooth the scan and keep only what the coarse mask covers,
	// then equalize the remaining intensities.
	s.log.Info().Int("radius", p.SmoothRadius).Msg("step 2: smoothing and masking scan")
	smoothed, err := filters.Mean(s.input, p.SmoothRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to smooth volume: %w", err)
	}
	restricted, err := filters.Mask(smoothed, coarse.Mask)
	if err != nil {
		return nil, fmt.Errorf("failed to restrict volume to coarse mask: %w", err)
	}
	prepared := filters.HistogramEqualize(restricted)
	s.savePreview("06_refined_input", prepared, coarse.SeedSlice)

	// Step 3: erode the coarse mask slice so the seed sample stays clear
	// of the boundary, then draw the seeds.
	s.log.Info().
		Int("radius", p.ErodeRadius).
		Int("iterations", p.ErodeIterations).
		Msg("step 3: eroding seed slice")
	core, err := filters.ErodeSlice(coarse.Mask.Slice(coarse.SeedSlice),
		coarse.Mask.Width, coarse.Mask.Height, p.ErodeRadius, p.ErodeIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to erode seed slice: %w", err)
	}

	seedPts, err := seeds.SamplePixels(core, coarse.Mask.Width, coarse.Mask.Height,
		coarse.SeedSlice, p.SeedCount, p.SeedStream)
	if err != nil {
		return nil, fmt.Errorf("failed to sample seeds: %w", err)
	}
	s.log.Info().Int("seeds", len(seedPts)).Int("slice", coarse.SeedSlice).Msg("seeds drawn")
	s.saveSeedPreview("07_seeds", seedPts, coarse.SeedSlice)

	// Step 4: grow again from the seed sample. The seeds pool no
	// neighborhood, their own values set the interval.
	s.log.Info().
		Float64("multiplier", p.GrowMultiplier).
		Int("iterations", p.GrowIterations).
		Msg("step 4: growing refined region")
	mask, err := growing.ConfidenceConnected(prepared, seedPts, p.GrowMultiplier, 0, p.GrowIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to grow refined region: %w", err)
	}
	s.log.Info().Int("voxels", mask.NonzeroCount()).Msg("refined region grown")

	// Step 5: drop speckles and carry the original intensities through.
	mask, err = filters.BinaryOpen(mask, p.OpenRadius)
	if err != nil {
		return nil, fmt.Errorf("failed to open refined mask: %w", err)
	}
	s.saveOverlayPreview("08_mask", mask, coarse.SeedSlice)

	intensity, err := filters.Mask(s.input, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to mask volume: %w", err)
	}

	return &Result{
		Intensity: intensity,
		Mask:      mask,
		SeedSlice: coarse.SeedSlice,
		Areas:     seeds.SliceAreas(mask),
	}, nil
}

func (s *MultiSeed) savePreview(name string, vol *volume.Volume, z int) {
	if !s.params.SavePreviews {
		return
	}
	path := filepath.Join(s.params.PreviewDir, name+".png")
	if err := visualization.SaveSlicePNG(vol, z, path); err != nil {
		s.log.Warn().Err(err).Str("preview", name).Msg("failed to save preview")
	}
}

func (s *MultiSeed) saveOverlayPreview(name string, mask *volume.Volume, z int) {
	if !s.params.SavePreviews {
		return
	}
	path := filepath.Join(s.params.PreviewDir, name+".png")
	if err := visualization.SaveOverlayPNG(s.input, mask, z, path); err != nil {
		s.log.Warn().Err(err).Str("preview", name).Msg("failed to save preview")
	}
}

// saveSeedPreview marks the sampled seed pixels on the scan slice.
func (s *MultiSeed) saveSeedPreview(name string, pts []volume.Point, z int) {
	if !s.params.SavePreviews {
		return
	}
	marks := volume.NewLike(s.input)
	for _, pt := range pts {
		marks.Set(pt.X, pt.Y, pt.Z, 1)
	}
	s.saveOverlayPreview(name, marks, z)
}
