package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"liverextract/pkg/config"
	"liverextract/pkg/evaluation"
	"liverextract/pkg/interpolation"
	"liverextract/pkg/mesh"
	"liverextract/pkg/segmentation"
	"liverextract/pkg/visualization"
	"liverextract/pkg/volume"
)

const usage = `liverextract segments the liver out of abdominal CT scans.

Usage:
  liverextract osrg [flags] <archive> <member> <output>
  liverextract msrg [flags] <archive> <member> <output>
  liverextract init-config <path>

Commands:
  osrg         one seed region growing, the coarse stage one extraction
  msrg         multi seed region growing, the refined two stage extraction
  init-config  write the default configuration to a YAML file

The scan is read from <member> inside <archive>.zip under the data
directory and the segmented volume is written to <output> as NIfTI.
Run "liverextract osrg -h" or "liverextract msrg -h" for the flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "osrg", "msrg":
		err = runExtraction(os.Args[1], os.Args[2:])
	case "init-config":
		if len(os.Args) != 3 {
			err = fmt.Errorf("init-config needs exactly one path argument")
		} else {
			err = config.CreateDefaultConfigFile(os.Args[2])
		}
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "liverextract: %v\n", err)
		os.Exit(1)
	}
}

// runExtraction drives one pipeline run: load the scan, segment it, write
// the outputs and optionally score and record the result.
func runExtraction(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "YAML file overriding the default parameters")
	dataDir := fs.String("data-dir", "", "directory holding the zipped scans (default: the liver directory under your home)")
	gtArchive := fs.String("gt-archive", "", "archive holding the reference annotation")
	gtMember := fs.String("gt-file", "", "annotation member inside the reference archive")
	saveBinary := fs.Bool("save-binary", false, "additionally write the binary mask next to the output")
	saveSTL := fs.String("save-stl", "", "additionally write the mask surface as binary STL to this path")
	stlUpsample := fs.Int("stl-upsample", 0, "slices interpolated per slice step before meshing (default: from config)")
	previews := fs.Bool("previews", false, "write stage preview images and the area profile chart")
	previewDir := fs.String("preview-dir", "", "directory for preview images (default: from config)")
	metricsDB := fs.String("metrics-db", "", "sqlite database recording runs")
	cores := fs.Int("cores", 0, "CPU cores to use (default: all available)")
	verbose := fs.Bool("verbose", false, "log debug details")
	quiet := fs.Bool("quiet", false, "log warnings and errors only")
	fs.Parse(args)

	if fs.NArg() != 3 {
		fs.Usage()
		return fmt.Errorf("%s needs exactly three arguments: <archive> <member> <output>", command)
	}
	archive, member, output := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dataDir != "" {
		cfg.Processing.DataDir = *dataDir
	}
	if *cores > 0 {
		cfg.Processing.NumCores = *cores
	}
	if *previews {
		cfg.Output.SavePreviews = true
	}
	if *previewDir != "" {
		cfg.Output.PreviewDir = *previewDir
	}
	if *stlUpsample > 0 {
		cfg.Mesh.UpsampleFactor = *stlUpsample
	}
	if cfg.Processing.NumCores > 0 {
		runtime.GOMAXPROCS(cfg.Processing.NumCores)
	}

	level := zerolog.InfoLevel
	if !cfg.Output.Verbose {
		level = zerolog.WarnLevel
	}
	if *verbose {
		level = zerolog.DebugLevel
	}
	if *quiet {
		level = zerolog.WarnLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("command", command).Logger()

	logger.Info().Str("archive", archive).Str("member", member).Msg("loading scan")
	scan, err := volume.ReadZipped(cfg.Processing.DataDir, archive, member)
	if err != nil {
		return fmt.Errorf("loading scan: %w", err)
	}
	logger.Info().
		Int("width", scan.Width).Int("height", scan.Height).Int("depth", scan.Depth).
		Msg("scan loaded")

	started := time.Now()
	result, err := segment(command, scan, cfg, logger)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	if err := volume.WriteNIfTI(output, result.Intensity); err != nil {
		return fmt.Errorf("writing segmentation: %w", err)
	}
	logger.Info().Str("output", output).Msg("segmentation written")

	if *saveBinary {
		binaryPath := volume.BinaryOutputPath(output)
		if err := volume.WriteNIfTI(binaryPath, result.Mask); err != nil {
			return fmt.Errorf("writing binary mask: %w", err)
		}
		logger.Info().Str("output", binaryPath).Msg("binary mask written")
	}

	if *saveSTL != "" {
		if err := exportSurface(*saveSTL, result.Mask, cfg.Mesh.UpsampleFactor, logger); err != nil {
			return fmt.Errorf("writing surface: %w", err)
		}
		logger.Info().Str("output", *saveSTL).Msg("surface written")
	}

	if cfg.Output.SavePreviews {
		profile := filepath.Join(cfg.Output.PreviewDir, "area_profile.png")
		if err := visualization.AreaProfilePlot(result.Areas, profile); err != nil {
			logger.Warn().Err(err).Msg("failed to plot area profile")
		}
	}

	var scores *evaluation.Metrics
	if *gtArchive != "" || *gtMember != "" {
		if *gtArchive == "" || *gtMember == "" {
			return fmt.Errorf("scoring needs both -gt-archive and -gt-file")
		}
		scores, err = score(result, *gtArchive, *gtMember, cfg.Processing.DataDir, logger)
		if err != nil {
			return err
		}
	}

	if *metricsDB != "" {
		if err := record(*metricsDB, command, archive, member, output, scores, started, elapsed); err != nil {
			return err
		}
		logger.Info().Str("db", *metricsDB).Msg("run recorded")
	}

	fmt.Printf("\nExtraction finished in %.2f seconds\n", elapsed.Seconds())
	fmt.Printf("Segmented volume: %s\n", output)
	fmt.Printf("Mask voxels: %d across %d slices (seed slice %d)\n",
		result.Mask.NonzeroCount(), result.Mask.Depth, result.SeedSlice)
	return nil
}

// exportSurface meshes the binary mask and writes it as binary STL. With
// an upsample factor above 1 the mask is first interpolated along z so the
// surface does not show slice steps.
func exportSurface(path string, mask *volume.Volume, factor int, logger zerolog.Logger) error {
	if factor > 1 {
		logger.Info().Int("factor", factor).Msg("interpolating mask slices")
		up, err := interpolation.NewKriging(mask, factor).Interpolate()
		if err != nil {
			return err
		}
		mask = up
	}

	tris := mesh.NewMarcher(mask, 0.5).Triangles()
	logger.Info().Int("triangles", len(tris)).Msg("surface extracted")
	return mesh.WriteSTL(path, tris)
}

// segment dispatches to the pipeline matching the subcommand.
func segment(command string, scan *volume.Volume, cfg *config.Config, logger zerolog.Logger) (*segmentation.Result, error) {
	oneSeed := &segmentation.OneSeedParams{
		SmoothRadius:         cfg.OneSeed.SmoothRadius,
		ThresholdLow:         cfg.OneSeed.ThresholdLow,
		ThresholdHigh:        cfg.OneSeed.ThresholdHigh,
		SigmoidRegion:        cfg.OneSeed.SigmoidRegion,
		GrowMultiplier:       cfg.OneSeed.GrowMultiplier,
		SeedRadius:           cfg.OneSeed.SeedRadius,
		GrowIterations:       cfg.OneSeed.GrowIterations,
		OpenRadius:           cfg.OneSeed.OpenRadius,
		ReconstructionRadius: cfg.OneSeed.ReconstructionRadius,
		CloseRadius:          cfg.OneSeed.CloseRadius,
		SavePreviews:         cfg.Output.SavePreviews,
		PreviewDir:           cfg.Output.PreviewDir,
	}

	if command == "osrg" {
		return segmentation.NewOneSeed(scan, oneSeed, logger).Process()
	}

	multiSeed := &segmentation.MultiSeedParams{
		OneSeed:         oneSeed,
		SmoothRadius:    cfg.MultiSeed.SmoothRadius,
		ErodeRadius:     cfg.MultiSeed.ErodeRadius,
		ErodeIterations: cfg.MultiSeed.ErodeIterations,
		SeedCount:       cfg.MultiSeed.SeedCount,
		SeedStream:      cfg.MultiSeed.SeedStream,
		GrowMultiplier:  cfg.MultiSeed.GrowMultiplier,
		GrowIterations:  cfg.MultiSeed.GrowIterations,
		OpenRadius:      cfg.MultiSeed.OpenRadius,
		SavePreviews:    cfg.Output.SavePreviews,
		PreviewDir:      cfg.Output.PreviewDir,
	}
	return segmentation.NewMultiSeed(scan, multiSeed, logger).Process()
}

// score loads the reference annotation and prints the quality metrics.
func score(result *segmentation.Result, gtArchive, gtMember, dataDir string, logger zerolog.Logger) (*evaluation.Metrics, error) {
	logger.Info().Str("archive", gtArchive).Str("member", gtMember).Msg("loading reference annotation")
	ref, err := volume.ReadZipped(dataDir, gtArchive, gtMember)
	if err != nil {
		return nil, fmt.Errorf("loading reference annotation: %w", err)
	}

	m, err := evaluation.Compare(result.Mask, ref)
	if err != nil {
		return nil, fmt.Errorf("scoring segmentation: %w", err)
	}

	fmt.Printf("\nSegmentation quality vs reference:\n")
	fmt.Printf("==================================\n")
	fmt.Printf("Volumetric Overlap Error (VOE):            %.2f%%\n", m.VOE)
	fmt.Printf("Relative Volume Difference (RVD):          %.2f%%\n", m.RVD)
	fmt.Printf("Dice coefficient:                          %.4f\n", m.Dice)
	fmt.Printf("Jaccard index:                             %.4f\n", m.Jaccard)
	fmt.Printf("Average Symmetric Surface Distance (ASSD): %.3f mm\n", m.ASSD)
	return &m, nil
}

// record appends the run to the sqlite history.
func record(dbPath, command, archive, member, output string, scores *evaluation.Metrics, started time.Time, elapsed time.Duration) error {
	store, err := evaluation.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveRun(evaluation.Run{
		ID:      uuid.NewString(),
		Started: started,
		Command: command,
		Archive: archive,
		Member:  member,
		Output:  output,
		Scores:  scores,
		Elapsed: elapsed,
	})
}
