// Package config provides configuration loading and management for
// liverextract. It handles loading tunable pipeline parameters from YAML
// files and provides defaults matching the published two stage method.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel filtering
		NumCores int `yaml:"numCores"`

		// DataDir is the directory holding the zipped scan archives.
		// Empty means the liver directory under the user's home.
		DataDir string `yaml:"dataDir"`
	} `yaml:"processing"`

	// OneSeed holds the stage one pipeline tunables
	OneSeed struct {
		// SmoothRadius is the box mean radius applied before thresholding
		// and before growing
		SmoothRadius int `yaml:"smoothRadius"`

		// ThresholdLow and ThresholdHigh bound the soft tissue band in
		// Hounsfield units used to find the liver slice
		ThresholdLow  float64 `yaml:"thresholdLow"`
		ThresholdHigh float64 `yaml:"thresholdHigh"`

		// SigmoidRegion is the side length of the square region around the
		// seed that calibrates the sigmoid remap
		SigmoidRegion int `yaml:"sigmoidRegion"`

		// GrowMultiplier scales the standard deviation when building the
		// acceptance interval
		GrowMultiplier float64 `yaml:"growMultiplier"`

		// SeedRadius is the neighborhood pooled around the seed for the
		// initial growing statistics
		SeedRadius int `yaml:"seedRadius"`

		// GrowIterations is how often the growing statistics are recomputed
		GrowIterations int `yaml:"growIterations"`

		// OpenRadius, ReconstructionRadius and CloseRadius control the mask
		// cleanup after growing
		OpenRadius           int `yaml:"openRadius"`
		ReconstructionRadius int `yaml:"reconstructionRadius"`
		CloseRadius          int `yaml:"closeRadius"`
	} `yaml:"oneSeed"`

	// MultiSeed holds the stage two pipeline tunables
	MultiSeed struct {
		// SmoothRadius is the box mean radius applied to the full volume
		SmoothRadius int `yaml:"smoothRadius"`

		// ErodeRadius and ErodeIterations shrink the stage one slice before
		// seeds are drawn from it
		ErodeRadius     int `yaml:"erodeRadius"`
		ErodeIterations int `yaml:"erodeIterations"`

		// SeedCount is how many seed pixels are drawn
		SeedCount int `yaml:"seedCount"`

		// SeedStream selects the deterministic random stream for seed
		// sampling
		SeedStream uint64 `yaml:"seedStream"`

		// GrowMultiplier scales the standard deviation when building the
		// acceptance interval
		GrowMultiplier float64 `yaml:"growMultiplier"`

		// GrowIterations is how often the growing statistics are recomputed
		GrowIterations int `yaml:"growIterations"`

		// OpenRadius controls the mask cleanup after growing
		OpenRadius int `yaml:"openRadius"`
	} `yaml:"multiSeed"`

	// Mesh holds the surface export tunables
	Mesh struct {
		// UpsampleFactor is how many output slices replace one input slice
		// step before meshing. 1 keeps the native slice spacing.
		UpsampleFactor int `yaml:"upsampleFactor"`
	} `yaml:"mesh"`

	// Output parameters
	Output struct {
		// SavePreviews determines whether stage preview images are written
		SavePreviews bool `yaml:"savePreviews"`

		// PreviewDir is the directory where preview images are saved.
		// Only used when SavePreviews is true.
		PreviewDir string `yaml:"previewDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.DataDir = ""

	// Set default stage one parameters
	cfg.OneSeed.SmoothRadius = 2
	cfg.OneSeed.ThresholdLow = 60
	cfg.OneSeed.ThresholdHigh = 130
	cfg.OneSeed.SigmoidRegion = 20
	cfg.OneSeed.GrowMultiplier = 2.5
	cfg.OneSeed.SeedRadius = 2
	cfg.OneSeed.GrowIterations = 0
	cfg.OneSeed.OpenRadius = 2
	cfg.OneSeed.ReconstructionRadius = 10
	cfg.OneSeed.CloseRadius = 3

	// Set default stage two parameters
	cfg.MultiSeed.SmoothRadius = 3
	cfg.MultiSeed.ErodeRadius = 1
	cfg.MultiSeed.ErodeIterations = 3
	cfg.MultiSeed.SeedCount = 30
	cfg.MultiSeed.SeedStream = 9
	cfg.MultiSeed.GrowMultiplier = 2.5
	cfg.MultiSeed.GrowIterations = 0
	cfg.MultiSeed.OpenRadius = 2

	// Set default mesh parameters
	cfg.Mesh.UpsampleFactor = 1

	// Set default output parameters
	cfg.Output.SavePreviews = false
	cfg.Output.PreviewDir = "previews"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
