package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Greater(t, cfg.Processing.NumCores, 0)
	assert.Equal(t, 60.0, cfg.OneSeed.ThresholdLow)
	assert.Equal(t, 130.0, cfg.OneSeed.ThresholdHigh)
	assert.Equal(t, 2.5, cfg.OneSeed.GrowMultiplier)
	assert.Equal(t, 10, cfg.OneSeed.ReconstructionRadius)
	assert.Equal(t, 30, cfg.MultiSeed.SeedCount)
	assert.Equal(t, uint64(9), cfg.MultiSeed.SeedStream)
	assert.Equal(t, 3, cfg.MultiSeed.ErodeIterations)
	assert.Equal(t, 1, cfg.Mesh.UpsampleFactor)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	// A missing file silently falls back to the defaults.
	assert.Equal(t, DefaultConfig().OneSeed, cfg.OneSeed)
}

// TestLoadConfigPartial checks the merge behavior: fields present in the
// file override the defaults, everything else keeps its default value.
func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := `
oneSeed:
  thresholdLow: 50
multiSeed:
  seedCount: 12
mesh:
  upsampleFactor: 3
`
	require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.OneSeed.ThresholdLow)
	assert.Equal(t, 130.0, cfg.OneSeed.ThresholdHigh)
	assert.Equal(t, 12, cfg.MultiSeed.SeedCount)
	assert.Equal(t, uint64(9), cfg.MultiSeed.SeedStream)
	assert.Equal(t, 3, cfg.Mesh.UpsampleFactor)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.OneSeed.GrowMultiplier = 3.5
	cfg.Output.SavePreviews = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oneSeed: ["), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}
