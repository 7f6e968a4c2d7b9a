package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microprep/pkg/anms"
)

func TestDefaultConfigParams(t *testing.T) {
	cfg := DefaultConfig()
	p, err := cfg.Params()
	require.NoError(t, err)

	assert.Equal(t, 5, p.KSize)
	assert.Equal(t, 0, p.AsymPix)
	assert.Equal(t, 1.5, p.ThreshRatio)
	assert.Equal(t, 5.0, p.Damping)
	assert.Equal(t, anms.Isolated, p.Boundary)
	assert.Equal(t, cfg.Processing.NumCores, p.Workers)
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	doc := `
anms:
  ksize: 7
  asympix: 4
  boundary: reflect
sweep:
  threshRatios: [1.0, 2.0]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ANMS.KSize)
	assert.Equal(t, 4, cfg.ANMS.AsymPix)
	assert.Equal(t, 1.5, cfg.ANMS.ThreshRatio)
	assert.Equal(t, []float64{1.0, 2.0}, cfg.Sweep.ThreshRatios)

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, anms.Reflect, p.Boundary)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anms: [unterminated"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestParamsRejectsInvalidValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ANMS.KSize = 4
	_, err := cfg.Params()
	assert.True(t, errors.Is(err, anms.ErrInvalidParameter))

	cfg = DefaultConfig()
	cfg.ANMS.Boundary = "wrap"
	_, err = cfg.Params()
	assert.True(t, errors.Is(err, anms.ErrInvalidParameter))
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
