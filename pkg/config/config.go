// Package config provides configuration loading and management for microprep.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"microprep/pkg/anms"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Suppression parameters
	ANMS struct {
		// KSize is the base window length for both directions (odd)
		KSize int `yaml:"ksize"`

		// AsymPix widens the horizontal window only
		AsymPix int `yaml:"asympix"`

		// ThreshRatio scales the vertical response before comparison
		ThreshRatio float64 `yaml:"threshRatio"`

		// Damping divides suppressed pixels
		Damping float64 `yaml:"damping"`

		// Boundary is the aggregator boundary policy: isolated, replicate or reflect
		Boundary string `yaml:"boundary"`
	} `yaml:"anms"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Gamma is applied to 8-bit micrographs before suppression; 1 disables it
		Gamma float64 `yaml:"gamma"`

		// NoiseLineKernel is the length of the horizontal opening run before
		// suppression; 0 disables it
		NoiseLineKernel int `yaml:"noiseLineKernel"`

		// MaskFile is an optional image whose non-zero pixels mark valid regions
		MaskFile string `yaml:"maskFile"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Format is the output image extension (png, tif or jpg)
		Format string `yaml:"format"`

		// SaveIntermediaryResults determines whether to save the response fields
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Sweep parameters
	Sweep struct {
		// ThreshRatios lists extra thresholds to run against the same fields
		ThreshRatios []float64 `yaml:"threshRatios"`

		// OutputDir is the directory to save sweep results
		OutputDir string `yaml:"outputDir"`
	} `yaml:"sweep"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	p := anms.DefaultParams()
	cfg.ANMS.KSize = p.KSize
	cfg.ANMS.AsymPix = p.AsymPix
	cfg.ANMS.ThreshRatio = p.ThreshRatio
	cfg.ANMS.Damping = p.Damping
	cfg.ANMS.Boundary = p.Boundary.String()

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Gamma = 1.0
	cfg.Processing.NoiseLineKernel = 0

	cfg.Output.Format = "png"
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true

	cfg.Sweep.ThreshRatios = []float64{}
	cfg.Sweep.OutputDir = "threshold_sweep"

	return cfg
}

// Params converts the suppression section into validated anms.Params.
func (c *Config) Params() (anms.Params, error) {
	boundary, err := anms.ParseBoundaryPolicy(c.ANMS.Boundary)
	if err != nil {
		return anms.Params{}, err
	}
	p := anms.Params{
		KSize:       c.ANMS.KSize,
		AsymPix:     c.ANMS.AsymPix,
		ThreshRatio: c.ANMS.ThreshRatio,
		Damping:     c.ANMS.Damping,
		Boundary:    boundary,
		Workers:     c.Processing.NumCores,
	}
	if err := p.Validate(); err != nil {
		return anms.Params{}, err
	}
	return p, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
