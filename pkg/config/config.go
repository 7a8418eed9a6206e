// Package config provides configuration loading and management for the
// brainmask pipeline. It handles loading configuration from YAML files and
// provides default values.
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
	// Refinement parameters
	Refinement struct {
		// BallSize is the structuring-element radius (in voxels) for
		// the segmentation closing and hole-filling stage
		BallSize int `yaml:"ballSize"`

		// WindowHalfWidth is the half-width of the cubic patch
		// sampled around each candidate boundary voxel
		WindowHalfWidth int `yaml:"windowHalfWidth"`

		// ZThreshold is the z-score below which a boundary voxel is
		// accepted as gray matter
		ZThreshold float64 `yaml:"zThreshold"`

		// DilationRadius is the structuring-element radius used for
		// the candidate shell and the final opening
		DilationRadius int `yaml:"dilationRadius"`
	} `yaml:"refinement"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for the
		// parallel boundary evaluation
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// QC output parameters
	QC struct {
		// Enabled turns on writing of QC slice images
		Enabled bool `yaml:"enabled"`

		// OutputDir is the directory where QC slices are written
		OutputDir string `yaml:"outputDir"`

		// Axes lists the axes along which slice sequences are saved
		Axes []string `yaml:"axes"`

		// Overlay blends the refined mask over the anatomy in red
		Overlay bool `yaml:"overlay"`
	} `yaml:"qc"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Standard refinement parameters
	cfg.Refinement.BallSize = 4
	cfg.Refinement.WindowHalfWidth = 7
	cfg.Refinement.ZThreshold = 2.0
	cfg.Refinement.DilationRadius = 4

	// Use all available cores by default
	cfg.Processing.NumCores = runtime.NumCPU()

	// Default QC parameters
	cfg.QC.Enabled = false
	cfg.QC.OutputDir = "qc_slices"
	cfg.QC.Axes = []string{"z"}
	cfg.QC.Overlay = true

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
