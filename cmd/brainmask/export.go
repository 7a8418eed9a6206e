package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"brainmask/pkg/volume"
)

// maskSidecar describes the grid of an exported mask, so downstream tools
// can reinterpret the flat voxel file.
type maskSidecar struct {
	Format string `yaml:"format"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Depth  int    `yaml:"depth"`

	VoxelSize struct {
		X float64 `yaml:"x"`
		Y float64 `yaml:"y"`
		Z float64 `yaml:"z"`
	} `yaml:"voxelSize"`
}

// writeMaskVolume writes the mask as a flat binary file, one byte per voxel
// in z-major order, together with a YAML sidecar describing the grid.
func writeMaskVolume(path string, m *volume.Mask) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mask file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := w.Write(m.Data); err != nil {
		return fmt.Errorf("failed to write mask data: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush mask data: %w", err)
	}

	sidecar := maskSidecar{
		Format: "uint8-zyx",
		Width:  m.Width,
		Height: m.Height,
		Depth:  m.Depth,
	}
	sidecar.VoxelSize.X = m.VoxelSize.X
	sidecar.VoxelSize.Y = m.VoxelSize.Y
	sidecar.VoxelSize.Z = m.VoxelSize.Z

	data, err := yaml.Marshal(&sidecar)
	if err != nil {
		return fmt.Errorf("failed to marshal mask sidecar: %w", err)
	}
	if err := os.WriteFile(path+".yaml", data, 0644); err != nil {
		return fmt.Errorf("failed to write mask sidecar: %w", err)
	}

	return nil
}

// shapeString formats a grid for log output
func shapeString(d volume.Dims) string {
	return fmt.Sprintf("%dx%dx%d", d.Width, d.Height, d.Depth)
}
