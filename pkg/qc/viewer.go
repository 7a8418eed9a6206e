// Package qc renders quality-control images for the mask refinement
// pipeline: grayscale anatomical slices and mask-overlay slices extracted
// along any axis, written as PNG sequences for visual inspection.
package qc

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"brainmask/pkg/volume"
)

// Viewer extracts 2D slices from an anatomical volume and its refined
// brain mask.
type Viewer struct {
	anat *volume.Volume
	mask *volume.Mask

	// Intensity range of the anatomical volume, used to normalize
	// slices into the displayable grayscale range.
	lo, hi float64
}

// NewViewer creates a viewer over an anatomical volume and its mask. The
// mask may be nil when only grayscale slices are needed; when present it
// must share the anatomical grid.
func NewViewer(anat *volume.Volume, mask *volume.Mask) (*Viewer, error) {
	if mask != nil {
		if err := volume.CheckShape("mask", mask.Dims, anat.Dims); err != nil {
			return nil, err
		}
	}

	v := &Viewer{anat: anat, mask: mask}
	v.lo, v.hi = intensityRange(anat.Data)
	return v, nil
}

// intensityRange returns the minimum and maximum values of the data
func intensityRange(data []float64) (lo, hi float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi = data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// gray maps an intensity into the 16-bit grayscale range
func (v *Viewer) gray(value float64) uint16 {
	if v.hi <= v.lo {
		return 0
	}
	scaled := (value - v.lo) / (v.hi - v.lo) * 65535.0
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 65535 {
		scaled = 65535
	}
	return uint16(scaled)
}

// slicePlane returns the 2D extent of a slice along the given axis and a
// sampler mapping plane coordinates (u, v) to the flat voxel index.
func (v *Viewer) slicePlane(axis string, position int) (du, dv int, sample func(u, w int) int, err error) {
	d := v.anat.Dims
	switch axis {
	case "x", "X":
		if position >= d.Width {
			return 0, 0, nil, fmt.Errorf("position %d exceeds width %d", position, d.Width)
		}
		// YZ plane: depth across, height down.
		return d.Depth, d.Height, func(u, w int) int { return d.Index(position, w, u) }, nil
	case "y", "Y":
		if position >= d.Height {
			return 0, 0, nil, fmt.Errorf("position %d exceeds height %d", position, d.Height)
		}
		// XZ plane: width across, depth down.
		return d.Width, d.Depth, func(u, w int) int { return d.Index(u, position, w) }, nil
	case "z", "Z":
		if position >= d.Depth {
			return 0, 0, nil, fmt.Errorf("position %d exceeds depth %d", position, d.Depth)
		}
		// XY plane: width across, height down.
		return d.Width, d.Height, func(u, w int) int { return d.Index(u, w, position) }, nil
	default:
		return 0, 0, nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// ExtractSlice extracts a grayscale 2D slice of the anatomical volume
// along the specified axis.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	du, dv, sample, err := v.slicePlane(axis, position)
	if err != nil {
		return nil, err
	}

	img := image.NewGray16(image.Rect(0, 0, du, dv))
	for w := 0; w < dv; w++ {
		for u := 0; u < du; u++ {
			img.SetGray16(u, w, color.Gray16{Y: v.gray(v.anat.Data[sample(u, w)])})
		}
	}
	return img, nil
}

// ExtractOverlay extracts a 2D slice with the mask blended over the
// grayscale anatomy in red, the usual presentation for brain-mask QC.
func (v *Viewer) ExtractOverlay(axis string, position int) (image.Image, error) {
	if v.mask == nil {
		return nil, fmt.Errorf("viewer has no mask to overlay")
	}
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	du, dv, sample, err := v.slicePlane(axis, position)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA64(image.Rect(0, 0, du, dv))
	for w := 0; w < dv; w++ {
		for u := 0; u < du; u++ {
			idx := sample(u, w)
			g := v.gray(v.anat.Data[idx])
			if v.mask.Data[idx] != 0 {
				// Push masked voxels toward red, keeping the
				// underlying anatomy visible.
				img.SetRGBA64(u, w, color.RGBA64{R: 65535, G: g / 2, B: g / 2, A: 65535})
			} else {
				img.SetRGBA64(u, w, color.RGBA64{R: g, G: g, B: g, A: 65535})
			}
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves all slices along the specified
// axis. With overlay set, the mask is blended over the anatomy.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string, overlay bool) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.anat.Width
	case "y", "Y":
		maxPos = v.anat.Height
	case "z", "Z":
		maxPos = v.anat.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		var img image.Image
		var err error
		if overlay {
			img, err = v.ExtractOverlay(axis, pos)
		} else {
			img, err = v.ExtractSlice(axis, pos)
		}
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
