// Package nifti loads NIfTI-1 volumes (.nii / .nii.gz) into the pipeline's
// in-memory volume types. Only the first timepoint of a series is read;
// the refinement pipeline operates on 3D anatomical volumes.
package nifti

import (
	"fmt"
	"math"

	"github.com/henghuang/nifti"

	"brainmask/pkg/volume"
)

// safelyParse consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into
// recoverable errors.
func safelyParse(filename string, rdata bool) (parsedData nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsedData.LoadImage(filename, rdata)

	return
}

// safelyParseHeader consumes panics emitted by the nifti library while
// reading a header.
func safelyParseHeader(filename string) (parsedData nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsedData.LoadHeader(filename)

	return
}

// voxelSize reads the voxel spacing from a NIfTI header.
func voxelSize(hdr nifti.Nifti1Header) volume.VoxelSize {
	return volume.VoxelSize{
		X: float64(hdr.Pixdim[1]),
		Y: float64(hdr.Pixdim[2]),
		Z: float64(hdr.Pixdim[3]),
	}
}

// LoadVolume reads a NIfTI file into an intensity volume.
func LoadVolume(path string) (*volume.Volume, error) {
	img, err := safelyParse(path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	hdr, err := safelyParseHeader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	dims := img.GetDims()
	xm, ym, zm := dims[0], dims[1], dims[2]
	if xm < 1 || ym < 1 || zm < 1 {
		return nil, fmt.Errorf("%s has degenerate dimensions %dx%dx%d", path, xm, ym, zm)
	}

	out := volume.NewVolume(xm, ym, zm)
	out.VoxelSize = voxelSize(hdr)
	for z := 0; z < zm; z++ {
		for y := 0; y < ym; y++ {
			for x := 0; x < xm; x++ {
				out.Set(x, y, z, float64(img.GetAt(x, y, z, 0)))
			}
		}
	}
	return out, nil
}

// LoadLabels reads a NIfTI file into a label volume. Intensities are
// rounded to the nearest integer; segmentation files are stored with
// integer-valued voxels regardless of their on-disk datatype.
func LoadLabels(path string) (*volume.LabelVolume, error) {
	img, err := safelyParse(path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	hdr, err := safelyParseHeader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	dims := img.GetDims()
	xm, ym, zm := dims[0], dims[1], dims[2]
	if xm < 1 || ym < 1 || zm < 1 {
		return nil, fmt.Errorf("%s has degenerate dimensions %dx%dx%d", path, xm, ym, zm)
	}

	out := volume.NewLabelVolume(xm, ym, zm)
	out.VoxelSize = voxelSize(hdr)
	for z := 0; z < zm; z++ {
		for y := 0; y < ym; y++ {
			for x := 0; x < xm; x++ {
				out.Set(x, y, z, int32(math.Round(float64(img.GetAt(x, y, z, 0)))))
			}
		}
	}
	return out, nil
}
