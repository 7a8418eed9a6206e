// Package refine implements the brain-mask refinement engine: it reconciles
// an atlas-derived anatomical segmentation with the anatomical intensity
// image (and optionally an independent tissue classification) to produce a
// binary brain mask that recovers gray-matter voxels a conservative
// segmentation leaves out.
//
// The pipeline has two stages. RefineAseg smooths and fills the binarized
// segmentation with morphological operations. GrowMask then walks the ring
// of voxels just outside that mask and admits each one whose intensity is
// statistically consistent with nearby confirmed gray matter, or that the
// auxiliary classifier already labeled as gray matter.
package refine

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"

	"brainmask/pkg/morphology"
	"brainmask/pkg/volume"
)

const (
	// GrayMatter is the segmentation code for left-hemisphere cortical
	// gray matter, and the code both hemispheres are collapsed onto.
	GrayMatter = 3

	// GrayMatterRight is the right-hemisphere cortical gray matter code.
	GrayMatterRight = 42

	// TissueGrayMatter is the gray-matter class code in the auxiliary
	// tissue segmentation's convention.
	TissueGrayMatter = 2

	// sigmaFloor keeps the z-score finite in near-uniform windows.
	sigmaFloor = 1.0e-5
)

// GrowOptions parameterizes GrowMask. The zero value is not useful; start
// from DefaultGrowOptions.
type GrowOptions struct {
	// BallSize is the structuring-element radius used by the RefineAseg
	// stage (closing and hole filling).
	BallSize int

	// WindowHalfWidth is the half-width of the cubic patch sampled
	// around each candidate voxel. The patch spans [p-ww, p+ww) per
	// axis, clipped to the volume bounds.
	WindowHalfWidth int

	// ZThreshold is the z-score below which a candidate voxel is
	// accepted as gray matter.
	ZThreshold float64

	// DilationRadius is the structuring-element radius used to carve
	// the candidate shell and for the final opening.
	DilationRadius int

	// Workers is the number of goroutines evaluating candidate voxels.
	// Values below 1 fall back to a single worker. Every worker writes
	// to disjoint voxels, so results are identical for any count.
	Workers int
}

// DefaultGrowOptions returns the standard parameters: ball radius 4 for the
// refinement stage, 7-voxel window half-width, z threshold 2.0, dilation
// radius 4, and one worker per CPU.
func DefaultGrowOptions() GrowOptions {
	return GrowOptions{
		BallSize:        4,
		WindowHalfWidth: 7,
		ZThreshold:      2.0,
		DilationRadius:  4,
		Workers:         runtime.NumCPU(),
	}
}

// RefineAseg turns a discrete anatomical segmentation into a smooth binary
// brain mask in two steps:
//
//  1. Binarize (any nonzero label counts as brain) and apply a binary
//     closing with a ball of the given radius, which pulls deep, wide
//     sulci into the mask.
//  2. Fill enclosed holes with the same element, recovering interior
//     cavities the closing misses (typically next to the pineal gland and
//     the corpora quadrigemina when the great cerebral vein is segmented
//     out).
//
// The input is never modified. Applied to an already closed, hole-free
// mask the operation is the identity, and its output always contains the
// naive binarized segmentation.
func RefineAseg(aseg *volume.LabelVolume, ballSize int) *volume.Mask {
	bmask := volume.NewMask(aseg.Width, aseg.Height, aseg.Depth)
	bmask.VoxelSize = aseg.VoxelSize
	for i, label := range aseg.Data {
		if label > 0 {
			bmask.Data[i] = 1
		}
	}

	selem := morphology.Ball(ballSize)
	closed := morphology.Close(bmask, selem)
	return morphology.FillHoles(closed, selem)
}

// GrowMask produces a refined binary brain mask from an anatomical
// intensity volume, its anatomical segmentation, and an optional auxiliary
// tissue segmentation (nil behaves as all-zero).
//
// Both hemisphere gray-matter codes are first collapsed into one, and a
// gray-matter intensity template is built by blanking every non-GM voxel
// of the anatomical image. RefineAseg provides the base mask; the ring of
// voxels obtained by dilating it and subtracting it back forms the
// candidate shell. A candidate is admitted if the auxiliary segmentation
// already calls it gray matter, or if its intensity deviates from the
// local gray-matter patch mean by less than opts.ZThreshold standard
// deviations. A final opening removes thin spurious protrusions.
//
// Inputs are never modified. A grid mismatch between the inputs is
// reported as a *volume.ShapeError before any computation.
func GrowMask(anat *volume.Volume, aseg *volume.LabelVolume, antsSegs *volume.LabelVolume, opts GrowOptions) (*volume.Mask, error) {
	if err := volume.CheckShape("aseg", aseg.Dims, anat.Dims); err != nil {
		return nil, err
	}
	if antsSegs != nil {
		if err := volume.CheckShape("ants_segs", antsSegs.Dims, anat.Dims); err != nil {
			return nil, err
		}
	}

	// Collapse both hemispheres onto a single gray-matter code.
	collapsed := aseg.Clone()
	for i, label := range collapsed.Data {
		if label == GrayMatterRight {
			collapsed.Data[i] = GrayMatter
		}
	}

	// Gray-matter intensity template: the anatomical image with every
	// voxel outside the collapsed GM label blanked.
	gm := make([]float64, len(anat.Data))
	for i, label := range collapsed.Data {
		if label == GrayMatter {
			gm[i] = anat.Data[i]
		}
	}

	refined := RefineAseg(collapsed, opts.BallSize)

	// Candidate shell: the ring of voxels just outside the base mask.
	selem := morphology.Ball(opts.DilationRadius)
	dilated := morphology.Dilate(refined, selem)
	var shell []int
	for i, v := range dilated.Data {
		if v != 0 && refined.Data[i] == 0 {
			shell = append(shell, i)
		}
	}

	growShell(refined, shell, anat, gm, antsSegs, opts)

	return morphology.Open(refined, selem), nil
}

// growShell evaluates every candidate voxel and writes the decisions into
// the mask in place. Candidates are independent of one another, so the
// shell is chunked across workers; each worker owns a contiguous span and
// no voxel is written by two workers.
func growShell(mask *volume.Mask, shell []int, anat *volume.Volume, gm []float64, antsSegs *volume.LabelVolume, opts GrowOptions) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(shell) {
		workers = len(shell)
	}
	if len(shell) == 0 {
		return
	}

	chunk := (len(shell) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(shell) {
			end = len(shell)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(span []int) {
			defer wg.Done()

			// Window sample buffer, reused across candidates.
			ww := opts.WindowHalfWidth
			samples := make([]float64, 0, 8*ww*ww*ww)

			for _, i := range span {
				// When the auxiliary classifier already calls
				// the voxel gray matter, admit it outright.
				if antsSegs != nil && antsSegs.Data[i] == TissueGrayMatter {
					mask.Data[i] = 1
					continue
				}

				x, y, z := mask.Coords(i)
				samples = gatherWindow(samples[:0], gm, mask.Dims, x, y, z, ww)
				if len(samples) == 0 {
					// No confirmed gray matter nearby; the
					// voxel stays out.
					continue
				}

				mu := stat.Mean(samples, nil)
				sigma := stat.PopStdDev(samples, nil)
				if sigma < sigmaFloor {
					sigma = sigmaFloor
				}
				zstat := math.Abs(anat.Data[i]-mu) / sigma
				if zstat < opts.ZThreshold {
					mask.Data[i] = 1
				} else {
					mask.Data[i] = 0
				}
			}
		}(shell[start:end])
	}
	wg.Wait()
}

// gatherWindow appends the positive gray-matter intensities of the cubic
// patch [p-ww, p+ww) around (x, y, z) to dst. The patch is clipped at the
// volume bounds.
func gatherWindow(dst []float64, gm []float64, d volume.Dims, x, y, z, ww int) []float64 {
	x0, x1 := clipRange(x-ww, x+ww, d.Width)
	y0, y1 := clipRange(y-ww, y+ww, d.Height)
	z0, z1 := clipRange(z-ww, z+ww, d.Depth)

	for wz := z0; wz < z1; wz++ {
		for wy := y0; wy < y1; wy++ {
			row := d.Index(x0, wy, wz)
			for wx := x0; wx < x1; wx++ {
				if v := gm[row]; v > 0 {
					dst = append(dst, v)
				}
				row++
			}
		}
	}
	return dst
}

// clipRange clips the half-open interval [lo, hi) to [0, n).
func clipRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
