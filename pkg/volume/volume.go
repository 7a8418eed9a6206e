// Package volume defines the in-memory voxel-volume types shared by the
// mask refinement pipeline: floating-point intensity volumes, integer
// label volumes (anatomical segmentations) and binary masks.
//
// All three types store their voxels as a flat array in row-major order,
// indexed as z*width*height + y*width + x. Volumes that are used together
// must share the same grid; no resampling happens anywhere in this module,
// so shape agreement is checked up front and violations surface as a
// ShapeError before any computation starts.
package volume

import (
	"fmt"
)

// Dims describes the voxel grid of a volume.
type Dims struct {
	Width  int
	Height int
	Depth  int
}

// Len returns the total number of voxels on the grid.
func (d Dims) Len() int {
	return d.Width * d.Height * d.Depth
}

// Index converts voxel coordinates to the flat array index.
func (d Dims) Index(x, y, z int) int {
	return z*d.Width*d.Height + y*d.Width + x
}

// Coords converts a flat array index back to voxel coordinates.
func (d Dims) Coords(i int) (x, y, z int) {
	x = i % d.Width
	y = (i / d.Width) % d.Height
	z = i / (d.Width * d.Height)
	return x, y, z
}

// Contains reports whether the coordinates fall inside the grid.
func (d Dims) Contains(x, y, z int) bool {
	return x >= 0 && x < d.Width &&
		y >= 0 && y < d.Height &&
		z >= 0 && z < d.Depth
}

// Equal reports whether two grids have identical extents.
func (d Dims) Equal(o Dims) bool {
	return d == o
}

// VoxelSize is the physical size of each voxel in mm.
type VoxelSize struct {
	X, Y, Z float64
}

// ShapeError reports a grid mismatch between volumes that are required to
// share the same voxel grid. It is returned before any voxel is touched.
type ShapeError struct {
	// Name identifies the offending input (e.g. "aseg").
	Name string

	// Got is the grid of the offending input.
	Got Dims

	// Want is the grid the input was expected to match.
	Want Dims
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("volume %q has shape %dx%dx%d, want %dx%dx%d",
		e.Name, e.Got.Width, e.Got.Height, e.Got.Depth,
		e.Want.Width, e.Want.Height, e.Want.Depth)
}

// CheckShape returns a ShapeError if got does not match want.
func CheckShape(name string, got, want Dims) error {
	if !got.Equal(want) {
		return &ShapeError{Name: name, Got: got, Want: want}
	}
	return nil
}

// Volume is a 3D scalar intensity volume (e.g. a T1-weighted anatomical).
type Volume struct {
	Dims

	// VoxelSize is the physical voxel spacing, carried for collaborators
	// that serialize results; the refinement math itself is grid-only.
	VoxelSize VoxelSize

	// Data holds the voxel intensities in row-major order.
	Data []float64
}

// NewVolume allocates a zero-filled intensity volume.
func NewVolume(width, height, depth int) *Volume {
	d := Dims{Width: width, Height: height, Depth: depth}
	return &Volume{Dims: d, Data: make([]float64, d.Len())}
}

// At returns the intensity at the given coordinates.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores an intensity at the given coordinates.
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := &Volume{Dims: v.Dims, VoxelSize: v.VoxelSize, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}

// LabelVolume is a 3D volume of discrete anatomical class codes, such as a
// FreeSurfer aseg or an ANTs tissue segmentation.
type LabelVolume struct {
	Dims

	VoxelSize VoxelSize

	// Data holds the voxel labels in row-major order.
	Data []int32
}

// NewLabelVolume allocates a zero-filled label volume.
func NewLabelVolume(width, height, depth int) *LabelVolume {
	d := Dims{Width: width, Height: height, Depth: depth}
	return &LabelVolume{Dims: d, Data: make([]int32, d.Len())}
}

// At returns the label at the given coordinates.
func (v *LabelVolume) At(x, y, z int) int32 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a label at the given coordinates.
func (v *LabelVolume) Set(x, y, z int, label int32) {
	v.Data[v.Index(x, y, z)] = label
}

// Clone returns a deep copy of the label volume.
func (v *LabelVolume) Clone() *LabelVolume {
	out := &LabelVolume{Dims: v.Dims, VoxelSize: v.VoxelSize, Data: make([]int32, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}

// Mask is a binary (0/1) volume. It is both an intermediate product of the
// refinement pipeline and its final output.
type Mask struct {
	Dims

	VoxelSize VoxelSize

	// Data holds the mask voxels in row-major order; values are 0 or 1.
	Data []uint8
}

// NewMask allocates an all-zero mask.
func NewMask(width, height, depth int) *Mask {
	d := Dims{Width: width, Height: height, Depth: depth}
	return &Mask{Dims: d, Data: make([]uint8, d.Len())}
}

// At returns the mask value at the given coordinates.
func (m *Mask) At(x, y, z int) uint8 {
	return m.Data[m.Index(x, y, z)]
}

// Set stores a mask value at the given coordinates.
func (m *Mask) Set(x, y, z int, value uint8) {
	m.Data[m.Index(x, y, z)] = value
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := &Mask{Dims: m.Dims, VoxelSize: m.VoxelSize, Data: make([]uint8, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Equal reports whether two masks have the same grid and identical voxels.
func (m *Mask) Equal(o *Mask) bool {
	if !m.Dims.Equal(o.Dims) {
		return false
	}
	for i, v := range m.Data {
		if v != o.Data[i] {
			return false
		}
	}
	return true
}

// Contains reports whether every set voxel of o is also set in m.
func (m *Mask) ContainsMask(o *Mask) bool {
	if !m.Dims.Equal(o.Dims) {
		return false
	}
	for i, v := range o.Data {
		if v != 0 && m.Data[i] == 0 {
			return false
		}
	}
	return true
}
