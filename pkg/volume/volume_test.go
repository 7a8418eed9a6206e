package volume

import (
	"errors"
	"testing"
)

// TestIndexRoundTrip verifies that Index and Coords are inverses across the grid
func TestIndexRoundTrip(t *testing.T) {
	d := Dims{Width: 4, Height: 3, Depth: 5}

	seen := make(map[int]bool)
	for z := 0; z < d.Depth; z++ {
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				i := d.Index(x, y, z)
				if i < 0 || i >= d.Len() {
					t.Fatalf("Index(%d,%d,%d) = %d out of range [0,%d)", x, y, z, i, d.Len())
				}
				if seen[i] {
					t.Fatalf("Index(%d,%d,%d) = %d collides with another voxel", x, y, z, i)
				}
				seen[i] = true

				gx, gy, gz := d.Coords(i)
				if gx != x || gy != y || gz != z {
					t.Errorf("Coords(%d): expected (%d,%d,%d), got (%d,%d,%d)", i, x, y, z, gx, gy, gz)
				}
			}
		}
	}

	if len(seen) != d.Len() {
		t.Errorf("Expected %d distinct indices, got %d", d.Len(), len(seen))
	}
}

// TestIndexConvention verifies the row-major z-y-x layout used throughout the pipeline
func TestIndexConvention(t *testing.T) {
	d := Dims{Width: 10, Height: 7, Depth: 3}

	testCases := []struct {
		x, y, z  int
		expected int
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{0, 1, 0, 10},
		{0, 0, 1, 70},
		{3, 2, 1, 1*70 + 2*10 + 3},
	}

	for _, tc := range testCases {
		if got := d.Index(tc.x, tc.y, tc.z); got != tc.expected {
			t.Errorf("Index(%d,%d,%d): expected %d, got %d", tc.x, tc.y, tc.z, tc.expected, got)
		}
	}
}

// TestContains verifies bounds checking at grid edges
func TestContains(t *testing.T) {
	d := Dims{Width: 4, Height: 4, Depth: 4}

	testCases := []struct {
		x, y, z  int
		expected bool
	}{
		{0, 0, 0, true},
		{3, 3, 3, true},
		{-1, 0, 0, false},
		{4, 0, 0, false},
		{0, 4, 0, false},
		{0, 0, 4, false},
	}

	for _, tc := range testCases {
		if got := d.Contains(tc.x, tc.y, tc.z); got != tc.expected {
			t.Errorf("Contains(%d,%d,%d): expected %v, got %v", tc.x, tc.y, tc.z, tc.expected, got)
		}
	}
}

// TestCheckShape verifies that mismatched grids produce a ShapeError
func TestCheckShape(t *testing.T) {
	want := Dims{Width: 8, Height: 8, Depth: 8}

	if err := CheckShape("aseg", want, want); err != nil {
		t.Errorf("Matching shapes should not error, got %v", err)
	}

	got := Dims{Width: 8, Height: 8, Depth: 9}
	err := CheckShape("aseg", got, want)
	if err == nil {
		t.Fatal("Expected error for mismatched shapes, got nil")
	}

	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("Expected *ShapeError, got %T", err)
	}
	if shapeErr.Name != "aseg" {
		t.Errorf("Expected error to name \"aseg\", got %q", shapeErr.Name)
	}
}

// TestCloneIndependence verifies that clones do not alias the source data
func TestCloneIndependence(t *testing.T) {
	v := NewVolume(3, 3, 3)
	v.Set(1, 1, 1, 42.0)

	c := v.Clone()
	c.Set(1, 1, 1, 7.0)

	if v.At(1, 1, 1) != 42.0 {
		t.Errorf("Mutating the clone changed the source: got %f", v.At(1, 1, 1))
	}

	m := NewMask(3, 3, 3)
	m.Set(0, 0, 0, 1)
	mc := m.Clone()
	mc.Set(0, 0, 0, 0)
	if m.At(0, 0, 0) != 1 {
		t.Error("Mutating the mask clone changed the source")
	}

	l := NewLabelVolume(3, 3, 3)
	l.Set(2, 2, 2, 42)
	lc := l.Clone()
	lc.Set(2, 2, 2, 3)
	if l.At(2, 2, 2) != 42 {
		t.Error("Mutating the label clone changed the source")
	}
}

// TestMaskCountAndEqual verifies the mask helpers used by the property tests
func TestMaskCountAndEqual(t *testing.T) {
	a := NewMask(4, 4, 4)
	b := NewMask(4, 4, 4)

	if a.Count() != 0 {
		t.Errorf("Empty mask should have count 0, got %d", a.Count())
	}
	if !a.Equal(b) {
		t.Error("Two empty masks should be equal")
	}

	a.Set(1, 2, 3, 1)
	a.Set(0, 0, 0, 1)

	if a.Count() != 2 {
		t.Errorf("Expected count 2, got %d", a.Count())
	}
	if a.Equal(b) {
		t.Error("Masks with different voxels should not be equal")
	}

	if !a.ContainsMask(b) {
		t.Error("Any mask should contain the empty mask")
	}
	if b.ContainsMask(a) {
		t.Error("The empty mask should not contain a non-empty mask")
	}

	c := NewMask(4, 4, 5)
	if a.Equal(c) {
		t.Error("Masks with different grids should not be equal")
	}
}
