// Package volume holds the in-memory representation of a loaded 3D
// radiological volume: the voxel buffer, its geometry (shape, spacing,
// affine, orientation codes) and the display windowing state.
//
// Geometry fields are set once at load time and never change afterwards.
// The voxel buffer itself may be mutated by paint operations, but callers
// must serialize such writes with any concurrent slice extraction on the
// same volume; the package performs no locking of its own.
package volume

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"niftiview/internal/models"
	"niftiview/pkg/orientation"
)

// ErrOutOfRange is returned when a slice index, voxel coordinate or screen
// coordinate lies outside the valid bounds of a volume. It is always
// returned explicitly; no operation in this package or its consumers
// panics on an invalid index.
var ErrOutOfRange = errors.New("coordinate out of range")

// Volume is a 3D scalar image in native scanner axis order. The voxel
// buffer is flat, x-fastest: element (i,j,k) lives at (k*ny+j)*nx + i,
// matching the (col,row,slice) = (x,y,z) voxel-index convention.
type Volume struct {
	data       []float64
	nx, ny, nz int

	spacing [3]float64
	affine  *mat.Dense
	codes   orientation.Codes

	dataMin, dataMax float64

	// DisplayMin and DisplayMax are the mutable windowing bounds. The UI
	// is responsible for keeping dataMin <= DisplayMin < DisplayMax <=
	// dataMax; the rendering path tolerates violations rather than
	// rejecting them.
	DisplayMin, DisplayMax float64

	// Visible is an external toggle consulted by the viewport when
	// compositing layers. Slice extraction and coordinate mapping ignore
	// it.
	Visible bool

	// SourceType records the scalar type of the source file ("uint8",
	// "int16", "float32", ...). Voxels are held as float64 regardless;
	// the label is informational.
	SourceType string
}

// New builds a Volume from an already-canonicalized voxel buffer, its
// affine and its spacing. The buffer must hold exactly nx*ny*nz elements
// and every spacing component must be positive. Orientation codes are
// derived from the affine once, here; they are never recomputed from the
// data. A degenerate affine is a load failure.
func New(data []float64, nx, ny, nz int, spacing [3]float64, affine *mat.Dense) (*Volume, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("volume dimensions must be positive, got (%d,%d,%d)", nx, ny, nz)
	}
	if len(data) != nx*ny*nz {
		return nil, fmt.Errorf("voxel buffer has %d elements, expected %d for shape (%d,%d,%d)",
			len(data), nx*ny*nz, nx, ny, nz)
	}
	for axis, s := range spacing {
		if s <= 0 {
			return nil, fmt.Errorf("spacing along axis %d must be positive, got %v", axis, s)
		}
	}

	codes, err := orientation.DeriveAxisCodes(affine)
	if err != nil {
		return nil, fmt.Errorf("deriving orientation codes: %w", err)
	}

	v := &Volume{
		data:    data,
		nx:      nx,
		ny:      ny,
		nz:      nz,
		spacing: spacing,
		affine:  mat.DenseCopyOf(affine),
		codes:   codes,
		dataMin: floats.Min(data),
		dataMax: floats.Max(data),
		Visible: true,
	}
	v.DisplayMin = v.dataMin
	v.DisplayMax = v.dataMax
	return v, nil
}

// Shape returns the voxel dimensions (nx, ny, nz).
func (v *Volume) Shape() (nx, ny, nz int) {
	return v.nx, v.ny, v.nz
}

// Spacing returns the physical voxel size along each axis.
func (v *Volume) Spacing() [3]float64 {
	return v.spacing
}

// Affine returns a copy of the 4x4 voxel-to-world transform. A copy is
// handed out so callers cannot break the post-load immutability of the
// geometry.
func (v *Volume) Affine() *mat.Dense {
	return mat.DenseCopyOf(v.affine)
}

// Codes returns the per-axis anatomical direction codes derived at load.
func (v *Volume) Codes() orientation.Codes {
	return v.codes
}

// DataMin returns the smallest voxel intensity, scanned once at load.
func (v *Volume) DataMin() float64 {
	return v.dataMin
}

// DataMax returns the largest voxel intensity, scanned once at load.
func (v *Volume) DataMax() float64 {
	return v.dataMax
}

// InBounds reports whether the voxel triple lies inside the volume.
func (v *Volume) InBounds(p models.Voxel) bool {
	return p.I >= 0 && p.I < v.nx &&
		p.J >= 0 && p.J < v.ny &&
		p.K >= 0 && p.K < v.nz
}

// At returns the intensity at (i,j,k), or false when the index is out of
// bounds.
func (v *Volume) At(i, j, k int) (float64, bool) {
	if !v.InBounds(models.Voxel{I: i, J: j, K: k}) {
		return 0, false
	}
	return v.data[(k*v.ny+j)*v.nx+i], true
}

// Set writes an intensity at (i,j,k), reporting whether the index was in
// bounds. Writes must be externally serialized against concurrent reads.
func (v *Volume) Set(i, j, k int, value float64) bool {
	if !v.InBounds(models.Voxel{I: i, J: j, K: k}) {
		return false
	}
	v.data[(k*v.ny+j)*v.nx+i] = value
	return true
}

// Extent returns the number of slices available along the slice axis of
// the given view plane.
func (v *Volume) Extent(plane models.ViewPlane) int {
	switch orientation.AxesFor(plane).Slice {
	case 0:
		return v.nx
	case 1:
		return v.ny
	default:
		return v.nz
	}
}

// AxisLen returns the voxel count along axis 0, 1 or 2.
func (v *Volume) AxisLen(axis int) int {
	switch axis {
	case 0:
		return v.nx
	case 1:
		return v.ny
	default:
		return v.nz
	}
}

// SetDisplayRange replaces the windowing bounds. The bounds are stored as
// given; keeping them consistent with the data range is the caller's
// responsibility.
func (v *Volume) SetDisplayRange(min, max float64) {
	v.DisplayMin = min
	v.DisplayMax = max
}

// AutoWindow sets the display range to the given intensity percentiles,
// e.g. AutoWindow(2, 98) for a robust window that ignores outlier voxels.
// The scan sorts a copy of the buffer, O(n log n).
func (v *Volume) AutoWindow(lowPercent, highPercent float64) error {
	if lowPercent < 0 || highPercent > 100 || lowPercent >= highPercent {
		return fmt.Errorf("invalid percentile window [%v, %v]", lowPercent, highPercent)
	}

	sorted := make([]float64, len(v.data))
	copy(sorted, v.data)
	sort.Float64s(sorted)

	lo := stat.Quantile(lowPercent/100, stat.Empirical, sorted, nil)
	hi := stat.Quantile(highPercent/100, stat.Empirical, sorted, nil)
	if lo >= hi {
		// Flat region between the percentiles; fall back to the full range.
		lo, hi = v.dataMin, v.dataMax
	}
	v.DisplayMin = lo
	v.DisplayMax = hi
	return nil
}
