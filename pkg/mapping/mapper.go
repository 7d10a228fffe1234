// Package mapping converts bidirectionally among the three coordinate
// spaces of a displayed volume: voxel indices in native scanner order,
// screen/plot coordinates of the rendered slice, and continuous world
// (patient) coordinates via the affine.
//
// The screen conversions consume the same flip table as the slice
// extractor, so voxel→screen is always the exact inverse of the flip and
// permutation the extractor applied, for every reachable orientation.
package mapping

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"niftiview/internal/models"
	"niftiview/pkg/orientation"
	"niftiview/pkg/volume"
)

// Convention names a display convention. Only RAS is implemented; any
// other value is rejected at construction rather than silently
// approximated.
type Convention string

// RAS is the Right-Anterior-Superior display convention: for axial views
// patient-right appears screen-left and patient-posterior screen-bottom,
// with the analogous assignments for sagittal and coronal views.
const RAS Convention = "RAS"

// ErrUnsupportedConvention is returned for any display convention other
// than RAS.
var ErrUnsupportedConvention = errors.New("display convention not implemented")

// Mapper performs coordinate conversions for one volume. It captures the
// affine and its inverse at construction; since volume geometry is
// immutable post-load the mapper stays valid for the volume's lifetime.
type Mapper struct {
	vol    *volume.Volume
	affine *mat.Dense
	inv    *mat.Dense
}

// NewMapper builds a mapper for vol under the given display convention.
// It fails with ErrUnsupportedConvention for non-RAS conventions and with
// an inversion error if the affine is singular (which load-time
// orientation derivation should already have rejected).
func NewMapper(vol *volume.Volume, conv Convention) (*Mapper, error) {
	if conv != RAS {
		return nil, fmt.Errorf("convention %q: %w", conv, ErrUnsupportedConvention)
	}

	affine := vol.Affine()
	var inv mat.Dense
	if err := inv.Inverse(affine); err != nil {
		return nil, fmt.Errorf("inverting affine: %w", err)
	}
	return &Mapper{vol: vol, affine: affine, inv: &inv}, nil
}

// VoxelToWorld applies the affine to a voxel index triple. The input is
// not bounds-checked: world coordinates are well-defined for indices
// outside the array, and cursor readout uses that.
func (m *Mapper) VoxelToWorld(v models.Voxel) models.World {
	return applyAffine(m.affine, float64(v.I), float64(v.J), float64(v.K))
}

// WorldToContinuousVoxel applies the inverse affine, returning fractional
// voxel coordinates.
func (m *Mapper) WorldToContinuousVoxel(w models.World) (x, y, z float64) {
	p := applyAffine(m.inv, w.X, w.Y, w.Z)
	return p.X, p.Y, p.Z
}

// WorldToVoxel rounds the inverse-affine result to the nearest voxel and
// reports whether that voxel lies inside the volume. A world point outside
// the array yields ok=false and no voxel.
func (m *Mapper) WorldToVoxel(w models.World) (models.Voxel, bool) {
	x, y, z := m.WorldToContinuousVoxel(w)
	v := models.Voxel{I: roundToInt(x), J: roundToInt(y), K: roundToInt(z)}
	if !m.vol.InBounds(v) {
		return models.Voxel{}, false
	}
	return v, true
}

// VoxelToScreen maps an in-range voxel to its screen position in the given
// plane: the column/row of the rendered slice plus the slice-axis index.
// It applies exactly the flips the slice extractor applied, so the voxel's
// intensity is found at (Row, Col) of the extracted slice. Out-of-range
// voxels yield ok=false.
func (m *Mapper) VoxelToScreen(plane models.ViewPlane, v models.Voxel) (pt models.ScreenPoint, slice int, ok bool) {
	if !m.vol.InBounds(v) {
		return models.ScreenPoint{}, 0, false
	}

	axes := orientation.AxesFor(plane)
	flips := orientation.FlipsFor(plane, m.vol.Codes())
	idx := [3]int{v.I, v.J, v.K}

	row := idx[axes.Row]
	if flips.Rows {
		row = m.vol.AxisLen(axes.Row) - 1 - row
	}
	col := idx[axes.Col]
	if flips.Cols {
		col = m.vol.AxisLen(axes.Col) - 1 - col
	}
	return models.ScreenPoint{Col: col, Row: row}, idx[axes.Slice], true
}

// ScreenToVoxel is the exact inverse of VoxelToScreen: it un-flips the
// screen position and reassembles the native voxel triple. Screen
// positions or slice indices outside the rendered slice yield ok=false.
func (m *Mapper) ScreenToVoxel(plane models.ViewPlane, pt models.ScreenPoint, slice int) (models.Voxel, bool) {
	axes := orientation.AxesFor(plane)
	flips := orientation.FlipsFor(plane, m.vol.Codes())
	rows := m.vol.AxisLen(axes.Row)
	cols := m.vol.AxisLen(axes.Col)

	if pt.Row < 0 || pt.Row >= rows || pt.Col < 0 || pt.Col >= cols {
		return models.Voxel{}, false
	}
	if slice < 0 || slice >= m.vol.AxisLen(axes.Slice) {
		return models.Voxel{}, false
	}

	row := pt.Row
	if flips.Rows {
		row = rows - 1 - row
	}
	col := pt.Col
	if flips.Cols {
		col = cols - 1 - col
	}

	var idx [3]int
	idx[axes.Slice] = slice
	idx[axes.Row] = row
	idx[axes.Col] = col
	return models.Voxel{I: idx[0], J: idx[1], K: idx[2]}, true
}

// ScreenToPlotData converts a screen position to the rendering surface's
// internal plot-data coordinates. The surface stores volumes with the
// slice axis leading, which transposes the in-plane axes relative to the
// extractor's voxel-native addressing for the non-axial planes; the
// conversion is that fixed per-plane permutation, with no flips.
func (m *Mapper) ScreenToPlotData(plane models.ViewPlane, pt models.ScreenPoint) models.PlotPoint {
	if plane == models.Axial {
		return models.PlotPoint{X: pt.Col, Y: pt.Row}
	}
	return models.PlotPoint{X: pt.Row, Y: pt.Col}
}

// PlotDataToScreen inverts ScreenToPlotData. The permutation is an
// involution, so the two directions apply the same swap.
func (m *Mapper) PlotDataToScreen(plane models.ViewPlane, p models.PlotPoint) models.ScreenPoint {
	if plane == models.Axial {
		return models.ScreenPoint{Col: p.X, Row: p.Y}
	}
	return models.ScreenPoint{Col: p.Y, Row: p.X}
}

// VoxelToPlotData composes VoxelToScreen with ScreenToPlotData, giving the
// plot-data position of a voxel plus the slice index.
func (m *Mapper) VoxelToPlotData(plane models.ViewPlane, v models.Voxel) (p models.PlotPoint, slice int, ok bool) {
	pt, slice, ok := m.VoxelToScreen(plane, v)
	if !ok {
		return models.PlotPoint{}, 0, false
	}
	return m.ScreenToPlotData(plane, pt), slice, true
}

// PlotDataToVoxel composes PlotDataToScreen with ScreenToVoxel.
func (m *Mapper) PlotDataToVoxel(plane models.ViewPlane, p models.PlotPoint, slice int) (models.Voxel, bool) {
	return m.ScreenToVoxel(plane, m.PlotDataToScreen(plane, p), slice)
}

// ScreenToWorld reports the world position under a screen point on the
// current slice, the conversion behind the viewer's cursor readout.
func (m *Mapper) ScreenToWorld(plane models.ViewPlane, pt models.ScreenPoint, slice int) (models.World, bool) {
	v, ok := m.ScreenToVoxel(plane, pt, slice)
	if !ok {
		return models.World{}, false
	}
	return m.VoxelToWorld(v), true
}

func applyAffine(a *mat.Dense, x, y, z float64) models.World {
	in := mat.NewVecDense(4, []float64{x, y, z, 1})
	var out mat.VecDense
	out.MulVec(a, in)
	return models.World{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

func roundToInt(x float64) int {
	if x < 0 {
		return int(x - 0.5)
	}
	return int(x + 0.5)
}
