// Package slicer extracts orientation-corrected 2D cross-sections from a
// volume. Voxel data is always addressed in its native (x,y,z) order; the
// extractor takes the plane orthogonal to the slice axis and then applies
// the flip combination from the orientation package so the displayed image
// matches the RAS display convention.
package slicer

import (
	"fmt"

	"niftiview/internal/models"
	"niftiview/pkg/orientation"
	"niftiview/pkg/volume"
)

// Slice2D is a dense row-major 2D scalar image cut from a volume.
type Slice2D struct {
	Data       []float64
	Rows, Cols int
}

// At returns the value at (row, col), or false when out of bounds.
func (s *Slice2D) At(row, col int) (float64, bool) {
	if row < 0 || row >= s.Rows || col < 0 || col >= s.Cols {
		return 0, false
	}
	return s.Data[row*s.Cols+col], true
}

// GetSlice extracts the 2D cross-section of vol at index along the slice
// axis of plane, flipped per the volume's orientation codes so the result
// is display-ready under the RAS convention.
//
// An index outside [0, Extent(plane)) returns volume.ErrOutOfRange; the
// extractor never wraps or clamps the index and never panics. Repeated
// calls with identical arguments on an unmodified volume return identical
// output.
func GetSlice(vol *volume.Volume, plane models.ViewPlane, index int) (*Slice2D, error) {
	extent := vol.Extent(plane)
	if index < 0 || index >= extent {
		return nil, fmt.Errorf("%s slice %d outside [0,%d): %w", plane, index, extent, volume.ErrOutOfRange)
	}

	axes := orientation.AxesFor(plane)
	flips := orientation.FlipsFor(plane, vol.Codes())
	rows := vol.AxisLen(axes.Row)
	cols := vol.AxisLen(axes.Col)

	out := &Slice2D{
		Data: make([]float64, rows*cols),
		Rows: rows,
		Cols: cols,
	}

	var idx [3]int
	idx[axes.Slice] = index
	for r := 0; r < rows; r++ {
		if flips.Rows {
			idx[axes.Row] = rows - 1 - r
		} else {
			idx[axes.Row] = r
		}
		for c := 0; c < cols; c++ {
			if flips.Cols {
				idx[axes.Col] = cols - 1 - c
			} else {
				idx[axes.Col] = c
			}
			v, ok := vol.At(idx[0], idx[1], idx[2])
			if !ok {
				return nil, fmt.Errorf("voxel (%d,%d,%d) escaped bounds during %s extraction: %w",
					idx[0], idx[1], idx[2], plane, volume.ErrOutOfRange)
			}
			out.Data[r*cols+c] = v
		}
	}

	return out, nil
}
