package models

import (
	"fmt"
	"strings"
)

// ViewPlane identifies one of the three anatomical viewing planes.
// Each plane slices the volume orthogonally to one voxel axis:
// axial slices along z, sagittal along x, coronal along y.
type ViewPlane int

const (
	Axial ViewPlane = iota
	Sagittal
	Coronal
)

// String returns the lowercase plane name.
func (p ViewPlane) String() string {
	switch p {
	case Axial:
		return "axial"
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	}
	return fmt.Sprintf("ViewPlane(%d)", int(p))
}

// ParseViewPlane converts a plane name into a ViewPlane value.
// Matching is case-insensitive.
func ParseViewPlane(s string) (ViewPlane, error) {
	switch strings.ToLower(s) {
	case "axial", "ax":
		return Axial, nil
	case "sagittal", "sag":
		return Sagittal, nil
	case "coronal", "cor":
		return Coronal, nil
	}
	return Axial, fmt.Errorf("unknown view plane %q (must be axial, sagittal or coronal)", s)
}

// Planes lists all view planes in a stable order, useful for iteration.
var Planes = []ViewPlane{Axial, Sagittal, Coronal}

// Voxel is an integer index triple into the native scanner-order array,
// axes (col, row, slice) = (x, y, z).
type Voxel struct {
	I, J, K int
}

// World is a continuous coordinate triple in physical patient space,
// related to voxel space by the volume's affine transform.
type World struct {
	X, Y, Z float64
}

// ScreenPoint is a 2D coordinate of the rendered slice, possibly flipped
// relative to voxel space to satisfy the display convention. Col grows to
// the right, Row grows downward.
type ScreenPoint struct {
	Col, Row int
}

// PlotPoint is a 2D coordinate in the rendering surface's internal
// plot-data array, which stores the slice axis as the leading dimension
// and therefore differs in axis order from screen space for non-axial
// planes.
type PlotPoint struct {
	X, Y int
}
