package orientation

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"niftiview/internal/models"
)

// diagAffine builds an axis-aligned affine with the given diagonal scales.
func diagAffine(sx, sy, sz float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		sx, 0, 0, 0,
		0, sy, 0, 0,
		0, 0, sz, 0,
		0, 0, 0, 1,
	})
}

// TestDeriveAxisCodesCanonical verifies that all eight sign combinations of
// an axis-aligned affine produce the expected code triples.
func TestDeriveAxisCodesCanonical(t *testing.T) {
	cases := []struct {
		sx, sy, sz float64
		want       string
	}{
		{1, 1, 1, "RAS"},
		{-1, 1, 1, "LAS"},
		{1, -1, 1, "RPS"},
		{1, 1, -1, "RAI"},
		{-1, -1, 1, "LPS"},
		{-1, 1, -1, "LAI"},
		{1, -1, -1, "RPI"},
		{-1, -1, -1, "LPI"},
	}

	for _, tc := range cases {
		codes, err := DeriveAxisCodes(diagAffine(tc.sx, tc.sy, tc.sz))
		if err != nil {
			t.Errorf("DeriveAxisCodes(%v,%v,%v) returned error: %v", tc.sx, tc.sy, tc.sz, err)
			continue
		}
		if codes.String() != tc.want {
			t.Errorf("DeriveAxisCodes(%v,%v,%v) = %s, expected %s", tc.sx, tc.sy, tc.sz, codes, tc.want)
		}
	}
}

// TestDeriveAxisCodesOblique verifies that a mildly oblique affine still
// resolves to the dominant axis of each column.
func TestDeriveAxisCodesOblique(t *testing.T) {
	affine := mat.NewDense(4, 4, []float64{
		0.96, 0.10, -0.05, 12.0,
		-0.20, 0.90, 0.15, -7.5,
		0.08, -0.12, 1.10, 30.0,
		0, 0, 0, 1,
	})

	codes, err := DeriveAxisCodes(affine)
	if err != nil {
		t.Fatalf("DeriveAxisCodes returned error for oblique affine: %v", err)
	}
	if codes.String() != "RAS" {
		t.Errorf("Expected oblique affine to decompose as RAS, got %s", codes)
	}
}

// TestDeriveAxisCodesAnisotropicSpacing verifies that unequal voxel sizes do
// not change the decomposition.
func TestDeriveAxisCodesAnisotropicSpacing(t *testing.T) {
	codes, err := DeriveAxisCodes(diagAffine(0.5, -0.5, 3.0))
	if err != nil {
		t.Fatalf("DeriveAxisCodes returned error: %v", err)
	}
	if codes.String() != "RPS" {
		t.Errorf("Expected RPS for spacing-scaled affine, got %s", codes)
	}
}

// TestDeriveAxisCodesDegenerate verifies the two degenerate shapes: a zero
// column and two columns dominating the same world axis.
func TestDeriveAxisCodesDegenerate(t *testing.T) {
	zeroColumn := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	if _, err := DeriveAxisCodes(zeroColumn); !errors.Is(err, ErrDegenerateOrientation) {
		t.Errorf("Expected ErrDegenerateOrientation for zero column, got %v", err)
	}

	collision := mat.NewDense(4, 4, []float64{
		1, 0.9, 0, 0,
		0.2, 0.1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	if _, err := DeriveAxisCodes(collision); !errors.Is(err, ErrDegenerateOrientation) {
		t.Errorf("Expected ErrDegenerateOrientation for colliding columns, got %v", err)
	}
}

// TestDeriveAxisCodesRejectsWrongShape verifies the 4x4 precondition.
func TestDeriveAxisCodesRejectsWrongShape(t *testing.T) {
	if _, err := DeriveAxisCodes(mat.NewDense(3, 3, nil)); err == nil {
		t.Error("Expected error for 3x3 matrix, got nil")
	}
}

// TestFlipsForTable checks the full flip table for every plane and every
// reachable x/y code combination.
func TestFlipsForTable(t *testing.T) {
	cases := []struct {
		plane models.ViewPlane
		x, y  AxisCode
		want  FlipSpec
	}{
		{models.Axial, Right, Anterior, FlipSpec{Rows: true}},
		{models.Axial, Right, Posterior, FlipSpec{Rows: true, Cols: true}},
		{models.Axial, Left, Anterior, FlipSpec{}},
		{models.Axial, Left, Posterior, FlipSpec{Cols: true}},
		{models.Coronal, Right, Anterior, FlipSpec{Rows: true}},
		{models.Coronal, Right, Posterior, FlipSpec{Rows: true}},
		{models.Coronal, Left, Anterior, FlipSpec{}},
		{models.Coronal, Left, Posterior, FlipSpec{}},
		{models.Sagittal, Right, Anterior, FlipSpec{Rows: true}},
		{models.Sagittal, Left, Anterior, FlipSpec{Rows: true}},
		{models.Sagittal, Right, Posterior, FlipSpec{}},
		{models.Sagittal, Left, Posterior, FlipSpec{}},
	}

	for _, tc := range cases {
		got := FlipsFor(tc.plane, Codes{X: tc.x, Y: tc.y, Z: Superior})
		if got != tc.want {
			t.Errorf("FlipsFor(%s, %c%c) = %+v, expected %+v", tc.plane, tc.x, tc.y, got, tc.want)
		}
	}
}

// TestFlipsForIgnoresZ verifies that the z code never changes the flips.
func TestFlipsForIgnoresZ(t *testing.T) {
	for _, plane := range models.Planes {
		up := FlipsFor(plane, Codes{X: Right, Y: Anterior, Z: Superior})
		down := FlipsFor(plane, Codes{X: Right, Y: Anterior, Z: Inferior})
		if up != down {
			t.Errorf("FlipsFor(%s) differs on z code: %+v vs %+v", plane, up, down)
		}
	}
}

// TestAxesFor verifies the slice/row/col axis assignment per plane.
func TestAxesFor(t *testing.T) {
	cases := []struct {
		plane models.ViewPlane
		want  Axes
	}{
		{models.Axial, Axes{Slice: 2, Row: 0, Col: 1}},
		{models.Sagittal, Axes{Slice: 0, Row: 1, Col: 2}},
		{models.Coronal, Axes{Slice: 1, Row: 0, Col: 2}},
	}
	for _, tc := range cases {
		if got := AxesFor(tc.plane); got != tc.want {
			t.Errorf("AxesFor(%s) = %+v, expected %+v", tc.plane, got, tc.want)
		}
	}
}
