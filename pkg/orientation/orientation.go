// Package orientation derives per-axis anatomical direction codes from a
// volume's 4x4 affine transform and owns the flip table that maps those
// codes to the display convention. Both the slice extractor and the
// coordinate mapper consume the same table, so the forward extraction and
// the inverse mapping cannot drift apart.
package orientation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateOrientation is returned when the rotation/scale block of an
// affine cannot be decomposed into one dominant world axis per voxel axis.
// This should not occur for valid scanner affines; when it does the volume
// must be rejected rather than displayed with undefined orientation.
var ErrDegenerateOrientation = errors.New("degenerate orientation: affine rotation block has no unambiguous axis decomposition")

// AxisCode is a single anatomical direction letter. It names the physical
// direction a voxel index moves toward as it increases.
type AxisCode byte

const (
	Right     AxisCode = 'R'
	Left      AxisCode = 'L'
	Anterior  AxisCode = 'A'
	Posterior AxisCode = 'P'
	Superior  AxisCode = 'S'
	Inferior  AxisCode = 'I'
)

// String returns the single-letter code.
func (c AxisCode) String() string {
	return string(byte(c))
}

// Codes holds the direction code for each voxel axis.
// X is one of R/L, Y one of A/P, Z one of S/I.
type Codes struct {
	X, Y, Z AxisCode
}

// String renders the codes in the conventional three-letter form, e.g. "RAS".
func (c Codes) String() string {
	return fmt.Sprintf("%c%c%c", byte(c.X), byte(c.Y), byte(c.Z))
}

// letter pairs per world axis: positive contribution first.
var codeLetters = [3][2]AxisCode{
	{Right, Left},
	{Anterior, Posterior},
	{Superior, Inferior},
}

// DeriveAxisCodes computes the anatomical direction code of each voxel axis
// from a 4x4 affine using the standard closest-orthogonal-axis
// decomposition: each voxel axis is assigned the world axis it most
// contributes to (largest absolute value in its column of the 3x3
// rotation/scale block), with the direction letter taken from the sign of
// that contribution.
//
// The decomposition is deterministic and side-effect-free. It fails with
// ErrDegenerateOrientation when a column of the 3x3 block is zero or when
// two voxel axes claim the same world axis.
func DeriveAxisCodes(affine *mat.Dense) (Codes, error) {
	r, c := affine.Dims()
	if r != 4 || c != 4 {
		return Codes{}, fmt.Errorf("affine must be 4x4, got %dx%d", r, c)
	}

	var letters [3]AxisCode
	var claimed [3]bool
	for axis := 0; axis < 3; axis++ {
		best := -1
		bestAbs := 0.0
		for world := 0; world < 3; world++ {
			if abs := math.Abs(affine.At(world, axis)); abs > bestAbs {
				bestAbs = abs
				best = world
			}
		}
		if best < 0 {
			return Codes{}, fmt.Errorf("voxel axis %d has a zero affine column: %w", axis, ErrDegenerateOrientation)
		}
		if claimed[best] {
			return Codes{}, fmt.Errorf("voxel axis %d collides on world axis %d: %w", axis, best, ErrDegenerateOrientation)
		}
		claimed[best] = true
		if affine.At(best, axis) > 0 {
			letters[axis] = codeLetters[best][0]
		} else {
			letters[axis] = codeLetters[best][1]
		}
	}

	return Codes{X: letters[0], Y: letters[1], Z: letters[2]}, nil
}
