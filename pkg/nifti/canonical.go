package nifti

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"niftiview/pkg/orientation"
)

// canonicalize reorders and flips a voxel buffer to the closest
// axis-aligned RAS orientation implied by its affine, returning the
// permuted buffer, its new shape and the affine rewritten to match. The
// downstream core only ever sees "as closest canonical" arrays.
//
// The decomposition assigns each world axis the voxel axis that dominates
// it; if that assignment is not a bijection the orientation is degenerate
// and the volume must be rejected.
func canonicalize(data []float64, shape [3]int, affine *mat.Dense) ([]float64, [3]int, *mat.Dense, error) {
	// source[w] is the old voxel axis that becomes new axis w, flip[w]
	// whether it runs backwards.
	var source [3]int
	var flip [3]bool
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
		if best < 0 || claimed[best] {
			return nil, [3]int{}, nil, fmt.Errorf("affine axes not separable: %w", orientation.ErrDegenerateOrientation)
		}
		claimed[best] = true
		source[best] = axis
		flip[best] = affine.At(best, axis) < 0
	}

	identity := source == [3]int{0, 1, 2} && !flip[0] && !flip[1] && !flip[2]
	if identity {
		return data, shape, affine, nil
	}

	newShape := [3]int{shape[source[0]], shape[source[1]], shape[source[2]]}
	out := make([]float64, len(data))

	// Old strides for x-fastest layout.
	strides := [3]int{1, shape[0], shape[0] * shape[1]}

	var old [3]int
	for z := 0; z < newShape[2]; z++ {
		for y := 0; y < newShape[1]; y++ {
			for x := 0; x < newShape[0]; x++ {
				newIdx := [3]int{x, y, z}
				for w := 0; w < 3; w++ {
					t := newIdx[w]
					if flip[w] {
						t = newShape[w] - 1 - t
					}
					old[source[w]] = t
				}
				src := old[0]*strides[0] + old[1]*strides[1] + old[2]*strides[2]
				out[(z*newShape[1]+y)*newShape[0]+x] = data[src]
			}
		}
	}

	// Rewrite the affine: new column w is the (possibly negated) old
	// column source[w]; flipped axes shift the origin to the old far end.
	newAffine := mat.NewDense(4, 4, nil)
	newAffine.Set(3, 3, 1)
	for w := 0; w < 3; w++ {
		sign := 1.0
		if flip[w] {
			sign = -1
		}
		for world := 0; world < 3; world++ {
			newAffine.Set(world, w, sign*affine.At(world, source[w]))
		}
	}
	for world := 0; world < 3; world++ {
		origin := affine.At(world, 3)
		for w := 0; w < 3; w++ {
			if flip[w] {
				origin += affine.At(world, source[w]) * float64(newShape[w]-1)
			}
		}
		newAffine.Set(world, 3, origin)
	}

	return out, newShape, newAffine, nil
}
