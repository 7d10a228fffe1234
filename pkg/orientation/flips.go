package orientation

import "niftiview/internal/models"

// FlipSpec says which axes of a native cross-section must be reversed so
// the displayed slice matches the RAS display convention. Rows is the
// leading (first) axis of the extracted 2D array, Cols the second.
type FlipSpec struct {
	Rows, Cols bool
}

// Axes gives, for one view plane, which voxel axis supplies the slice
// index and which voxel axes become the rows and columns of the extracted
// 2D array. Axis numbering is 0=x, 1=y, 2=z.
type Axes struct {
	Slice, Row, Col int
}

var planeAxes = [3]Axes{
	models.Axial:    {Slice: 2, Row: 0, Col: 1},
	models.Sagittal: {Slice: 0, Row: 1, Col: 2},
	models.Coronal:  {Slice: 1, Row: 0, Col: 2},
}

// AxesFor returns the slice/row/col voxel-axis assignment for a plane.
func AxesFor(plane models.ViewPlane) Axes {
	return planeAxes[plane]
}

// FlipsFor returns the flip combination that orients a native cross-section
// for display under the RAS convention. The result depends only on the
// plane and the x/y direction codes:
//
//	axial:    flip rows when x=R, flip cols when y=P
//	coronal:  flip rows when x=R
//	sagittal: flip rows when y=A
//
// The sagittal case deliberately ignores the x and z codes; that asymmetry
// is the established display behavior, not an oversight. The z code never
// participates for any plane.
func FlipsFor(plane models.ViewPlane, c Codes) FlipSpec {
	switch plane {
	case models.Axial:
		return FlipSpec{Rows: c.X == Right, Cols: c.Y == Posterior}
	case models.Coronal:
		return FlipSpec{Rows: c.X == Right}
	case models.Sagittal:
		return FlipSpec{Rows: c.Y == Anterior}
	}
	return FlipSpec{}
}
