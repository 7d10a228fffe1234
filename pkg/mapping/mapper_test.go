package mapping

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"niftiview/internal/models"
	"niftiview/pkg/slicer"
	"niftiview/pkg/volume"
)

// signedVolume builds a (5,4,3) ramp volume with an axis-aligned affine
// whose per-axis signs select the orientation codes.
func signedVolume(t *testing.T, sx, sy, sz float64) *volume.Volume {
	t.Helper()
	nx, ny, nz := 5, 4, 3
	data := make([]float64, nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				data[(k*ny+j)*nx+i] = float64(i + 10*j + 100*k)
			}
		}
	}
	affine := mat.NewDense(4, 4, []float64{
		sx, 0, 0, 0,
		0, sy, 0, 0,
		0, 0, sz, 0,
		0, 0, 0, 1,
	})
	vol, err := volume.New(data, nx, ny, nz, [3]float64{1, 1, 1}, affine)
	if err != nil {
		t.Fatalf("volume.New returned error: %v", err)
	}
	return vol
}

func newRASMapper(t *testing.T, vol *volume.Volume) *Mapper {
	t.Helper()
	m, err := NewMapper(vol, RAS)
	if err != nil {
		t.Fatalf("NewMapper returned error: %v", err)
	}
	return m
}

// TestUnsupportedConvention verifies that anything other than RAS is
// rejected at construction.
func TestUnsupportedConvention(t *testing.T) {
	vol := signedVolume(t, 1, 1, 1)
	for _, conv := range []Convention{"LPS", "LAS", "ras", ""} {
		if _, err := NewMapper(vol, conv); !errors.Is(err, ErrUnsupportedConvention) {
			t.Errorf("NewMapper(%q) = %v, expected ErrUnsupportedConvention", conv, err)
		}
	}
}

// TestScreenRoundTripAllOrientations is the central invariant: for all
// eight sign combinations and all three planes, screen mapping inverts
// exactly for every in-range voxel.
func TestScreenRoundTripAllOrientations(t *testing.T) {
	signs := []float64{1, -1}
	for _, sx := range signs {
		for _, sy := range signs {
			for _, sz := range signs {
				vol := signedVolume(t, sx, sy, sz)
				m := newRASMapper(t, vol)
				for _, plane := range models.Planes {
					nx, ny, nz := vol.Shape()
					for k := 0; k < nz; k++ {
						for j := 0; j < ny; j++ {
							for i := 0; i < nx; i++ {
								v := models.Voxel{I: i, J: j, K: k}
								pt, slice, ok := m.VoxelToScreen(plane, v)
								if !ok {
									t.Fatalf("[%s %s] VoxelToScreen(%v) unexpectedly out of range", vol.Codes(), plane, v)
								}
								back, ok := m.ScreenToVoxel(plane, pt, slice)
								if !ok {
									t.Fatalf("[%s %s] ScreenToVoxel(%v,%d) unexpectedly out of range", vol.Codes(), plane, pt, slice)
								}
								if back != v {
									t.Fatalf("[%s %s] round trip %v -> (%v,%d) -> %v", vol.Codes(), plane, v, pt, slice, back)
								}
							}
						}
					}
				}
			}
		}
	}
}

// TestScreenMatchesExtractedSlice verifies that VoxelToScreen lands on the
// pixel of the extracted slice that actually holds the voxel's intensity,
// for every orientation and plane. This pins the mapper and the extractor
// to the same flip table.
func TestScreenMatchesExtractedSlice(t *testing.T) {
	signs := []float64{1, -1}
	for _, sx := range signs {
		for _, sy := range signs {
			vol := signedVolume(t, sx, sy, 1)
			m := newRASMapper(t, vol)
			for _, plane := range models.Planes {
				nx, ny, nz := vol.Shape()
				for k := 0; k < nz; k++ {
					for j := 0; j < ny; j++ {
						for i := 0; i < nx; i++ {
							v := models.Voxel{I: i, J: j, K: k}
							pt, slice, ok := m.VoxelToScreen(plane, v)
							if !ok {
								t.Fatalf("[%s %s] VoxelToScreen(%v) out of range", vol.Codes(), plane, v)
							}
							s, err := slicer.GetSlice(vol, plane, slice)
							if err != nil {
								t.Fatalf("[%s %s] GetSlice(%d) error: %v", vol.Codes(), plane, slice, err)
							}
							want, _ := vol.At(i, j, k)
							got, ok := s.At(pt.Row, pt.Col)
							if !ok {
								t.Fatalf("[%s %s] screen point %v outside extracted slice", vol.Codes(), plane, pt)
							}
							if got != want {
								t.Fatalf("[%s %s] slice(%d,%d) = %v, expected voxel %v value %v",
									vol.Codes(), plane, pt.Row, pt.Col, got, v, want)
							}
						}
					}
				}
			}
		}
	}
}

// TestAxialScreenRoundTripConcrete is the worked property-5 case: voxel
// (2,2,1) on the axial plane of the RAS test volume.
func TestAxialScreenRoundTripConcrete(t *testing.T) {
	vol := signedVolume(t, 1, 1, 1)
	m := newRASMapper(t, vol)

	v := models.Voxel{I: 2, J: 2, K: 1}
	pt, slice, ok := m.VoxelToScreen(models.Axial, v)
	if !ok {
		t.Fatal("VoxelToScreen(axial, (2,2,1)) reported out of range")
	}
	if slice != 1 {
		t.Errorf("Slice index = %d, expected 1", slice)
	}
	// RAS axial flips rows: i=2 of nx=5 lands on row 2; columns unflipped.
	if pt.Row != 2 || pt.Col != 2 {
		t.Errorf("Screen point = %+v, expected Col=2 Row=2", pt)
	}

	back, ok := m.ScreenToVoxel(models.Axial, pt, slice)
	if !ok || back != v {
		t.Errorf("ScreenToVoxel round trip = (%v,%v), expected (2,2,1)", back, ok)
	}
}

// TestScreenToVoxelBounds verifies the explicit no-mapping result for
// out-of-range screen positions and slice indices.
func TestScreenToVoxelBounds(t *testing.T) {
	vol := signedVolume(t, 1, 1, 1)
	m := newRASMapper(t, vol)

	cases := []struct {
		pt    models.ScreenPoint
		slice int
	}{
		{models.ScreenPoint{Col: -1, Row: 0}, 0},
		{models.ScreenPoint{Col: 0, Row: -1}, 0},
		{models.ScreenPoint{Col: 4, Row: 0}, 0},  // axial cols span ny=4
		{models.ScreenPoint{Col: 0, Row: 5}, 0},  // axial rows span nx=5
		{models.ScreenPoint{Col: 0, Row: 0}, -1},
		{models.ScreenPoint{Col: 0, Row: 0}, 3},
	}
	for _, tc := range cases {
		if _, ok := m.ScreenToVoxel(models.Axial, tc.pt, tc.slice); ok {
			t.Errorf("ScreenToVoxel(axial, %+v, %d) should have no mapping", tc.pt, tc.slice)
		}
	}

	if _, _, ok := m.VoxelToScreen(models.Axial, models.Voxel{I: 5, J: 0, K: 0}); ok {
		t.Error("VoxelToScreen should have no mapping for an out-of-range voxel")
	}
}

// TestWorldRoundTrip verifies the affine round trip against an arbitrary
// invertible (oblique, translated, anisotropic) affine.
func TestWorldRoundTrip(t *testing.T) {
	nx, ny, nz := 5, 4, 3
	data := make([]float64, nx*ny*nz)
	for n := range data {
		data[n] = float64(n)
	}
	affine := mat.NewDense(4, 4, []float64{
		0.9, 0.1, -0.2, -34.2,
		-0.15, 1.1, 0.05, 18.7,
		0.1, -0.08, 2.4, -11.9,
		0, 0, 0, 1,
	})
	vol, err := volume.New(data, nx, ny, nz, [3]float64{0.9, 1.1, 2.4}, affine)
	if err != nil {
		t.Fatalf("volume.New returned error: %v", err)
	}
	m := newRASMapper(t, vol)

	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				v := models.Voxel{I: i, J: j, K: k}
				w := m.VoxelToWorld(v)
				x, y, z := m.WorldToContinuousVoxel(w)
				if math.Abs(x-float64(i)) > 1e-6 || math.Abs(y-float64(j)) > 1e-6 || math.Abs(z-float64(k)) > 1e-6 {
					t.Fatalf("World round trip of %v drifted to (%v,%v,%v)", v, x, y, z)
				}
				back, ok := m.WorldToVoxel(w)
				if !ok || back != v {
					t.Fatalf("WorldToVoxel(VoxelToWorld(%v)) = (%v,%v)", v, back, ok)
				}
			}
		}
	}
}

// TestWorldToVoxelOutside verifies that world points beyond the array give
// the explicit no-mapping result.
func TestWorldToVoxelOutside(t *testing.T) {
	vol := signedVolume(t, 1, 1, 1)
	m := newRASMapper(t, vol)

	if _, ok := m.WorldToVoxel(models.World{X: -3, Y: 0, Z: 0}); ok {
		t.Error("Expected no mapping for a world point left of the volume")
	}
	if _, ok := m.WorldToVoxel(models.World{X: 0, Y: 0, Z: 10}); ok {
		t.Error("Expected no mapping for a world point above the volume")
	}
	// Rounding: 1.4 rounds into voxel 1, still inside.
	if v, ok := m.WorldToVoxel(models.World{X: 1.4, Y: 0.4, Z: 0.4}); !ok || (v != models.Voxel{I: 1, J: 0, K: 0}) {
		t.Errorf("WorldToVoxel(1.4,0.4,0.4) = (%v,%v), expected (1,0,0)", v, ok)
	}
}

// TestPlotDataPermutation verifies the per-plane plot-data transposition
// and that the composed voxel→plot-data path agrees with going through
// screen space.
func TestPlotDataPermutation(t *testing.T) {
	vol := signedVolume(t, 1, -1, 1)
	m := newRASMapper(t, vol)

	pt := models.ScreenPoint{Col: 2, Row: 1}
	if p := m.ScreenToPlotData(models.Axial, pt); (p != models.PlotPoint{X: 2, Y: 1}) {
		t.Errorf("Axial plot-data point = %+v, expected identity (2,1)", p)
	}
	for _, plane := range []models.ViewPlane{models.Sagittal, models.Coronal} {
		if p := m.ScreenToPlotData(plane, pt); (p != models.PlotPoint{X: 1, Y: 2}) {
			t.Errorf("%s plot-data point = %+v, expected transposed (1,2)", plane, p)
		}
	}

	for _, plane := range models.Planes {
		nx, ny, nz := vol.Shape()
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					v := models.Voxel{I: i, J: j, K: k}

					direct, slice, ok := m.VoxelToPlotData(plane, v)
					if !ok {
						t.Fatalf("[%s] VoxelToPlotData(%v) out of range", plane, v)
					}
					pt, ptSlice, ok := m.VoxelToScreen(plane, v)
					if !ok || ptSlice != slice {
						t.Fatalf("[%s] screen and plot-data slice indices disagree for %v", plane, v)
					}
					if via := m.ScreenToPlotData(plane, pt); via != direct {
						t.Fatalf("[%s] voxel→plot-data %v disagrees with voxel→screen→plot-data %v", plane, direct, via)
					}

					back, ok := m.PlotDataToVoxel(plane, direct, slice)
					if !ok || back != v {
						t.Fatalf("[%s] PlotDataToVoxel round trip %v -> %v", plane, v, back)
					}
				}
			}
		}
	}
}

// TestScreenToWorldAgreesWithAffine verifies the cursor-readout path.
func TestScreenToWorldAgreesWithAffine(t *testing.T) {
	vol := signedVolume(t, -1, 1, -1)
	m := newRASMapper(t, vol)

	v := models.Voxel{I: 3, J: 1, K: 2}
	pt, slice, ok := m.VoxelToScreen(models.Coronal, v)
	if !ok {
		t.Fatal("VoxelToScreen out of range")
	}
	w, ok := m.ScreenToWorld(models.Coronal, pt, slice)
	if !ok {
		t.Fatal("ScreenToWorld reported no mapping")
	}
	want := m.VoxelToWorld(v)
	if w != want {
		t.Errorf("ScreenToWorld = %+v, expected %+v", w, want)
	}

	if _, ok := m.ScreenToWorld(models.Coronal, models.ScreenPoint{Col: 99, Row: 0}, 0); ok {
		t.Error("Expected no mapping for an off-slice screen point")
	}
}
