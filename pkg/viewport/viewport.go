// Package viewport orchestrates the display of a stack of volumes: it
// owns the layer list, the current view plane and slice index, and routes
// pointer and scroll events through the coordinate mapper so the UI can
// report voxel and world positions.
package viewport

import (
	"errors"
	"fmt"
	"image"

	"niftiview/internal/models"
	"niftiview/pkg/mapping"
	"niftiview/pkg/render"
	"niftiview/pkg/slicer"
	"niftiview/pkg/volume"
)

// MaxLayers is the size of the fixed layer list: one background plus
// overlays.
const MaxLayers = 4

// ErrNoBackground is returned by operations that need at least one loaded
// layer.
var ErrNoBackground = errors.New("viewport has no background layer")

// ErrLayerIndex is returned for layer slots outside [0, MaxLayers).
var ErrLayerIndex = errors.New("layer index out of range")

// PointerInfo is the coordinate readout for a pointer position on the
// rendered slice: the voxel under the cursor, its world position and its
// intensity in the background volume.
type PointerInfo struct {
	Voxel     models.Voxel
	World     models.World
	Intensity float64
}

// Viewport displays an ordered stack of up to MaxLayers volumes in one
// view plane. The first non-nil layer is the background; it defines the
// slice extent and the coordinate geometry. Overlays are assumed to share
// the background's voxel grid.
type Viewport struct {
	layers [MaxLayers]*volume.Volume
	plane  models.ViewPlane
	slice  int

	mapper *mapping.Mapper

	// OverlayOpacity weights overlay layers during compositing.
	OverlayOpacity float64
}

// New builds an empty viewport for the given plane. The display convention
// is checked eagerly so an unsupported convention surfaces before any
// volume is attached.
func New(plane models.ViewPlane, conv mapping.Convention) (*Viewport, error) {
	if conv != mapping.RAS {
		return nil, fmt.Errorf("convention %q: %w", conv, mapping.ErrUnsupportedConvention)
	}
	return &Viewport{plane: plane, OverlayOpacity: 0.5}, nil
}

// SetLayer attaches a volume to a layer slot, replacing any previous
// occupant. Attaching to slot 0 (or the first occupied slot) changes the
// background, so the slice index is re-clamped and the mapper rebuilt.
func (vp *Viewport) SetLayer(slot int, vol *volume.Volume) error {
	if slot < 0 || slot >= MaxLayers {
		return fmt.Errorf("slot %d: %w", slot, ErrLayerIndex)
	}
	vp.layers[slot] = vol
	return vp.refresh()
}

// ClearLayer empties a layer slot. Removing the background promotes the
// next non-nil layer.
func (vp *Viewport) ClearLayer(slot int) error {
	if slot < 0 || slot >= MaxLayers {
		return fmt.Errorf("slot %d: %w", slot, ErrLayerIndex)
	}
	vp.layers[slot] = nil
	return vp.refresh()
}

// Background returns the first non-nil layer, scanning from slot 0, or
// nil when the viewport is empty.
func (vp *Viewport) Background() *volume.Volume {
	for _, layer := range vp.layers {
		if layer != nil {
			return layer
		}
	}
	return nil
}

// Layer returns the volume in a slot, or nil.
func (vp *Viewport) Layer(slot int) *volume.Volume {
	if slot < 0 || slot >= MaxLayers {
		return nil
	}
	return vp.layers[slot]
}

// Plane returns the current view plane.
func (vp *Viewport) Plane() models.ViewPlane {
	return vp.plane
}

// SetPlane switches the view plane, re-clamping the slice index to the
// new axis extent.
func (vp *Viewport) SetPlane(plane models.ViewPlane) {
	vp.plane = plane
	vp.clampSlice()
}

// CurrentSlice returns the current slice index along the plane's slice
// axis.
func (vp *Viewport) CurrentSlice() int {
	return vp.slice
}

// SetSlice moves to the given slice, clamped into the background's valid
// range. With no background the index pins to zero.
func (vp *Viewport) SetSlice(index int) {
	vp.slice = index
	vp.clampSlice()
}

// Scroll moves the current slice by delta, clamping at both ends. It
// returns the index actually reached.
func (vp *Viewport) Scroll(delta int) int {
	vp.slice += delta
	vp.clampSlice()
	return vp.slice
}

// refresh rebuilds the background mapper and re-clamps the slice after a
// layer mutation.
func (vp *Viewport) refresh() error {
	bg := vp.Background()
	if bg == nil {
		vp.mapper = nil
		vp.slice = 0
		return nil
	}
	m, err := mapping.NewMapper(bg, mapping.RAS)
	if err != nil {
		return fmt.Errorf("rebuilding mapper: %w", err)
	}
	vp.mapper = m
	vp.clampSlice()
	return nil
}

func (vp *Viewport) clampSlice() {
	bg := vp.Background()
	if bg == nil {
		vp.slice = 0
		return
	}
	if max := bg.Extent(vp.plane) - 1; vp.slice > max {
		vp.slice = max
	}
	if vp.slice < 0 {
		vp.slice = 0
	}
}

// Pointer resolves a screen position on the current slice to its voxel,
// world position and background intensity. It reports ok=false for
// positions outside the rendered slice, leaving the UI to blank its
// readout.
func (vp *Viewport) Pointer(pt models.ScreenPoint) (PointerInfo, bool) {
	bg := vp.Background()
	if bg == nil || vp.mapper == nil {
		return PointerInfo{}, false
	}
	v, ok := vp.mapper.ScreenToVoxel(vp.plane, pt, vp.slice)
	if !ok {
		return PointerInfo{}, false
	}
	intensity, ok := bg.At(v.I, v.J, v.K)
	if !ok {
		return PointerInfo{}, false
	}
	return PointerInfo{
		Voxel:     v,
		World:     vp.mapper.VoxelToWorld(v),
		Intensity: intensity,
	}, true
}

// Render composites the current slice of every visible layer, background
// first, into one image. Each layer renders through its own display
// window and the given colormap; overlays blend with OverlayOpacity.
// Layers whose extent does not cover the current slice are skipped rather
// than failing the frame.
func (vp *Viewport) Render(cm *render.Colormap) (*image.NRGBA, error) {
	bg := vp.Background()
	if bg == nil {
		return nil, ErrNoBackground
	}

	s, err := slicer.GetSlice(bg, vp.plane, vp.slice)
	if err != nil {
		return nil, fmt.Errorf("extracting background slice: %w", err)
	}
	base := render.RenderSlice(s, bg.DisplayMin, bg.DisplayMax, cm)

	seenBackground := false
	for _, layer := range vp.layers {
		if layer == nil {
			continue
		}
		if !seenBackground {
			seenBackground = true
			continue
		}
		if !layer.Visible || vp.slice >= layer.Extent(vp.plane) {
			continue
		}
		os, err := slicer.GetSlice(layer, vp.plane, vp.slice)
		if err != nil {
			return nil, fmt.Errorf("extracting overlay slice: %w", err)
		}
		render.Composite(base, render.RenderSlice(os, layer.DisplayMin, layer.DisplayMax, cm), vp.OverlayOpacity)
	}
	return base, nil
}
