// Package render turns extracted slices into images: intensity windowing,
// colormap application, overlay compositing and export scaling. It is the
// boundary between the numeric core and the image-producing surface of
// the viewer.
package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"niftiview/internal/models"
	"niftiview/pkg/slicer"
	"niftiview/pkg/volume"
)

// Window normalizes a raw intensity into [0,1] using the display bounds.
// A degenerate window (max <= min) degrades to a threshold at min rather
// than failing: keeping the bounds consistent is the caller's job, but an
// inconsistent window must still render.
func Window(value, displayMin, displayMax float64) float64 {
	width := displayMax - displayMin
	if width <= 0 {
		if value < displayMin {
			return 0
		}
		return 1
	}
	t := (value - displayMin) / width
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// RenderSlice paints a slice through the given window and colormap. Slice
// row r becomes pixel row y=r and column c pixel column x=c, so the image
// is already in the display convention the extractor produced.
func RenderSlice(s *slicer.Slice2D, displayMin, displayMax float64, cm *Colormap) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Cols, s.Rows))
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			v, ok := s.At(r, c)
			if !ok {
				continue
			}
			img.SetNRGBA(c, r, cm.Map(Window(v, displayMin, displayMax)))
		}
	}
	return img
}

// Composite alpha-blends an overlay onto a base image in place. Opacity
// scales the overlay's own alpha and clamps to [0,1]. Images of different
// sizes blend over their intersection.
func Composite(base *image.NRGBA, overlay image.Image, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}
	bounds := base.Bounds().Intersect(overlay.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			or, og, ob, oa := overlay.At(x, y).RGBA()
			a := float64(oa) / 0xffff * opacity
			if a == 0 {
				continue
			}
			b := base.NRGBAAt(x, y)
			blend := func(over uint32, under uint8) uint8 {
				o := float64(over) / 0xffff * 255
				return uint8(o*a + float64(under)*(1-a) + 0.5)
			}
			base.SetNRGBA(x, y, color.NRGBA{
				R: blend(or, b.R),
				G: blend(og, b.G),
				B: blend(ob, b.B),
				A: 255,
			})
		}
	}
}

// Scale resizes an image by an isotropic factor with the requested
// quality: nearest-neighbor preserves voxel boundaries for inspection,
// bilinear smooths for presentation.
func Scale(img image.Image, factor float64, smooth bool) (image.Image, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("scale factor must be positive, got %v", factor)
	}
	if factor == 1 {
		return img, nil
	}
	b := img.Bounds()
	w := int(float64(b.Dx())*factor + 0.5)
	h := int(float64(b.Dy())*factor + 0.5)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("scale factor %v collapses the image", factor)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if smooth {
		xdraw.BiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	} else {
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	}
	return dst, nil
}

// SaveImage writes an image to disk; the format follows the file
// extension (png, jpg, tiff, bmp, ...).
func SaveImage(img image.Image, filename string) error {
	if err := imaging.Save(img, filename); err != nil {
		return fmt.Errorf("saving %s: %w", filename, err)
	}
	return nil
}

// ExportSliceSequence extracts and saves every slice of one plane as PNG
// files named slice_<plane>_<index>.png under outputDir.
func ExportSliceSequence(vol *volume.Volume, plane models.ViewPlane, cm *Colormap, scale float64, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for index := 0; index < vol.Extent(plane); index++ {
		s, err := slicer.GetSlice(vol, plane, index)
		if err != nil {
			return fmt.Errorf("extracting %s slice %d: %w", plane, index, err)
		}
		img, err := Scale(RenderSlice(s, vol.DisplayMin, vol.DisplayMax, cm), scale, false)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", plane, index))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}
	return nil
}
