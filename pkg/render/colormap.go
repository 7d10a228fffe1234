package render

import (
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// lutSize is the number of precomputed colormap entries.
const lutSize = 256

// Colormap maps a normalized intensity in [0,1] to a display color through
// a precomputed lookup table.
type Colormap struct {
	name string
	lut  [lutSize]color.NRGBA
}

// Name returns the colormap's registered name.
func (c *Colormap) Name() string {
	return c.name
}

// Map returns the color for a normalized intensity. Values outside [0,1]
// clamp to the ends of the table.
func (c *Colormap) Map(t float64) color.NRGBA {
	if t <= 0 {
		return c.lut[0]
	}
	if t >= 1 {
		return c.lut[lutSize-1]
	}
	return c.lut[int(t*float64(lutSize-1)+0.5)]
}

// gradient stops per colormap, blended in Lab space for perceptual
// smoothness.
var colormapStops = map[string][]string{
	"gray":    {"#000000", "#ffffff"},
	"hot":     {"#000000", "#e60000", "#ffdd00", "#ffffff"},
	"cool":    {"#00ffff", "#ff00ff"},
	"viridis": {"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"},
}

// NewColormap builds a named colormap. Known names: gray, hot, cool,
// viridis.
func NewColormap(name string) (*Colormap, error) {
	stops, ok := colormapStops[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}

	keys := make([]colorful.Color, len(stops))
	for n, hex := range stops {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("parsing colormap stop %q: %w", hex, err)
		}
		keys[n] = c
	}

	cm := &Colormap{name: name}
	segments := len(keys) - 1
	for n := 0; n < lutSize; n++ {
		t := float64(n) / float64(lutSize-1)
		seg := int(t * float64(segments))
		if seg >= segments {
			seg = segments - 1
		}
		local := t*float64(segments) - float64(seg)
		blended := keys[seg].BlendLab(keys[seg+1], local).Clamped()
		r, g, b := blended.RGB255()
		cm.lut[n] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return cm, nil
}

// ColormapNames lists the registered colormap names.
func ColormapNames() []string {
	return []string{"cool", "gray", "hot", "viridis"}
}
