// Package render draws the spectator scene: map, players, dead markers and spike on
// the map layer, plus the round strip, score/timer and player table layers.
package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// Surface is a 2-D drawing target with a transform stack. *gg.Context satisfies it.
type Surface interface {
	Width() int
	Height() int
	Image() image.Image

	Push()
	Pop()
	Identity()
	Translate(x, y float64)
	Rotate(angle float64)

	SetColor(c color.Color)
	SetLineWidth(w float64)
	SetFontFace(face font.Face)
	Clear()

	DrawCircle(x, y, r float64)
	DrawArc(x, y, r, angle1, angle2 float64)
	DrawLine(x1, y1, x2, y2 float64)
	DrawRectangle(x, y, w, h float64)
	Fill()
	FillPreserve()
	Stroke()

	DrawImage(im image.Image, x, y int)
	DrawImageAnchored(im image.Image, x, y int, ax, ay float64)
	DrawStringAnchored(s string, x, y, ax, ay float64)
}

// SurfaceFactory creates a w x h surface.
type SurfaceFactory func(w, h int) Surface

// NewGGSurface is the default factory.
func NewGGSurface(w, h int) Surface {
	return gg.NewContext(w, h)
}

// Layer names one of the independent drawing surfaces.
type Layer string

const (
	LayerMap    Layer = "map"
	LayerRounds Layer = "rounds"
	LayerStatus Layer = "status"
	LayerTable  Layer = "table"
)

// Layers in composition order.
var Layers = []Layer{LayerMap, LayerRounds, LayerStatus, LayerTable}

// ParseLayer validates a layer name.
func ParseLayer(name string) (Layer, bool) {
	for _, l := range Layers {
		if string(l) == name {
			return l, true
		}
	}
	return "", false
}

var _ Surface = (*gg.Context)(nil)
