package render

import (
	"bytes"
	"image"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// Compose stacks the last redraw into one image: status and round strip above the
// map, the player table to the right of the map when withTable is set.
func (p *Pipeline) Compose(withTable bool) image.Image {
	mapImg := p.Image(LayerMap)
	rounds := p.Image(LayerRounds)
	status := p.Image(LayerStatus)
	table := p.Image(LayerTable)
	if mapImg == nil || rounds == nil || status == nil {
		return image.NewRGBA(image.Rect(0, 0, p.size, p.size))
	}

	width := mapImg.Bounds().Dx()
	if withTable && table != nil {
		width += table.Bounds().Dx()
	}
	if w := rounds.Bounds().Dx(); w > width {
		width = w
	}
	height := status.Bounds().Dy() + rounds.Bounds().Dy() + mapImg.Bounds().Dy()

	dc := gg.NewContext(width, height)
	y := 0
	dc.DrawImage(status, (width-status.Bounds().Dx())/2, y)
	y += status.Bounds().Dy()
	dc.DrawImage(rounds, 0, y)
	y += rounds.Bounds().Dy()
	dc.DrawImage(mapImg, 0, y)
	if withTable && table != nil {
		dc.DrawImage(table, mapImg.Bounds().Dx(), y)
	}
	return dc.Image()
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}
