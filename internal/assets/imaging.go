package assets

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Tint paints every visible pixel of img with c, keeping the alpha shape.
func Tint(img image.Image, c color.Color) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.DrawMask(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, img, b.Min, xdraw.Over)
	return dst
}

// Fade scales the opacity of img by alpha in [0, 1].
func Fade(img image.Image, alpha float64) image.Image {
	if alpha >= 1 {
		return img
	}
	if alpha < 0 {
		alpha = 0
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(alpha * 255)})
	xdraw.DrawMask(dst, dst.Bounds(), img, b.Min, mask, image.Point{}, xdraw.Over)
	return dst
}

// Resize fits img into a w x h box.
func Resize(img image.Image, w, h int) image.Image {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// Circular crops img to the largest centred circle.
func Circular(img image.Image) image.Image {
	bounds := img.Bounds()
	size := bounds.Dx()
	if bounds.Dy() < size {
		size = bounds.Dy()
	}

	circle := image.NewRGBA(image.Rect(0, 0, size, size))
	centerX, centerY := size/2, size/2
	radius := size / 2

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := x - centerX
			dy := y - centerY
			if dx*dx+dy*dy <= radius*radius {
				circle.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	}

	return circle
}
