package overlay

import (
	"image"
	"image/color"

	"frontcam/internal/models"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
)

// DrawBox strokes an anti-aliased outline from (x, y) to (x+w, y+h). The
// stroke is centred on the box edges.
func DrawBox(img *image.RGBA, box models.Box, col color.RGBA, thickness int) {
	if thickness <= 0 || box.W <= 0 || box.H <= 0 {
		return
	}

	bounds := img.Bounds()
	p0, p1 := box.Corners()
	p0 = p0.Sub(bounds.Min)
	p1 = p1.Sub(bounds.Min)

	w, h := float32(bounds.Dx()), float32(bounds.Dy())
	half := float32(thickness) / 2
	x0, y0 := float32(p0.X), float32(p0.Y)
	x1, y1 := float32(p1.X), float32(p1.Y)

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())

	// outer edge clockwise
	ox0, oy0 := clamp(x0-half, w), clamp(y0-half, h)
	ox1, oy1 := clamp(x1+half, w), clamp(y1+half, h)
	z.MoveTo(ox0, oy0)
	z.LineTo(ox1, oy0)
	z.LineTo(ox1, oy1)
	z.LineTo(ox0, oy1)
	z.ClosePath()

	// inner edge counter-clockwise cuts the hole
	if x1-x0 > 2*half && y1-y0 > 2*half {
		ix0, iy0 := clamp(x0+half, w), clamp(y0+half, h)
		ix1, iy1 := clamp(x1-half, w), clamp(y1-half, h)
		z.MoveTo(ix0, iy0)
		z.LineTo(ix0, iy1)
		z.LineTo(ix1, iy1)
		z.LineTo(ix1, iy0)
		z.ClosePath()
	}

	z.Draw(img, bounds, image.NewUniform(col), image.Point{})
}

func clamp(v, limit float32) float32 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

func DrawDetections(img *image.RGBA, detections []models.Detection, col color.RGBA, thickness int) {
	for _, d := range detections {
		DrawBox(img, d.Box, col, thickness)
	}
}

// Mirror flips img horizontally.
func Mirror(img image.Image) image.Image {
	return imaging.FlipH(img)
}

// Fit scales img to width x height. Non-positive sizes and a matching size
// leave img untouched.
func Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() == width && b.Dy() == height) {
		return img
	}

	return imaging.Resize(img, width, height, imaging.Linear)
}
