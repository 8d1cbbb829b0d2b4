package models

import "image"

const LabelFace = "face"

type Box struct {
	X, Y int
	W, H int
}

func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Corners returns the top-left (x, y) and bottom-right (x+w, y+h) points.
func (b Box) Corners() (image.Point, image.Point) {
	return image.Pt(b.X, b.Y), image.Pt(b.X+b.W, b.Y+b.H)
}

func (b Box) Rect() image.Rectangle {
	p0, p1 := b.Corners()
	return image.Rectangle{Min: p0, Max: p1}
}

// Detection is one detected face. Region shares pixels with the frame it was
// found in, so it only holds the raw face until the overlay is drawn.
type Detection struct {
	Label  string
	Box    Box
	Region image.Image
}
