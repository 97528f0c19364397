package types

import (
	"image"
	"image/color"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Rect is an axis-aligned region in bitmap coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RectOf returns a rect at the origin covering s.
func RectOf(s Size) Rect {
	return Rect{Width: s.Width, Height: s.Height}
}

func (r Rect) Size() Size { return Size{Width: r.Width, Height: r.Height} }

func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Inset shrinks r by n pixels on every side. A negative n grows it.
func (r Rect) Inset(n int) Rect {
	return Rect{X: r.X + n, Y: r.Y + n, Width: r.Width - 2*n, Height: r.Height - 2*n}
}

// Translate moves r by dx, dy.
func (r Rect) Translate(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Intersect returns the overlap of r and o. The result is the zero Rect when
// they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Color holds the three tones used to render a bevelled surface.
type Color struct {
	Main      color.RGBA
	Highlight color.RGBA
	Shadow    color.RGBA
}

// Invert swaps highlight and shadow, turning a raised bevel into a sunken one.
func (c Color) Invert() Color {
	return Color{Main: c.Main, Highlight: c.Shadow, Shadow: c.Highlight}
}

func rgb(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

var (
	Yellow = Color{Main: rgb(0xfc9c00), Highlight: rgb(0xfc9c00), Shadow: rgb(0xfc9c00)}
	Grey   = Color{Main: rgb(0x848484), Highlight: rgb(0xa8a8a8), Shadow: rgb(0x646464)}
	White  = Color{Main: rgb(0xffffff), Highlight: rgb(0xffffff), Shadow: rgb(0x000000)}
	Black  = Color{Main: rgb(0x000000), Highlight: rgb(0xffffff), Shadow: rgb(0x000000)}
	Brown  = Color{Main: rgb(0x98845c), Highlight: rgb(0xd4bc94), Shadow: rgb(0x68502c)}
)
