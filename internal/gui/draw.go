// Package gui draws the static chrome (bevels, ridges, window frames, glyphs)
// shared by the mirror, the click-map axes and the toggle panels.
package gui

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"linkdesk/internal/types"
)

// Direction is the way a triangle points.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// NewCanvas allocates a transparent RGBA bitmap of the given size.
func NewCanvas(size types.Size) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
}

// Fill paints r with a solid colour.
func Fill(dst draw.Image, r types.Rect, c color.RGBA) {
	if r.Empty() {
		return
	}
	draw.Draw(dst, r.Image(), image.NewUniform(c), image.Point{}, draw.Src)
}

func highlight(dst draw.Image, r types.Rect, c color.RGBA) {
	Fill(dst, types.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: 1}, c)
	Fill(dst, types.Rect{X: r.X, Y: r.Y, Width: 1, Height: r.Height}, c)
}

func shadow(dst draw.Image, r types.Rect, c color.RGBA) {
	Fill(dst, types.Rect{X: r.X, Y: r.Y + r.Height - 1, Width: r.Width, Height: 1}, c)
	Fill(dst, types.Rect{X: r.X + r.Width - 1, Y: r.Y, Width: 1, Height: r.Height}, c)
}

// Bevelled fills r and draws a one pixel 3D edge. An inset bevel swaps which
// edges receive the highlight and the shadow.
func Bevelled(dst draw.Image, r types.Rect, c types.Color, inset bool) {
	Fill(dst, r, c.Main)
	if inset {
		shadow(dst, r, c.Highlight)
		highlight(dst, r, c.Shadow)
		return
	}
	highlight(dst, r, c.Highlight)
	shadow(dst, r, c.Shadow)
}

// Ridged draws a two pixel raised ridge around r and fills the inside with
// the background's main tone.
func Ridged(dst draw.Image, r types.Rect, frame, background types.Color) {
	Bevelled(dst, r, frame, false)
	Bevelled(dst, r.Inset(1), frame.Invert(), false)
	Fill(dst, r.Inset(2), background.Main)
}

// WindowStyle groups the palette of a framed window.
type WindowStyle struct {
	Frame           types.Color
	TitleText       types.Color
	TitleBackground types.Color
	Background      types.Color
	TitleHeight     int
}

// Window draws a title bar and a body below it, and returns the drawable
// content area inside the body's ridge.
func Window(dst draw.Image, r types.Rect, title string, style WindowStyle) types.Rect {
	titleRect := types.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: style.TitleHeight}
	bodyRect := types.Rect{X: r.X, Y: r.Y + style.TitleHeight, Width: r.Width, Height: r.Height - style.TitleHeight}
	Ridged(dst, titleRect, style.Frame, style.TitleBackground)
	Ridged(dst, bodyRect, style.Frame, style.Background)
	if title != "" {
		Text(dst, r.X+r.Width/2, r.Y+2, title, style.TitleText, true)
	}
	return bodyRect.Inset(2)
}

// Triangle draws a filled isosceles triangle whose apex sits at (x, y) and
// whose base is size rows away in the opposite direction of d.
func Triangle(dst draw.Image, x, y, size int, d Direction, c color.RGBA) {
	for i := 0; i < size; i++ {
		var row types.Rect
		switch d {
		case Up:
			row = types.Rect{X: x - i, Y: y + i, Width: 2*i + 1, Height: 1}
		case Down:
			row = types.Rect{X: x - i, Y: y - i, Width: 2*i + 1, Height: 1}
		case Right:
			row = types.Rect{X: x - i, Y: y - i, Width: 1, Height: 2*i + 1}
		case Left:
			row = types.Rect{X: x + i, Y: y - i, Width: 1, Height: 2*i + 1}
		}
		Fill(dst, row, c)
	}
}

// Crop copies r out of src into a new bitmap anchored at the origin.
func Crop(src *image.RGBA, r types.Rect) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(out, out.Bounds(), src, image.Pt(r.X, r.Y), draw.Src)
	return out
}
