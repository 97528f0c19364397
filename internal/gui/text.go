package gui

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"linkdesk/internal/types"
)

// FontHeight is the line height of the label face.
const FontHeight = 13

var face = basicfont.Face7x13

// TextWidth returns the advance of s in pixels.
func TextWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// Text draws s with its top-left corner at (x, y), or horizontally centred on
// x when center is set. The shadow tone is drawn one pixel down and right of
// the main tone.
func Text(dst draw.Image, x, y int, s string, c types.Color, center bool) {
	if s == "" {
		return
	}
	left := x
	if center {
		left = x - TextWidth(s)/2
	}
	baseline := y + face.Metrics().Ascent.Ceil()

	d := &font.Drawer{Dst: dst, Face: face}
	d.Src = image.NewUniform(c.Shadow)
	d.Dot = fixed.P(left+1, baseline+1)
	d.DrawString(s)

	d.Src = image.NewUniform(c.Main)
	d.Dot = fixed.P(left, baseline)
	d.DrawString(s)
}
