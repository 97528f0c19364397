package gifenc

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
)

// Palettize converts img to a paletted image anchored at the origin. Images
// with at most 256 distinct colours keep them exactly, in first-seen order;
// anything richer is mapped onto a colour cube. Alpha is ignored.
func Palettize(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok && p.Bounds().Min == (image.Point{}) {
		return p
	}
	src := toRGBA(img)
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), nil)
	if !exact(src, dst) {
		cube(src, dst)
	}
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func exact(src *image.RGBA, dst *image.Paletted) bool {
	b := src.Bounds()
	index := make(map[uint32]uint8, 64)
	pal := make(color.Palette, 0, 256)
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			p := src.Pix[si : si+3 : si+3]
			key := uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
			idx, ok := index[key]
			if !ok {
				if len(pal) == 256 {
					return false
				}
				idx = uint8(len(pal))
				index[key] = idx
				pal = append(pal, color.RGBA{R: p[0], G: p[1], B: p[2], A: 0xff})
			}
			dst.Pix[di+x] = idx
			si += 4
		}
	}
	dst.Palette = pal
	return true
}

// cube maps onto the web-safe 6x6x6 cube, whose index is r*36 + g*6 + b.
func cube(src *image.RGBA, dst *image.Paletted) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			r := (int(src.Pix[si]) + 25) / 51
			g := (int(src.Pix[si+1]) + 25) / 51
			bl := (int(src.Pix[si+2]) + 25) / 51
			dst.Pix[di+x] = uint8(r*36 + g*6 + bl)
			si += 4
		}
	}
	dst.Palette = palette.WebSafe
}
