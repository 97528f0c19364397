// Package screen holds the authoritative composited bitmap of a session:
// window chrome drawn once plus the remote desktop refreshed by updates.
package screen

import (
	"fmt"
	"image"
	"sync"

	"linkdesk/internal/gui"
	"linkdesk/internal/remote"
	"linkdesk/internal/types"
)

// TitleHeight is the height of the window title bar.
const TitleHeight = 14

// Options configures a mirror. Size is the remote desktop area; the bitmap
// adds the chrome around it.
type Options struct {
	Size  types.Size
	Title string
}

// Mirror is the composited bitmap.
type Mirror struct {
	mu      sync.RWMutex
	img     *image.RGBA
	content types.Rect
	version uint64
}

var windowStyle = gui.WindowStyle{
	Frame:           types.Brown,
	TitleText:       types.White,
	TitleBackground: types.Brown,
	Background:      types.Black,
	TitleHeight:     TitleHeight,
}

// New allocates the bitmap and draws the chrome.
func New(opts Options) (*Mirror, error) {
	if opts.Size.Width <= 0 || opts.Size.Height <= 0 {
		return nil, fmt.Errorf("screen: size %dx%d must be positive", opts.Size.Width, opts.Size.Height)
	}
	full := types.Size{
		Width:  opts.Size.Width + 4,
		Height: opts.Size.Height + 4 + TitleHeight,
	}
	m := &Mirror{img: gui.NewCanvas(full)}
	m.content = gui.Window(m.img, types.RectOf(full), opts.Title, windowStyle)
	return m, nil
}

// Size is the size of the whole bitmap, chrome included.
func (m *Mirror) Size() types.Size {
	b := m.img.Bounds()
	return types.Size{Width: b.Dx(), Height: b.Dy()}
}

// Content is the area remote pixels are drawn into.
func (m *Mirror) Content() types.Rect { return m.content }

// Apply copies a BGRX update into the content area. Parts of the update
// beyond the content area are clipped. A pixel buffer shorter than the
// rectangle is rejected.
func (m *Mirror) Apply(u remote.Update) error {
	if u.Width < 0 || u.Height < 0 {
		return fmt.Errorf("screen: update %dx%d: %w", u.Width, u.Height, types.ErrOutOfRange)
	}
	if need := 4 * u.Width * u.Height; len(u.Pixels) < need {
		return fmt.Errorf("screen: update %dx%d carries %d of %d bytes: %w", u.Width, u.Height, len(u.Pixels), need, types.ErrOutOfRange)
	}
	dst := u.Rect().Translate(m.content.X, m.content.Y).Intersect(m.content)
	if dst.Empty() {
		return nil
	}
	// offset of the clipped area inside the update
	sx := dst.X - m.content.X - u.X
	sy := dst.Y - m.content.Y - u.Y

	m.mu.Lock()
	defer m.mu.Unlock()
	for row := 0; row < dst.Height; row++ {
		src := u.Pixels[4*((sy+row)*u.Width+sx):]
		out := m.img.Pix[m.img.PixOffset(dst.X, dst.Y+row):]
		for x := 0; x < dst.Width; x++ {
			out[4*x] = src[4*x+2]
			out[4*x+1] = src[4*x+1]
			out[4*x+2] = src[4*x]
			out[4*x+3] = 0xff
		}
	}
	m.version++
	return nil
}

// Snapshot returns a copy of the bitmap and the number of updates applied
// so far.
func (m *Mirror) Snapshot() (*image.RGBA, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := image.NewRGBA(m.img.Rect)
	copy(out.Pix, m.img.Pix)
	return out, m.version
}

// Version is the number of updates applied so far.
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}
