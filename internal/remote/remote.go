// Package remote defines the framebuffer collaborator a session talks to and
// provides two implementations: a VNC client and the local display.
package remote

import (
	"context"

	"linkdesk/internal/types"
)

// Update is one rectangle of fresh pixels. Pixels are row-major BGRX, four
// bytes per pixel.
type Update struct {
	X      int
	Y      int
	Width  int
	Height int
	Pixels []byte
}

func (u Update) Rect() types.Rect {
	return types.Rect{X: u.X, Y: u.Y, Width: u.Width, Height: u.Height}
}

// Conn is a live connection to a remote framebuffer.
type Conn interface {
	// Size is the remote framebuffer size.
	Size() types.Size
	RequestUpdate(incremental bool, r types.Rect) error
	PointerEvent(x, y int, mask uint8) error
	KeyEvent(code uint32, down bool) error
}

// Events receives everything a backend reports. Updated may run on the
// goroutine that called RequestUpdate.
type Events interface {
	Connected(c Conn)
	Failed(err error)
	Updated(u Update)
}

// Backend produces connections until its context is cancelled.
type Backend interface {
	Run(ctx context.Context, ev Events) error
	String() string
}
