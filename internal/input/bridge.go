package input

import (
	"log/slog"
	"sync"

	"linkdesk/internal/remote"
)

// Bridge aggregates the pointer position, button mask and key presses coming
// from the click-maps and forwards them to the remote once it is connected.
type Bridge struct {
	logger *slog.Logger

	mu   sync.Mutex
	conn remote.Conn
	x, y int
	mask uint8
}

func NewBridge(logger *slog.Logger) *Bridge {
	return &Bridge{logger: logger.With("component", "input")}
}

// Attach starts forwarding to c and sends the current pointer state once as
// a baseline.
func (b *Bridge) Attach(c remote.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn = c
	b.sendPointer()
}

// Detach stops forwarding. State keeps accumulating for the next Attach.
func (b *Bridge) Detach() {
	b.mu.Lock()
	b.conn = nil
	b.mu.Unlock()
}

func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// State returns the aggregate pointer state.
func (b *Bridge) State() (x, y int, mask uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.x, b.y, b.mask
}

func (b *Bridge) SetX(x int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.x = x
	b.sendPointer()
}

func (b *Bridge) SetY(y int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.y = y
	b.sendPointer()
}

// SetButton sets or clears the mask bits of one button.
func (b *Bridge) SetButton(mask uint8, pressed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pressed {
		b.mask |= mask
	} else {
		b.mask &^= mask
	}
	b.sendPointer()
}

// Key forwards one key transition.
func (b *Bridge) Key(code uint32, down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return
	}
	if err := b.conn.KeyEvent(code, down); err != nil {
		b.logger.Warn("key event failed", "keysym", code, "down", down, "err", err)
	}
}

// sendPointer forwards the aggregate, clamped to the remote framebuffer.
// Callers hold b.mu.
func (b *Bridge) sendPointer() {
	if b.conn == nil {
		return
	}
	size := b.conn.Size()
	x := clamp(b.x, size.Width)
	y := clamp(b.y, size.Height)
	if err := b.conn.PointerEvent(x, y, b.mask); err != nil {
		b.logger.Warn("pointer event failed", "x", x, "y", y, "mask", b.mask, "err", err)
	}
}

func clamp(v, size int) int {
	return max(0, min(v, size-1))
}
