package remote

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"linkdesk/internal/types"
)

// LocalOptions configures the local display backend.
type LocalOptions struct {
	Display int
}

// Local serves the machine's own display: captures happen on every update
// request and input is injected with robotgo.
type Local struct {
	opts   LocalOptions
	logger *slog.Logger
}

func NewLocal(opts LocalOptions, logger *slog.Logger) *Local {
	return &Local{opts: opts, logger: logger.With("component", "local", "display", opts.Display)}
}

func (l *Local) String() string { return fmt.Sprintf("local:%d", l.opts.Display) }

func (l *Local) Run(ctx context.Context, ev Events) error {
	if n := screenshot.NumActiveDisplays(); l.opts.Display < 0 || l.opts.Display >= n {
		err := fmt.Errorf("display %d of %d: %w", l.opts.Display, n, types.ErrNotFound)
		ev.Failed(&types.CollaboratorError{Backend: l.String(), Err: err})
		return err
	}
	bounds := screenshot.GetDisplayBounds(l.opts.Display)
	c := &localConn{bounds: bounds, events: ev, logger: l.logger}
	l.logger.Info("connected", "width", bounds.Dx(), "height", bounds.Dy())
	ev.Connected(c)
	<-ctx.Done()
	return nil
}

type localConn struct {
	bounds image.Rectangle
	events Events
	logger *slog.Logger

	mu   sync.Mutex
	mask uint8
}

func (c *localConn) Size() types.Size {
	return types.Size{Width: c.bounds.Dx(), Height: c.bounds.Dy()}
}

// RequestUpdate captures the requested region and reports it synchronously.
// Every request is answered in full, incremental or not.
func (c *localConn) RequestUpdate(_ bool, r types.Rect) error {
	r = r.Intersect(types.RectOf(c.Size()))
	if r.Empty() {
		return nil
	}
	img, err := screenshot.CaptureRect(r.Image().Add(c.bounds.Min))
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	c.events.Updated(Update{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Pixels: bgrx(img)})
	return nil
}

func bgrx(img *image.RGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 0, 4*b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			p := row[4*x : 4*x+4]
			out = append(out, p[2], p[1], p[0], 0)
		}
	}
	return out
}

var buttonNames = []struct {
	mask uint8
	name string
}{
	{1 << 0, "left"},
	{1 << 1, "center"},
	{1 << 2, "right"},
}

func (c *localConn) PointerEvent(x, y int, mask uint8) error {
	c.mu.Lock()
	changed := c.mask ^ mask
	c.mask = mask
	c.mu.Unlock()

	robotgo.Move(c.bounds.Min.X+x, c.bounds.Min.Y+y)
	for _, b := range buttonNames {
		if changed&b.mask == 0 {
			continue
		}
		state := "up"
		if mask&b.mask != 0 {
			state = "down"
		}
		if err := robotgo.Toggle(b.name, state); err != nil {
			return fmt.Errorf("button %s %s: %w", b.name, state, err)
		}
	}
	return nil
}

var keyNames = map[uint32]string{
	0xff08: "backspace",
	0xff09: "tab",
	0xff0d: "enter",
	0xff51: "left",
	0xff52: "up",
	0xff53: "right",
	0xff54: "down",
	0xffe1: "shift",
	0xffe2: "rshift",
	0xffe5: "capslock",
	0x20:   "space",
}

// keyName maps a keysym to a robotgo key name. Latin-1 keysyms are their
// own character.
func keyName(code uint32) (string, bool) {
	if name, ok := keyNames[code]; ok {
		return name, true
	}
	if code > 0x20 && code < 0x7f {
		return string(rune(code)), true
	}
	return "", false
}

func (c *localConn) KeyEvent(code uint32, down bool) error {
	name, ok := keyName(code)
	if !ok {
		c.logger.Debug("dropping unmapped keysym", "keysym", fmt.Sprintf("%#x", code))
		return nil
	}
	state := "up"
	if down {
		state = "down"
	}
	if err := robotgo.KeyToggle(name, state); err != nil {
		return fmt.Errorf("key %s %s: %w", name, state, err)
	}
	return nil
}
