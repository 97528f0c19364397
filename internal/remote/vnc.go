package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	vnc "github.com/mitchellh/go-vnc"

	"linkdesk/internal/types"
)

// VNCOptions configures the VNC backend.
type VNCOptions struct {
	Address        string
	Password       string
	Shared         bool
	DialTimeout    time.Duration
	ReconnectDelay time.Duration
}

// VNC connects to an RFB server, asking for raw rectangles only, and redials
// after every failure until its context ends.
type VNC struct {
	opts   VNCOptions
	logger *slog.Logger
}

func NewVNC(opts VNCOptions, logger *slog.Logger) *VNC {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	return &VNC{opts: opts, logger: logger.With("component", "vnc", "address", opts.Address)}
}

func (v *VNC) String() string { return "vnc://" + v.opts.Address }

func (v *VNC) Run(ctx context.Context, ev Events) error {
	for {
		err := v.session(ctx, ev)
		if ctx.Err() != nil {
			return nil
		}
		ev.Failed(&types.CollaboratorError{Backend: v.String(), Err: err})
		v.logger.Info("reconnecting", "delay", v.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(v.opts.ReconnectDelay):
		}
	}
}

func (v *VNC) session(ctx context.Context, ev Events) error {
	d := net.Dialer{Timeout: v.opts.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", v.opts.Address)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	w := newWatchedConn(nc)
	msgs := make(chan vnc.ServerMessage, 16)
	cfg := &vnc.ClientConfig{
		ServerMessageCh: msgs,
		Exclusive:       !v.opts.Shared,
	}
	if v.opts.Password != "" {
		cfg.Auth = []vnc.ClientAuth{&vnc.PasswordAuth{Password: v.opts.Password}}
	}

	_ = nc.SetDeadline(time.Now().Add(v.opts.DialTimeout))
	c, err := vnc.Client(w, cfg)
	if err != nil {
		nc.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	_ = nc.SetDeadline(time.Time{})
	defer func() {
		c.Close()
		// unblock the client's reader so it can observe the closed socket
		go func() {
			for {
				select {
				case <-msgs:
				case <-w.done:
					return
				}
			}
		}()
	}()

	var pfErr error
	w.hold(func() {
		pf := trueColor32
		if pfErr = c.SetPixelFormat(&pf); pfErr == nil {
			// the client does not record the format it asked for
			c.PixelFormat = pf
		}
	})
	if pfErr != nil {
		return fmt.Errorf("set pixel format: %w", pfErr)
	}
	if err := c.SetEncodings([]vnc.Encoding{&vnc.RawEncoding{}}); err != nil {
		return fmt.Errorf("set encodings: %w", err)
	}
	conn := &vncConn{c: c}
	v.logger.Info("connected", "width", c.FrameBufferWidth, "height", c.FrameBufferHeight, "desktop", c.DesktopName)
	ev.Connected(conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return w.err
		case msg := <-msgs:
			fu, ok := msg.(*vnc.FramebufferUpdateMessage)
			if !ok {
				continue
			}
			for _, r := range fu.Rectangles {
				u, ok := conn.update(r)
				if !ok {
					v.logger.Debug("skipping non-raw rectangle", "type", r.Enc.Type())
					continue
				}
				ev.Updated(u)
			}
		}
	}
}

// trueColor32 is little-endian XRGB, eight bits per channel. Servers
// translate into it, so colour-mapped desktops decode the same way.
var trueColor32 = vnc.PixelFormat{
	BPP:        32,
	Depth:      24,
	TrueColor:  true,
	RedMax:     0xff,
	GreenMax:   0xff,
	BlueMax:    0xff,
	RedShift:   16,
	GreenShift: 8,
	BlueShift:  0,
}

// watchedConn closes done on the first read error, which is how a dropped
// server becomes visible.
type watchedConn struct {
	net.Conn
	once sync.Once
	done chan struct{}
	err  error

	// gate orders client state written in hold before the reader decodes
	// the next message.
	gate sync.RWMutex
}

func (w *watchedConn) hold(fn func()) {
	w.gate.Lock()
	defer w.gate.Unlock()
	fn()
}

func newWatchedConn(c net.Conn) *watchedConn {
	return &watchedConn{Conn: c, done: make(chan struct{})}
}

func (w *watchedConn) Read(p []byte) (int, error) {
	n, err := w.Conn.Read(p)
	w.gate.RLock()
	w.gate.RUnlock()
	if err != nil {
		w.once.Do(func() {
			w.err = err
			close(w.done)
		})
	}
	return n, err
}

type vncConn struct {
	mu sync.Mutex
	c  *vnc.ClientConn
}

func (v *vncConn) Size() types.Size {
	return types.Size{Width: int(v.c.FrameBufferWidth), Height: int(v.c.FrameBufferHeight)}
}

func (v *vncConn) RequestUpdate(incremental bool, r types.Rect) error {
	r = r.Intersect(types.RectOf(v.Size()))
	if r.Empty() {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.c.FramebufferUpdateRequest(incremental, uint16(r.X), uint16(r.Y), uint16(r.Width), uint16(r.Height))
}

func (v *vncConn) PointerEvent(x, y int, mask uint8) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.c.PointerEvent(vnc.ButtonMask(mask), uint16(x), uint16(y))
}

func (v *vncConn) KeyEvent(code uint32, down bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.c.KeyEvent(code, down)
}

// update converts a raw rectangle to BGRX, rescaling each channel from the
// server's pixel format to eight bits.
func (v *vncConn) update(r vnc.Rectangle) (Update, bool) {
	raw, ok := r.Enc.(*vnc.RawEncoding)
	if !ok {
		return Update{}, false
	}
	pf := v.c.PixelFormat
	pix := make([]byte, 4*len(raw.Colors))
	for i, c := range raw.Colors {
		pix[4*i] = scale(c.B, pf.BlueMax)
		pix[4*i+1] = scale(c.G, pf.GreenMax)
		pix[4*i+2] = scale(c.R, pf.RedMax)
	}
	return Update{X: int(r.X), Y: int(r.Y), Width: int(r.Width), Height: int(r.Height), Pixels: pix}, true
}

func scale(v, limit uint16) uint8 {
	switch limit {
	case 0:
		return 0
	case 0xff:
		return uint8(v)
	}
	return uint8(uint32(v) * 0xff / uint32(limit))
}
