// Package session wires one remote backend to the mirror, the stream
// multiplexer, the click-maps and the input bridge.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"linkdesk/internal/axis"
	"linkdesk/internal/input"
	"linkdesk/internal/remote"
	"linkdesk/internal/screen"
	"linkdesk/internal/stream"
	"linkdesk/internal/toggle"
	"linkdesk/internal/types"
)

// Options configures a session.
type Options struct {
	Title      string
	ScreenSize types.Size
	Refresh    time.Duration

	// Precision is the number of pixels covered by one axis slice.
	Precision int
	// Thickness is the cross size of the horizontal ruler.
	Thickness int
	Padding   int
	// Fold is the row length of the folded vertical axis.
	Fold      int
	BlinkRate float64
}

// Session owns every component serving one remote desktop.
type Session struct {
	backend remote.Backend
	logger  *slog.Logger

	Mirror   *screen.Mirror
	Stream   *stream.Multiplexer
	Bridge   *input.Bridge
	X        *axis.Axis
	Y        *axis.Axis
	Keyboard *toggle.Panel
	Mouse    *toggle.Mouse
}

// XLayout is the horizontal ruler above the screen.
func XLayout(o Options) axis.Layout {
	return axis.Layout{
		Name:        "x",
		Orientation: axis.Horizontal,
		Span:        o.ScreenSize.Width,
		Precision:   o.Precision,
		Thickness:   o.Thickness,
		Padding:     o.Padding,
		BlinkRate:   o.BlinkRate,
	}
}

// YLayout is the folded vertical ruler left of the screen. Each row of Fold
// positions reads from its far end, so a row reports rowStart + Fold - i.
func YLayout(o Options) axis.Layout {
	return axis.Layout{
		Name:        "y",
		Orientation: axis.Vertical,
		Span:        o.ScreenSize.Height,
		Precision:   o.Precision,
		Padding:     o.Padding,
		Fold:        o.Fold,
		Inverted:    true,
		BlinkRate:   o.BlinkRate,
	}
}

func New(backend remote.Backend, opts Options, logger *slog.Logger) (*Session, error) {
	logger = logger.With("remote", backend.String())
	mirror, err := screen.New(screen.Options{Size: opts.ScreenSize, Title: opts.Title})
	if err != nil {
		return nil, err
	}
	x, err := axis.New(XLayout(opts), 0)
	if err != nil {
		return nil, fmt.Errorf("x axis: %w", err)
	}
	y, err := axis.New(YLayout(opts), 0)
	if err != nil {
		return nil, fmt.Errorf("y axis: %w", err)
	}
	keyboard, err := toggle.NewKeyboard()
	if err != nil {
		return nil, err
	}
	mouse, err := toggle.NewMouse()
	if err != nil {
		return nil, err
	}

	s := &Session{
		backend:  backend,
		logger:   logger.With("component", "session"),
		Mirror:   mirror,
		Stream:   stream.New(mirror, stream.Options{Interval: opts.Refresh, Logger: logger}),
		Bridge:   input.NewBridge(logger),
		X:        x,
		Y:        y,
		Keyboard: keyboard,
		Mouse:    mouse,
	}
	x.SetListener(s.Bridge.SetX)
	y.SetListener(s.Bridge.SetY)
	keyboard.SetListener(func(ev toggle.Event) {
		s.Bridge.Key(ev.Switch.KeyCode(ev.Shifted), ev.Pressed)
	})
	mouse.SetListener(func(ev toggle.Event) {
		s.Bridge.SetButton(ev.Switch.Mask, ev.Pressed)
	})
	return s, nil
}

// Axis returns the axis with the given name.
func (s *Session) Axis(name string) (*axis.Axis, error) {
	switch name {
	case s.X.Name():
		return s.X, nil
	case s.Y.Name():
		return s.Y, nil
	}
	return nil, fmt.Errorf("axis %q: %w", name, types.ErrNotFound)
}

// Panel returns the toggle panel with the given name.
func (s *Session) Panel(name string) (*toggle.Panel, error) {
	switch name {
	case s.Keyboard.Name():
		return s.Keyboard, nil
	case s.Mouse.Name():
		return s.Mouse.Panel, nil
	}
	return nil, fmt.Errorf("panel %q: %w", name, types.ErrNotFound)
}

// Run drives the backend until ctx ends. Every exit path stops the poll
// loop, closes all viewers and detaches input.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.Bridge.Detach()
		s.Stream.Shutdown()
		s.logger.Info("session closed")
	}()
	s.logger.Info("session started")
	if err := s.backend.Run(ctx, s); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// Connected starts forwarding input and polling the new connection.
func (s *Session) Connected(c remote.Conn) {
	size := c.Size()
	s.logger.Info("remote connected", "width", size.Width, "height", size.Height)
	s.Bridge.Attach(c)
	s.Stream.Start(c)
}

// Failed stops polling until the next connect. Cached images stay servable.
func (s *Session) Failed(err error) {
	s.logger.Error("remote failed", "err", err)
	s.Stream.Stop()
	s.Bridge.Detach()
}

// Updated applies a rectangle to the mirror.
func (s *Session) Updated(u remote.Update) {
	if err := s.Mirror.Apply(u); err != nil {
		s.logger.Warn("dropping update", "rect", u.Rect(), "err", err)
	}
}
