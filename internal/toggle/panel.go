// Package toggle implements banks of binary switches (keyboard keys, mouse
// buttons) served as pre-rendered images. Every switch has four cached
// images, one per (pressed, shifted) combination, rendered at construction.
package toggle

import (
	"fmt"
	"image"
	"sync"

	"linkdesk/internal/gifenc"
	"linkdesk/internal/gui"
	"linkdesk/internal/types"
)

// Switch is one clickable key or button.
type Switch struct {
	ID   string
	Rect types.Rect

	Label        string
	ShiftedLabel string
	// Arrow draws a triangle pointing in Direction instead of the label.
	Arrow     bool
	Direction gui.Direction

	// Code and ShiftedCode are the keysyms sent for keys.
	Code        uint32
	ShiftedCode uint32
	// Mask is the pointer button bit for mouse buttons.
	Mask uint8

	// Double draws a second bevel one pixel inside the first.
	Double bool
}

// KeyCode returns the keysym to send given the shift state.
func (s Switch) KeyCode(shifted bool) uint32 {
	if shifted {
		return s.ShiftedCode
	}
	return s.Code
}

// Spec describes a panel to build.
type Spec struct {
	Name     string
	Size     types.Size
	Switches []Switch
	// ShiftID names the switch whose state selects the shifted variants.
	// Empty means the panel is never shifted.
	ShiftID string
	Color   types.Color
	Text    types.Color
}

// Event is raised after a switch changes state.
type Event struct {
	Switch  Switch
	Pressed bool
	Shifted bool
}

type variant int

const (
	released variant = iota
	pressed
	shiftedReleased
	shiftedPressed
)

func variantOf(isPressed, isShifted bool) variant {
	v := released
	if isPressed {
		v = pressed
	}
	if isShifted {
		v += shiftedReleased
	}
	return v
}

// Panel is a bank of toggle switches.
type Panel struct {
	name     string
	size     types.Size
	switches []Switch
	index    map[string]int
	shift    int
	images   [][4][]byte

	mu       sync.RWMutex
	pressed  []bool
	listener func(Event)
}

// New renders every switch in all four states and returns the panel with
// everything released.
func New(spec Spec) (*Panel, error) {
	p := &Panel{
		name:     spec.Name,
		size:     spec.Size,
		switches: append([]Switch(nil), spec.Switches...),
		index:    make(map[string]int, len(spec.Switches)),
		shift:    -1,
		images:   make([][4][]byte, len(spec.Switches)),
		pressed:  make([]bool, len(spec.Switches)),
	}
	bounds := types.RectOf(spec.Size)
	for i, s := range p.switches {
		if _, dup := p.index[s.ID]; dup {
			return nil, fmt.Errorf("panel %s: duplicate switch %q", spec.Name, s.ID)
		}
		if s.Rect.Empty() || s.Rect.Intersect(bounds) != s.Rect {
			return nil, fmt.Errorf("panel %s: switch %q lies outside %dx%d", spec.Name, s.ID, spec.Size.Width, spec.Size.Height)
		}
		p.index[s.ID] = i
	}
	if spec.ShiftID != "" {
		i, ok := p.index[spec.ShiftID]
		if !ok {
			return nil, fmt.Errorf("panel %s: shift switch %q: %w", spec.Name, spec.ShiftID, types.ErrNotFound)
		}
		p.shift = i
	}

	canvas := gui.NewCanvas(spec.Size)
	for _, v := range []variant{released, pressed, shiftedReleased, shiftedPressed} {
		isPressed := v == pressed || v == shiftedPressed
		isShifted := v >= shiftedReleased
		for i, s := range p.switches {
			drawSwitch(canvas, s, spec.Color, spec.Text, isPressed, isShifted)
			data, err := gifenc.Still(gui.Crop(canvas, s.Rect))
			if err != nil {
				return nil, fmt.Errorf("panel %s: switch %q: %w", spec.Name, s.ID, err)
			}
			p.images[i][v] = data
		}
	}
	return p, nil
}

func drawSwitch(canvas *image.RGBA, s Switch, c, text types.Color, isPressed, isShifted bool) {
	gui.Bevelled(canvas, s.Rect, c, isPressed)
	if s.Double {
		gui.Bevelled(canvas, s.Rect.Inset(1), c, isPressed)
	}
	cx := s.Rect.X + s.Rect.Width/2
	cy := s.Rect.Y + s.Rect.Height/2
	if s.Arrow {
		switch s.Direction {
		case gui.Up:
			cy -= 3
		case gui.Down:
			cy += 3
		case gui.Left:
			cx -= 3
		case gui.Right:
			cx += 3
		}
		gui.Triangle(canvas, cx, cy, 6, s.Direction, text.Main)
		return
	}
	label := s.Label
	if isShifted && s.ShiftedLabel != "" {
		label = s.ShiftedLabel
	}
	gui.Text(canvas, cx, cy-gui.FontHeight/2, label, text, true)
}

func (p *Panel) Name() string { return p.name }

// Size is the pixel size of the whole panel.
func (p *Panel) Size() types.Size { return p.size }

// Switches returns the switches in layout order.
func (p *Panel) Switches() []Switch {
	return append([]Switch(nil), p.switches...)
}

// SetListener registers the single consumer notified after each toggle.
func (p *Panel) SetListener(fn func(Event)) {
	p.mu.Lock()
	p.listener = fn
	p.mu.Unlock()
}

func (p *Panel) lookup(id string) (int, error) {
	i, ok := p.index[id]
	if !ok {
		return 0, fmt.Errorf("panel %s: switch %q: %w", p.name, id, types.ErrNotFound)
	}
	return i, nil
}

// Toggle flips the switch and returns its new state.
func (p *Panel) Toggle(id string) (bool, error) {
	i, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	p.pressed[i] = !p.pressed[i]
	ev := Event{Switch: p.switches[i], Pressed: p.pressed[i], Shifted: p.shifted()}
	listener := p.listener
	p.mu.Unlock()

	if listener != nil {
		listener(ev)
	}
	return ev.Pressed, nil
}

// Pressed reports the state of one switch.
func (p *Panel) Pressed(id string) (bool, error) {
	i, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pressed[i], nil
}

// IsShiftActive reports whether the designated shift switch is down.
func (p *Panel) IsShiftActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shifted()
}

func (p *Panel) shifted() bool {
	return p.shift >= 0 && p.pressed[p.shift]
}

// Image returns the cached image for the switch's current state. The
// returned slice is shared and must not be modified.
func (p *Panel) Image(id string) ([]byte, error) {
	i, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	v := variantOf(p.pressed[i], p.shifted())
	p.mu.RUnlock()
	return p.images[i][v], nil
}
