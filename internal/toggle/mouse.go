package toggle

import (
	"fmt"

	"linkdesk/internal/gifenc"
	"linkdesk/internal/gui"
	"linkdesk/internal/types"
)

const (
	MouseButtonWidth  = 30
	MouseButtonHeight = 40
	MouseHeight       = 100
)

// Pointer button bits as sent to the remote.
const (
	ButtonLeft   uint8 = 1 << 0
	ButtonMiddle uint8 = 1 << 1
	ButtonRight  uint8 = 1 << 2
)

// MouseSpec lays out the left and right buttons side by side.
func MouseSpec() Spec {
	return Spec{
		Name: "mouse",
		Size: types.Size{Width: 2 * MouseButtonWidth, Height: MouseHeight},
		Switches: []Switch{
			{
				ID:     "left",
				Rect:   types.Rect{Width: MouseButtonWidth, Height: MouseButtonHeight},
				Mask:   ButtonLeft,
				Double: true,
			},
			{
				ID:     "right",
				Rect:   types.Rect{X: MouseButtonWidth, Width: MouseButtonWidth, Height: MouseButtonHeight},
				Mask:   ButtonRight,
				Double: true,
			},
		},
		Color: types.Grey,
		Text:  types.White,
	}
}

// Mouse is the button panel plus the static body drawn below the buttons.
type Mouse struct {
	*Panel
	body []byte
}

// NewMouse builds the mouse panel.
func NewMouse() (*Mouse, error) {
	spec := MouseSpec()
	p, err := New(spec)
	if err != nil {
		return nil, err
	}
	r := types.Rect{
		Y:      MouseButtonHeight,
		Width:  spec.Size.Width,
		Height: spec.Size.Height - MouseButtonHeight,
	}
	canvas := gui.NewCanvas(r.Size())
	local := types.RectOf(r.Size())
	gui.Bevelled(canvas, local, spec.Color, false)
	gui.Bevelled(canvas, local.Inset(1), spec.Color, false)
	body, err := gifenc.Still(canvas)
	if err != nil {
		return nil, fmt.Errorf("panel mouse: body: %w", err)
	}
	return &Mouse{Panel: p, body: body}, nil
}

// Body returns the image of the part below the buttons.
func (m *Mouse) Body() []byte { return m.body }

// BodyRect locates the body inside the mouse.
func (m *Mouse) BodyRect() types.Rect {
	return types.Rect{Y: MouseButtonHeight, Width: m.Size().Width, Height: m.Size().Height - MouseButtonHeight}
}
