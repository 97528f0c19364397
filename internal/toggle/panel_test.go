package toggle

import (
	"bytes"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdesk/internal/types"
)

func keyboard(t *testing.T) *Panel {
	t.Helper()
	p, err := NewKeyboard()
	require.NoError(t, err)
	return p
}

func switchByLabel(t *testing.T, p *Panel, label string) Switch {
	t.Helper()
	for _, s := range p.Switches() {
		if s.Label == label {
			return s
		}
	}
	t.Fatalf("no switch labelled %q", label)
	return Switch{}
}

func TestKeyboardLayout(t *testing.T) {
	spec := KeyboardSpec()
	assert.Equal(t, types.Size{Width: 450, Height: 150}, spec.Size)

	rows := map[int]int{}
	for _, s := range spec.Switches {
		rows[s.Rect.Y]++
	}
	assert.Equal(t, map[int]int{0: 14, 30: 14, 60: 13, 90: 13, 120: 4}, rows)

	p := keyboard(t)
	shift := switchByLabel(t, p, "SHIFT")
	assert.Equal(t, ShiftKey, shift.ID)
	assert.Equal(t, uint32(0xffe1), shift.Code)

	a := switchByLabel(t, p, "A")
	assert.Equal(t, "3-1", a.ID)
	assert.Equal(t, uint32('a'), a.KeyCode(false))
	assert.Equal(t, uint32('A'), a.KeyCode(true))

	one := switchByLabel(t, p, "1")
	assert.Equal(t, "!", one.ShiftedLabel)
	assert.Equal(t, uint32('!'), one.KeyCode(true))
}

func TestToggleTwiceRestoresImage(t *testing.T) {
	p := keyboard(t)
	before, err := p.Image("2-1")
	require.NoError(t, err)

	on, err := p.Toggle("2-1")
	require.NoError(t, err)
	assert.True(t, on)
	down, err := p.Image("2-1")
	require.NoError(t, err)
	assert.NotEqual(t, before, down)

	on, err = p.Toggle("2-1")
	require.NoError(t, err)
	assert.False(t, on)
	after, err := p.Image("2-1")
	require.NoError(t, err)
	assert.Same(t, &before[0], &after[0])
}

func TestShiftSelectsShiftedVariant(t *testing.T) {
	p := keyboard(t)
	one := switchByLabel(t, p, "1")
	plain, err := p.Image(one.ID)
	require.NoError(t, err)

	_, err = p.Toggle(ShiftKey)
	require.NoError(t, err)
	assert.True(t, p.IsShiftActive())
	shifted, err := p.Image(one.ID)
	require.NoError(t, err)
	assert.NotEqual(t, plain, shifted)

	_, err = p.Toggle(ShiftKey)
	require.NoError(t, err)
	assert.False(t, p.IsShiftActive())
	again, err := p.Image(one.ID)
	require.NoError(t, err)
	assert.Same(t, &plain[0], &again[0])
}

func TestShiftedLetterSendsUpperCase(t *testing.T) {
	p := keyboard(t)
	var events []Event
	p.SetListener(func(ev Event) { events = append(events, ev) })

	_, err := p.Toggle(ShiftKey)
	require.NoError(t, err)
	_, err = p.Toggle("3-1")
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.True(t, events[0].Pressed)
	assert.True(t, events[0].Shifted)
	assert.Equal(t, uint32('A'), events[1].Switch.KeyCode(events[1].Shifted))
}

func TestUnknownSwitch(t *testing.T) {
	p := keyboard(t)
	_, err := p.Toggle("9-9")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = p.Image("nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = p.Pressed("")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestImagesMatchSwitchSize(t *testing.T) {
	p := keyboard(t)
	for _, s := range p.Switches() {
		data, err := p.Image(s.ID)
		require.NoError(t, err)
		cfg, err := gif.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err, s.ID)
		assert.Equal(t, s.Rect.Width, cfg.Width, s.ID)
		assert.Equal(t, s.Rect.Height, cfg.Height, s.ID)
	}
}

func TestMouseButtons(t *testing.T) {
	m, err := NewMouse()
	require.NoError(t, err)
	assert.False(t, m.IsShiftActive())

	var masks []uint8
	m.SetListener(func(ev Event) {
		if ev.Pressed {
			masks = append(masks, ev.Switch.Mask)
		}
	})
	_, err = m.Toggle("left")
	require.NoError(t, err)
	_, err = m.Toggle("right")
	require.NoError(t, err)
	assert.Equal(t, []uint8{ButtonLeft, ButtonRight}, masks)

	cfg, err := gif.DecodeConfig(bytes.NewReader(m.Body()))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, 60, cfg.Height)
}

func TestInvalidSpecs(t *testing.T) {
	spec := MouseSpec()
	spec.ShiftID = "middle"
	_, err := New(spec)
	assert.ErrorIs(t, err, types.ErrNotFound)

	spec = MouseSpec()
	spec.Switches[1].ID = "left"
	_, err = New(spec)
	assert.Error(t, err)

	spec = MouseSpec()
	spec.Switches[1].Rect.X = 50
	_, err = New(spec)
	assert.Error(t, err)
}
