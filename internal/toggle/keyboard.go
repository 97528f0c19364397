package toggle

import (
	"fmt"
	"unicode"

	"linkdesk/internal/gui"
	"linkdesk/internal/types"
)

const (
	KeyWidth  = 30
	KeyHeight = 30

	// ShiftKey is the id of the left shift key, which drives the shifted
	// labels of every other key.
	ShiftKey = "4-0"
)

// X11 keysyms for the keys that are not plain Latin-1 characters.
const (
	keyBackSpace uint32 = 0xff08
	keyTab       uint32 = 0xff09
	keyReturn    uint32 = 0xff0d
	keyLeft      uint32 = 0xff51
	keyUp        uint32 = 0xff52
	keyRight     uint32 = 0xff53
	keyDown      uint32 = 0xff54
	keyShiftL    uint32 = 0xffe1
	keyShiftR    uint32 = 0xffe2
	keyCapsLock  uint32 = 0xffe5
)

type keyboardBuilder struct {
	row, col int
	x, y     int
	width    int
	switches []Switch
}

func (b *keyboardBuilder) add(s Switch, scale float64) {
	w := int(scale * KeyWidth)
	s.ID = fmt.Sprintf("%d-%d", b.row, b.col)
	s.Rect = types.Rect{X: b.x, Y: b.y, Width: w, Height: KeyHeight}
	b.switches = append(b.switches, s)
	b.x += w
	b.col++
}

// char adds a key whose label is its character. Letters send the lower
// case keysym and the upper case one when shifted; Latin-1 keysyms equal
// their code points.
func (b *keyboardBuilder) char(c rune, shifted rune) {
	if shifted == 0 {
		shifted = c
	}
	code, shiftedCode := uint32(c), uint32(shifted)
	if unicode.IsLetter(c) {
		code = uint32(unicode.ToLower(c))
		shiftedCode = uint32(unicode.ToUpper(c))
	}
	b.add(Switch{Label: string(c), ShiftedLabel: string(shifted), Code: code, ShiftedCode: shiftedCode}, 1)
}

func (b *keyboardBuilder) special(label string, code uint32, scale float64) {
	b.add(Switch{Label: label, Code: code, ShiftedCode: code}, scale)
}

func (b *keyboardBuilder) arrow(d gui.Direction, code uint32) {
	b.add(Switch{Arrow: true, Direction: d, Code: code, ShiftedCode: code}, 1)
}

func (b *keyboardBuilder) chars(s string) {
	for _, c := range s {
		b.char(c, 0)
	}
}

func (b *keyboardBuilder) pairs(plain, shifted string) {
	sh := []rune(shifted)
	for i, c := range []rune(plain) {
		b.char(c, sh[i])
	}
}

func (b *keyboardBuilder) nextRow() {
	b.width = max(b.width, b.x)
	b.x = 0
	b.y += KeyHeight
	b.row++
	b.col = 0
}

// KeyboardSpec is the five row US layout.
func KeyboardSpec() Spec {
	b := &keyboardBuilder{row: 1}

	b.pairs("`1234567890-=", "~!@#$%^&*()_+")
	b.special("BACK", keyBackSpace, 2)
	b.nextRow()

	b.special("TAB", keyTab, 1.5)
	b.chars("QWERTYUIOP")
	b.pairs("[]", "{}")
	b.add(Switch{Label: `\`, ShiftedLabel: "|", Code: '\\', ShiftedCode: '|'}, 1.5)
	b.nextRow()

	b.special("CAPS", keyCapsLock, 1.5)
	b.chars("ASDFGHJKL")
	b.pairs(`;'`, `:"`)
	b.special("ENTER", keyReturn, 2.5)
	b.nextRow()

	b.special("SHIFT", keyShiftL, 2.5)
	b.chars("ZXCVBNM")
	b.pairs(",./", "<>?")
	b.arrow(gui.Up, keyUp)
	b.special("SHIFT", keyShiftR, 1.5)
	b.nextRow()

	b.special("SPACE", ' ', 12)
	b.arrow(gui.Left, keyLeft)
	b.arrow(gui.Down, keyDown)
	b.arrow(gui.Right, keyRight)
	b.nextRow()

	return Spec{
		Name:     "keyboard",
		Size:     types.Size{Width: b.width, Height: b.y},
		Switches: b.switches,
		ShiftID:  ShiftKey,
		Color:    types.Grey,
		Text:     types.White,
	}
}

// NewKeyboard builds the keyboard panel.
func NewKeyboard() (*Panel, error) {
	return New(KeyboardSpec())
}
