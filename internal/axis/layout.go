package axis

import (
	"errors"
	"fmt"

	"linkdesk/internal/types"
)

// Orientation is the screen direction an axis measures.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

// Layout describes how an axis maps its addressable span onto clickable
// slices and how large its ruler image is.
type Layout struct {
	Name        string
	Orientation Orientation

	// Span is the number of addressable positions.
	Span int
	// Precision is the number of positions covered by one slice.
	Precision int
	// Thickness is the ruler's cross-axis size in pixels, padding included.
	// Ignored when Fold is set.
	Thickness int
	// Padding is the border width around the slices.
	Padding int
	// Fold, when positive, wraps the span into rows of Fold positions laid
	// out across the ruler. Only vertical axes fold.
	Fold int

	// Inverted reports Base - offset instead of offset. Folded axes use a
	// per-row base of rowStart + Fold.
	Inverted bool
	// Base is the inverted origin of an unfolded axis. Nil means Span-1.
	Base *int

	// BlinkRate is the indicator blink frequency in frames per second.
	BlinkRate float64
}

func (l Layout) validate() error {
	switch {
	case l.Span <= 0:
		return fmt.Errorf("axis %s: span must be positive", l.Name)
	case l.Precision <= 0:
		return fmt.Errorf("axis %s: precision must be positive", l.Name)
	case l.Padding < 0:
		return fmt.Errorf("axis %s: padding must not be negative", l.Name)
	case l.BlinkRate <= 0:
		return fmt.Errorf("axis %s: blink rate must be positive", l.Name)
	case l.Fold < 0:
		return fmt.Errorf("axis %s: fold must not be negative", l.Name)
	case l.Fold > 0 && l.Orientation != Vertical:
		return errors.New("axis " + l.Name + ": only vertical axes fold")
	case l.Fold == 0 && l.Thickness <= 2*l.Padding:
		return fmt.Errorf("axis %s: thickness %d leaves no room inside padding %d", l.Name, l.Thickness, l.Padding)
	}
	return nil
}

// size is the pixel size of the ruler image.
func (l Layout) size() types.Size {
	cross := l.Thickness
	if l.Fold > 0 {
		cross = l.Fold + 2*l.Padding
	}
	along := l.Span + 2*l.Padding
	if l.Fold > 0 {
		rows := (l.Span + l.Fold - 1) / l.Fold
		along = rows*l.Fold + 2*l.Padding
	}
	if l.Orientation == Horizontal {
		return types.Size{Width: along, Height: cross}
	}
	return types.Size{Width: cross, Height: along}
}

// Slice is one clickable cell of an axis.
type Slice struct {
	Index int
	// Offset and Width locate the slice within [0, Span).
	Offset int
	Width  int
	// Rect is the slice's area inside the ruler image.
	Rect types.Rect
	// Position is the coordinate reported when the slice is clicked.
	Position int
	// ImageIndex is shared by slices whose current images are identical.
	ImageIndex int
}

// slices partitions [0, Span) in order. Every slice covers Precision
// positions except the last one of each row, which is truncated.
func (l Layout) slices() []Slice {
	p := l.Padding
	var out []Slice
	add := func(offset, width int, rect types.Rect, position int) {
		out = append(out, Slice{Index: len(out), Offset: offset, Width: width, Rect: rect, Position: position})
	}

	if l.Fold > 0 {
		for rowStart := 0; rowStart < l.Span; rowStart += l.Fold {
			rowLen := min(l.Fold, l.Span-rowStart)
			for local := 0; local < rowLen; local += l.Precision {
				w := min(l.Precision, rowLen-local)
				rect := types.Rect{X: p + local, Y: p + rowStart, Width: w, Height: l.Fold}
				pos := rowStart + local
				if l.Inverted {
					pos = rowStart + l.Fold - local
				}
				add(rowStart+local, w, rect, pos)
			}
		}
		return out
	}

	base := l.Span - 1
	if l.Base != nil {
		base = *l.Base
	}
	inner := l.Thickness - 2*p
	for offset := 0; offset < l.Span; offset += l.Precision {
		w := min(l.Precision, l.Span-offset)
		rect := types.Rect{X: p + offset, Y: p, Width: w, Height: inner}
		if l.Orientation == Vertical {
			rect = types.Rect{X: p, Y: p + offset, Width: inner, Height: w}
		}
		pos := offset
		if l.Inverted {
			pos = base - offset
		}
		add(offset, w, rect, pos)
	}
	return out
}

// Regions holds one value per named area of a ruler image. The same shape
// carries rects, raster snapshots and encoded images.
type Regions[T any] struct {
	Full   T
	Slices []T
	Top    T
	Bottom T
	Left   T
	Right  T
}

func mapRegions[A, B any](r Regions[A], f func(A) B) Regions[B] {
	out := Regions[B]{
		Full:   f(r.Full),
		Slices: make([]B, len(r.Slices)),
		Top:    f(r.Top),
		Bottom: f(r.Bottom),
		Left:   f(r.Left),
		Right:  f(r.Right),
	}
	for i, v := range r.Slices {
		out.Slices[i] = f(v)
	}
	return out
}

func (l Layout) rects(slices []Slice) Regions[types.Rect] {
	size := l.size()
	w, h, p := size.Width, size.Height, l.Padding
	// The side borders flank one row of slices and are repeated per row.
	row := h - 2*p
	if len(slices) > 0 {
		row = slices[0].Rect.Height
	}
	r := Regions[types.Rect]{
		Full:   types.Rect{Width: w, Height: h},
		Slices: make([]types.Rect, len(slices)),
		Top:    types.Rect{Width: w, Height: p},
		Bottom: types.Rect{Y: h - p, Width: w, Height: p},
		Left:   types.Rect{Y: p, Width: p, Height: row},
		Right:  types.Rect{X: w - p, Y: p, Width: p, Height: row},
	}
	for i, s := range slices {
		r.Slices[i] = s.Rect
	}
	return r
}

// Region names one area of the ruler.
type Region int

const (
	RegionFull Region = iota
	RegionSlice
	RegionTop
	RegionBottom
	RegionLeft
	RegionRight
)

var regionNames = map[string]Region{
	"full":   RegionFull,
	"top":    RegionTop,
	"bottom": RegionBottom,
	"left":   RegionLeft,
	"right":  RegionRight,
}

// ParseRegion resolves a border or full region name. Slices are addressed
// by index, not by name.
func ParseRegion(name string) (Region, error) {
	r, ok := regionNames[name]
	if !ok {
		return 0, fmt.Errorf("region %q: %w", name, types.ErrNotFound)
	}
	return r, nil
}
