// Package axis exposes one screen dimension as a bounded set of clickable,
// pre-rendered slices. Each slice and border region is served as a two
// frame looping GIF that blinks an indicator at the current position.
package axis

import (
	"encoding/hex"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"linkdesk/internal/gifenc"
	"linkdesk/internal/gui"
	"linkdesk/internal/types"
)

// Image is an encoded region image and its content tag.
type Image struct {
	Data []byte
	ETag string
}

// imageSet is one immutable generation of encoded images. It is replaced
// wholesale on every move.
type imageSet struct {
	position   int
	regions    Regions[Image]
	unique     []Image
	sliceImage []int
}

// Axis is a click-map for one input dimension.
type Axis struct {
	layout Layout
	size   types.Size
	slices []Slice
	rects  Regions[types.Rect]
	maxPos int
	delay  time.Duration

	mu         sync.Mutex
	canvas     *image.RGBA
	background Regions[*image.RGBA]
	listener   func(position int)

	current atomic.Pointer[imageSet]
}

// New builds an axis, draws its static ruler once and renders the indicator
// at the initial position.
func New(layout Layout, initial int) (*Axis, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	a := &Axis{
		layout: layout,
		size:   layout.size(),
		slices: layout.slices(),
		delay:  time.Duration(float64(time.Second) / layout.BlinkRate),
	}
	a.rects = layout.rects(a.slices)
	for _, s := range a.slices {
		a.maxPos = max(a.maxPos, s.Position+1)
	}
	if initial < 0 || initial >= a.maxPos {
		return nil, fmt.Errorf("axis %s: initial position %d: %w", layout.Name, initial, types.ErrOutOfRange)
	}

	a.canvas = gui.NewCanvas(a.size)
	a.drawBackground()
	a.background = a.snapshot()

	set, err := a.render(initial)
	if err != nil {
		return nil, err
	}
	a.current.Store(set)
	return a, nil
}

func (a *Axis) Name() string { return a.layout.Name }

// Layout returns the configuration the axis was built from.
func (a *Axis) Layout() Layout { return a.layout }

// Size is the pixel size of the full ruler image.
func (a *Axis) Size() types.Size { return a.size }

// MaxPosition is one past the largest position any slice reports.
func (a *Axis) MaxPosition() int { return a.maxPos }

// Position is the indicator's current position.
func (a *Axis) Position() int { return a.current.Load().position }

// SliceCount is the number of clickable slices.
func (a *Axis) SliceCount() int { return len(a.slices) }

// Rects returns the geometry of every region of the ruler image.
func (a *Axis) Rects() Regions[types.Rect] {
	return mapRegions(a.rects, func(r types.Rect) types.Rect { return r })
}

// Slices returns the slices with image indexes of the current generation.
func (a *Axis) Slices() []Slice {
	set := a.current.Load()
	out := make([]Slice, len(a.slices))
	copy(out, a.slices)
	for i := range out {
		out[i].ImageIndex = set.sliceImage[i]
	}
	return out
}

// ImageCount is the number of distinct slice images in the current
// generation.
func (a *Axis) ImageCount() int { return len(a.current.Load().unique) }

// SetListener registers the single consumer notified after each move.
func (a *Axis) SetListener(fn func(position int)) {
	a.mu.Lock()
	a.listener = fn
	a.mu.Unlock()
}

// Move places the indicator at position and regenerates every image. A
// move to the current position is a no-op.
func (a *Axis) Move(position int) error {
	if position < 0 || position >= a.maxPos {
		return fmt.Errorf("axis %s: position %d not in [0, %d): %w", a.layout.Name, position, a.maxPos, types.ErrOutOfRange)
	}

	a.mu.Lock()
	if a.current.Load().position == position {
		a.mu.Unlock()
		return nil
	}
	set, err := a.render(position)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.current.Store(set)
	listener := a.listener
	a.mu.Unlock()

	if listener != nil {
		listener(position)
	}
	return nil
}

// MoveSlice moves the indicator to the position of the given slice.
func (a *Axis) MoveSlice(index int) error {
	if index < 0 || index >= len(a.slices) {
		return fmt.Errorf("axis %s: slice %d not in [0, %d): %w", a.layout.Name, index, len(a.slices), types.ErrOutOfRange)
	}
	return a.Move(a.slices[index].Position)
}

// Image returns the current encoded image of a region. index selects the
// slice for RegionSlice and is ignored otherwise.
func (a *Axis) Image(region Region, index int) (Image, error) {
	set := a.current.Load()
	switch region {
	case RegionFull:
		return set.regions.Full, nil
	case RegionTop:
		return set.regions.Top, nil
	case RegionBottom:
		return set.regions.Bottom, nil
	case RegionLeft:
		return set.regions.Left, nil
	case RegionRight:
		return set.regions.Right, nil
	case RegionSlice:
		if index < 0 || index >= len(set.regions.Slices) {
			return Image{}, fmt.Errorf("axis %s: slice %d: %w", a.layout.Name, index, types.ErrNotFound)
		}
		return set.regions.Slices[index], nil
	}
	return Image{}, fmt.Errorf("axis %s: region %d: %w", a.layout.Name, region, types.ErrNotFound)
}

func (a *Axis) snapshot() Regions[*image.RGBA] {
	return mapRegions(a.rects, func(r types.Rect) *image.RGBA { return gui.Crop(a.canvas, r) })
}

func (a *Axis) drawBackground() {
	l := a.layout
	gui.Ridged(a.canvas, a.rects.Full, types.Grey, types.Grey)
	if l.Fold == 0 {
		return
	}
	// A diagonal rule across each folded row hints at the inverted mapping.
	w := a.size.Width
	for rowStart := 0; rowStart < l.Span; rowStart += l.Fold {
		for i := 0; i < l.Fold; i++ {
			x := w - l.Padding - i - 1
			y := l.Padding + rowStart + i
			a.canvas.SetRGBA(x, y, types.Grey.Shadow)
			a.canvas.SetRGBA(x, y+1, types.Grey.Highlight)
		}
	}
}

// drawMarker paints the indicator at position onto the canvas. Coordinates
// are expressed along and across the axis and transposed for vertical axes.
func (a *Axis) drawMarker(position int) {
	l := a.layout
	p := l.Padding
	cross := a.size.Height
	if l.Orientation == Vertical {
		cross = a.size.Width
	}
	fill := func(along, across, alongLen, acrossLen int, c types.Color, shadow bool) {
		r := types.Rect{X: along, Y: across, Width: alongLen, Height: acrossLen}
		if l.Orientation == Vertical {
			r = types.Rect{X: across, Y: along, Width: acrossLen, Height: alongLen}
		}
		tone := c.Main
		if shadow {
			tone = c.Shadow
		}
		gui.Fill(a.canvas, r, tone)
	}

	at := p + position
	bar := cross - 2*p - 3
	fill(at-1, p+1, 5, bar, types.White, true)
	fill(at, cross-p-2, 3, 1, types.White, true)
	fill(at+1, cross-p-1, 1, 1, types.White, true)
	fill(at-2, p, 5, bar, types.White, false)
	fill(at-1, cross-p-3, 3, 1, types.White, false)
	fill(at, cross-p-2, 1, 1, types.White, false)
}

// render draws the foreground for position and encodes one generation of
// images. Callers hold a.mu.
func (a *Axis) render(position int) (*imageSet, error) {
	copy(a.canvas.Pix, a.background.Full.Pix)
	a.drawMarker(position)
	foreground := a.snapshot()

	encode := func(bg, fg *image.RGBA) (Image, error) {
		data, err := gifenc.Loop([]image.Image{bg, fg}, a.delay)
		if err != nil {
			return Image{}, fmt.Errorf("axis %s: encode: %w", a.layout.Name, err)
		}
		return Image{Data: data, ETag: contentTag(bg, fg)}, nil
	}

	set := &imageSet{
		position:   position,
		sliceImage: make([]int, len(a.slices)),
	}
	var err error
	if set.regions.Full, err = encode(a.background.Full, foreground.Full); err != nil {
		return nil, err
	}
	if set.regions.Top, err = encode(a.background.Top, foreground.Top); err != nil {
		return nil, err
	}
	if set.regions.Bottom, err = encode(a.background.Bottom, foreground.Bottom); err != nil {
		return nil, err
	}
	if set.regions.Left, err = encode(a.background.Left, foreground.Left); err != nil {
		return nil, err
	}
	if set.regions.Right, err = encode(a.background.Right, foreground.Right); err != nil {
		return nil, err
	}

	seen := make(map[string]int)
	set.regions.Slices = make([]Image, len(a.slices))
	for i := range a.slices {
		bg, fg := a.background.Slices[i], foreground.Slices[i]
		tag := contentTag(bg, fg)
		idx, ok := seen[tag]
		if !ok {
			data, err := gifenc.Loop([]image.Image{bg, fg}, a.delay)
			if err != nil {
				return nil, fmt.Errorf("axis %s: encode slice %d: %w", a.layout.Name, i, err)
			}
			idx = len(set.unique)
			seen[tag] = idx
			set.unique = append(set.unique, Image{Data: data, ETag: tag})
		}
		set.sliceImage[i] = idx
		set.regions.Slices[i] = set.unique[idx]
	}
	return set, nil
}

// contentTag hashes the pixels and size of both frames.
func contentTag(bg, fg *image.RGBA) string {
	h := blake3.New()
	for _, img := range []*image.RGBA{bg, fg} {
		b := img.Bounds()
		fmt.Fprintf(h, "%dx%d;", b.Dx(), b.Dy())
		h.Write(img.Pix)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
