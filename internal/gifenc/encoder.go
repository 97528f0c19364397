// Package gifenc writes GIF89a streams incrementally: a header, then any
// number of frames, then an optional trailer. The same encoder serves both
// fully buffered looping images and open-ended HTTP streams.
package gifenc

import (
	"bytes"
	"compress/lzw"
	"errors"
	"image"
	"image/color"
	"io"
	"time"
)

var (
	errNoHeader     = errors.New("gifenc: frame written before header")
	errHeaderTwice  = errors.New("gifenc: header already written")
	errFrameTooBig  = errors.New("gifenc: frame larger than logical screen")
	errEmptyPalette = errors.New("gifenc: frame has no palette")
)

// Encoder writes one GIF stream to w.
type Encoder struct {
	w      io.Writer
	width  int
	height int
	header bool
	frames int
	err    error
}

// NewEncoder returns an encoder for a logical screen of the given size.
func NewEncoder(w io.Writer, width, height int) *Encoder {
	return &Encoder{w: w, width: width, height: height}
}

// Frames is the number of frames written so far.
func (e *Encoder) Frames() int { return e.frames }

func (e *Encoder) write(b []byte) error {
	if e.err != nil {
		return e.err
	}
	if _, err := e.w.Write(b); err != nil {
		e.err = err
	}
	return e.err
}

// WriteHeader writes the signature and logical screen descriptor. With loop
// set, a NETSCAPE2.0 block asks the viewer to repeat forever.
func (e *Encoder) WriteHeader(loop bool) error {
	if e.err != nil {
		return e.err
	}
	if e.header {
		return errHeaderTwice
	}
	b := make([]byte, 0, 32)
	b = append(b, "GIF89a"...)
	b = appendUint16(b, e.width)
	b = appendUint16(b, e.height)
	// no global colour table, background 0, square pixels
	b = append(b, 0x00, 0x00, 0x00)
	if loop {
		b = append(b, 0x21, 0xff, 0x0b)
		b = append(b, "NETSCAPE2.0"...)
		b = append(b, 0x03, 0x01, 0x00, 0x00, 0x00)
	}
	e.header = true
	return e.write(b)
}

// WriteFrame palettizes img and appends it as the next frame.
func (e *Encoder) WriteFrame(img image.Image, delay time.Duration) error {
	block, err := EncodeBlock(Palettize(img), delay)
	if err != nil {
		return err
	}
	return e.WriteBlock(block)
}

// WriteBlock appends a frame produced by EncodeBlock.
func (e *Encoder) WriteBlock(block []byte) error {
	if e.err != nil {
		return e.err
	}
	if !e.header {
		return errNoHeader
	}
	if err := e.write(block); err != nil {
		return err
	}
	e.frames++
	return nil
}

// Close writes the trailer. The underlying writer is not closed.
func (e *Encoder) Close() error {
	return e.write([]byte{0x3b})
}

// EncodeBlock encodes one frame: graphic control extension, image
// descriptor, local colour table and LZW image data. The result can be
// shared between encoders writing the same logical screen size.
func EncodeBlock(img *image.Paletted, delay time.Duration) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() > 0xffff || bounds.Dy() > 0xffff {
		return nil, errFrameTooBig
	}
	if len(img.Palette) == 0 {
		return nil, errEmptyPalette
	}

	var buf bytes.Buffer
	buf.Grow(bounds.Dx()*bounds.Dy()/2 + 1024)

	centis := int(delay / (10 * time.Millisecond))
	buf.Write([]byte{0x21, 0xf9, 0x04, 0x00, byte(centis), byte(centis >> 8), 0x00, 0x00})

	bits := paletteBits(len(img.Palette))
	desc := []byte{0x2c}
	desc = appendUint16(desc, 0)
	desc = appendUint16(desc, 0)
	desc = appendUint16(desc, bounds.Dx())
	desc = appendUint16(desc, bounds.Dy())
	desc = append(desc, 0x80|byte(bits-1))
	buf.Write(desc)

	table := make([]byte, 3<<bits)
	for i, c := range img.Palette {
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		table[3*i], table[3*i+1], table[3*i+2] = rgba.R, rgba.G, rgba.B
	}
	buf.Write(table)

	litWidth := max(bits, 2)
	buf.WriteByte(byte(litWidth))
	bw := &blockWriter{w: &buf}
	lw := lzw.NewWriter(bw, lzw.LSB, litWidth)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		if _, err := lw.Write(img.Pix[off : off+bounds.Dx()]); err != nil {
			return nil, err
		}
	}
	if err := lw.Close(); err != nil {
		return nil, err
	}
	if err := bw.close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Loop encodes frames as a fully buffered GIF that repeats forever, each
// frame shown for delay.
func Loop(frames []image.Image, delay time.Duration) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("gifenc: no frames")
	}
	var buf bytes.Buffer
	b := frames[0].Bounds()
	enc := NewEncoder(&buf, b.Dx(), b.Dy())
	if err := enc.WriteHeader(true); err != nil {
		return nil, err
	}
	for _, f := range frames {
		if err := enc.WriteFrame(f, delay); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Still encodes a single-frame GIF.
func Still(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	b := img.Bounds()
	enc := NewEncoder(&buf, b.Dx(), b.Dy())
	if err := enc.WriteHeader(false); err != nil {
		return nil, err
	}
	if err := enc.WriteFrame(img, 0); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Wrap turns a block from EncodeBlock into a standalone single-frame GIF.
func Wrap(block []byte, width, height int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(block) + 16)
	enc := NewEncoder(&buf, width, height)
	if err := enc.WriteHeader(false); err != nil {
		return nil, err
	}
	if err := enc.WriteBlock(block); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendUint16(b []byte, v int) []byte {
	return append(b, byte(v), byte(v>>8))
}

// paletteBits is the smallest colour table exponent holding n entries.
func paletteBits(n int) int {
	bits := 1
	for 1<<bits < n {
		bits++
	}
	return bits
}

// blockWriter splits LZW output into length-prefixed sub-blocks of at most
// 255 bytes and terminates them with an empty block.
type blockWriter struct {
	w   io.Writer
	buf [256]byte
	n   int
	err error
}

func (b *blockWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 && b.err == nil {
		k := copy(b.buf[1+b.n:], p)
		b.n += k
		p = p[k:]
		if b.n == 255 {
			b.flush()
		}
	}
	return total, b.err
}

func (b *blockWriter) flush() {
	if b.n == 0 || b.err != nil {
		return
	}
	b.buf[0] = byte(b.n)
	_, b.err = b.w.Write(b.buf[:b.n+1])
	b.n = 0
}

func (b *blockWriter) close() error {
	b.flush()
	if b.err != nil {
		return b.err
	}
	_, b.err = b.w.Write([]byte{0x00})
	return b.err
}
