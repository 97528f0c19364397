package remote

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdesk/internal/types"
)

func TestScale(t *testing.T) {
	assert.Equal(t, uint8(0), scale(7, 0))
	assert.Equal(t, uint8(0x80), scale(0x80, 0xff))
	assert.Equal(t, uint8(0xff), scale(31, 31))
	assert.Equal(t, uint8(0), scale(0, 63))
	assert.Equal(t, uint8(0x7f), scale(0x7fff, 0xffff))
}

func TestBGRX(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 0xff})
	img.SetRGBA(1, 0, color.RGBA{R: 4, G: 5, B: 6, A: 0xff})
	assert.Equal(t, []byte{3, 2, 1, 0, 6, 5, 4, 0}, bgrx(img))

	sub := img.SubImage(image.Rect(1, 0, 2, 1)).(*image.RGBA)
	assert.Equal(t, []byte{6, 5, 4, 0}, bgrx(sub))
}

func TestKeyName(t *testing.T) {
	for code, want := range map[uint32]string{
		0xff0d: "enter",
		0xffe1: "shift",
		' ':    "space",
		'a':    "a",
		'A':    "A",
		'~':    "~",
	} {
		got, ok := keyName(code)
		assert.True(t, ok, "%#x", code)
		assert.Equal(t, want, got)
	}
	_, ok := keyName(0xffbe)
	assert.False(t, ok)
}

type pipeReader struct {
	net.Conn
	r io.Reader
}

func (p pipeReader) Read(b []byte) (int, error) { return p.r.Read(b) }

func TestWatchedConnSignalsFirstReadError(t *testing.T) {
	first := errors.New("reset")
	r := io.MultiReader(iotestReader("hi"), errReader{first})
	w := newWatchedConn(pipeReader{r: r})

	buf := make([]byte, 8)
	n, err := w.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	select {
	case <-w.done:
		t.Fatal("done closed before any error")
	default:
	}

	_, err = w.Read(buf)
	assert.ErrorIs(t, err, first)
	<-w.done
	assert.ErrorIs(t, w.err, first)
}

type iotestReader string

func (s iotestReader) Read(b []byte) (int, error) { return copy(b, s), io.EOF }

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

type recorder struct {
	mu       sync.Mutex
	failures []error
}

func (r *recorder) Connected(Conn) {}

func (r *recorder) Updated(Update) {}

func (r *recorder) Failed(err error) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func TestVNCRedialsUntilCancelled(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := NewVNC(VNCOptions{Address: addr, DialTimeout: time.Second, ReconnectDelay: 10 * time.Millisecond}, logger)
	assert.Equal(t, "vnc://"+addr, v.String())

	ctx, cancel := context.WithCancel(context.Background())
	ev := &recorder{}
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx, ev) }()

	require.Eventually(t, func() bool { return ev.count() >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	ev.mu.Lock()
	defer ev.mu.Unlock()
	var ce *types.CollaboratorError
	require.ErrorAs(t, ev.failures[0], &ce)
	assert.Equal(t, v.String(), ce.Backend)
}

type channelEvents struct {
	connected chan Conn
	updates   chan Update
}

func (e *channelEvents) Connected(c Conn) { e.connected <- c }

func (e *channelEvents) Updated(u Update) { e.updates <- u }

func (e *channelEvents) Failed(error) {}

// serveColourMapped plays a minimal RFB 3.8 server whose native format is
// 8 bit colour-mapped. It hands back the client's first message after the
// handshake, then sends one raw 2x1 rectangle in the format asked for.
func serveColourMapped(t *testing.T, l net.Listener, first chan<- []byte) {
	conn, err := l.Accept()
	if err != nil {
		t.Error(err)
		return
	}
	defer conn.Close()
	read := func(n int) []byte {
		b := make([]byte, n)
		if _, err := io.ReadFull(conn, b); err != nil {
			t.Error(err)
		}
		return b
	}

	conn.Write([]byte("RFB 003.008\n"))
	read(12)
	conn.Write([]byte{1, 1}) // security: None
	read(1)
	conn.Write([]byte{0, 0, 0, 0})
	read(1) // shared flag

	init := []byte{0, 2, 0, 1, 8, 8, 0, 0}
	init = append(init, make([]byte, 12)...)
	init = binary.BigEndian.AppendUint32(init, 4)
	conn.Write(append(init, "test"...))

	first <- read(20)
	read(8) // SetEncodings with raw only

	update := []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 2, 0, 1, 0, 0, 0, 0}
	update = append(update, 0x30, 0x20, 0x10, 0, 0xff, 0xee, 0xdd, 0)
	conn.Write(update)
	_, _ = io.Copy(io.Discard, conn)
}

func TestVNCRequestsTrueColour(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	first := make(chan []byte, 1)
	go serveColourMapped(t, l, first)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := NewVNC(VNCOptions{Address: l.Addr().String(), DialTimeout: time.Second}, logger)
	ev := &channelEvents{connected: make(chan Conn, 1), updates: make(chan Update, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx, ev) }()

	msg := <-first
	assert.Equal(t, byte(0), msg[0], "SetPixelFormat")
	assert.Equal(t, byte(32), msg[4], "bits per pixel")
	assert.Equal(t, byte(24), msg[5], "depth")
	assert.Equal(t, byte(1), msg[7], "true colour")
	assert.Equal(t, uint16(0xff), binary.BigEndian.Uint16(msg[8:10]))
	assert.Equal(t, []byte{16, 8, 0}, msg[14:17])

	conn := <-ev.connected
	assert.Equal(t, types.Size{Width: 2, Height: 1}, conn.Size())

	select {
	case u := <-ev.updates:
		assert.Equal(t, types.Rect{Width: 2, Height: 1}, u.Rect())
		assert.Equal(t, []byte{0x30, 0x20, 0x10, 0, 0xff, 0xee, 0xdd, 0}, u.Pixels)
	case <-time.After(5 * time.Second):
		t.Fatal("no update decoded")
	}

	cancel()
	require.NoError(t, <-done)
}
