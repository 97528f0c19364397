package stream

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdesk/internal/types"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	mu      sync.Mutex
	img     *image.RGBA
	version uint64
}

func newFakeSource() *fakeSource {
	return &fakeSource{img: image.NewRGBA(image.Rect(0, 0, 8, 6))}
}

func (s *fakeSource) Size() types.Size { return types.Size{Width: 8, Height: 6} }

func (s *fakeSource) Snapshot() (*image.RGBA, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out, s.version
}

func (s *fakeSource) paint(c color.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img.SetRGBA(1, 1, c)
	s.version++
}

type fakeConn struct {
	requests atomic.Int32
	err      error
}

func (c *fakeConn) Size() types.Size { return types.Size{Width: 8, Height: 6} }

func (c *fakeConn) RequestUpdate(incremental bool, r types.Rect) error {
	c.requests.Add(1)
	return c.err
}

func (c *fakeConn) PointerEvent(x, y int, mask uint8) error { return nil }

func (c *fakeConn) KeyEvent(code uint32, down bool) error { return nil }

type fakeSink struct {
	frames  chan *Frame
	failOn  int
	written int
	closed  atomic.Bool
}

func newFakeSink(failOn int) *fakeSink {
	return &fakeSink{frames: make(chan *Frame, 16), failOn: failOn}
}

func (s *fakeSink) Start(int, int) error { return nil }

func (s *fakeSink) Write(f *Frame) error {
	s.written++
	if s.written == s.failOn {
		return errors.New("broken pipe")
	}
	s.frames <- f
	return nil
}

func (s *fakeSink) Done() <-chan struct{} { return nil }

func (s *fakeSink) Close() error {
	s.closed.Store(true)
	return nil
}

func newMux(src Source) *Multiplexer {
	return New(src, Options{Interval: 10 * time.Millisecond, Logger: discard()})
}

func TestTickPushesOncePerOpenViewer(t *testing.T) {
	m := newMux(newFakeSource())
	var viewers []*Viewer
	for i := 0; i < 5; i++ {
		v, err := m.Open()
		require.NoError(t, err)
		viewers = append(viewers, v)
	}
	assert.Equal(t, 5, m.Tick())

	m.Close(viewers[0])
	m.Close(viewers[3])
	m.Close(viewers[3])
	assert.Equal(t, 3, m.Tick())
	assert.Equal(t, 3, m.Viewers())
}

func TestOpenQueuesCurrentFrame(t *testing.T) {
	src := newFakeSource()
	m := newMux(src)
	v, err := m.Open()
	require.NoError(t, err)
	select {
	case f := <-v.Frames():
		assert.Equal(t, uint64(1), f.Seq)
	default:
		t.Fatal("no frame queued on open")
	}
}

func TestMailboxKeepsNewestFrame(t *testing.T) {
	src := newFakeSource()
	m := newMux(src)
	v, err := m.Open()
	require.NoError(t, err)

	src.paint(color.RGBA{R: 0xff, A: 0xff})
	m.Tick()
	src.paint(color.RGBA{G: 0xff, A: 0xff})
	m.Tick()

	f := <-v.Frames()
	assert.Equal(t, uint64(3), f.Seq)
	select {
	case <-v.Frames():
		t.Fatal("stale frame left in mailbox")
	default:
	}
}

func TestUnchangedMirrorReusesFrame(t *testing.T) {
	src := newFakeSource()
	m := newMux(src)
	a, err := m.frame()
	require.NoError(t, err)
	b, err := m.frame()
	require.NoError(t, err)
	assert.Same(t, a, b)

	src.paint(color.RGBA{B: 0xff, A: 0xff})
	c, err := m.frame()
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, uint64(2), c.Seq)
}

func TestTickRequestsFullUpdate(t *testing.T) {
	m := newMux(newFakeSource())
	conn := &fakeConn{err: errors.New("not connected")}
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	_, err := m.Open()
	require.NoError(t, err)
	// a failing request is logged and the frame still goes out
	assert.Equal(t, 1, m.Tick())
	assert.Equal(t, int32(1), conn.requests.Load())
}

func TestStartStop(t *testing.T) {
	m := newMux(newFakeSource())
	conn := &fakeConn{}
	m.Start(conn)
	require.Eventually(t, func() bool { return conn.requests.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	// restarting replaces the loop rather than adding a second one
	other := &fakeConn{}
	m.Start(other)
	require.Eventually(t, func() bool { return other.requests.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	m.Stop()
	n := conn.requests.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, conn.requests.Load())

	m.Stop()
}

func TestSinkFailureIsolatesViewer(t *testing.T) {
	m := newMux(newFakeSource())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, bad := newFakeSink(0), newFakeSink(2)
	goodErr, badErr := make(chan error, 1), make(chan error, 1)
	go func() { goodErr <- m.Serve(ctx, good) }()
	go func() { badErr <- m.Serve(ctx, bad) }()

	<-good.frames
	<-bad.frames
	require.Equal(t, 2, m.Viewers())

	m.Tick()
	err := <-badErr
	var ee *types.EncodeError
	require.ErrorAs(t, err, &ee)
	assert.NotEmpty(t, ee.Viewer)
	assert.True(t, bad.closed.Load())

	<-good.frames
	assert.Equal(t, 1, m.Viewers())
	assert.Equal(t, 1, m.Tick())
	<-good.frames

	cancel()
	assert.NoError(t, <-goodErr)
	assert.Zero(t, m.Viewers())
}

func TestShutdownClosesViewers(t *testing.T) {
	m := newMux(newFakeSource())
	conn := &fakeConn{}
	m.Start(conn)
	v, err := m.Open()
	require.NoError(t, err)

	m.Shutdown()
	select {
	case <-v.Done():
	default:
		t.Fatal("viewer still open after shutdown")
	}
	assert.Zero(t, m.Viewers())
	_, err = m.Open()
	assert.ErrorIs(t, err, ErrClosed)

	m.Start(conn)
	m.mu.Lock()
	assert.Nil(t, m.cancel)
	m.mu.Unlock()
}

func TestGIFSinkWritesEndlessImage(t *testing.T) {
	src := newFakeSource()
	m := newMux(src)
	rec := httptest.NewRecorder()
	sink := NewGIFSink(rec)

	require.NoError(t, sink.Start(8, 6))
	for i := 0; i < 3; i++ {
		src.paint(color.RGBA{R: uint8(i * 40), A: 0xff})
		f, err := m.frame()
		require.NoError(t, err)
		require.NoError(t, sink.Write(f))
	}
	require.NoError(t, sink.Close())

	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)
	g, err := gif.DecodeAll(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, g.Image, 3)
	assert.Equal(t, 8, g.Config.Width)
}

func TestWebSocketSinkStreamsStills(t *testing.T) {
	m := newMux(newFakeSource())
	upgrader := websocket.Upgrader{}
	served := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		served <- m.Serve(r.Context(), NewWebSocketSink(ws))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		if i > 0 {
			m.Tick()
		}
		_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
		kind, data, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, kind)
		g, err := gif.DecodeAll(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Len(t, g.Image, 1)
	}

	require.NoError(t, c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	c.Close()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the peer closed")
	}
	assert.Zero(t, m.Viewers())
}
