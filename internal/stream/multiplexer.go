// Package stream fans the mirror out to any number of viewers. One poll loop
// per session asks the remote for fresh pixels, encodes the mirror once and
// hands the frame to every open viewer's mailbox.
package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkdesk/internal/clients"
	"linkdesk/internal/gifenc"
	"linkdesk/internal/remote"
	"linkdesk/internal/types"
)

// ErrClosed is returned when opening a viewer after Shutdown.
var ErrClosed = errors.New("stream: multiplexer closed")

// Source is the bitmap being streamed.
type Source interface {
	Size() types.Size
	Snapshot() (*image.RGBA, uint64)
}

// Frame is one encoded image block shared by every viewer of a tick.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Block  []byte

	once  sync.Once
	still []byte
	err   error
}

// Still returns the frame as a complete single image GIF, encoded on first
// use.
func (f *Frame) Still() ([]byte, error) {
	f.once.Do(func() {
		f.still, f.err = gifenc.Wrap(f.Block, f.Width, f.Height)
	})
	return f.still, f.err
}

// Sink is where one viewer's frames go.
type Sink interface {
	// Start writes whatever precedes the first frame.
	Start(width, height int) error
	Write(f *Frame) error
	// Done is closed when the peer goes away on its own. It may be nil.
	Done() <-chan struct{}
	Close() error
}

// Viewer is one open stream. OPENED on creation, STREAMING once its sink has
// started, CLOSED when Close runs.
type Viewer struct {
	ID     string
	Opened time.Time

	mailbox chan *Frame
	done    chan struct{}
	once    sync.Once
}

func newViewer() *Viewer {
	return &Viewer{
		ID:      uuid.NewString(),
		Opened:  time.Now(),
		mailbox: make(chan *Frame, 1),
		done:    make(chan struct{}),
	}
}

// push delivers f, replacing an unread older frame so a slow viewer only
// ever lags by one frame and never blocks the loop.
func (v *Viewer) push(f *Frame) {
	for {
		select {
		case v.mailbox <- f:
			return
		default:
		}
		select {
		case <-v.mailbox:
		default:
		}
	}
}

// Frames is the viewer's mailbox.
func (v *Viewer) Frames() <-chan *Frame { return v.mailbox }

// Done is closed once the viewer is closed.
func (v *Viewer) Done() <-chan struct{} { return v.done }

func (v *Viewer) close() {
	v.once.Do(func() { close(v.done) })
}

// Options configures a multiplexer.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Multiplexer owns the poll loop and the set of open viewers.
type Multiplexer struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger
	viewers  *clients.Manager[*Viewer]

	// loop state
	mu       sync.Mutex
	conn     remote.Conn
	cancel   context.CancelFunc
	loopDone chan struct{}
	closed   bool

	// last encoded frame
	frameMu     sync.Mutex
	last        *Frame
	lastVersion uint64
}

func New(source Source, opts Options) *Multiplexer {
	if opts.Interval <= 0 {
		opts.Interval = 300 * time.Millisecond
	}
	return &Multiplexer{
		source:   source,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "stream"),
		viewers:  clients.NewManager[*Viewer](),
	}
}

// Viewers is the number of open viewers.
func (m *Multiplexer) Viewers() int { return m.viewers.Len() }

// Open registers a viewer and queues the current frame for it at once.
func (m *Multiplexer) Open() (*Viewer, error) {
	f, err := m.frame()
	if err != nil {
		return nil, err
	}
	v := newViewer()
	v.push(f)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.viewers.Add(v.ID, v)
	m.mu.Unlock()
	m.logger.Info("viewer opened", "viewer", v.ID, "viewers", m.viewers.Len())
	return v, nil
}

// Close removes the viewer. No frame is pushed to it afterwards.
func (m *Multiplexer) Close(v *Viewer) {
	if _, ok := m.viewers.Remove(v.ID); ok {
		m.logger.Info("viewer closed", "viewer", v.ID, "open_for", time.Since(v.Opened).Round(time.Millisecond), "viewers", m.viewers.Len())
	}
	v.close()
}

// Serve streams to sink until ctx ends, the sink fails or goes away, or the
// multiplexer shuts down. A sink failure is returned as an EncodeError.
func (m *Multiplexer) Serve(ctx context.Context, sink Sink) error {
	v, err := m.Open()
	if err != nil {
		return err
	}
	defer m.Close(v)
	defer sink.Close()

	fail := func(err error) error {
		err = &types.EncodeError{Viewer: v.ID, Err: err}
		m.logger.Warn("viewer dropped", "viewer", v.ID, "err", err)
		return err
	}

	size := m.source.Size()
	if err := sink.Start(size.Width, size.Height); err != nil {
		return fail(err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.done:
			return nil
		case <-sink.Done():
			return nil
		case f := <-v.mailbox:
			if err := sink.Write(f); err != nil {
				return fail(err)
			}
		}
	}
}

// frame encodes the mirror, re-using the previous frame while the mirror is
// unchanged.
func (m *Multiplexer) frame() (*Frame, error) {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()
	img, version := m.source.Snapshot()
	if m.last != nil && version == m.lastVersion {
		return m.last, nil
	}
	block, err := gifenc.EncodeBlock(gifenc.Palettize(img), 0)
	if err != nil {
		return nil, fmt.Errorf("stream: encode frame: %w", err)
	}
	seq := uint64(1)
	if m.last != nil {
		seq = m.last.Seq + 1
	}
	b := img.Bounds()
	m.last = &Frame{Seq: seq, Width: b.Dx(), Height: b.Dy(), Block: block}
	m.lastVersion = version
	return m.last, nil
}

// Tick runs one iteration of the poll loop: request a full update, encode
// the mirror and push the frame to every open viewer. It returns the number
// of viewers pushed to. Failures are logged, never returned.
func (m *Multiplexer) Tick() (pushed int) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("tick panicked", "panic", r)
		}
	}()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		s := conn.Size()
		if err := conn.RequestUpdate(false, types.RectOf(s)); err != nil {
			m.logger.Warn("update request failed", "err", err)
		}
	}

	f, err := m.frame()
	if err != nil {
		m.logger.Warn("tick skipped", "err", err)
		return 0
	}
	m.viewers.ForEach(func(_ string, v *Viewer) {
		v.push(f)
		pushed++
	})
	return pushed
}

// Start (re)starts the poll loop against conn.
func (m *Multiplexer) Start(conn remote.Conn) {
	m.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.conn, m.cancel, m.loopDone = conn, cancel, done
	go m.run(ctx, done)
	m.logger.Info("poll loop started", "interval", m.interval)
}

func (m *Multiplexer) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Stop halts the poll loop and forgets the connection. Open viewers stay
// open and keep the last frame.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.loopDone
	m.conn, m.cancel, m.loopDone = nil, nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("poll loop stopped")
}

// Shutdown stops the loop and closes every viewer. Later Opens fail.
func (m *Multiplexer) Shutdown() {
	m.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	for _, v := range m.viewers.Drain() {
		v.close()
	}
}
