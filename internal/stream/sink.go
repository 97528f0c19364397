package stream

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"linkdesk/internal/gifenc"
)

// GIFSink writes one endless animated GIF to an HTTP response: the header
// once, then a pre-encoded image block per frame, flushed immediately.
type GIFSink struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	enc *gifenc.Encoder
}

func NewGIFSink(w http.ResponseWriter) *GIFSink {
	return &GIFSink{w: w, rc: http.NewResponseController(w)}
}

func (s *GIFSink) Start(width, height int) error {
	h := s.w.Header()
	h.Set("Content-Type", "image/gif")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
	s.enc = gifenc.NewEncoder(s.w, width, height)
	if err := s.enc.WriteHeader(false); err != nil {
		return err
	}
	return s.flush()
}

func (s *GIFSink) Write(f *Frame) error {
	if err := s.enc.WriteBlock(f.Block); err != nil {
		return err
	}
	return s.flush()
}

func (s *GIFSink) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Done is nil; the request context reports a gone client.
func (s *GIFSink) Done() <-chan struct{} { return nil }

// Close ends the image with a trailer so the last frame stays on screen.
func (s *GIFSink) Close() error {
	if s.enc == nil {
		return nil
	}
	if err := s.enc.Close(); err != nil {
		return err
	}
	return s.flush()
}

const (
	wsWriteWait = 5 * time.Second
	wsPongWait  = 60 * time.Second
)

// WebSocketSink sends every frame as a complete single image GIF in one
// binary message.
type WebSocketSink struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn, done: make(chan struct{})}
}

// Start begins reading so that control frames are handled and a closing peer
// is noticed.
func (s *WebSocketSink) Start(_, _ int) error {
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer s.once.Do(func() { close(s.done) })
		for {
			if _, _, err := s.conn.NextReader(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (s *WebSocketSink) Write(f *Frame) error {
	data, err := f.Still()
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	w, err := s.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("websocket frame %d: %w", f.Seq, err)
	}
	return nil
}

func (s *WebSocketSink) Done() <-chan struct{} { return s.done }

func (s *WebSocketSink) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	return s.conn.Close()
}
