// Package server is the HTTP surface of a session: the page, the mirror
// stream, and the image and link endpoints of the rulers and panels. Every
// mutation answers with a redirect back to the referring page so clients
// never need scripts.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"linkdesk/internal/axis"
	"linkdesk/internal/session"
	"linkdesk/internal/stream"
	"linkdesk/internal/types"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server routes requests to one session.
type Server struct {
	session *session.Session
	logger  *slog.Logger
	page    []byte
	mux     *http.ServeMux
}

// New builds the handler for s. title heads the page.
func New(s *session.Session, title string, logger *slog.Logger) (*Server, error) {
	page, err := renderPage(s, title)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		session: s,
		logger:  logger.With("component", "http"),
		page:    page,
		mux:     http.NewServeMux(),
	}

	srv.mux.Handle("GET /{$}", gzhttp.GzipHandler(http.HandlerFunc(srv.handlePage)))
	srv.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv.mux.HandleFunc("GET /stream.gif", srv.handleStreamGIF)
	srv.mux.HandleFunc("GET /stream.ws", srv.handleStreamWS)

	srv.mux.HandleFunc("GET /axis/{name}/{index}/image.gif", srv.handleSliceImage)
	srv.mux.HandleFunc("GET /axis/{name}/{index}/move", srv.handleMove)
	srv.mux.HandleFunc("GET /axis/{name}/{file}", srv.handleRegionImage)

	srv.mux.HandleFunc("GET /toggle/{panel}/{id}/image.gif", srv.handleSwitchImage)
	srv.mux.HandleFunc("GET /toggle/{panel}/{id}/click", srv.handleClick)
	srv.mux.HandleFunc("GET /mouse/body.gif", func(w http.ResponseWriter, r *http.Request) {
		writeGIF(w, s.Mouse.Body())
	})
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Cache-Control", "no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.page)
}

func (s *Server) handleStreamGIF(w http.ResponseWriter, r *http.Request) {
	err := s.session.Stream.Serve(r.Context(), stream.NewGIFSink(w))
	if errors.Is(err, stream.ErrClosed) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}
}

func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	// Serve closes the socket through the sink.
	_ = s.session.Stream.Serve(r.Context(), stream.NewWebSocketSink(ws))
}

func (s *Server) handleSliceImage(w http.ResponseWriter, r *http.Request) {
	a, err := s.session.Axis(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "bad slice index", http.StatusBadRequest)
		return
	}
	img, err := a.Image(axis.RegionSlice, index)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeTagged(w, r, img)
}

func (s *Server) handleRegionImage(w http.ResponseWriter, r *http.Request) {
	a, err := s.session.Axis(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	name, ok := strings.CutSuffix(r.PathValue("file"), ".gif")
	if !ok {
		http.NotFound(w, r)
		return
	}
	region, err := axis.ParseRegion(name)
	if err != nil {
		s.fail(w, err)
		return
	}
	img, err := a.Image(region, 0)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeTagged(w, r, img)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	a, err := s.session.Axis(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "bad slice index", http.StatusBadRequest)
		return
	}
	if err := a.MoveSlice(index); err != nil {
		s.fail(w, err)
		return
	}
	redirectBack(w, r)
}

func (s *Server) handleSwitchImage(w http.ResponseWriter, r *http.Request) {
	p, err := s.session.Panel(r.PathValue("panel"))
	if err != nil {
		s.fail(w, err)
		return
	}
	data, err := p.Image(r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeGIF(w, data)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	p, err := s.session.Panel(r.PathValue("panel"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if _, err := p.Toggle(r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	redirectBack(w, r)
}

// fail maps domain errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, types.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func redirectBack(w http.ResponseWriter, r *http.Request) {
	target := r.Referer()
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func writeGIF(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// writeTagged answers 304 when the client already holds img.
func writeTagged(w http.ResponseWriter, r *http.Request, img axis.Image) {
	etag := `"` + img.ETag + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeGIF(w, img.Data)
}
