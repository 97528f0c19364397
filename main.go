// Command linkdesk serves a remote desktop to browsers that cannot run
// scripts. The screen arrives as an endless animated GIF and every input is a
// link: rulers above and left of the screen place the pointer, and toggle
// panels below it hold the keyboard and the mouse buttons.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"linkdesk/internal/config"
	"linkdesk/internal/remote"
	"linkdesk/internal/server"
	"linkdesk/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("linkdesk", pflag.ContinueOnError)
	cfg, err := config.Parse(flags, os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	sess, err := session.New(backend, session.Options{
		Title:      cfg.Title,
		ScreenSize: cfg.Screen.Size,
		Refresh:    cfg.Screen.Refresh,
		Precision:  cfg.Screen.Precision,
		Thickness:  cfg.Screen.Thickness,
		Padding:    cfg.Screen.Padding,
		Fold:       cfg.Screen.Fold,
		BlinkRate:  cfg.Screen.BlinkRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	handler, err := server.New(sess, cfg.Title, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sess.Run(ctx)
	})
	group.Go(func() error {
		logger.Info("http server started", "addr", listener.Addr().String(), "backend", backend.String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		return nil
	})
	return group.Wait()
}

func newLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	// Validate has already checked the name.
	_ = level.UnmarshalText([]byte(c.Level))
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newBackend(cfg *config.Config, logger *slog.Logger) (remote.Backend, error) {
	switch cfg.Backend {
	case config.BackendVNC:
		return remote.NewVNC(remote.VNCOptions{
			Address:        cfg.VNC.Address,
			Password:       cfg.VNC.Password,
			Shared:         cfg.VNC.Shared,
			DialTimeout:    cfg.VNC.DialTimeout,
			ReconnectDelay: cfg.VNC.ReconnectDelay,
		}, logger), nil
	case config.BackendLocal:
		return remote.NewLocal(remote.LocalOptions{Display: cfg.Local.Display}, logger), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
