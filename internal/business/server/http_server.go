// Package server runs the HTTP listener of the gateway.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/config"
)

const readHeaderTimeout = 10 * time.Second

// createHTTPServer wraps handler with the request observation and binds it
// to the configured address.
func createHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) (*http.Server, error) {
	m, err := initMeters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if handler == nil {
		handler = http.NotFoundHandler()
	}

	return &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           newObserveMiddleware(cfg, m)(handler),
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}

// StartHTTPServer serves handler until ctx is cancelled, then shuts the
// server down gracefully.
func StartHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	server, err := createHTTPServer(ctx, cfg, handler)
	if err != nil {
		return err
	}

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address if provided in the format of network://address.
	// Otherwise use tcp network by default. Some integration tests are easier to implement
	// by binding a listener to a unix socket rather than a TCP port.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
			serveErr <- err
		}
		close(serveErr)

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return oops.In("HTTP Server").
				WithContext(ctx).
				Wrapf(err, "Failed serving HTTP")
		}
	}

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
