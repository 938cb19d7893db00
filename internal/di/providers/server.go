package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/samber/do/v2"
	"golang.org/x/net/netutil"

	"github.com/listenupapp/dirwatch/internal/api"
	"github.com/listenupapp/dirwatch/internal/browser"
	"github.com/listenupapp/dirwatch/internal/config"
	"github.com/listenupapp/dirwatch/internal/logger"
	"github.com/listenupapp/dirwatch/internal/monitor"
	"github.com/listenupapp/dirwatch/internal/ratelimit"
	"github.com/listenupapp/dirwatch/internal/validation"
	"github.com/listenupapp/dirwatch/internal/watcher"
)

// ControlLimiterHandle wraps the start/stop rate limiter. The limiter is nil
// when limiting is disabled.
type ControlLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *ControlLimiterHandle) Shutdown() error {
	if h.KeyedRateLimiter != nil {
		h.Stop()
	}
	return nil
}

// ProvideControlLimiter provides the per-client limiter for watch start and stop.
func ProvideControlLimiter(i do.Injector) (*ControlLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Server.ControlRate == 0 {
		log.Info("Watch control rate limiting disabled")
		return &ControlLimiterHandle{}, nil
	}

	return &ControlLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Server.ControlRate, cfg.Server.ControlBurst, 0),
	}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	feedHandle := do.MustInvoke[*FeedHandle](i)
	limiter := do.MustInvoke[*ControlLimiterHandle](i)

	handler := api.NewServer(api.Deps{
		Controller:     do.MustInvoke[*watcher.Controller](i),
		Builder:        do.MustInvoke[*browser.Builder](i),
		Monitor:        do.MustInvoke[*monitor.Monitor](i),
		Feed:           feedHandle.Queue,
		SSEManager:     sseHandle.Manager,
		Validator:      do.MustInvoke[*validation.Validator](i),
		ControlLimit:   limiter.KeyedRateLimiter,
		StartPath:      cfg.Browser.StartPath,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log.Logger)

	httpLog := log.Component("http")

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(httpLog.Handler(), slog.LevelWarn),
	}

	// Streams only end when their clients are closed.
	srv.RegisterOnShutdown(func() {
		if err := sseHandle.Shutdown(); err != nil {
			httpLog.Warn("SSE shutdown incomplete", "error", err)
		}
	})

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}

	// Start in background
	go func() {
		httpLog.Info("HTTP server starting", "addr", srv.Addr, "max_connections", cfg.Server.MaxConnections)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpLog.Error("HTTP server error", "error", err)
		}
	}()

	httpLog.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
