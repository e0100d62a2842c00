package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "ChartPulse/internal/middleware"
	"ChartPulse/internal/usecase"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	applogger "ChartPulse/pkg/logger"

	drepo "ChartPulse/internal/domain/repository"
)

// App encapsulates the entire application lifecycle: frame-cache hydration,
// the scheduled refresh loop, the live tick stream, and the HTTP surface.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	engine   *usecase.ChartEngine
	pipeline *mid.TickPipeline
	stream   drepo.TickStream // nil when no websocket URL is configured
	handler  xhttp.Handler

	httpServer *xhttp.Server
	closers    []io.Closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	engine *usecase.ChartEngine,
	pipeline *mid.TickPipeline,
	stream drepo.TickStream,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		pipeline: pipeline,
		stream:   stream,
		handler:  handler,
	}
}

// AddCloser registers an infrastructure client closed during shutdown.
func (a *App) AddCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	hydrateCtx, hcancel := context.WithTimeout(ctx, 10*time.Second)
	a.engine.Hydrate(hydrateCtx)
	hcancel()

	watched := make([]string, 0, len(a.cfg.Watches))
	for _, w := range a.cfg.Watches {
		a.engine.AddWatch(w.Symbol, w.Timeframe, w.BackfillBars)
		watched = append(watched, w.Symbol)
	}
	a.engine.RefreshTick()

	go a.scheduleLoop(ctx)
	l.Info("refresh scheduler started",
		applogger.Duration("interval", a.cfg.Engine.RefreshInterval),
		applogger.Int("watches", len(a.cfg.Watches)))

	if a.stream != nil && a.pipeline != nil {
		a.pipeline.Start(ctx)
		go a.streamLoop(ctx, watched)
		l.Info("tick stream started", applogger.Strings("symbols", watched))
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// scheduleLoop drives periodic refreshes until ctx ends.
func (a *App) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Engine.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.engine.RefreshTick()
		}
	}
}

// streamLoop connects the bridge tick stream, pumps ticks into the
// pipeline, and reconnects on read-loop failure.
func (a *App) streamLoop(ctx context.Context, symbols []string) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !a.stream.IsConnected() {
			if err := a.stream.Connect(ctx); err != nil {
				a.logger.Warn("stream connect error", applogger.Error(err))
				time.Sleep(a.cfg.Bridge.ReconnectDelay)
				continue
			}
			if err := a.stream.Subscribe(ctx, symbols); err != nil {
				a.logger.Warn("stream subscribe error", applogger.Error(err))
			}
		}

		ticks, errs := a.stream.Read(ctx)
	pump:
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-ticks:
				if !ok {
					break pump
				}
				if err := a.pipeline.Process(ctx, t); err != nil {
					a.logger.Warn("tick pipeline error", applogger.Error(err))
				}
			case err, ok := <-errs:
				if !ok {
					break pump
				}
				a.logger.Warn("stream read error", applogger.Error(err))
				break pump
			}
		}

		if err := a.stream.Reconnect(ctx); err != nil {
			a.logger.Warn("stream reconnect error", applogger.Error(err))
			time.Sleep(a.cfg.Bridge.ReconnectDelay)
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	l.Info("shutting down...")

	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			l.Warn("stream close error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Final persistence flush before infrastructure clients close.
	a.engine.Shutdown()

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			l.Warn("close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
