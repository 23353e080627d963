package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/docshield/view-session-service/internal/config"
	"github.com/docshield/view-session-service/internal/observability"
	"github.com/docshield/view-session-service/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Audit         *service.AuditService
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, audit *service.AuditService) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Observability: runtime, Audit: audit}
}

// Run serves until the context is cancelled or a termination signal
// arrives, then drains HTTP, the audit buffer and observability in order,
// each under its own timeout.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) shutdown() error {
	a.Logger.Info("shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownHTTPDrainTimeout)
	defer cancel()
	if err := a.Server.Shutdown(drainCtx); err != nil {
		a.Logger.Warn("http drain incomplete", "error", err.Error())
	}

	if a.Audit != nil {
		auditCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		if err := a.Audit.Close(auditCtx); err != nil {
			a.Logger.Warn("audit drain incomplete", "error", err.Error())
		}
	}

	obsCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownObservabilityTimeout)
	defer cancel()
	if err := a.Observability.Shutdown(obsCtx); err != nil {
		a.Logger.Warn("observability shutdown incomplete", "error", err.Error())
	}
	return nil
}
