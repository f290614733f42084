package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/transfer_engine/internal/handlers"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 30 * time.Second

// Router builds the gin engine serving the API.
func (a *App) Router() (*gin.Engine, error) {
	if a.Config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(a.Logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	if err := handlers.RegisterRoutes(r, a.Config, a.Services, a.Events, a.Metrics); err != nil {
		return nil, err
	}
	return r, nil
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	router, err := a.Router()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Event streams never finish on their own.
	server.RegisterOnShutdown(a.Events.Close)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Server starting", slog.String("port", a.Config.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to run: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.Logger.Info("Server stopped")
	return nil
}
