package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/go-portal-shell/app/observability/metrics"
	"github.com/FACorreiaa/go-portal-shell/app/tracer"
	"github.com/FACorreiaa/go-portal-shell/internal/container"
)

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shell HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				cfg.Server.Port = port
			}
			ln, err := net.Listen("tcp", ":"+cfg.Server.Port)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default from config)")
	return cmd
}

// serve runs the shell on ln until parent ends or a termination signal
// arrives. ln is closed on return.
func serve(parent context.Context, ln net.Listener) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	telemetry, err := tracer.InitTracingAndMetrics("portal-shell")
	if err != nil {
		ln.Close()
		return fmt.Errorf("init telemetry: %w", err)
	}
	if err = metrics.InitAppMetrics(); err != nil {
		ln.Close()
		return fmt.Errorf("init metrics: %w", err)
	}

	c, err := container.NewContainer(ctx, &cfg, logger, container.WithMetrics(metrics.Get(), telemetry.Handler()))
	if err != nil {
		ln.Close()
		return err
	}

	go func() {
		if err := c.Preload(ctx); err != nil {
			logger.WarnContext(ctx, "Module preload failed", slog.Any("error", err))
		}
	}()

	serverAddress := ln.Addr().String()
	srv := &http.Server{
		Handler:      c.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress),
			slog.String("storage", cfg.Storage.Driver))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server Serve error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	if err := c.Close(shutdownCtx); err != nil {
		logger.Error("Failed to release resources", slog.Any("error", err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
	}
	logger.Info("Application shut down complete.")
	return nil
}
