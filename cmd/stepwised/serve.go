package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	audithook "github.com/xraph/stepwise/audit_hook"
	docgenhook "github.com/xraph/stepwise/docgen_hook"
	"github.com/xraph/stepwise/extension"
	notifyhook "github.com/xraph/stepwise/notify_hook"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			x := newExtension(cfg, logger)
			if err := x.Register(ctx); err != nil {
				return err
			}
			defer func() {
				if err := x.Stop(context.Background()); err != nil {
					logger.Error("stop", slog.String("error", err.Error()))
				}
			}()
			if err := x.Start(ctx); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           x.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			return runServer(ctx, srv, logger)
		},
	}

	cmd.Flags().String("listen", "", "listen address (default :8080)")
	_ = v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen"))
	return cmd
}

func newExtension(cfg extension.Config, logger *slog.Logger) *extension.Extension {
	return extension.New(cfg,
		extension.WithLogger(logger),
		extension.WithExtension(audithook.New(logRecorder(logger), audithook.WithLogger(logger))),
		extension.WithExtension(notifyhook.New(logNotifier(logger))),
		extension.WithExtension(docgenhook.New(logGenerator(logger), docgenhook.WithLogger(logger))),
	)
}

// runServer serves until ctx is cancelled, then drains open requests.
func runServer(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)

	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}
