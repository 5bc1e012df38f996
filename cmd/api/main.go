package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/poddon/concierge/cmd/mainconfig"
	"github.com/poddon/concierge/internal/app/bootstrap"
	appconfig "github.com/poddon/concierge/internal/config"
	"github.com/poddon/concierge/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger, err := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		logger.Warn("log file unavailable, logging to stdout only", "path", cfg.LogFile, "error", err)
	}
	logger.Info("starting concierge",
		"env", cfg.Env,
		"port", cfg.Port,
		"version", cfg.BotVersion,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Deps{AWS: awsCfg})
	if err != nil {
		logger.Error("failed to assemble concierge", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Worker.Start(ctx)

	srv := newServer(cfg, app.Handler)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop pulling updates and let in-flight handlers finish.
	cancel()
	waitCh := make(chan struct{})
	go func() {
		app.Worker.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		logger.Info("update workers stopped")
	case <-shutdownCtx.Done():
		logger.Error("update worker shutdown timed out", "error", shutdownCtx.Err())
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// loadAWS returns nil when no configured backend talks to AWS.
func loadAWS(ctx context.Context, cfg *appconfig.Config) (*aws.Config, error) {
	if !mainconfig.NeedsAWS(cfg) {
		return nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}

// newServer has no write timeout: web chat sockets are long-lived.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
