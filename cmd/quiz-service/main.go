package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/app"
	"github.com/certsherpa/quiz-app/internal/config"
	"github.com/certsherpa/quiz-app/internal/httpapi"
	"github.com/certsherpa/quiz-app/internal/logger"
	"github.com/certsherpa/quiz-app/internal/metrics"
	"github.com/certsherpa/quiz-app/internal/quiz"
	"github.com/certsherpa/quiz-app/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer log.Sync()

	shutdownTracing, err := tracing.Init(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return err
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.Init()
	registry := httpapi.NewRegistry(cfg.Server.SessionTTL)
	go registry.Run(ctx, cfg.Server.SessionTTL/4)

	apiOpts := []httpapi.APIOption{
		httpapi.WithImageWait(cfg.Images.Wait),
		httpapi.WithLogger(log.Named("api")),
	}
	if a.Resolver != nil {
		apiOpts = append(apiOpts, httpapi.WithResolver(a.Resolver))
	}
	api := httpapi.NewAPI(func(opts ...quiz.SessionOption) *quiz.Session {
		return a.NewSession(opts...)
	}, registry, apiOpts...)

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(api, httpapi.RouterOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			MaxRequests:    cfg.RateLimit.MaxRequests,
			RateWindow:     cfg.RateLimit.Window,
			Log:            log.Named("http"),
		}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("quiz-service listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", zap.Error(err))
	}
	return nil
}
