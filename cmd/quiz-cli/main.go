package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/app"
	"github.com/certsherpa/quiz-app/internal/cli"
	"github.com/certsherpa/quiz-app/internal/config"
	"github.com/certsherpa/quiz-app/internal/logger"
	"github.com/certsherpa/quiz-app/internal/quiz"
	"github.com/certsherpa/quiz-app/internal/tracing"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	mode := flag.String("mode", "", "submit mode: two_step or simple (overrides config)")
	flag.Parse()

	if err := run(*configPath, *mode); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, mode string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Stdout belongs to the quiz.
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: os.Stderr})
	if err != nil {
		return err
	}
	defer log.Sync()

	shutdown, err := tracing.Init(ctx, tracing.Options{
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
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var extra []quiz.SessionOption
	if mode != "" {
		submitMode, err := quiz.ParseSubmitMode(mode)
		if err != nil {
			return err
		}
		extra = append(extra, quiz.WithSubmitMode(submitMode))
	}

	session := a.NewSession(extra...)
	defer session.Close()

	return cli.Run(ctx, os.Stdin, os.Stdout, session, cli.Config{ImageWait: cfg.Images.Wait})
}
