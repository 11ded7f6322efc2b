package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/config"
	"github.com/certsherpa/quiz-app/internal/logger"
	"github.com/certsherpa/quiz-app/internal/opentdb"
	"github.com/certsherpa/quiz-app/internal/quiz"
	"github.com/certsherpa/quiz-app/internal/quiz/sqlstore"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	source := flag.String("source", "opentdb", "question source: opentdb or file")
	file := flag.String("file", "", "YAML seed file when --source=file")
	amount := flag.Int("amount", 20, "number of OpenTriviaDB questions to fetch")
	flag.Parse()

	if err := run(*configPath, *source, *file, *amount); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, source, file string, amount int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer log.Sync()

	questions, err := loadQuestions(ctx, source, file, amount)
	if err != nil {
		return err
	}

	store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	inserted, err := store.ImportQuestions(ctx, source, questions)
	if err != nil {
		return err
	}
	total, err := store.CountQuestions(ctx)
	if err != nil {
		return err
	}

	log.Info("questions imported",
		zap.String("source", source),
		zap.Int("offered", len(questions)),
		zap.Int("inserted", inserted),
		zap.Int("total", total),
	)
	return nil
}

func loadQuestions(ctx context.Context, source, file string, amount int) ([]quiz.Question, error) {
	switch source {
	case "opentdb":
		client := opentdb.NewClient(&http.Client{Timeout: 10 * time.Second})
		raw, err := client.FetchQuestions(ctx, amount)
		if err != nil {
			return nil, err
		}
		seed := uint64(time.Now().UnixNano())
		return opentdb.ToQuestions(raw, rand.New(rand.NewPCG(seed, seed>>1))), nil
	case "file":
		if file == "" {
			return nil, fmt.Errorf("--file is required when --source=file")
		}
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return sqlstore.DecodeSeed(f)
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}
