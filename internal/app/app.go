package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/config"
	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
	"github.com/certsherpa/quiz-app/internal/quiz/sqlstore"
	"github.com/certsherpa/quiz-app/internal/storage"
	"github.com/certsherpa/quiz-app/internal/supabase"
)

// App holds the collaborators every binary builds sessions from.
type App struct {
	Source   quiz.Source
	Resolver *images.Resolver
	Log      *zap.Logger

	sessionOpts []quiz.SessionOption
	closers     []func() error
}

// Build wires the question source, image bucket and session policy from cfg.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Log: log}

	httpClient := &http.Client{Timeout: cfg.Supabase.Timeout}
	var project *supabase.Client
	if strings.TrimSpace(cfg.Supabase.URL) != "" {
		project = supabase.NewClient(supabase.Config{
			URL:               cfg.Supabase.URL,
			APIKey:            cfg.Supabase.AnonKey,
			RandomQuestionRPC: cfg.Supabase.RandomQuestionRPC,
			ResponsesTable:    cfg.Supabase.ResponsesTable,
		}, httpClient)
	}

	switch strings.ToLower(cfg.Backend.Driver) {
	case "supabase":
		if project == nil {
			return nil, errors.New("supabase backend requires supabase.url")
		}
		a.Source = project
	case "sql":
		store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open question bank: %w", err)
		}
		a.Source = store
		a.closers = append(a.closers, store.Close)
	default:
		return nil, fmt.Errorf("unsupported backend driver %q", cfg.Backend.Driver)
	}

	if cfg.Images.Enabled {
		resolver, err := buildResolver(ctx, cfg, project, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Resolver = resolver
	}

	opts, err := SessionOptions(cfg.Session, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Resolver != nil {
		opts = append(opts, quiz.WithImageResolver(a.Resolver))
	}
	a.sessionOpts = opts

	log.Info("quiz app configured",
		zap.String("backend", cfg.Backend.Driver),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("image_strategy", cfg.Images.Strategy),
		zap.Bool("images", a.Resolver != nil),
	)
	return a, nil
}

func buildResolver(ctx context.Context, cfg *config.Config, project *supabase.Client, log *zap.Logger) (*images.Resolver, error) {
	bucket, err := storage.Open(ctx, storage.Config{
		Driver:          cfg.Storage.Driver,
		Bucket:          cfg.Storage.Bucket,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKey:       cfg.Storage.AccessKey,
		SecretKey:       cfg.Storage.SecretKey,
		UseSSL:          cfg.Storage.UseSSL,
		Region:          cfg.Storage.Region,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		CDNDomain:       cfg.Storage.CDNDomain,
		CredentialsFile: cfg.Storage.CredentialsFile,
	}, project)
	if err != nil {
		return nil, fmt.Errorf("open image bucket: %w", err)
	}

	imagesLog := log.Named("images")
	strategy, err := storage.NewStrategy(cfg.Images.Strategy, bucket, nil, cfg.Images.ProbeTimeout, imagesLog)
	if err != nil {
		return nil, err
	}

	resolverOpts := []images.ResolverOption{images.WithLogger(imagesLog)}
	if cfg.Storage.SignedURLs {
		resolverOpts = append(resolverOpts, images.WithSignedURLs(cfg.Storage.SignedURLTTL))
	}
	return images.NewResolver(strategy, bucket, resolverOpts...), nil
}

// SessionOptions translates the session section of the config.
func SessionOptions(cfg config.SessionConfig, log *zap.Logger) ([]quiz.SessionOption, error) {
	mode, err := quiz.ParseSubmitMode(cfg.SubmitMode)
	if err != nil {
		return nil, err
	}
	precedence, err := quiz.ParsePrecedence(cfg.GradingPrecedence)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	return []quiz.SessionOption{
		quiz.WithSubmitMode(mode),
		quiz.WithGrader(quiz.NewGrader(precedence...)),
		quiz.WithReselectAfterGrade(cfg.AllowReselectAfterGrade),
		quiz.WithLogger(log.Named("session")),
	}, nil
}

// NewSession builds a session with the configured policy; extra options win.
func (a *App) NewSession(extra ...quiz.SessionOption) *quiz.Session {
	opts := make([]quiz.SessionOption, 0, len(a.sessionOpts)+len(extra))
	opts = append(opts, a.sessionOpts...)
	opts = append(opts, extra...)
	return quiz.NewSession(a.Source, opts...)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
