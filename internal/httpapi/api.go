package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

const defaultImageWait = 3 * time.Second

// SessionFactory builds a session with the service's configured policy.
type SessionFactory func(opts ...quiz.SessionOption) *quiz.Session

// ImageResolver resolves images for arbitrary subjects on GET /images.
type ImageResolver interface {
	Resolve(ctx context.Context, subject images.Subject) []images.Image
}

type API struct {
	sessions  *Registry
	factory   SessionFactory
	resolver  ImageResolver
	imageWait time.Duration
	log       *zap.Logger
}

type APIOption func(*API)

func WithImageWait(wait time.Duration) APIOption {
	return func(a *API) {
		if wait > 0 {
			a.imageWait = wait
		}
	}
}

func WithResolver(resolver ImageResolver) APIOption {
	return func(a *API) {
		a.resolver = resolver
	}
}

func WithLogger(log *zap.Logger) APIOption {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

func NewAPI(factory SessionFactory, sessions *Registry, opts ...APIOption) *API {
	if sessions == nil {
		sessions = NewRegistry(0)
	}
	a := &API{
		sessions:  sessions,
		factory:   factory,
		imageWait: defaultImageWait,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
