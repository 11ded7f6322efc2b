package images

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/certsherpa/quiz-app/internal/metrics"
)

const listLimit = 1000

// Lister lists object names under prefix whose name contains search. Some
// backends ignore search and return everything.
type Lister interface {
	List(ctx context.Context, prefix, search string, limit int) ([]string, error)
}

// Prober checks whether a single object exists.
type Prober interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// PublicURLer maps an object name to its public URL.
type PublicURLer interface {
	PublicURL(name string) string
}

// URLSource issues public and signed URLs for bucket objects.
type URLSource interface {
	PublicURLer
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// Strategy finds the object names that exist for a discovery code.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, code string) ([]string, error)
}

// ListStrategy makes one listing call and filters the result strictly.
type ListStrategy struct {
	lister Lister
}

func NewListStrategy(lister Lister) *ListStrategy {
	return &ListStrategy{lister: lister}
}

func (s *ListStrategy) Name() string {
	return "list"
}

func (s *ListStrategy) Discover(ctx context.Context, code string) ([]string, error) {
	names, err := s.lister.List(ctx, "", code, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", code, err)
	}
	return MatchNames(code, names), nil
}

// ProbeStrategy checks every candidate name concurrently and keeps the ones
// that exist. All probes settle before it returns; a failing probe counts as
// a missing object.
type ProbeStrategy struct {
	name   string
	prober Prober
	log    *zap.Logger
}

func NewProbeStrategy(name string, prober Prober, log *zap.Logger) *ProbeStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProbeStrategy{name: name, prober: prober, log: log}
}

func (s *ProbeStrategy) Name() string {
	return s.name
}

func (s *ProbeStrategy) Discover(ctx context.Context, code string) ([]string, error) {
	candidates := Candidates(code)
	found := make([]bool, len(candidates))
	failures := make([]error, len(candidates))

	var g errgroup.Group
	for i, candidate := range candidates {
		g.Go(func() error {
			ok, err := s.prober.Exists(ctx, candidate.Name)
			switch {
			case err != nil:
				metrics.ImageProbes.WithLabelValues(s.name, "error").Inc()
				s.log.Debug("image probe failed", zap.String("name", candidate.Name), zap.Error(err))
				failures[i] = err
			case ok:
				metrics.ImageProbes.WithLabelValues(s.name, "found").Inc()
				found[i] = true
			default:
				metrics.ImageProbes.WithLabelValues(s.name, "absent").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	// Failed probes count as absent; one line per discovery keeps them visible.
	var failed int
	var firstErr error
	for _, err := range failures {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		failed++
	}
	if failed > 0 {
		s.log.Warn("image probes failed",
			zap.String("strategy", s.name),
			zap.String("code", code),
			zap.Int("failed", failed),
			zap.Int("candidates", len(candidates)),
			zap.Error(firstErr),
		)
	}

	names := make([]string, 0)
	seen := make(map[string]bool)
	for i, candidate := range candidates {
		if !found[i] {
			continue
		}
		// Case-insensitive stores answer for both q.png and q.PNG.
		key := strings.ToLower(candidate.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, candidate.Name)
	}
	return names, nil
}
