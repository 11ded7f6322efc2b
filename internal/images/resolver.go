package images

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/metrics"
)

const (
	DefaultSignedURLTTL = time.Hour
	defaultExplicitAlt  = "Question image"

	rasterWidth  = 1600
	rasterHeight = 1200
)

var tracer = otel.Tracer("github.com/certsherpa/quiz-app/internal/images")

type Kind string

const (
	// KindVector images render at their intrinsic size.
	KindVector Kind = "vector"
	// KindRaster images render inside a fixed aspect-ratio box that scales with the viewport.
	KindRaster Kind = "raster"
)

// KindOf classifies an object name by extension.
func KindOf(name string) Kind {
	if strings.EqualFold(path.Ext(name), ".svg") {
		return KindVector
	}
	return KindRaster
}

// Subject is what the resolver needs to know about a question.
type Subject struct {
	ID          string
	Code        string
	ExplicitURL string
	ExplicitAlt string
}

// DiscoveryCode returns Code, falling back to ID.
func (s Subject) DiscoveryCode() string {
	if code := strings.TrimSpace(s.Code); code != "" {
		return code
	}
	return strings.TrimSpace(s.ID)
}

type Image struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Alt  string `json:"alt"`
	Kind Kind   `json:"kind"`
}

// Box is the rendering hint for an image.
type Box struct {
	Width      int  `json:"width,omitempty"`
	Height     int  `json:"height,omitempty"`
	Responsive bool `json:"responsive"`
}

func (img Image) Box() Box {
	if img.Kind == KindVector {
		return Box{}
	}
	return Box{Width: rasterWidth, Height: rasterHeight, Responsive: true}
}

type ResolverOption func(*Resolver)

// WithSignedURLs makes the resolver hand out signed URLs valid for ttl
// instead of public ones.
func WithSignedURLs(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.signed = true
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLogger(log *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// Resolver turns a Subject into the ordered list of images to display.
type Resolver struct {
	strategy Strategy
	urls     URLSource
	signed   bool
	ttl      time.Duration
	log      *zap.Logger
}

func NewResolver(strategy Strategy, urls URLSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		strategy: strategy,
		urls:     urls,
		ttl:      DefaultSignedURLTTL,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails. Any problem along the way yields fewer images, possibly none.
func (r *Resolver) Resolve(ctx context.Context, subject Subject) []Image {
	if explicit := strings.TrimSpace(subject.ExplicitURL); explicit != "" {
		if img, ok := r.explicit(explicit, subject.ExplicitAlt); ok {
			return []Image{img}
		}
		return nil
	}

	code := subject.DiscoveryCode()
	if code == "" || IsNumericCode(code) || r.strategy == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "images.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("images.code", code),
		attribute.String("images.strategy", r.strategy.Name()),
	)

	names, err := r.strategy.Discover(ctx, code)
	if err != nil {
		metrics.ImageDiscoveries.WithLabelValues(r.strategy.Name(), "error").Inc()
		span.RecordError(err)
		r.log.Warn("image discovery failed",
			zap.String("code", code),
			zap.String("strategy", r.strategy.Name()),
			zap.Error(err),
		)
		return nil
	}
	if len(names) == 0 {
		metrics.ImageDiscoveries.WithLabelValues(r.strategy.Name(), "empty").Inc()
		return nil
	}
	metrics.ImageDiscoveries.WithLabelValues(r.strategy.Name(), "found").Inc()

	SortNames(code, names)
	out := make([]Image, 0, len(names))
	for i, name := range names {
		url, err := r.objectURL(ctx, name)
		if err != nil {
			r.log.Warn("image url signing failed", zap.String("name", name), zap.Error(err))
			continue
		}
		out = append(out, Image{
			Name: name,
			URL:  url,
			Alt:  fmt.Sprintf("%s diagram %d", code, i+1),
			Kind: KindOf(name),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r *Resolver) explicit(ref, alt string) (Image, bool) {
	alt = strings.TrimSpace(alt)
	if alt == "" {
		alt = defaultExplicitAlt
	}

	if isAbsoluteHTTP(ref) {
		return Image{Name: path.Base(ref), URL: ref, Alt: alt, Kind: KindOf(stripQuery(ref))}, true
	}

	name := strings.TrimLeft(ref, "/")
	if name == "" || r.urls == nil {
		return Image{}, false
	}
	url := r.urls.PublicURL(name)
	if url == "" {
		return Image{}, false
	}
	return Image{Name: name, URL: url, Alt: alt, Kind: KindOf(name)}, true
}

func (r *Resolver) objectURL(ctx context.Context, name string) (string, error) {
	if r.urls == nil {
		return "", fmt.Errorf("no url source for %q", name)
	}
	if r.signed {
		return r.urls.SignedURL(ctx, name, r.ttl)
	}
	url := r.urls.PublicURL(name)
	if url == "" {
		return "", fmt.Errorf("no public url for %q", name)
	}
	return url, nil
}

func isAbsoluteHTTP(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}
