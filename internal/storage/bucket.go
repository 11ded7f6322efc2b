package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/supabase"
)

const (
	DriverSupabase = "supabase"
	DriverMinio    = "minio"
	DriverGCS      = "gcs"
)

// Bucket is everything image resolution needs from an object store.
type Bucket interface {
	images.Lister
	images.Prober
	images.URLSource
}

var (
	_ Bucket = (*supabase.Bucket)(nil)
	_ Bucket = (*MinioBucket)(nil)
	_ Bucket = (*GCSBucket)(nil)
)

type Config struct {
	Driver          string
	Bucket          string
	Endpoint        string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	Region          string
	PublicBaseURL   string
	CDNDomain       string
	CredentialsFile string
}

// Open builds the bucket for cfg.Driver. The supabase driver reuses the
// project client that also serves questions.
func Open(ctx context.Context, cfg Config, project *supabase.Client) (Bucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage bucket name is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSupabase:
		if project == nil {
			return nil, fmt.Errorf("supabase storage requires a supabase client")
		}
		return project.Bucket(cfg.Bucket), nil
	case DriverMinio, "s3":
		return NewMinioBucket(cfg)
	case DriverGCS:
		return NewGCSBucket(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// NewStrategy returns the discovery strategy named by name.
//
//	list    one listing call filtered by the strict name pattern
//	stat    per-candidate object metadata lookups
//	head    per-candidate HTTP HEAD on the public URL
//	decode  per-candidate HTTP GET that must decode as an image
func NewStrategy(name string, bucket Bucket, httpClient *http.Client, probeTimeout time.Duration, log *zap.Logger) (images.Strategy, error) {
	if probeTimeout > 0 {
		if httpClient == nil {
			httpClient = &http.Client{}
		} else {
			clone := *httpClient
			httpClient = &clone
		}
		httpClient.Timeout = probeTimeout
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "list":
		return images.NewListStrategy(bucket), nil
	case "stat":
		return images.NewProbeStrategy("stat", bucket, log), nil
	case "head":
		return images.NewProbeStrategy("head", images.NewHeadProber(bucket, httpClient), log), nil
	case "decode":
		return images.NewProbeStrategy("decode", images.NewDecodeProber(bucket, httpClient), log), nil
	default:
		return nil, fmt.Errorf("unknown image strategy %q", name)
	}
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}
