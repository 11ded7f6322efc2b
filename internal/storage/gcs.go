package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBucket serves images from a Google Cloud Storage bucket.
type GCSBucket struct {
	client     *gcs.Client
	bucket     *gcs.BucketHandle
	name       string
	publicBase string
}

func NewGCSBucket(ctx context.Context, cfg Config) (*GCSBucket, error) {
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	opts = append(opts, option.WithScopes(gcs.ScopeReadOnly))

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	publicBase := strings.TrimSpace(cfg.PublicBaseURL)
	switch {
	case publicBase != "":
	case strings.TrimSpace(cfg.CDNDomain) != "":
		publicBase = "https://" + strings.TrimSpace(cfg.CDNDomain)
	default:
		publicBase = "https://storage.googleapis.com/" + cfg.Bucket
	}

	return &GCSBucket{
		client:     client,
		bucket:     client.Bucket(cfg.Bucket),
		name:       cfg.Bucket,
		publicBase: publicBase,
	}, nil
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}

func (b *GCSBucket) List(ctx context.Context, prefix, search string, limit int) ([]string, error) {
	query := &gcs.Query{Prefix: prefix + search}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, err
	}

	it := b.bucket.Objects(ctx, query)
	names := make([]string, 0)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
		if limit > 0 && len(names) >= limit {
			break
		}
	}
	return names, nil
}

func (b *GCSBucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *GCSBucket) PublicURL(name string) string {
	return joinURL(b.publicBase, name)
}

func (b *GCSBucket) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	return b.bucket.SignedURL(name, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  gcs.SigningSchemeV4,
	})
}
