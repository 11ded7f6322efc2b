package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBucket serves images from an S3-compatible bucket.
type MinioBucket struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewMinioBucket(cfg Config) (*MinioBucket, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	publicBase := strings.TrimSpace(cfg.PublicBaseURL)
	if publicBase == "" {
		publicBase = joinURL(client.EndpointURL().String(), cfg.Bucket)
	}
	return &MinioBucket{client: client, bucket: cfg.Bucket, publicBase: publicBase}, nil
}

// List has no server-side search, so search narrows the prefix instead.
func (b *MinioBucket) List(ctx context.Context, prefix, search string, limit int) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make([]string, 0)
	for object := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix + search,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}
		names = append(names, object.Key)
		if limit > 0 && len(names) >= limit {
			break
		}
	}
	return names, nil
}

func (b *MinioBucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (b *MinioBucket) PublicURL(name string) string {
	return joinURL(b.publicBase, name)
}

func (b *MinioBucket) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	signed, err := b.client.PresignedGetObject(ctx, b.bucket, name, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return signed.String(), nil
}
