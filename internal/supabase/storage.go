package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Bucket is one storage bucket of the project.
type Bucket struct {
	client *Client
	name   string
}

func (c *Client) Bucket(name string) *Bucket {
	return &Bucket{client: c, name: name}
}

func (b *Bucket) Name() string {
	return b.name
}

type sortBy struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy sortBy `json:"sortBy"`
}

type listedObject struct {
	Name string `json:"name"`
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// List returns object names under prefix. The search filter is applied by the
// service and is not guaranteed to be strict.
func (b *Bucket) List(ctx context.Context, prefix, search string, limit int) ([]string, error) {
	request := listRequest{
		Prefix: prefix,
		Search: search,
		Limit:  limit,
		SortBy: sortBy{Column: "name", Order: "asc"},
	}

	var objects []listedObject
	if err := b.client.doJSON(ctx, http.MethodPost, "/storage/v1/object/list/"+url.PathEscape(b.name), nil, request, &objects); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(objects))
	for _, object := range objects {
		if object.Name == "" {
			continue
		}
		names = append(names, object.Name)
	}
	return names, nil
}

func (b *Bucket) PublicURL(name string) string {
	return b.client.baseURL + "/storage/v1/object/public/" + url.PathEscape(b.name) + "/" + escapeObjectPath(name)
}

func (b *Bucket) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	var payload signResponse
	path := "/storage/v1/object/sign/" + url.PathEscape(b.name) + "/" + escapeObjectPath(name)
	if err := b.client.doJSON(ctx, http.MethodPost, path, nil, signRequest{ExpiresIn: seconds}, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.SignedURL) == "" {
		return "", errors.New("sign response missing signedURL")
	}
	if strings.HasPrefix(payload.SignedURL, "http://") || strings.HasPrefix(payload.SignedURL, "https://") {
		return payload.SignedURL, nil
	}
	return b.client.baseURL + "/storage/v1" + payload.SignedURL, nil
}

// Exists issues an authenticated HEAD on the object.
func (b *Bucket) Exists(ctx context.Context, name string) (bool, error) {
	path := "/storage/v1/object/" + url.PathEscape(b.name) + "/" + escapeObjectPath(name)
	request, err := b.client.newRequest(ctx, http.MethodHead, path, nil)
	if err != nil {
		return false, err
	}

	response, err := b.client.httpClient.Do(request)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	switch {
	case response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices:
		return true, nil
	case response.StatusCode == http.StatusNotFound, response.StatusCode == http.StatusBadRequest:
		// Storage answers 400 for missing objects on some versions.
		return false, nil
	default:
		return false, &APIError{StatusCode: response.StatusCode, Message: response.Status}
	}
}

func escapeObjectPath(name string) string {
	segments := strings.Split(strings.TrimLeft(name, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
