package images

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/webp"
)

const sniffBytes = 512

// HeadProber checks existence with an HTTP HEAD on the object's public URL.
type HeadProber struct {
	urls       PublicURLer
	httpClient *http.Client
}

func NewHeadProber(urls PublicURLer, httpClient *http.Client) *HeadProber {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HeadProber{urls: urls, httpClient: httpClient}
}

func (p *HeadProber) Exists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.urls.PublicURL(name), nil)
	if err != nil {
		return false, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// DecodeProber counts an object as present only when its body decodes as an
// image. Raster formats are checked through image.DecodeConfig; svg is
// recognised by its leading markup.
type DecodeProber struct {
	urls       PublicURLer
	httpClient *http.Client
}

func NewDecodeProber(urls PublicURLer, httpClient *http.Client) *DecodeProber {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DecodeProber{urls: urls, httpClient: httpClient}
}

func (p *DecodeProber) Exists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.urls.PublicURL(name), nil)
	if err != nil {
		return false, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	body := bufio.NewReader(resp.Body)
	if KindOf(name) == KindVector {
		head, err := body.Peek(sniffBytes)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return false, fmt.Errorf("read %s: %w", name, err)
		}
		return looksLikeSVG(head), nil
	}

	if _, _, err := image.DecodeConfig(body); err != nil {
		return false, nil
	}
	return true, nil
}

func looksLikeSVG(head []byte) bool {
	head = bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")))
	return bytes.HasPrefix(head, []byte("<svg")) ||
		bytes.HasPrefix(head, []byte("<?xml")) ||
		bytes.Contains(head, []byte("<svg"))
}
