package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/redcache"
)

// ImageFetcher converts an image URL into an inline-transmissible payload.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (string, error)
}

const maxImageBytes = 8 << 20 // 8 MB per image

// Fetcher downloads images over HTTP and encodes them as data URLs. When a
// redis client is supplied it is consulted first and populated after a fetch;
// redis failures degrade to a direct fetch, never to a turn failure.
type Fetcher struct {
	client *http.Client
	cache  *redcache.Client
}

func NewFetcher(cache *redcache.Client) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  cache,
	}
}

// FetchImage returns the image at url as a base64 data URL.
func (f *Fetcher) FetchImage(ctx context.Context, url string) (string, error) {
	if f.cache != nil {
		if encoded, err := f.cache.GetImage(ctx, url); err == nil {
			return encoded, nil
		} else if err != redcache.ErrCacheMiss {
			log.Printf("image cache read %s: %v", url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image %s exceeds %d bytes", url, maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}
	encoded := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))

	if f.cache != nil {
		if err := f.cache.SetImage(ctx, url, encoded); err != nil {
			log.Printf("image cache write %s: %v", url, err)
		}
	}
	return encoded, nil
}
