// Package proxy converts remote and local images into data URIs so the
// gallery renders without tripping cross-origin restrictions. Results
// are cached with a TTL because the same gallery is typically resolved
// several times (display, export).
package proxy

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// maxImageBytes bounds a single fetched image (10 MiB, matching the
// backend's socket buffer ceiling).
const maxImageBytes = 10 << 20

// Client fetches URLs and returns base64 data URIs.
type Client struct {
	http   *http.Client
	cache  *gocache.Cache
	logger *slog.Logger
}

// New creates a proxy client. cacheTTL of zero keeps entries for 30
// minutes, purged hourly.
func New(timeout, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		cache:  gocache.New(cacheTTL, time.Hour),
		logger: logger,
	}
}

// Fetch returns a data URI for url. Data URIs pass through untouched.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if strings.HasPrefix(url, "data:") {
		return url, nil
	}
	if cached, ok := c.cache.Get(url); ok {
		return cached.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mimeType := contentType(resp.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = MIMEFromPath(url)
	}

	uri := encodeDataURI(mimeType, data)
	c.cache.Set(url, uri, gocache.DefaultExpiration)
	c.logger.Debug("image proxied", "url", url, "bytes", len(data), "mime", mimeType)
	return uri, nil
}

// FileDataURL loads a local image file as a data URI. Used for
// character reference assets stored beside the novel.
func FileDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image file: %w", err)
	}
	return encodeDataURI(MIMEFromPath(path), data), nil
}

// MIMEFromPath guesses an image MIME type from the file extension,
// defaulting to application/octet-stream.
func MIMEFromPath(p string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(p), ".")) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func contentType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}

func encodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
