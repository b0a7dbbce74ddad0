package imagefetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"mycloset/internal/domain"
)

const defaultMaxBytes = 10 * 1024 * 1024

// Fetcher downloads source images (base photos, clothing shots) ahead of the
// AI call. Errors wrap domain.ErrDownload so the processor can classify them.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// New builds a Fetcher. A nil client gets a reusable one with a sane timeout.
func New(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch retrieves url and returns the raw bytes plus the reported MIME type.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request for %s: %w", url, domain.ErrDownload)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %v: %w", url, err, domain.ErrDownload)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch %s: status %d: %w", url, resp.StatusCode, domain.ErrDownload)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %v: %w", url, err, domain.ErrDownload)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("fetch %s: exceeds %d bytes: %w", url, f.maxBytes, domain.ErrDownload)
	}

	return data, contentType(resp.Header.Get("Content-Type")), nil
}

func contentType(header string) string {
	if header == "" {
		return "image/jpeg"
	}
	parsed, _, err := mime.ParseMediaType(header)
	if err != nil || parsed == "" {
		return "image/jpeg"
	}
	return parsed
}
