package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const _maxImageSize = 10 * 1024 * 1024 // 10 MB

// ArtworkFetcher loads artwork referenced by http(s) URLs, file:// URLs or
// plain local paths
type ArtworkFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewArtworkFetcher creates a new fetcher instance
func NewArtworkFetcher(logger *zap.Logger) *ArtworkFetcher {
	return &ArtworkFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second, // A slow artwork host must not stall a query
		},
	}
}

// Fetch returns image data for the given reference
func (f *ArtworkFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid artwork reference: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, ref)
	case "file":
		return f.readFile(ctx, u.Path)
	case "":
		return f.readFile(ctx, ref)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", u.Scheme)
	}
}

func (f *ArtworkFetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "medialib/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, fmt.Errorf("url is not an image: %s", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	f.logger.Debug("Artwork fetched", zap.Int("bytes", len(data)), zap.String("url", ref))
	return data, nil
}

func (f *ArtworkFetcher) readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artwork: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read artwork: %w", err)
	}

	f.logger.Debug("Artwork read", zap.Int("bytes", len(data)), zap.String("path", path))
	return data, nil
}
