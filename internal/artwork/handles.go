// Package artwork resolves artwork handles and renders them to size tiers.
package artwork

import (
	"context"

	"github.com/genricoloni/medialib/internal/domain"
)

// Bytes is an artwork handle over already loaded image data
type Bytes []byte

// Data returns the image data
func (b Bytes) Data(context.Context) ([]byte, error) {
	return b, nil
}

// Remote is an artwork handle resolved through a Fetcher on first use
type Remote struct {
	URL     string
	Fetcher domain.Fetcher
}

// Data fetches the image data
func (r Remote) Data(ctx context.Context) ([]byte, error) {
	return r.Fetcher.Fetch(ctx, r.URL)
}

// Loader is an artwork handle backed by a callback, used by stores that keep
// artwork out of the main query path
type Loader func(ctx context.Context) ([]byte, error)

// Data invokes the callback
func (l Loader) Data(ctx context.Context) ([]byte, error) {
	return l(ctx)
}
