//go:build !cgo

package sqlite

import (
	"context"
	"fmt"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

// Open reports the store as unavailable: the sqlite driver needs cgo
func Open(ctx context.Context, logger *zap.Logger, path string, fetcher domain.Fetcher) (*Store, error) {
	return nil, fmt.Errorf("%w: sqlite backend built without cgo", domain.ErrCapabilityUnavailable)
}
