// Package paging slices ordered result sets into 1-based pages.
package paging

import (
	"fmt"

	"github.com/genricoloni/medialib/internal/domain"
)

// Page describes a slice request: limit items per page, 1-based page number
type Page struct {
	Limit int
	Page  int
}

// Validate rejects non-positive limits and pages
func (p Page) Validate() error {
	if p.Limit <= 0 || p.Page <= 0 {
		return fmt.Errorf("%w: limit=%d page=%d", domain.ErrInvalidPagination, p.Limit, p.Page)
	}
	return nil
}

// Bounds returns the half-open index range [start, end) of the page within a
// sequence of length n. Pages past the end yield an empty range.
func (p Page) Bounds(n int) (start, end int, err error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}

	// Guard against overflow for absurd page numbers
	if p.Page-1 > n/p.Limit {
		return n, n, nil
	}

	start = (p.Page - 1) * p.Limit
	if start >= n {
		return n, n, nil
	}
	end = start + p.Limit
	if end > n || end < start {
		end = n
	}
	return start, end, nil
}

// Slice returns the page of items. The result shares storage with items.
func Slice[T any](items []T, p Page) ([]T, error) {
	start, end, err := p.Bounds(len(items))
	if err != nil {
		return nil, err
	}
	return items[start:end], nil
}
