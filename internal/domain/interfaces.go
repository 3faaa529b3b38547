package domain

import (
	"context"
	"time"
)

// Store is the media store adapter: it answers filtered queries over the
// library index. Implementations are read-only from the query path and safe
// for concurrent use.
//
//go:generate mockgen -destination=mocks/store_mock.go -package=mocks github.com/genricoloni/medialib/internal/domain Store
type Store interface {
	// Query returns the entities of q.Kind matching every predicate, in store order
	Query(ctx context.Context, q Query) (*QueryResult, error)

	// Close releases the underlying index
	Close() error
}

// IndexWriter is implemented by stores the library indexer can populate
type IndexWriter interface {
	// IndexSongs adds or replaces a batch of songs
	IndexSongs(ctx context.Context, batch []IndexedSong) error

	// IndexPlaylist adds or replaces a playlist and its ordered song ids
	IndexPlaylist(ctx context.Context, playlist IndexedPlaylist) error
}

// HistoryWriter is implemented by stores that track when a song was last played
type HistoryWriter interface {
	// MarkPlayed sets the last-played time of songs matching the track.
	// Returns the number of songs updated.
	MarkPlayed(ctx context.Context, track PlayedTrack, at time.Time) (int, error)
}

// Artwork is a lazily materialized artwork handle
type Artwork interface {
	// Data returns the encoded source image
	Data(ctx context.Context) ([]byte, error)
}

// ArtworkRenderer turns an artwork handle into a base64 PNG of the given tier
type ArtworkRenderer interface {
	Render(ctx context.Context, art Artwork, tier ArtworkTier) (string, error)
}

// Authorizer is the external permission system guarding the media library
//
//go:generate mockgen -destination=mocks/authorizer_mock.go -package=mocks github.com/genricoloni/medialib/internal/domain Authorizer
type Authorizer interface {
	// Status returns the current grant without prompting
	Status(ctx context.Context) (AuthorizationStatus, error)

	// Request prompts for access and blocks until the user answers
	Request(ctx context.Context) (AuthorizationStatus, error)
}

// Monitor defines the interface for monitoring media playback events
// Implementations should handle D-Bus/MPRIS communication
type Monitor interface {
	// Start begins monitoring for media events
	// It should block until context is cancelled or an error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the monitor
	Stop(ctx context.Context) error

	// Events returns a read-only channel that emits MediaMetadata
	// when media playback state changes
	Events() <-chan MediaMetadata
}

// Fetcher defines the interface for retrieving artwork bytes
type Fetcher interface {
	// Fetch downloads or reads image data from a URL or local path
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}
