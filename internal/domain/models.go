package domain

import (
	"fmt"
	"strconv"
	"time"
)

// PersistentID is the store-assigned identity of a media entity.
// It travels over the wire as an opaque decimal string.
type PersistentID uint64

// String renders the id in its wire form
func (id PersistentID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParsePersistentID converts the wire form back into a PersistentID
func ParsePersistentID(s string) (PersistentID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid persistent id %q: %w", s, err)
	}
	return PersistentID(v), nil
}

// MediaItem is a single song as the store reports it.
// Pointer fields are optional: the store does not guarantee their presence.
type MediaItem struct {
	ID          PersistentID
	Title       *string
	Artist      *string
	ArtistID    PersistentID
	AlbumTitle  *string
	AlbumID     PersistentID
	AlbumArtist *string
	Duration    *time.Duration
	Artwork     Artwork
	LastPlayed  *time.Time
}

// Collection groups items: an album, an artist or a playlist
type Collection struct {
	ID    PersistentID
	Name  *string // playlist name; nil for albums and artists
	Items []MediaItem
}

// Representative returns the first item, in store order, for which complete
// reports true; that item stands for the whole collection. A nil complete
// accepts any item.
func (c Collection) Representative(complete func(MediaItem) bool) (MediaItem, bool) {
	for _, it := range c.Items {
		if complete == nil || complete(it) {
			return it, true
		}
	}
	return MediaItem{}, false
}

// QueryResult is what the store returns for a Query
type QueryResult struct {
	Items       []MediaItem
	Collections []Collection
}

// ArtworkTier is the edge length, in pixels, an artwork is rendered at
type ArtworkTier int

const (
	// TierLow is used for inline list thumbnails
	TierLow ArtworkTier = 174
	// TierHigh is used for single-entity detail views
	TierHigh ArtworkTier = 470
)

// AuthorizationStatus mirrors the media-library permission states
type AuthorizationStatus int

const (
	AuthorizationNotDetermined AuthorizationStatus = 0
	AuthorizationDenied        AuthorizationStatus = 1
	AuthorizationRestricted    AuthorizationStatus = 2
	AuthorizationAuthorized    AuthorizationStatus = 3
)

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationNotDetermined:
		return "notDetermined"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationRestricted:
		return "restricted"
	case AuthorizationAuthorized:
		return "authorized"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// PlayedTrack identifies a track reported by a media player
type PlayedTrack struct {
	Title  string
	Artist string
	Album  string
}

// PlayerStatus represents the current state of the media player
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlayerStatus = "Stopped"
)

// MediaMetadata contains information about the currently playing media
type MediaMetadata struct {
	// Player is the well-known bus name of the reporting player
	Player string
	// Title of the currently playing track
	Title string
	// Artist name
	Artist string
	// Album name
	Album string
	// Status is the current playback status
	Status PlayerStatus
}

// StringPtr is a small helper for building optional fields
func StringPtr(s string) *string {
	return &s
}
