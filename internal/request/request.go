// Package request turns the untyped argument bag of a call into one of the
// typed request variants.
package request

import (
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/paging"
)

// Method names accepted by the dispatcher
const (
	MethodAuthorize           = "authorize"
	MethodAuthorizationStatus = "authorizationStatus"
	MethodGetAlbum            = "getAlbum"
	MethodGetArtist           = "getArtist"
	MethodGetPlaylistSongs    = "getPlaylistSongs"
	MethodSearchSongs         = "searchSongs"
	MethodSearchAlbums        = "searchAlbums"
	MethodSearchArtists       = "searchArtists"
	MethodSearchPlaylists     = "searchPlaylists"
	MethodGetRecentTracks     = "getRecentTracks"
)

// Request is the closed set of typed requests
type Request interface {
	Method() string
}

// Search holds the filter and page shared by the search operations.
// Nil Query or ArtistID means no filter on that field.
type Search struct {
	Query    *string
	ArtistID *domain.PersistentID
	Page     paging.Page
}

// Authorize asks the permission system for access
type Authorize struct{}

// AuthorizationStatus reads the current permission state
type AuthorizationStatus struct{}

// GetAlbum looks up a single album with all its tracks
type GetAlbum struct {
	ID domain.PersistentID
}

// GetArtist looks up a single artist
type GetArtist struct {
	ID domain.PersistentID
}

// GetPlaylistSongs lists the songs of one playlist
type GetPlaylistSongs struct {
	PlaylistID domain.PersistentID
	Page       paging.Page
}

// SearchSongs matches songs by title and optionally by artist
type SearchSongs struct{ Search }

// SearchAlbums matches albums by title and optionally by artist
type SearchAlbums struct{ Search }

// SearchArtists matches artists by name; Query is always set
type SearchArtists struct{ Search }

// SearchPlaylists matches playlists by name; Query is always set
type SearchPlaylists struct{ Search }

// GetRecentTracks lists played songs, most recent first.
// A nil After means no lower bound.
type GetRecentTracks struct {
	Page  paging.Page
	After *time.Time
}

func (Authorize) Method() string           { return MethodAuthorize }
func (AuthorizationStatus) Method() string { return MethodAuthorizationStatus }
func (GetAlbum) Method() string            { return MethodGetAlbum }
func (GetArtist) Method() string           { return MethodGetArtist }
func (GetPlaylistSongs) Method() string    { return MethodGetPlaylistSongs }
func (SearchSongs) Method() string         { return MethodSearchSongs }
func (SearchAlbums) Method() string        { return MethodSearchAlbums }
func (SearchArtists) Method() string       { return MethodSearchArtists }
func (SearchPlaylists) Method() string     { return MethodSearchPlaylists }
func (GetRecentTracks) Method() string     { return MethodGetRecentTracks }
