package domain

import "strings"

// Kind selects which entity family a Query runs against
type Kind int

const (
	KindSongs Kind = iota
	KindAlbums
	KindArtists
	KindPlaylists
)

func (k Kind) String() string {
	switch k {
	case KindSongs:
		return "songs"
	case KindAlbums:
		return "albums"
	case KindArtists:
		return "artists"
	case KindPlaylists:
		return "playlists"
	default:
		return "unknown"
	}
}

// Property names a filterable field of a store entity
type Property string

const (
	PropertyTitle        Property = "title"
	PropertyArtist       Property = "artist"
	PropertyAlbumTitle   Property = "albumTitle"
	PropertyArtistID     Property = "artistId"
	PropertyAlbumID      Property = "albumId"
	PropertyPlaylistID   Property = "playlistId"
	PropertyPlaylistName Property = "playlistName"
)

// Comparison is the matching rule of a Predicate
type Comparison int

const (
	// ComparisonEqualTo is exact equality, used for identities
	ComparisonEqualTo Comparison = iota
	// ComparisonContains is a case-insensitive substring match
	ComparisonContains
)

// Predicate is a single filter the store applies.
// Value is a string for Contains and a PersistentID for EqualTo.
type Predicate struct {
	Property   Property
	Value      any
	Comparison Comparison
}

// Contains builds a text predicate
func Contains(p Property, text string) Predicate {
	return Predicate{Property: p, Value: text, Comparison: ComparisonContains}
}

// EqualTo builds an identity predicate
func EqualTo(p Property, id PersistentID) Predicate {
	return Predicate{Property: p, Value: id, Comparison: ComparisonEqualTo}
}

// Query is a filter for one entity family.
// All predicates must hold; no predicates matches everything.
type Query struct {
	Kind       Kind
	Predicates []Predicate
}

// ItemPredicates returns the predicates evaluated against songs.
// Playlist predicates are evaluated against the playlist itself.
func (q Query) ItemPredicates() []Predicate {
	var out []Predicate
	for _, p := range q.Predicates {
		if !p.Property.IsPlaylist() {
			out = append(out, p)
		}
	}
	return out
}

// PlaylistPredicates returns the predicates evaluated against playlists
func (q Query) PlaylistPredicates() []Predicate {
	var out []Predicate
	for _, p := range q.Predicates {
		if p.Property.IsPlaylist() {
			out = append(out, p)
		}
	}
	return out
}

// IsPlaylist reports whether the property belongs to a playlist rather than a song
func (p Property) IsPlaylist() bool {
	return p == PropertyPlaylistID || p == PropertyPlaylistName
}

// Match evaluates the predicate against a song. It is the reference semantics
// every store backend must reproduce.
func (p Predicate) Match(item MediaItem) bool {
	switch p.Comparison {
	case ComparisonContains:
		text, ok := p.Value.(string)
		if !ok {
			return false
		}
		var field *string
		switch p.Property {
		case PropertyTitle:
			field = item.Title
		case PropertyArtist:
			field = item.Artist
		case PropertyAlbumTitle:
			field = item.AlbumTitle
		}
		return field != nil && ContainsFold(*field, text)
	case ComparisonEqualTo:
		id, ok := p.Value.(PersistentID)
		if !ok {
			return false
		}
		switch p.Property {
		case PropertyArtistID:
			return item.ArtistID == id
		case PropertyAlbumID:
			return item.AlbumID == id
		}
	}
	return false
}

// MatchPlaylist evaluates a playlist predicate against a playlist id and name
func (p Predicate) MatchPlaylist(id PersistentID, name *string) bool {
	switch {
	case p.Property == PropertyPlaylistID && p.Comparison == ComparisonEqualTo:
		want, ok := p.Value.(PersistentID)
		return ok && want == id
	case p.Property == PropertyPlaylistName && p.Comparison == ComparisonContains:
		text, ok := p.Value.(string)
		return ok && name != nil && ContainsFold(*name, text)
	}
	return false
}

// MatchAll reports whether every predicate holds for the item
func MatchAll(preds []Predicate, item MediaItem) bool {
	for _, p := range preds {
		if !p.Match(item) {
			return false
		}
	}
	return true
}

// ContainsFold is a case-insensitive substring test
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
