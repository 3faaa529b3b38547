package domain

import "time"

// IndexedSong is a song as produced by the library indexer
type IndexedSong struct {
	ID          PersistentID
	Path        string
	Title       *string
	Artist      *string
	ArtistID    PersistentID
	AlbumTitle  *string
	AlbumID     PersistentID
	AlbumArtist *string
	TrackNumber int
	DiscNumber  int
	Duration    *time.Duration
	// ArtworkData holds an embedded picture, ArtworkURL a sidecar image reference.
	// At most one of them is set.
	ArtworkData []byte
	ArtworkURL  string
	LastPlayed  *time.Time
}

// IndexedPlaylist is a playlist as produced by the library indexer
type IndexedPlaylist struct {
	ID      PersistentID
	Name    string
	Path    string
	SongIDs []PersistentID
}
