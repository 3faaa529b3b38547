package projector

import "github.com/genricoloni/medialib/internal/encoder"

// Song is the wire shape of a track in lists
type Song struct {
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       *string `json:"album,omitempty"`
	AlbumArtist *string `json:"albumArtist,omitempty"`
	// PlaybackDuration is in seconds
	PlaybackDuration *float64 `json:"playbackDuration,omitempty"`
	Artwork          string   `json:"artwork,omitempty"`
}

// PlayedSong is a Song with the time it was last played
type PlayedSong struct {
	Title            string            `json:"title"`
	Artist           string            `json:"artist"`
	Album            *string           `json:"album,omitempty"`
	AlbumArtist      *string           `json:"albumArtist,omitempty"`
	PlaybackDuration *float64          `json:"playbackDuration,omitempty"`
	Artwork          string            `json:"artwork,omitempty"`
	LastPlayedDate   encoder.Timestamp `json:"lastPlayedDate"`
}

// Album is an album summary as listed by searchAlbums
type Album struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ArtistID string `json:"artistId"`
	Artwork  string `json:"artwork,omitempty"`
}

// FullAlbum is an Album with every one of its tracks
type FullAlbum struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ArtistID string `json:"artistId"`
	Artwork  string `json:"artwork,omitempty"`
	Tracks   []Song `json:"tracks"`
}

// Artist identifies an artist, with artwork from one of their tracks
type Artist struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artwork string `json:"artwork,omitempty"`
}

// Playlist identifies a playlist by id and name
type Playlist struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
