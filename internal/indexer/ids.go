package indexer

import (
	"hash/fnv"
	"path/filepath"
	"strings"

	"github.com/genricoloni/medialib/internal/domain"
)

// Persistent ids are FNV-1a hashes of a namespaced key, so re-indexing the
// same library yields the same ids.
func hashID(namespace string, parts ...string) domain.PersistentID {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return domain.PersistentID(h.Sum64())
}

// SongID derives the id of the song stored at path
func SongID(path string) domain.PersistentID {
	return hashID("song", filepath.Clean(path))
}

// ArtistID derives an artist id from its name. Unnamed artists get 0.
func ArtistID(name string) domain.PersistentID {
	if name == "" {
		return 0
	}
	return hashID("artist", strings.ToLower(name))
}

// AlbumID derives an album id from its artist and title. Untitled albums get 0.
func AlbumID(artist, title string) domain.PersistentID {
	if title == "" {
		return 0
	}
	return hashID("album", strings.ToLower(artist), strings.ToLower(title))
}

// PlaylistID derives the id of the playlist file at path
func PlaylistID(path string) domain.PersistentID {
	return hashID("playlist", filepath.Clean(path))
}
