// Package memory is an in-process media store. It keeps the library in
// slices and evaluates predicates with domain.Predicate.Match.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/medialib/internal/artwork"
	"github.com/genricoloni/medialib/internal/domain"
)

type playlist struct {
	id    domain.PersistentID
	name  *string
	songs []domain.PersistentID
}

// Store holds songs and playlists in memory
type Store struct {
	mu        sync.RWMutex
	songs     []domain.MediaItem // sorted by ID
	playlists []playlist         // sorted by ID
	fetcher   domain.Fetcher
}

// New creates an empty store. The fetcher resolves artwork URLs of indexed
// songs and may be nil when only embedded artwork is used.
func New(fetcher domain.Fetcher) *Store {
	return &Store{fetcher: fetcher}
}

// AddSongs inserts or replaces songs by ID
func (s *Store) AddSongs(items ...domain.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		i, found := slices.BinarySearchFunc(s.songs, it.ID, func(e domain.MediaItem, id domain.PersistentID) int {
			return cmpID(e.ID, id)
		})
		if found {
			s.songs[i] = it
		} else {
			s.songs = slices.Insert(s.songs, i, it)
		}
	}
}

// AddPlaylist inserts or replaces a playlist
func (s *Store) AddPlaylist(id domain.PersistentID, name *string, songIDs ...domain.PersistentID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := playlist{id: id, name: name, songs: slices.Clone(songIDs)}
	i, found := slices.BinarySearchFunc(s.playlists, id, func(e playlist, id domain.PersistentID) int {
		return cmpID(e.id, id)
	})
	if found {
		s.playlists[i] = p
	} else {
		s.playlists = slices.Insert(s.playlists, i, p)
	}
}

// Query implements domain.Store
func (s *Store) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if q.Kind == domain.KindPlaylists {
		return s.queryPlaylists(q), nil
	}

	preds := q.ItemPredicates()
	var matched []domain.MediaItem
	for _, it := range s.songs {
		if domain.MatchAll(preds, it) {
			matched = append(matched, it)
		}
	}
	return domain.GroupItems(q.Kind, matched), nil
}

func (s *Store) queryPlaylists(q domain.Query) *domain.QueryResult {
	preds := q.PlaylistPredicates()
	var out []domain.Collection

	for _, p := range s.playlists {
		ok := true
		for _, pred := range preds {
			if !pred.MatchPlaylist(p.id, p.name) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		c := domain.Collection{ID: p.id, Name: p.name}
		for _, id := range p.songs {
			if it, found := s.song(id); found {
				c.Items = append(c.Items, it)
			}
		}
		out = append(out, c)
	}
	return domain.PlaylistResult(out)
}

func (s *Store) song(id domain.PersistentID) (domain.MediaItem, bool) {
	i, found := slices.BinarySearchFunc(s.songs, id, func(e domain.MediaItem, id domain.PersistentID) int {
		return cmpID(e.ID, id)
	})
	if !found {
		return domain.MediaItem{}, false
	}
	return s.songs[i], true
}

// IndexSongs implements domain.IndexWriter
func (s *Store) IndexSongs(ctx context.Context, batch []domain.IndexedSong) error {
	items := make([]domain.MediaItem, 0, len(batch))
	for _, song := range batch {
		it := domain.MediaItem{
			ID:          song.ID,
			Title:       song.Title,
			Artist:      song.Artist,
			ArtistID:    song.ArtistID,
			AlbumTitle:  song.AlbumTitle,
			AlbumID:     song.AlbumID,
			AlbumArtist: song.AlbumArtist,
			Duration:    song.Duration,
			LastPlayed:  song.LastPlayed,
		}
		switch {
		case len(song.ArtworkData) > 0:
			it.Artwork = artwork.Bytes(song.ArtworkData)
		case song.ArtworkURL != "" && s.fetcher != nil:
			it.Artwork = artwork.Remote{URL: song.ArtworkURL, Fetcher: s.fetcher}
		}
		items = append(items, it)
	}
	s.AddSongs(items...)
	return nil
}

// IndexPlaylist implements domain.IndexWriter
func (s *Store) IndexPlaylist(ctx context.Context, p domain.IndexedPlaylist) error {
	var name *string
	if p.Name != "" {
		name = domain.StringPtr(p.Name)
	}
	s.AddPlaylist(p.ID, name, p.SongIDs...)
	return nil
}

// MarkPlayed implements domain.HistoryWriter
func (s *Store) MarkPlayed(ctx context.Context, track domain.PlayedTrack, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.songs {
		if matchesTrack(s.songs[i], track) {
			played := at
			s.songs[i].LastPlayed = &played
			n++
		}
	}
	return n, nil
}

// Close implements domain.Store
func (s *Store) Close() error {
	return nil
}

func matchesTrack(it domain.MediaItem, track domain.PlayedTrack) bool {
	if it.Title == nil || it.Artist == nil {
		return false
	}
	if !strings.EqualFold(*it.Title, track.Title) || !strings.EqualFold(*it.Artist, track.Artist) {
		return false
	}
	if track.Album != "" && it.AlbumTitle != nil && !strings.EqualFold(*it.AlbumTitle, track.Album) {
		return false
	}
	return true
}

func cmpID(a, b domain.PersistentID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
