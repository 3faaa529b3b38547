// Package projector maps store entities to the wire DTOs of each operation.
// Required fields that are absent exclude the entity; optional fields that
// are absent, or artwork that fails to render, are simply left out.
package projector

import (
	"context"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/encoder"
	"go.uber.org/zap"
)

// Projector builds DTOs, rendering artwork through the renderer
type Projector struct {
	logger   *zap.Logger
	renderer domain.ArtworkRenderer
}

// NewProjector creates a new projector
func NewProjector(logger *zap.Logger, renderer domain.ArtworkRenderer) *Projector {
	return &Projector{
		logger:   logger,
		renderer: renderer,
	}
}

// IsSong reports whether an item can appear in song-producing results
func IsSong(item domain.MediaItem) bool {
	return item.Title != nil && item.Artist != nil
}

// IsPlayedSong additionally requires a last-played time
func IsPlayedSong(item domain.MediaItem) bool {
	return IsSong(item) && item.LastPlayed != nil
}

// IsAlbum reports whether a collection has what an Album needs: at least one
// track carrying both an album title and an artist
func IsAlbum(c domain.Collection) bool {
	_, ok := c.Representative(albumTrack)
	return ok
}

// IsArtist reports whether any item of the collection names the artist
func IsArtist(c domain.Collection) bool {
	_, ok := c.Representative(artistTrack)
	return ok
}

func albumTrack(it domain.MediaItem) bool {
	return it.AlbumTitle != nil && it.Artist != nil
}

func artistTrack(it domain.MediaItem) bool {
	return it.Artist != nil
}

// IsPlaylist reports whether a collection has what a Playlist needs
func IsPlaylist(c domain.Collection) bool {
	return c.Name != nil
}

// Songs projects items into songs, with artwork at the tier when tier > 0.
// Items failing IsSong are dropped.
func (p *Projector) Songs(ctx context.Context, items []domain.MediaItem, tier domain.ArtworkTier) []Song {
	out := make([]Song, 0, len(items))
	for _, item := range items {
		if !IsSong(item) {
			continue
		}
		out = append(out, Song{
			Title:            *item.Title,
			Artist:           *item.Artist,
			Album:            item.AlbumTitle,
			AlbumArtist:      item.AlbumArtist,
			PlaybackDuration: seconds(item),
			Artwork:          p.artwork(ctx, item.Artwork, tier),
		})
	}
	return out
}

// PlayedSongs projects items into played songs. Items failing IsPlayedSong are dropped.
func (p *Projector) PlayedSongs(ctx context.Context, items []domain.MediaItem, tier domain.ArtworkTier) []PlayedSong {
	out := make([]PlayedSong, 0, len(items))
	for _, item := range items {
		if !IsPlayedSong(item) {
			continue
		}
		out = append(out, PlayedSong{
			Title:            *item.Title,
			Artist:           *item.Artist,
			Album:            item.AlbumTitle,
			AlbumArtist:      item.AlbumArtist,
			PlaybackDuration: seconds(item),
			Artwork:          p.artwork(ctx, item.Artwork, tier),
			LastPlayedDate:   encoder.Timestamp(*item.LastPlayed),
		})
	}
	return out
}

// Albums projects album collections. Collections failing IsAlbum are dropped.
func (p *Projector) Albums(ctx context.Context, albums []domain.Collection, tier domain.ArtworkTier) []Album {
	out := make([]Album, 0, len(albums))
	for _, c := range albums {
		if a, ok := p.Album(ctx, c, tier); ok {
			out = append(out, a)
		}
	}
	return out
}

// Album projects one album collection
func (p *Projector) Album(ctx context.Context, c domain.Collection, tier domain.ArtworkTier) (Album, bool) {
	rep, ok := c.Representative(albumTrack)
	if !ok {
		return Album{}, false
	}
	return Album{
		ID:       rep.AlbumID.String(),
		Title:    *rep.AlbumTitle,
		Artist:   *rep.Artist,
		ArtistID: rep.ArtistID.String(),
		Artwork:  p.artwork(ctx, rep.Artwork, tier),
	}, true
}

// FullAlbum projects an album and every track in tracks, unpaginated.
// Tracks carry no artwork.
func (p *Projector) FullAlbum(ctx context.Context, c domain.Collection, tracks []domain.MediaItem) (FullAlbum, bool) {
	album, ok := p.Album(ctx, c, domain.TierHigh)
	if !ok {
		return FullAlbum{}, false
	}
	return FullAlbum{
		ID:       album.ID,
		Title:    album.Title,
		Artist:   album.Artist,
		ArtistID: album.ArtistID,
		Artwork:  album.Artwork,
		Tracks:   p.Songs(ctx, tracks, 0),
	}, true
}

// Artists projects artist collections. Collections failing IsArtist are dropped.
func (p *Projector) Artists(ctx context.Context, artists []domain.Collection, tier domain.ArtworkTier) []Artist {
	out := make([]Artist, 0, len(artists))
	for _, c := range artists {
		if a, ok := p.Artist(ctx, c, tier); ok {
			out = append(out, a)
		}
	}
	return out
}

// Artist projects one artist collection
func (p *Projector) Artist(ctx context.Context, c domain.Collection, tier domain.ArtworkTier) (Artist, bool) {
	rep, ok := c.Representative(artistTrack)
	if !ok {
		return Artist{}, false
	}
	return Artist{
		ID:      rep.ArtistID.String(),
		Name:    *rep.Artist,
		Artwork: p.artwork(ctx, rep.Artwork, tier),
	}, true
}

// Playlists projects playlist collections. Collections failing IsPlaylist are dropped.
func (p *Projector) Playlists(playlists []domain.Collection) []Playlist {
	out := make([]Playlist, 0, len(playlists))
	for _, c := range playlists {
		if !IsPlaylist(c) {
			continue
		}
		out = append(out, Playlist{ID: c.ID.String(), Title: *c.Name})
	}
	return out
}

// artwork renders the handle, or returns "" when there is none or it fails
func (p *Projector) artwork(ctx context.Context, art domain.Artwork, tier domain.ArtworkTier) string {
	if art == nil || tier <= 0 || p.renderer == nil {
		return ""
	}
	encoded, err := p.renderer.Render(ctx, art, tier)
	if err != nil {
		p.logger.Debug("Artwork omitted", zap.Int("tier", int(tier)), zap.Error(err))
		return ""
	}
	return encoded
}

func seconds(item domain.MediaItem) *float64 {
	if item.Duration == nil {
		return nil
	}
	s := item.Duration.Seconds()
	return &s
}
