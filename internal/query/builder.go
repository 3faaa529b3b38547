// Package query translates typed requests into store queries.
package query

import (
	"fmt"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/request"
)

// Build returns the store query for a request. Text filters use
// case-insensitive containment, identity filters use equality, and all
// predicates are ANDed by the store. Requests that do not query the store
// (authorize, authorizationStatus) are rejected.
func Build(req request.Request) (domain.Query, error) {
	switch r := req.(type) {
	case request.GetAlbum:
		return domain.Query{
			Kind:       domain.KindAlbums,
			Predicates: []domain.Predicate{domain.EqualTo(domain.PropertyAlbumID, r.ID)},
		}, nil

	case request.GetArtist:
		return domain.Query{
			Kind:       domain.KindArtists,
			Predicates: []domain.Predicate{domain.EqualTo(domain.PropertyArtistID, r.ID)},
		}, nil

	case request.GetPlaylistSongs:
		return domain.Query{
			Kind:       domain.KindPlaylists,
			Predicates: []domain.Predicate{domain.EqualTo(domain.PropertyPlaylistID, r.PlaylistID)},
		}, nil

	case request.SearchSongs:
		return search(domain.KindSongs, domain.PropertyTitle, r.Search), nil

	case request.SearchAlbums:
		return search(domain.KindAlbums, domain.PropertyAlbumTitle, r.Search), nil

	case request.SearchArtists:
		return search(domain.KindArtists, domain.PropertyArtist, r.Search), nil

	case request.SearchPlaylists:
		return search(domain.KindPlaylists, domain.PropertyPlaylistName, r.Search), nil

	case request.GetRecentTracks:
		// Date filtering and recency order are applied after the store query
		return domain.Query{Kind: domain.KindSongs}, nil
	}

	return domain.Query{}, fmt.Errorf("no store query for %s", req.Method())
}

func search(kind domain.Kind, text domain.Property, s request.Search) domain.Query {
	q := domain.Query{Kind: kind}
	if s.Query != nil {
		q.Predicates = append(q.Predicates, domain.Contains(text, *s.Query))
	}
	if s.ArtistID != nil {
		q.Predicates = append(q.Predicates, domain.EqualTo(domain.PropertyArtistID, *s.ArtistID))
	}
	return q
}
