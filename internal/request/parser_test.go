package request

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/paging"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   any
		check  func(t *testing.T, r Request)
	}{
		{
			name:   "authorize ignores arguments",
			method: MethodAuthorize,
			args:   nil,
			check: func(t *testing.T, r Request) {
				if _, ok := r.(Authorize); !ok {
					t.Errorf("expected Authorize, got %T", r)
				}
			},
		},
		{
			name:   "authorization status",
			method: MethodAuthorizationStatus,
			check: func(t *testing.T, r Request) {
				if _, ok := r.(AuthorizationStatus); !ok {
					t.Errorf("expected AuthorizationStatus, got %T", r)
				}
			},
		},
		{
			name:   "get album",
			method: MethodGetAlbum,
			args:   map[string]any{"id": "42"},
			check: func(t *testing.T, r Request) {
				if got := r.(GetAlbum).ID; got != 42 {
					t.Errorf("ID: want 42, got %d", got)
				}
			},
		},
		{
			name:   "get artist with max uint64 id",
			method: MethodGetArtist,
			args:   map[string]any{"id": "18446744073709551615"},
			check: func(t *testing.T, r Request) {
				if got := r.(GetArtist).ID; got != ^domain.PersistentID(0) {
					t.Errorf("ID: got %d", got)
				}
			},
		},
		{
			name:   "search songs with null filters",
			method: MethodSearchSongs,
			args:   map[string]any{"query": nil, "artistId": nil, "limit": 10, "page": 1},
			check: func(t *testing.T, r Request) {
				s := r.(SearchSongs)
				if s.Query != nil || s.ArtistID != nil {
					t.Errorf("expected no filters, got %+v", s.Search)
				}
				if s.Page != (paging.Page{Limit: 10, Page: 1}) {
					t.Errorf("page: %+v", s.Page)
				}
			},
		},
		{
			name:   "search albums with both filters and float numbers",
			method: MethodSearchAlbums,
			args:   map[string]any{"query": "Abbey", "artistId": "7", "limit": float64(5), "page": float64(2)},
			check: func(t *testing.T, r Request) {
				s := r.(SearchAlbums)
				if s.Query == nil || *s.Query != "Abbey" {
					t.Errorf("query: %v", s.Query)
				}
				if s.ArtistID == nil || *s.ArtistID != 7 {
					t.Errorf("artistId: %v", s.ArtistID)
				}
				if s.Page != (paging.Page{Limit: 5, Page: 2}) {
					t.Errorf("page: %+v", s.Page)
				}
			},
		},
		{
			name:   "search artists without artistId key",
			method: MethodSearchArtists,
			args:   map[string]any{"query": "Bea", "limit": int32(3), "page": int64(1)},
			check: func(t *testing.T, r Request) {
				s := r.(SearchArtists)
				if s.Query == nil || *s.Query != "Bea" || s.ArtistID != nil {
					t.Errorf("unexpected search: %+v", s.Search)
				}
			},
		},
		{
			name:   "search playlists",
			method: MethodSearchPlaylists,
			args:   map[string]any{"query": "Gym", "limit": json.Number("10"), "page": 2},
			check: func(t *testing.T, r Request) {
				s := r.(SearchPlaylists)
				if *s.Query != "Gym" || s.Page.Page != 2 || s.Page.Limit != 10 {
					t.Errorf("unexpected search: %+v", s.Search)
				}
			},
		},
		{
			name:   "playlist songs take the id from query",
			method: MethodGetPlaylistSongs,
			args:   map[string]any{"query": "99", "limit": 20, "page": 1},
			check: func(t *testing.T, r Request) {
				p := r.(GetPlaylistSongs)
				if p.PlaylistID != 99 {
					t.Errorf("playlist id: %d", p.PlaylistID)
				}
			},
		},
		{
			name:   "recent tracks without after",
			method: MethodGetRecentTracks,
			args:   map[string]any{"limit": 5, "page": 1},
			check: func(t *testing.T, r Request) {
				if r.(GetRecentTracks).After != nil {
					t.Error("expected no lower bound")
				}
			},
		},
		{
			name:   "recent tracks with after in milliseconds",
			method: MethodGetRecentTracks,
			args:   map[string]any{"limit": 5, "page": 1, "after": 1700000000123.0},
			check: func(t *testing.T, r Request) {
				after := r.(GetRecentTracks).After
				if after == nil || after.UnixMilli() != 1700000000123 {
					t.Errorf("after: %v", after)
				}
			},
		},
		{
			name:   "after past the millisecond range saturates",
			method: MethodGetRecentTracks,
			args:   map[string]any{"limit": 5, "page": 1, "after": 1e19},
			check: func(t *testing.T, r Request) {
				after := r.(GetRecentTracks).After
				if after == nil || after.UnixMilli() != math.MaxInt64 {
					t.Errorf("after: want max millis, got %v", after)
				}
			},
		},
		{
			name:   "after as huge json number saturates",
			method: MethodGetRecentTracks,
			args:   map[string]any{"limit": 5, "page": 1, "after": json.Number("9.3e18")},
			check: func(t *testing.T, r Request) {
				after := r.(GetRecentTracks).After
				if after == nil || after.UnixMilli() != math.MaxInt64 {
					t.Errorf("after: want max millis, got %v", after)
				}
			},
		},
		{
			name:   "after far in the past saturates",
			method: MethodGetRecentTracks,
			args:   map[string]any{"limit": 5, "page": 1, "after": -1e300},
			check: func(t *testing.T, r Request) {
				after := r.(GetRecentTracks).After
				if after == nil || after.UnixMilli() != math.MinInt64 {
					t.Errorf("after: want min millis, got %v", after)
				}
			},
		},
		{
			name:   "integral json numbers in float syntax",
			method: MethodSearchSongs,
			args:   map[string]any{"query": nil, "artistId": nil, "limit": json.Number("10.0"), "page": json.Number("2e0")},
			check: func(t *testing.T, r Request) {
				if p := r.(SearchSongs).Page; p.Limit != 10 || p.Page != 2 {
					t.Errorf("page: %+v", p)
				}
			},
		},
		{
			name:   "large integral float matches the int64 path",
			method: MethodSearchSongs,
			args:   map[string]any{"query": nil, "artistId": nil, "limit": 3e9, "page": int64(3e9)},
			check: func(t *testing.T, r Request) {
				if p := r.(SearchSongs).Page; p.Limit != 3e9 || p.Page != 3e9 {
					t.Errorf("page: %+v", p)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.method, tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Method() != tt.method {
				t.Errorf("Method(): want %s, got %s", tt.method, r.Method())
			}
			tt.check(t, r)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   any
	}{
		{"absent arguments", MethodGetAlbum, nil},
		{"arguments not a map", MethodGetAlbum, []string{"42"}},
		{"missing id", MethodGetAlbum, map[string]any{}},
		{"id not a string", MethodGetArtist, map[string]any{"id": 42}},
		{"id not numeric", MethodGetArtist, map[string]any{"id": "forty-two"}},
		{"missing query key", MethodSearchSongs, map[string]any{"artistId": nil, "limit": 1, "page": 1}},
		{"missing artistId key", MethodSearchAlbums, map[string]any{"query": nil, "limit": 1, "page": 1}},
		{"query wrong type", MethodSearchSongs, map[string]any{"query": 5, "artistId": nil, "limit": 1, "page": 1}},
		{"artistId not an id", MethodSearchSongs, map[string]any{"query": nil, "artistId": "x", "limit": 1, "page": 1}},
		{"missing limit", MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "page": 1}},
		{"string limit", MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "limit": "10", "page": 1}},
		{"fractional page", MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "limit": 10, "page": 1.5}},
		{"fractional json limit", MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "limit": json.Number("10.5"), "page": 1}},
		{"limit past int64", MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "limit": 1e19, "page": 1}},
		{"zero limit", MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "limit": 0, "page": 1}},
		{"negative page", MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "limit": 1, "page": -1}},
		{"null query for artists", MethodSearchArtists, map[string]any{"query": nil, "limit": 1, "page": 1}},
		{"null query for playlists", MethodSearchPlaylists, map[string]any{"query": nil, "limit": 1, "page": 1}},
		{"playlist id missing", MethodGetPlaylistSongs, map[string]any{"limit": 1, "page": 1}},
		{"recent tracks missing page", MethodGetRecentTracks, map[string]any{"limit": 1}},
		{"after not a number", MethodGetRecentTracks, map[string]any{"limit": 1, "page": 1, "after": "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.method, tt.args)
			if err == nil {
				t.Fatalf("expected error, got %#v", r)
			}
			if !errors.Is(err, domain.ErrMalformedRequest) {
				t.Errorf("expected ErrMalformedRequest, got %v", err)
			}
			if r != nil {
				t.Errorf("expected nil request on failure, got %#v", r)
			}
		})
	}
}

func TestParse_UnknownMethod(t *testing.T) {
	_, err := Parse("playSong", map[string]any{})
	if !errors.Is(err, domain.ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
}

// Parsing is total: any successful search parse satisfies limit > 0 and page >= 1.
func TestParse_Totality(t *testing.T) {
	values := []any{nil, 0, 1, -3, 2.0, 2.5, "7", int64(9), uint8(4), true, time.Second}
	for _, limit := range values {
		for _, page := range values {
			r, err := Parse(MethodSearchSongs, map[string]any{"query": nil, "artistId": nil, "limit": limit, "page": page})
			if err != nil {
				if !errors.Is(err, domain.ErrMalformedRequest) {
					t.Fatalf("limit=%v page=%v: unexpected error kind %v", limit, page, err)
				}
				continue
			}
			p := r.(SearchSongs).Page
			if p.Validate() != nil {
				t.Fatalf("limit=%v page=%v: produced invalid page %+v", limit, page, p)
			}
		}
	}
}
