package fulltext

import (
	"context"
	"testing"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMem(zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	dur := 3 * time.Minute
	songs := []domain.IndexedSong{
		{ID: 3, Title: domain.StringPtr("Blue"), Artist: domain.StringPtr("Joni Mitchell"), ArtistID: 20, AlbumTitle: domain.StringPtr("Blue"), AlbumID: 200},
		{ID: 1, Title: domain.StringPtr("Mellow Yellow"), Artist: domain.StringPtr("Donovan"), ArtistID: 10, AlbumTitle: domain.StringPtr("Mellow Yellow"), AlbumID: 100, Duration: &dur, ArtworkData: []byte("cover")},
		{ID: 2, Title: domain.StringPtr("Yellow Submarine"), Artist: domain.StringPtr("The Beatles"), ArtistID: 30, AlbumTitle: domain.StringPtr("Revolver"), AlbumID: 300},
		{ID: 18000000000000000000, Title: domain.StringPtr("Big Yellow Taxi"), Artist: domain.StringPtr("Joni Mitchell"), ArtistID: 20, AlbumID: 201},
		{ID: 5, Title: nil, Artist: domain.StringPtr("Anonymous"), ArtistID: 40},
		{ID: 6, Title: domain.StringPtr("Yell*w"), Artist: domain.StringPtr("Wildcard"), ArtistID: 50},
	}
	ctx := context.Background()
	if err := s.IndexSongs(ctx, songs); err != nil {
		t.Fatalf("IndexSongs: %v", err)
	}
	if err := s.IndexPlaylist(ctx, domain.IndexedPlaylist{ID: 7, Name: "Gym", SongIDs: []domain.PersistentID{2, 1, 99}}); err != nil {
		t.Fatalf("IndexPlaylist: %v", err)
	}
	if err := s.IndexPlaylist(ctx, domain.IndexedPlaylist{ID: 8, Name: "Sleep", SongIDs: []domain.PersistentID{3}}); err != nil {
		t.Fatalf("IndexPlaylist: %v", err)
	}
	return s
}

func itemIDs(items []domain.MediaItem) []domain.PersistentID {
	out := make([]domain.PersistentID, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func equalIDs(a, b []domain.PersistentID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQuery(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name       string
		query      domain.Query
		wantItems  []domain.PersistentID
		wantGroups []domain.PersistentID
	}{
		{
			name:      "Contains is case-insensitive and keeps unsigned id order",
			query:     domain.Query{Kind: domain.KindSongs, Predicates: []domain.Predicate{domain.Contains(domain.PropertyTitle, "YELLOW")}},
			wantItems: []domain.PersistentID{1, 2, 18000000000000000000},
		},
		{
			name:      "Wildcard characters in the filter match literally",
			query:     domain.Query{Kind: domain.KindSongs, Predicates: []domain.Predicate{domain.Contains(domain.PropertyTitle, "l*w")}},
			wantItems: []domain.PersistentID{6},
		},
		{
			name:      "All songs",
			query:     domain.Query{Kind: domain.KindSongs},
			wantItems: []domain.PersistentID{1, 2, 3, 5, 6, 18000000000000000000},
		},
		{
			name: "Id equality and text together",
			query: domain.Query{Kind: domain.KindAlbums, Predicates: []domain.Predicate{
				domain.EqualTo(domain.PropertyArtistID, 20),
				domain.Contains(domain.PropertyTitle, "b"),
			}},
			wantItems:  []domain.PersistentID{3, 18000000000000000000},
			wantGroups: []domain.PersistentID{200, 201},
		},
		{
			name:       "Playlist by name",
			query:      domain.Query{Kind: domain.KindPlaylists, Predicates: []domain.Predicate{domain.Contains(domain.PropertyPlaylistName, "gy")}},
			wantItems:  []domain.PersistentID{2, 1},
			wantGroups: []domain.PersistentID{7},
		},
		{
			name:       "Playlist by id",
			query:      domain.Query{Kind: domain.KindPlaylists, Predicates: []domain.Predicate{domain.EqualTo(domain.PropertyPlaylistID, 8)}},
			wantItems:  []domain.PersistentID{3},
			wantGroups: []domain.PersistentID{8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Query(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := itemIDs(res.Items); !equalIDs(got, tt.wantItems) {
				t.Errorf("items: want %v, got %v", tt.wantItems, got)
			}
			if tt.wantGroups == nil {
				return
			}
			groups := make([]domain.PersistentID, 0, len(res.Collections))
			for _, c := range res.Collections {
				groups = append(groups, c.ID)
			}
			if !equalIDs(groups, tt.wantGroups) {
				t.Errorf("collections: want %v, got %v", tt.wantGroups, groups)
			}
		})
	}
}

func TestQuery_Fields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Query(ctx, domain.Query{Kind: domain.KindSongs, Predicates: []domain.Predicate{domain.EqualTo(domain.PropertyAlbumID, 100)}})
	if err != nil || len(res.Items) != 1 {
		t.Fatalf("expected one song, got %v (%v)", res, err)
	}
	it := res.Items[0]
	if *it.Title != "Mellow Yellow" || it.AlbumArtist != nil {
		t.Errorf("unexpected item: %+v", it)
	}
	if it.Duration == nil || *it.Duration != 3*time.Minute {
		t.Errorf("duration: %v", it.Duration)
	}
	if it.Artwork == nil {
		t.Fatal("expected artwork handle")
	}
	data, err := it.Artwork.Data(ctx)
	if err != nil || string(data) != "cover" {
		t.Errorf("artwork: %q (%v)", data, err)
	}

	res, _ = s.Query(ctx, domain.Query{Kind: domain.KindSongs, Predicates: []domain.Predicate{domain.EqualTo(domain.PropertyArtistID, 40)}})
	if len(res.Items) != 1 || res.Items[0].Title != nil {
		t.Errorf("missing title must stay absent: %+v", res.Items)
	}
}

func TestMarkPlayed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.UnixMilli(1700000000000)

	n, err := s.MarkPlayed(ctx, domain.PlayedTrack{Title: "mellow yellow", Artist: "DONOVAN"}, at)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 update, got %d (%v)", n, err)
	}

	// Re-indexing without a play time keeps the recorded one
	title := "Mellow Yellow"
	if err := s.IndexSongs(ctx, []domain.IndexedSong{{ID: 1, Title: &title, Artist: domain.StringPtr("Donovan"), ArtistID: 10, AlbumID: 100}}); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	res, _ := s.Query(ctx, domain.Query{Kind: domain.KindSongs, Predicates: []domain.Predicate{domain.EqualTo(domain.PropertyAlbumID, 100)}})
	if len(res.Items) != 1 || res.Items[0].LastPlayed == nil || !res.Items[0].LastPlayed.Equal(at) {
		t.Errorf("last played lost: %+v", res.Items)
	}

	n, _ = s.MarkPlayed(ctx, domain.PlayedTrack{Title: "Unknown", Artist: "Nobody"}, at)
	if n != 0 {
		t.Errorf("expected no updates, got %d", n)
	}
}
