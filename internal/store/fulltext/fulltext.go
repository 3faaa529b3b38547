// Package fulltext is the bleve backed media store. Songs and playlists are
// documents of one index; substring filters run as wildcard queries over
// lowercased keyword fields and are re-checked against domain.Predicate.Match.
package fulltext

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/genricoloni/medialib/internal/artwork"
	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

const (
	typeSong     = "song"
	typePlaylist = "playlist"

	pageSize = 1000
)

// Stored fields loaded with every song hit. The artwork blob is left out.
var songFields = []string{
	"id", "title", "artist", "artistId", "album", "albumId", "albumArtist",
	"durationMs", "artworkUrl", "hasArtwork", "lastPlayedMs",
}

// Store is the bleve backed media store
type Store struct {
	logger  *zap.Logger
	index   bleve.Index
	fetcher domain.Fetcher
}

// Open opens the index directory at path, creating it when missing
func Open(logger *zap.Logger, path string, fetcher domain.Fetcher) (*Store, error) {
	var idx bleve.Index
	var err error
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		idx, err = bleve.New(path, newMapping())
	} else {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}

	logger.Info("Bleve store opened", zap.String("path", path))
	return &Store{logger: logger, index: idx, fetcher: fetcher}, nil
}

// OpenMem creates an index that lives in memory only
func OpenMem(logger *zap.Logger, fetcher domain.Fetcher) (*Store, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &Store{logger: logger, index: idx, fetcher: fetcher}, nil
}

func newMapping() mapping.IndexMapping {
	stored := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Index = false
		f.IncludeInAll = false
		f.IncludeTermVectors = false
		f.DocValues = false
		return f
	}

	song := bleve.NewDocumentStaticMapping()
	for _, name := range []string{"type", "seq", "id", "artistId", "albumId", "title_lc", "artist_lc", "album_lc"} {
		song.AddFieldMappingsAt(name, bleve.NewKeywordFieldMapping())
	}
	for _, name := range []string{"title", "artist", "album", "albumArtist", "path", "artworkUrl", "artwork"} {
		song.AddFieldMappingsAt(name, stored())
	}
	song.AddFieldMappingsAt("durationMs", bleve.NewNumericFieldMapping())
	song.AddFieldMappingsAt("lastPlayedMs", bleve.NewNumericFieldMapping())
	song.AddFieldMappingsAt("hasArtwork", bleve.NewBooleanFieldMapping())

	playlist := bleve.NewDocumentStaticMapping()
	for _, name := range []string{"type", "seq", "id", "name_lc"} {
		playlist.AddFieldMappingsAt(name, bleve.NewKeywordFieldMapping())
	}
	for _, name := range []string{"name", "path", "songIds"} {
		playlist.AddFieldMappingsAt(name, stored())
	}

	im := bleve.NewIndexMapping()
	im.TypeField = "type"
	im.DefaultMapping = bleve.NewDocumentDisabledMapping()
	im.AddDocumentMapping(typeSong, song)
	im.AddDocumentMapping(typePlaylist, playlist)
	return im
}

// Close implements domain.Store
func (s *Store) Close() error {
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

// Query implements domain.Store
func (s *Store) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	if q.Kind == domain.KindPlaylists {
		return s.queryPlaylists(ctx, q)
	}

	preds := q.ItemPredicates()
	bq, err := songQuery(preds)
	if err != nil {
		return nil, err
	}
	hits, err := s.search(ctx, bq, songFields)
	if err != nil {
		return nil, err
	}

	items := make([]domain.MediaItem, 0, len(hits))
	for _, hit := range hits {
		it, err := s.item(hit)
		if err != nil {
			return nil, err
		}
		// Wildcard metacharacters in the filter text over-match
		if domain.MatchAll(preds, it) {
			items = append(items, it)
		}
	}
	return domain.GroupItems(q.Kind, items), nil
}

func (s *Store) queryPlaylists(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	preds := q.PlaylistPredicates()
	conj := []blevequery.Query{term("type", typePlaylist)}
	for _, p := range preds {
		switch {
		case p.Property == domain.PropertyPlaylistID && p.Comparison == domain.ComparisonEqualTo:
			id, ok := p.Value.(domain.PersistentID)
			if !ok {
				return nil, fmt.Errorf("playlist id predicate holds %T", p.Value)
			}
			conj = append(conj, term("id", id.String()))
		case p.Property == domain.PropertyPlaylistName && p.Comparison == domain.ComparisonContains:
			text, ok := p.Value.(string)
			if !ok {
				return nil, fmt.Errorf("playlist name predicate holds %T", p.Value)
			}
			conj = append(conj, contains("name_lc", text))
		default:
			return nil, fmt.Errorf("unsupported playlist predicate %s", p.Property)
		}
	}

	hits, err := s.search(ctx, bleve.NewConjunctionQuery(conj...), []string{"id", "name", "songIds"})
	if err != nil {
		return nil, err
	}

	var playlists []domain.Collection
	var songIDs [][]domain.PersistentID
	for _, hit := range hits {
		id, err := domain.ParsePersistentID(str(hit.Fields, "id"))
		if err != nil {
			return nil, fmt.Errorf("corrupt playlist %s: %w", hit.ID, err)
		}
		name := optional(hit.Fields, "name")
		if !matchPlaylist(preds, id, name) {
			continue
		}
		ids, err := parseIDs(str(hit.Fields, "songIds"))
		if err != nil {
			return nil, fmt.Errorf("corrupt playlist %s: %w", hit.ID, err)
		}
		playlists = append(playlists, domain.Collection{ID: id, Name: name})
		songIDs = append(songIDs, ids)
	}

	songs, err := s.songsByID(ctx, songIDs)
	if err != nil {
		return nil, err
	}
	for i, ids := range songIDs {
		for _, id := range ids {
			if it, ok := songs[id]; ok {
				playlists[i].Items = append(playlists[i].Items, it)
			}
		}
	}
	return domain.PlaylistResult(playlists), nil
}

func (s *Store) songsByID(ctx context.Context, lists [][]domain.PersistentID) (map[domain.PersistentID]domain.MediaItem, error) {
	var docIDs []string
	seen := make(map[domain.PersistentID]bool)
	for _, ids := range lists {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				docIDs = append(docIDs, songDocID(id))
			}
		}
	}

	out := make(map[domain.PersistentID]domain.MediaItem, len(docIDs))
	if len(docIDs) == 0 {
		return out, nil
	}

	hits, err := s.search(ctx, bleve.NewDocIDQuery(docIDs), songFields)
	if err != nil {
		return nil, err
	}
	for _, hit := range hits {
		it, err := s.item(hit)
		if err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, nil
}

// search collects every hit of q in store order
func (s *Store) search(ctx context.Context, q blevequery.Query, fields []string) (search.DocumentMatchCollection, error) {
	var hits search.DocumentMatchCollection
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		req.Fields = fields
		req.SortBy([]string{"seq"})

		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("index search failed: %w", err)
		}
		hits = append(hits, res.Hits...)
		if len(res.Hits) < pageSize || uint64(len(hits)) >= res.Total {
			return hits, nil
		}
	}
}

func (s *Store) item(hit *search.DocumentMatch) (domain.MediaItem, error) {
	f := hit.Fields
	id, err := domain.ParsePersistentID(str(f, "id"))
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("corrupt song %s: %w", hit.ID, err)
	}
	artistID, _ := domain.ParsePersistentID(str(f, "artistId"))
	albumID, _ := domain.ParsePersistentID(str(f, "albumId"))

	it := domain.MediaItem{
		ID:          id,
		Title:       optional(f, "title"),
		Artist:      optional(f, "artist"),
		ArtistID:    artistID,
		AlbumTitle:  optional(f, "album"),
		AlbumID:     albumID,
		AlbumArtist: optional(f, "albumArtist"),
	}
	if ms, ok := f["durationMs"].(float64); ok {
		d := time.Duration(ms) * time.Millisecond
		it.Duration = &d
	}
	if ms, ok := f["lastPlayedMs"].(float64); ok {
		t := time.UnixMilli(int64(ms))
		it.LastPlayed = &t
	}

	switch {
	case f["hasArtwork"] == true:
		it.Artwork = s.artworkLoader(hit.ID)
	case str(f, "artworkUrl") != "" && s.fetcher != nil:
		it.Artwork = artwork.Remote{URL: str(f, "artworkUrl"), Fetcher: s.fetcher}
	}
	return it, nil
}

func (s *Store) artworkLoader(docID string) artwork.Loader {
	return func(ctx context.Context) ([]byte, error) {
		req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{docID}))
		req.Fields = []string{"artwork"}
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to load artwork: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil, fmt.Errorf("artwork of %s: %w", docID, domain.ErrNotFound)
		}
		return base64.StdEncoding.DecodeString(str(res.Hits[0].Fields, "artwork"))
	}
}

// IndexSongs implements domain.IndexWriter. Re-indexing a song keeps its
// last-played time.
func (s *Store) IndexSongs(ctx context.Context, batch []domain.IndexedSong) error {
	ids := make([]domain.PersistentID, 0, len(batch))
	for _, song := range batch {
		ids = append(ids, song.ID)
	}
	existing, err := s.songsByID(ctx, [][]domain.PersistentID{ids})
	if err != nil {
		return err
	}

	b := s.index.NewBatch()
	for _, song := range batch {
		doc := songDoc(song)
		if song.LastPlayed == nil {
			if prev, ok := existing[song.ID]; ok && prev.LastPlayed != nil {
				doc["lastPlayedMs"] = float64(prev.LastPlayed.UnixMilli())
			}
		}
		if err := b.Index(songDocID(song.ID), doc); err != nil {
			return fmt.Errorf("failed to index song %s: %w", song.Path, err)
		}
	}
	if err := s.index.Batch(b); err != nil {
		return fmt.Errorf("failed to apply batch: %w", err)
	}

	s.logger.Debug("Songs indexed", zap.Int("count", len(batch)))
	return nil
}

// IndexPlaylist implements domain.IndexWriter
func (s *Store) IndexPlaylist(ctx context.Context, p domain.IndexedPlaylist) error {
	ids := make([]string, 0, len(p.SongIDs))
	for _, id := range p.SongIDs {
		ids = append(ids, id.String())
	}

	doc := map[string]interface{}{
		"type":    typePlaylist,
		"seq":     seq(p.ID),
		"id":      p.ID.String(),
		"path":    p.Path,
		"songIds": strings.Join(ids, ","),
	}
	if p.Name != "" {
		doc["name"] = p.Name
		doc["name_lc"] = strings.ToLower(p.Name)
	}
	if err := s.index.Index(playlistDocID(p.ID), doc); err != nil {
		return fmt.Errorf("failed to index playlist %s: %w", p.Path, err)
	}
	return nil
}

// MarkPlayed implements domain.HistoryWriter
func (s *Store) MarkPlayed(ctx context.Context, track domain.PlayedTrack, at time.Time) (int, error) {
	q := bleve.NewConjunctionQuery(
		term("type", typeSong),
		term("title_lc", strings.ToLower(track.Title)),
		term("artist_lc", strings.ToLower(track.Artist)),
	)
	hits, err := s.search(ctx, q, []string{"*"})
	if err != nil {
		return 0, err
	}

	b := s.index.NewBatch()
	for _, hit := range hits {
		if album := str(hit.Fields, "album"); track.Album != "" && album != "" && !strings.EqualFold(album, track.Album) {
			continue
		}
		doc := make(map[string]interface{}, len(hit.Fields)+1)
		for k, v := range hit.Fields {
			doc[k] = v
		}
		doc["lastPlayedMs"] = float64(at.UnixMilli())
		if err := b.Index(hit.ID, doc); err != nil {
			return 0, fmt.Errorf("failed to update %s: %w", hit.ID, err)
		}
	}
	n := b.Size()
	if n == 0 {
		return 0, nil
	}
	if err := s.index.Batch(b); err != nil {
		return 0, fmt.Errorf("failed to apply batch: %w", err)
	}
	return n, nil
}

func songDoc(song domain.IndexedSong) map[string]interface{} {
	doc := map[string]interface{}{
		"type":       typeSong,
		"seq":        seq(song.ID),
		"id":         song.ID.String(),
		"path":       song.Path,
		"artistId":   song.ArtistID.String(),
		"albumId":    song.AlbumID.String(),
		"hasArtwork": len(song.ArtworkData) > 0,
	}
	setText := func(field string, v *string, folded bool) {
		if v == nil {
			return
		}
		doc[field] = *v
		if folded {
			doc[field+"_lc"] = strings.ToLower(*v)
		}
	}
	setText("title", song.Title, true)
	setText("artist", song.Artist, true)
	setText("album", song.AlbumTitle, true)
	setText("albumArtist", song.AlbumArtist, false)

	if song.Duration != nil {
		doc["durationMs"] = float64(song.Duration.Milliseconds())
	}
	if song.LastPlayed != nil {
		doc["lastPlayedMs"] = float64(song.LastPlayed.UnixMilli())
	}
	if len(song.ArtworkData) > 0 {
		doc["artwork"] = base64.StdEncoding.EncodeToString(song.ArtworkData)
	} else if song.ArtworkURL != "" {
		doc["artworkUrl"] = song.ArtworkURL
	}
	return doc
}

func songQuery(preds []domain.Predicate) (blevequery.Query, error) {
	conj := []blevequery.Query{term("type", typeSong)}
	for _, p := range preds {
		switch p.Comparison {
		case domain.ComparisonContains:
			field, ok := textFields[p.Property]
			text, isText := p.Value.(string)
			if !ok || !isText {
				return nil, fmt.Errorf("unsupported text predicate %s", p.Property)
			}
			conj = append(conj, contains(field, text))
		case domain.ComparisonEqualTo:
			field, ok := idFields[p.Property]
			id, isID := p.Value.(domain.PersistentID)
			if !ok || !isID {
				return nil, fmt.Errorf("unsupported id predicate %s", p.Property)
			}
			conj = append(conj, term(field, id.String()))
		default:
			return nil, fmt.Errorf("unsupported comparison %d", p.Comparison)
		}
	}
	return bleve.NewConjunctionQuery(conj...), nil
}

var textFields = map[domain.Property]string{
	domain.PropertyTitle:      "title_lc",
	domain.PropertyArtist:     "artist_lc",
	domain.PropertyAlbumTitle: "album_lc",
}

var idFields = map[domain.Property]string{
	domain.PropertyArtistID: "artistId",
	domain.PropertyAlbumID:  "albumId",
}

func term(field, value string) blevequery.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

func contains(field, text string) blevequery.Query {
	q := bleve.NewWildcardQuery("*" + strings.ToLower(text) + "*")
	q.SetField(field)
	return q
}

func matchPlaylist(preds []domain.Predicate, id domain.PersistentID, name *string) bool {
	for _, p := range preds {
		if !p.MatchPlaylist(id, name) {
			return false
		}
	}
	return true
}

// seq is the sort key of an id: fixed width decimal sorts like the number
func seq(id domain.PersistentID) string {
	return fmt.Sprintf("%020d", uint64(id))
}

func songDocID(id domain.PersistentID) string     { return typeSong + ":" + id.String() }
func playlistDocID(id domain.PersistentID) string { return typePlaylist + ":" + id.String() }

func str(f map[string]interface{}, key string) string {
	v, _ := f[key].(string)
	return v
}

func optional(f map[string]interface{}, key string) *string {
	v, ok := f[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func parseIDs(joined string) ([]domain.PersistentID, error) {
	if joined == "" {
		return nil, nil
	}
	parts := strings.Split(joined, ",")
	ids := make([]domain.PersistentID, 0, len(parts))
	for _, p := range parts {
		id, err := domain.ParsePersistentID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
