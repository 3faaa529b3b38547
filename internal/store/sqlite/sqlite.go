// Package sqlite is the relational media store. Songs, playlists and artwork
// live in separate tables; artwork blobs are only read when rendered.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/genricoloni/medialib/internal/artwork"
	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS songs(
		id INTEGER PRIMARY KEY,
		path TEXT,
		title TEXT,
		artist TEXT,
		artist_id INTEGER NOT NULL,
		album TEXT,
		album_id INTEGER NOT NULL,
		album_artist TEXT,
		track_number INTEGER,
		disc_number INTEGER,
		duration_ms INTEGER,
		artwork_url TEXT,
		has_artwork INTEGER NOT NULL DEFAULT 0,
		last_played_ms INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS songs_album_id ON songs(album_id)`,
	`CREATE INDEX IF NOT EXISTS songs_artist_id ON songs(artist_id)`,
	`CREATE TABLE IF NOT EXISTS artwork(
		song_id INTEGER PRIMARY KEY,
		data BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS playlists(
		id INTEGER PRIMARY KEY,
		name TEXT,
		path TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS playlist_items(
		playlist_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		song_id INTEGER NOT NULL,
		PRIMARY KEY(playlist_id, position)
	)`,
}

// Ids are uint64 stored as their int64 bit pattern. Sorting negatives last
// restores unsigned order.
const (
	songColumns = `s.id, s.title, s.artist, s.artist_id, s.album, s.album_id, s.album_artist, s.duration_ms, s.artwork_url, s.has_artwork, s.last_played_ms`
	idOrder     = `ORDER BY s.id < 0, s.id`
)

// Store is the sqlite backed media store
type Store struct {
	logger  *zap.Logger
	db      *sql.DB
	fetcher domain.Fetcher
}

// NewWithDB wraps an open database. The schema is not created.
func NewWithDB(logger *zap.Logger, db *sql.DB, fetcher domain.Fetcher) *Store {
	return &Store{logger: logger, db: db, fetcher: fetcher}
}

// Migrate creates missing tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Close implements domain.Store
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Query implements domain.Store
func (s *Store) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	if q.Kind == domain.KindPlaylists {
		return s.queryPlaylists(ctx, q)
	}

	where, args, err := songConditions(q.ItemPredicates())
	if err != nil {
		return nil, err
	}
	items, err := s.songs(ctx, `SELECT `+songColumns+` FROM songs s`+where+` `+idOrder, args...)
	if err != nil {
		return nil, err
	}
	return domain.GroupItems(q.Kind, items), nil
}

func (s *Store) queryPlaylists(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	var conds []string
	var args []any
	for _, p := range q.PlaylistPredicates() {
		switch {
		case p.Property == domain.PropertyPlaylistID && p.Comparison == domain.ComparisonEqualTo:
			id, ok := p.Value.(domain.PersistentID)
			if !ok {
				return nil, fmt.Errorf("playlist id predicate holds %T", p.Value)
			}
			conds = append(conds, `s.id = ?`)
			args = append(args, int64(id))
		case p.Property == domain.PropertyPlaylistName && p.Comparison == domain.ComparisonContains:
			text, ok := p.Value.(string)
			if !ok {
				return nil, fmt.Errorf("playlist name predicate holds %T", p.Value)
			}
			conds = append(conds, `instr(lower(s.name), lower(?)) > 0`)
			args = append(args, text)
		default:
			return nil, fmt.Errorf("unsupported playlist predicate %s", p.Property)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.name FROM playlists s`+whereClause(conds)+` `+idOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	var playlists []domain.Collection
	for rows.Next() {
		var id int64
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, domain.Collection{ID: domain.PersistentID(id), Name: stringPtr(name)})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read playlists: %w", err)
	}

	for i := range playlists {
		items, err := s.songs(ctx, `SELECT `+songColumns+` FROM playlist_items pi JOIN songs s ON s.id = pi.song_id
			WHERE pi.playlist_id = ? ORDER BY pi.position`, int64(playlists[i].ID))
		if err != nil {
			return nil, err
		}
		playlists[i].Items = items
	}
	return domain.PlaylistResult(playlists), nil
}

func (s *Store) songs(ctx context.Context, query string, args ...any) ([]domain.MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var items []domain.MediaItem
	for rows.Next() {
		var (
			id, artistID, albumID   int64
			title, artist, album    sql.NullString
			albumArtist, artworkURL sql.NullString
			durMS, playedMS         sql.NullInt64
			hasArtwork              bool
		)
		if err := rows.Scan(&id, &title, &artist, &artistID, &album, &albumID, &albumArtist,
			&durMS, &artworkURL, &hasArtwork, &playedMS); err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}

		it := domain.MediaItem{
			ID:          domain.PersistentID(id),
			Title:       stringPtr(title),
			Artist:      stringPtr(artist),
			ArtistID:    domain.PersistentID(artistID),
			AlbumTitle:  stringPtr(album),
			AlbumID:     domain.PersistentID(albumID),
			AlbumArtist: stringPtr(albumArtist),
		}
		if durMS.Valid {
			d := time.Duration(durMS.Int64) * time.Millisecond
			it.Duration = &d
		}
		if playedMS.Valid {
			t := time.UnixMilli(playedMS.Int64)
			it.LastPlayed = &t
		}
		switch {
		case hasArtwork:
			it.Artwork = s.artworkLoader(id)
		case artworkURL.Valid && artworkURL.String != "" && s.fetcher != nil:
			it.Artwork = artwork.Remote{URL: artworkURL.String, Fetcher: s.fetcher}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read songs: %w", err)
	}
	return items, nil
}

func (s *Store) artworkLoader(songID int64) artwork.Loader {
	return func(ctx context.Context) ([]byte, error) {
		var data []byte
		err := s.db.QueryRowContext(ctx, `SELECT data FROM artwork WHERE song_id = ?`, songID).Scan(&data)
		if err != nil {
			return nil, fmt.Errorf("failed to load artwork: %w", err)
		}
		return data, nil
	}
}

// IndexSongs implements domain.IndexWriter. Re-indexing a song keeps its
// last-played time.
func (s *Store) IndexSongs(ctx context.Context, batch []domain.IndexedSong) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := indexSongs(ctx, tx, batch); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit songs: %w", err)
	}

	s.logger.Debug("Songs indexed", zap.Int("count", len(batch)))
	return nil
}

func indexSongs(ctx context.Context, tx *sql.Tx, batch []domain.IndexedSong) error {
	for _, song := range batch {
		_, err := tx.ExecContext(ctx, `INSERT INTO songs
			(id, path, title, artist, artist_id, album, album_id, album_artist, track_number, disc_number, duration_ms, artwork_url, has_artwork, last_played_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				path = excluded.path, title = excluded.title, artist = excluded.artist,
				artist_id = excluded.artist_id, album = excluded.album, album_id = excluded.album_id,
				album_artist = excluded.album_artist, track_number = excluded.track_number,
				disc_number = excluded.disc_number, duration_ms = excluded.duration_ms,
				artwork_url = excluded.artwork_url, has_artwork = excluded.has_artwork,
				last_played_ms = COALESCE(excluded.last_played_ms, songs.last_played_ms)`,
			int64(song.ID), song.Path, nullString(song.Title), nullString(song.Artist), int64(song.ArtistID),
			nullString(song.AlbumTitle), int64(song.AlbumID), nullString(song.AlbumArtist),
			song.TrackNumber, song.DiscNumber, durationMS(song.Duration), nullIfEmpty(song.ArtworkURL),
			len(song.ArtworkData) > 0, unixMS(song.LastPlayed))
		if err != nil {
			return fmt.Errorf("failed to index song %s: %w", song.Path, err)
		}

		if len(song.ArtworkData) > 0 {
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO artwork (song_id, data) VALUES (?, ?)`,
				int64(song.ID), song.ArtworkData)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM artwork WHERE song_id = ?`, int64(song.ID))
		}
		if err != nil {
			return fmt.Errorf("failed to store artwork of %s: %w", song.Path, err)
		}
	}
	return nil
}

// IndexPlaylist implements domain.IndexWriter
func (s *Store) IndexPlaylist(ctx context.Context, p domain.IndexedPlaylist) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := indexPlaylist(ctx, tx, p); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist: %w", err)
	}
	return nil
}

func indexPlaylist(ctx context.Context, tx *sql.Tx, p domain.IndexedPlaylist) error {
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO playlists (id, name, path) VALUES (?, ?, ?)`,
		int64(p.ID), nullIfEmpty(p.Name), p.Path); err != nil {
		return fmt.Errorf("failed to index playlist %s: %w", p.Path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_items WHERE playlist_id = ?`, int64(p.ID)); err != nil {
		return fmt.Errorf("failed to clear playlist %s: %w", p.Path, err)
	}
	for pos, songID := range p.SongIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO playlist_items (playlist_id, position, song_id) VALUES (?, ?, ?)`,
			int64(p.ID), pos, int64(songID)); err != nil {
			return fmt.Errorf("failed to add item %d of playlist %s: %w", pos, p.Path, err)
		}
	}
	return nil
}

// MarkPlayed implements domain.HistoryWriter
func (s *Store) MarkPlayed(ctx context.Context, track domain.PlayedTrack, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE songs SET last_played_ms = ?
		WHERE lower(title) = lower(?) AND lower(artist) = lower(?)
		AND (? = '' OR album IS NULL OR lower(album) = lower(?))`,
		at.UnixMilli(), track.Title, track.Artist, track.Album, track.Album)
	if err != nil {
		return 0, fmt.Errorf("failed to mark played: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count marked songs: %w", err)
	}
	return int(n), nil
}

// songConditions translates song predicates into a WHERE clause
func songConditions(preds []domain.Predicate) (string, []any, error) {
	var conds []string
	var args []any

	for _, p := range preds {
		switch p.Comparison {
		case domain.ComparisonContains:
			col, ok := textColumns[p.Property]
			text, isText := p.Value.(string)
			if !ok || !isText {
				return "", nil, fmt.Errorf("unsupported text predicate %s", p.Property)
			}
			conds = append(conds, `instr(lower(`+col+`), lower(?)) > 0`)
			args = append(args, text)
		case domain.ComparisonEqualTo:
			col, ok := idColumns[p.Property]
			id, isID := p.Value.(domain.PersistentID)
			if !ok || !isID {
				return "", nil, fmt.Errorf("unsupported id predicate %s", p.Property)
			}
			conds = append(conds, col+` = ?`)
			args = append(args, int64(id))
		default:
			return "", nil, fmt.Errorf("unsupported comparison %d", p.Comparison)
		}
	}
	return whereClause(conds), args, nil
}

var textColumns = map[domain.Property]string{
	domain.PropertyTitle:      "s.title",
	domain.PropertyArtist:     "s.artist",
	domain.PropertyAlbumTitle: "s.album",
}

var idColumns = map[domain.Property]string{
	domain.PropertyArtistID: "s.artist_id",
	domain.PropertyAlbumID:  "s.album_id",
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func durationMS(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: d.Milliseconds(), Valid: true}
}

func unixMS(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
