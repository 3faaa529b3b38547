package indexer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/genricoloni/medialib/internal/domain"
)

var audioExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
}

var playlistExts = map[string]bool{
	".m3u":  true,
	".m3u8": true,
}

// Sidecar images looked up next to a song without embedded artwork
var sidecarNames = []string{"cover.jpg", "folder.jpg", "cover.png"}

// parseSong reads the tags of one audio file. Absent tags stay nil.
func parseSong(path string) (domain.IndexedSong, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.IndexedSong{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return domain.IndexedSong{}, fmt.Errorf("failed to read tags of %s: %w", path, err)
	}

	artist := strings.TrimSpace(m.Artist())
	albumArtist := strings.TrimSpace(m.AlbumArtist())
	album := strings.TrimSpace(m.Album())

	groupArtist := albumArtist
	if groupArtist == "" {
		groupArtist = artist
	}

	track, _ := m.Track()
	disc, _ := m.Disc()

	song := domain.IndexedSong{
		ID:          SongID(path),
		Path:        path,
		Title:       nonEmpty(m.Title()),
		Artist:      nonEmpty(artist),
		ArtistID:    ArtistID(artist),
		AlbumTitle:  nonEmpty(album),
		AlbumID:     AlbumID(groupArtist, album),
		AlbumArtist: nonEmpty(albumArtist),
		TrackNumber: track,
		DiscNumber:  disc,
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		song.ArtworkData = pic.Data
	}
	return song, nil
}

// sidecarArtwork returns a file:// URL of the first cover image in dir
func sidecarArtwork(dir string) string {
	for _, name := range sidecarNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return "file://" + filepath.ToSlash(p)
		}
	}
	return ""
}

// parsePlaylist reads an m3u playlist. Relative entries resolve against
// the playlist's directory.
func parsePlaylist(path string) (domain.IndexedPlaylist, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.IndexedPlaylist{}, nil, fmt.Errorf("failed to open playlist %s: %w", path, err)
	}
	defer f.Close()

	name, entries, err := readM3U(f)
	if err != nil {
		return domain.IndexedPlaylist{}, nil, fmt.Errorf("failed to read playlist %s: %w", path, err)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	dir := filepath.Dir(path)
	for i, e := range entries {
		if !filepath.IsAbs(e) {
			entries[i] = filepath.Join(dir, e)
		}
		entries[i] = filepath.Clean(entries[i])
	}

	return domain.IndexedPlaylist{ID: PlaylistID(path), Name: name, Path: path}, entries, nil
}

func readM3U(r io.Reader) (name string, entries []string, err error) {
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		switch {
		case line == "":
		case strings.HasPrefix(line, "#PLAYLIST:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "#PLAYLIST:"))
		case strings.HasPrefix(line, "#"):
		case strings.Contains(line, "://"):
			// remote streams have no library entry
		default:
			entries = append(entries, filepath.FromSlash(line))
		}
	}
	return name, entries, sc.Err()
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
