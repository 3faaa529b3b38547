package indexer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

// id3 builds a minimal ID3v2.3 tag with latin-1 text frames followed by
// a few bytes of silence
func id3(frames map[string]string) []byte {
	var body bytes.Buffer
	for _, id := range []string{"TIT2", "TPE1", "TPE2", "TALB", "TRCK"} {
		text, ok := frames[id]
		if !ok {
			continue
		}
		size := len(text) + 1
		body.WriteString(id)
		body.Write([]byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)})
		body.Write([]byte{0, 0, 0})
		body.WriteString(text)
	}

	n := body.Len()
	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{3, 0, 0})
	out.Write([]byte{byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)})
	out.Write(body.Bytes())
	out.Write(make([]byte, 32))
	return out.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

type recordingWriter struct {
	mu        sync.Mutex
	songs     []domain.IndexedSong
	playlists []domain.IndexedPlaylist
	batches   int
	err       error
}

func (w *recordingWriter) IndexSongs(ctx context.Context, batch []domain.IndexedSong) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches++
	w.songs = append(w.songs, batch...)
	return nil
}

func (w *recordingWriter) IndexPlaylist(ctx context.Context, p domain.IndexedPlaylist) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.playlists = append(w.playlists, p)
	return nil
}

func (w *recordingWriter) song(path string) (domain.IndexedSong, bool) {
	for _, s := range w.songs {
		if s.Path == path {
			return s, true
		}
	}
	return domain.IndexedSong{}, false
}

func library(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "Donovan", "01.mp3"), id3(map[string]string{
		"TIT2": "Mellow Yellow", "TPE1": "Donovan", "TALB": "Mellow Yellow", "TRCK": "1/10",
	}))
	writeFile(t, filepath.Join(root, "Donovan", "02.mp3"), id3(map[string]string{
		"TPE1": "Donovan", "TALB": "Mellow Yellow",
	}))
	writeFile(t, filepath.Join(root, "Donovan", "cover.jpg"), []byte("jpeg"))
	writeFile(t, filepath.Join(root, "Various", "03.mp3"), id3(map[string]string{
		"TIT2": "Yellow Submarine", "TPE1": "The Beatles", "TPE2": "Various Artists", "TALB": "Hits",
	}))
	writeFile(t, filepath.Join(root, "broken.mp3"), []byte("definitely not audio, but long enough"))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("ignored"))
	writeFile(t, filepath.Join(root, "Gym.m3u"), []byte(strings.Join([]string{
		"#EXTM3U",
		"#EXTINF:123,Various - Yellow Submarine",
		"Various/03.mp3",
		"",
		"Donovan/01.mp3",
		"missing.mp3",
		"http://radio.example.com/stream",
	}, "\n")))
	return root
}

func TestScan(t *testing.T) {
	root := library(t)
	w := &recordingWriter{}
	ix := NewIndexer(zap.NewNop(), w, Options{Workers: 3, BatchSize: 2})

	var progressed []string
	stats, err := ix.Scan(context.Background(), root, func(path string) {
		progressed = append(progressed, path)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Songs != 3 || stats.Playlists != 1 || stats.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(progressed) != 3 {
		t.Errorf("expected 3 progress calls, got %d", len(progressed))
	}
	if w.batches != 2 {
		t.Errorf("expected 2 batches of at most 2, got %d", w.batches)
	}

	mellow, ok := w.song(filepath.Join(root, "Donovan", "01.mp3"))
	if !ok {
		t.Fatal("Mellow Yellow not indexed")
	}
	if mellow.Title == nil || *mellow.Title != "Mellow Yellow" || *mellow.Artist != "Donovan" {
		t.Errorf("unexpected tags: %+v", mellow)
	}
	if mellow.TrackNumber != 1 {
		t.Errorf("track number: %d", mellow.TrackNumber)
	}
	if !strings.HasPrefix(mellow.ArtworkURL, "file://") || !strings.HasSuffix(mellow.ArtworkURL, "cover.jpg") {
		t.Errorf("expected sidecar artwork, got %q", mellow.ArtworkURL)
	}
	if mellow.ArtistID != ArtistID("donovan") || mellow.AlbumID != AlbumID("Donovan", "Mellow Yellow") {
		t.Errorf("ids not derived from tags: %+v", mellow)
	}

	untitled, _ := w.song(filepath.Join(root, "Donovan", "02.mp3"))
	if untitled.Title != nil {
		t.Errorf("missing title must stay nil, got %q", *untitled.Title)
	}
	if untitled.AlbumID != mellow.AlbumID {
		t.Error("songs of one album must share the album id")
	}

	sub, _ := w.song(filepath.Join(root, "Various", "03.mp3"))
	if sub.AlbumArtist == nil || *sub.AlbumArtist != "Various Artists" {
		t.Errorf("album artist: %v", sub.AlbumArtist)
	}
	if sub.AlbumID != AlbumID("Various Artists", "Hits") {
		t.Error("album id must group by album artist")
	}
	if sub.ArtworkURL != "" {
		t.Errorf("no sidecar in Various, got %q", sub.ArtworkURL)
	}

	if len(w.playlists) != 1 {
		t.Fatalf("expected 1 playlist, got %d", len(w.playlists))
	}
	gym := w.playlists[0]
	if gym.Name != "Gym" {
		t.Errorf("playlist name: %q", gym.Name)
	}
	want := []domain.PersistentID{sub.ID, mellow.ID}
	if len(gym.SongIDs) != 2 || gym.SongIDs[0] != want[0] || gym.SongIDs[1] != want[1] {
		t.Errorf("playlist songs: want %v, got %v", want, gym.SongIDs)
	}
}

func TestScan_IdsAreStable(t *testing.T) {
	root := library(t)
	first, second := &recordingWriter{}, &recordingWriter{}

	for _, w := range []*recordingWriter{first, second} {
		if _, err := NewIndexer(zap.NewNop(), w, Options{}).Scan(context.Background(), root, nil); err != nil {
			t.Fatal(err)
		}
	}

	for _, s := range first.songs {
		other, ok := second.song(s.Path)
		if !ok || other.ID != s.ID || other.AlbumID != s.AlbumID {
			t.Errorf("ids changed between scans for %s", s.Path)
		}
	}
}

func TestScan_WriterError(t *testing.T) {
	boom := errors.New("disk full")
	w := &recordingWriter{err: boom}

	_, err := NewIndexer(zap.NewNop(), w, Options{Workers: 1, BatchSize: 1}).Scan(context.Background(), library(t), nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected writer error, got %v", err)
	}
}

func TestReadM3U(t *testing.T) {
	name, entries, err := readM3U(strings.NewReader("\ufeff#EXTM3U\n#PLAYLIST:Morning Run\n# comment\na.mp3\r\n\nsub/b.flac\n"))
	if err != nil {
		t.Fatal(err)
	}
	if name != "Morning Run" {
		t.Errorf("name: %q", name)
	}
	if len(entries) != 2 || entries[0] != "a.mp3" || entries[1] != filepath.FromSlash("sub/b.flac") {
		t.Errorf("entries: %v", entries)
	}
}

func TestCount(t *testing.T) {
	n, err := Count(library(t))
	if err != nil || n != 4 {
		t.Errorf("expected 4 audio files, got %d (%v)", n, err)
	}
}
