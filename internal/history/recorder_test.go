package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

type fakeMonitor struct {
	events chan domain.MediaMetadata
}

func (m *fakeMonitor) Start(context.Context) error { return nil }

func (m *fakeMonitor) Stop(context.Context) error { return nil }

func (m *fakeMonitor) Events() <-chan domain.MediaMetadata { return m.events }

type markCall struct {
	track domain.PlayedTrack
	at    time.Time
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []markCall
	err   error
	hits  int
}

func (w *fakeWriter) MarkPlayed(ctx context.Context, track domain.PlayedTrack, at time.Time) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, markCall{track, at})
	return w.hits, w.err
}

func (w *fakeWriter) recorded() []markCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]markCall(nil), w.calls...)
}

func newTestRecorder(w *fakeWriter) (*Recorder, *fakeMonitor) {
	mon := &fakeMonitor{events: make(chan domain.MediaMetadata, 10)}
	r := NewRecorder(zap.NewNop(), mon, w)
	r.debounce = 20 * time.Millisecond
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return r, mon
}

func playing(title, artist string) domain.MediaMetadata {
	return domain.MediaMetadata{Title: title, Artist: artist, Album: "Album", Status: domain.StatusPlaying}
}

func TestRecorder(t *testing.T) {
	tests := []struct {
		name     string
		events   []domain.MediaMetadata
		expected []string
	}{
		{
			name:     "Single track",
			events:   []domain.MediaMetadata{playing("Blue", "Joni Mitchell")},
			expected: []string{"Blue"},
		},
		{
			name: "Rapid skipping records only the last track",
			events: []domain.MediaMetadata{
				playing("One", "A"),
				playing("Two", "A"),
				playing("Three", "A"),
			},
			expected: []string{"Three"},
		},
		{
			name: "Paused track is not recorded",
			events: []domain.MediaMetadata{
				{Title: "Blue", Artist: "Joni Mitchell", Status: domain.StatusPaused},
			},
			expected: nil,
		},
		{
			name:     "Track without artist is not recorded",
			events:   []domain.MediaMetadata{playing("Stream", "")},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{hits: 1}
			r, mon := newTestRecorder(w)

			if err := r.Start(context.Background()); err != nil {
				t.Fatalf("start: %v", err)
			}
			for _, e := range tt.events {
				mon.events <- e
			}
			time.Sleep(100 * time.Millisecond)
			if err := r.Stop(context.Background()); err != nil {
				t.Fatalf("stop: %v", err)
			}

			calls := w.recorded()
			if len(calls) != len(tt.expected) {
				t.Fatalf("expected %d plays, got %d: %+v", len(tt.expected), len(calls), calls)
			}
			for i, c := range calls {
				if c.track.Title != tt.expected[i] {
					t.Errorf("play %d: want %s, got %s", i, tt.expected[i], c.track.Title)
				}
				if c.at.UnixMilli() != 1700000000000 {
					t.Errorf("unexpected play time %v", c.at)
				}
			}
		})
	}
}

func TestRecorder_SameTrackOnce(t *testing.T) {
	w := &fakeWriter{hits: 1}
	r, _ := newTestRecorder(w)
	ctx := context.Background()

	r.record(ctx, playing("Blue", "Joni Mitchell"))
	r.record(ctx, playing("Blue", "Joni Mitchell"))
	r.record(ctx, playing("River", "Joni Mitchell"))
	r.record(ctx, playing("Blue", "Joni Mitchell"))

	if got := len(w.recorded()); got != 3 {
		t.Errorf("expected 3 plays (resume of the same track ignored), got %d", got)
	}
}

func TestRecorder_WriterErrorKeepsRunning(t *testing.T) {
	w := &fakeWriter{err: errors.New("database is locked")}
	r, mon := newTestRecorder(w)

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mon.events <- playing("Blue", "Joni Mitchell")
	time.Sleep(60 * time.Millisecond)
	mon.events <- playing("River", "Joni Mitchell")
	time.Sleep(60 * time.Millisecond)
	if err := r.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := len(w.recorded()); got != 2 {
		t.Errorf("expected both plays attempted, got %d", got)
	}
}

func TestRecorder_StopsWhenEventsClose(t *testing.T) {
	r, mon := newTestRecorder(&fakeWriter{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(mon.events)

	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after the events channel closed")
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("stop after exit: %v", err)
	}
}
