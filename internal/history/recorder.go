// Package history records which library songs the desktop media player
// plays, feeding the recently-played feed.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Recorder listens to playback events and marks the playing song as played.
type Recorder struct {
	logger   *zap.Logger
	monitor  domain.Monitor
	writer   domain.HistoryWriter
	debounce time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
	last   domain.PlayedTrack
}

// NewRecorder creates a recorder writing to w
func NewRecorder(logger *zap.Logger, mon domain.Monitor, w domain.HistoryWriter) *Recorder {
	return &Recorder{
		logger:   logger,
		monitor:  mon,
		writer:   w,
		debounce: defaultDebounce,
		now:      time.Now,
	}
}

// Start launches the event loop in a goroutine and returns immediately
func (r *Recorder) Start(ctx context.Context) error {
	r.logger.Info("History recorder starting...")

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.runLoop(loopCtx)
	return nil
}

// runLoop debounces events: only a track that stays current for the
// debounce window counts as played.
func (r *Recorder) runLoop(ctx context.Context) {
	defer close(r.done)
	events := r.monitor.Events()

	timer := time.NewTimer(r.debounce)
	timer.Stop()

	var pending *domain.MediaMetadata

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("History loop stopped")
			return

		case meta, ok := <-events:
			if !ok {
				r.logger.Info("Monitor events channel closed")
				return
			}
			r.logger.Debug("Event received, debouncing...",
				zap.String("title", meta.Title),
				zap.String("artist", meta.Artist))

			pending = &meta
			timer.Reset(r.debounce)

		case <-timer.C:
			if pending != nil {
				r.record(ctx, *pending)
				pending = nil
			}
		}
	}
}

// record marks a playing track once per track change
func (r *Recorder) record(ctx context.Context, meta domain.MediaMetadata) {
	if meta.Status != domain.StatusPlaying {
		r.logger.Debug("Not playing, nothing to record", zap.String("status", string(meta.Status)))
		return
	}
	if meta.Title == "" || meta.Artist == "" {
		r.logger.Debug("Track without title or artist, skipping")
		return
	}

	track := domain.PlayedTrack{Title: meta.Title, Artist: meta.Artist, Album: meta.Album}

	r.mu.Lock()
	repeat := track == r.last
	r.last = track
	r.mu.Unlock()
	if repeat {
		return
	}

	n, err := r.writer.MarkPlayed(ctx, track, r.now())
	if err != nil {
		r.logger.Error("Failed to record play", zap.Error(err))
		return
	}
	if n == 0 {
		r.logger.Debug("Played track is not in the library",
			zap.String("track", track.Title),
			zap.String("artist", track.Artist))
		return
	}

	r.logger.Info("Play recorded",
		zap.String("track", track.Title),
		zap.String("artist", track.Artist),
		zap.Int("songs", n))
}

// Stop ends the event loop and waits for it to exit
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("History recorder stopping...")
	if r.cancel == nil {
		return nil
	}
	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
