package monitor

import (
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/godbus/dbus/v5"
)

const (
	playerPath  = "/org/mpris/MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"

	propMetadata = "Metadata"
	propStatus   = "PlaybackStatus"
)

// parseStatus maps an MPRIS PlaybackStatus. Unknown values read as stopped.
func parseStatus(s string) domain.PlayerStatus {
	switch s {
	case "Playing":
		return domain.StatusPlaying
	case "Paused":
		return domain.StatusPaused
	default:
		return domain.StatusStopped
	}
}

// trackFrom builds the event for player out of an xesam metadata map. The
// map may be nil when the player exposes no current track.
func trackFrom(player string, metadata map[string]dbus.Variant, status string) domain.MediaMetadata {
	meta := domain.MediaMetadata{
		Player: player,
		Status: parseStatus(status),
	}
	meta.Title = firstString(metadata["xesam:title"])
	meta.Artist = firstString(metadata["xesam:artist"])
	meta.Album = firstString(metadata["xesam:album"])
	return meta
}

// firstString reads a string or the first entry of a string list.
// xesam:artist is a list by contract but some players send a plain string.
func firstString(v dbus.Variant) string {
	switch val := v.Value().(type) {
	case string:
		return strings.TrimSpace(val)
	case []string:
		if len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
	}
	return ""
}

// dropLimiter rate limits the "events dropped" warning while tracks are
// skipped faster than the consumer drains them.
type dropLimiter struct {
	mu      sync.Mutex
	every   time.Duration
	last    time.Time
	dropped int
}

// note records a drop and reports how many happened since the last time it
// returned a non-zero count
func (d *dropLimiter) note(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped++
	if now.Sub(d.last) < d.every {
		return 0
	}
	n := d.dropped
	d.dropped = 0
	d.last = now
	return n
}
