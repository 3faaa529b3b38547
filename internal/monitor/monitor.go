//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	sigPropertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
	sigNameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"
)

var errNoTrack = errors.New("player has no current track")

// MprisMonitor reports what desktop media players are playing, via the
// D-Bus MPRIS interface
type MprisMonitor struct {
	logger *zap.Logger
	dial   func() (DBusClient, error)

	mu      sync.RWMutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	conn    DBusClient
	events  chan domain.MediaMetadata
	wg      sync.WaitGroup

	players *registry
	drops   dropLimiter
}

// NewMprisMonitor creates a monitor. When players is non-empty only those
// players are reported, named by identity ("vlc") or by full bus name.
func NewMprisMonitor(logger *zap.Logger, players ...string) *MprisMonitor {
	return &MprisMonitor{
		logger:  logger,
		dial:    func() (DBusClient, error) { return NewSessionClient() },
		events:  make(chan domain.MediaMetadata, 10),
		players: newRegistry(players),
		drops:   dropLimiter{every: 5 * time.Second},
	}
}

// Start connects to the session bus and blocks until ctx is cancelled or
// Stop is called
func (m *MprisMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running || m.closed {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	conn, err := m.dial()
	if err != nil {
		m.abort(nil)
		return fmt.Errorf("session bus connection failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		m.logger.Info("Monitor stopped while connecting")
		m.abort(conn)
		return err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(playerPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		m.abort(conn)
		return fmt.Errorf("failed to add match signal: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		// players started later go unnoticed, the ones already running still report
		m.logger.Warn("Dynamic player tracking unavailable", zap.Error(err))
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.abort(conn)
		return ctx.Err()
	}
	m.conn = conn
	m.wg.Add(1)
	m.mu.Unlock()

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)
	go m.listen(ctx, signals)

	if err := m.scan(); err != nil {
		m.logger.Warn("Failed to detect existing players", zap.Error(err))
	}
	m.logger.Info("MPRIS monitor started", zap.Int("players", m.players.len()))

	<-ctx.Done()
	return ctx.Err()
}

// abort undoes a Start that never reached the signal loop
func (m *MprisMonitor) abort(conn DBusClient) {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
	}
}

// Stop ends monitoring and closes the events channel. It is safe to call
// more than once.
func (m *MprisMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	close(m.events)

	var err error
	if m.conn != nil {
		err = m.conn.Close()
		m.conn = nil
	}
	m.logger.Info("MPRIS monitor stopped")
	return err
}

// Events returns the channel playback changes are delivered on
func (m *MprisMonitor) Events() <-chan domain.MediaMetadata {
	return m.events
}

// scan registers the players already on the bus and reports what each one
// is playing
func (m *MprisMonitor) scan() error {
	names, err := m.conn.ListNames()
	if err != nil {
		return fmt.Errorf("failed to list bus names: %w", err)
	}

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		if owner, err := m.conn.GetNameOwner(name); err == nil {
			m.players.set(owner, name)
		}
		if err := m.refresh(name); err != nil {
			m.logger.Warn("Failed to read player state", zap.String("player", name), zap.Error(err))
		}
	}
	return nil
}

// refresh reads the current track of a player and reports it
func (m *MprisMonitor) refresh(name string) error {
	if !m.players.accepts(name) {
		return nil
	}

	metadata, status, err := m.readState(name)
	if errors.Is(err, errNoTrack) {
		m.logger.Debug("Player has no track", zap.String("player", name))
		return nil
	}
	if err != nil {
		return err
	}
	m.emit(trackFrom(name, metadata, status))
	return nil
}

func (m *MprisMonitor) readState(peer string) (map[string]dbus.Variant, string, error) {
	v, err := m.conn.GetProperty(peer, playerPath, playerIface+"."+propMetadata)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get metadata: %w", err)
	}
	metadata, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, "", errNoTrack
	}

	v, err = m.conn.GetProperty(peer, playerPath, playerIface+"."+propStatus)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get playback status: %w", err)
	}
	status, ok := v.Value().(string)
	if !ok {
		return nil, "", fmt.Errorf("invalid playback status %T", v.Value())
	}
	return metadata, status, nil
}

// property reads one Player property, returning nil on any failure
func (m *MprisMonitor) property(peer, prop string) any {
	v, err := m.conn.GetProperty(peer, playerPath, playerIface+"."+prop)
	if err != nil {
		return nil
	}
	return v.Value()
}

func (m *MprisMonitor) listen(ctx context.Context, signals <-chan *dbus.Signal) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig != nil {
				m.handle(sig)
			}
		}
	}
}

func (m *MprisMonitor) handle(sig *dbus.Signal) {
	switch sig.Name {
	case sigNameOwnerChanged:
		m.onOwnerChanged(sig)
	case sigPropertiesChanged:
		m.onPropertiesChanged(sig)
	}
}

// onOwnerChanged tracks players appearing, disappearing and changing owner
func (m *MprisMonitor) onOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	name, _ := sig.Body[0].(string)
	if !strings.HasPrefix(name, mprisPrefix) {
		return
	}
	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	if oldOwner != "" {
		m.players.drop(oldOwner)
	}
	if newOwner == "" {
		m.logger.Info("MPRIS player removed", zap.String("player", name))
		return
	}
	m.players.set(newOwner, name)

	if oldOwner == "" {
		m.logger.Info("MPRIS player appeared", zap.String("player", name), zap.String("unique", newOwner))
		if err := m.refresh(name); err != nil {
			m.logger.Warn("Failed to read player state", zap.String("player", name), zap.Error(err))
		}
	}
}

// onPropertiesChanged reports a track or status change. Body is
// (interface, changed properties, invalidated properties).
func (m *MprisMonitor) onPropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	if iface, _ := sig.Body[0].(string); iface != playerIface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	player := m.players.name(sig.Sender)
	if !m.players.accepts(player) {
		return
	}

	metaVar, hasMeta := changed[propMetadata]
	statusVar, hasStatus := changed[propStatus]
	if !hasMeta && !hasStatus {
		return
	}

	var metadata map[string]dbus.Variant
	var status string
	if hasMeta {
		if metadata, ok = metaVar.Value().(map[string]dbus.Variant); !ok {
			m.logger.Warn("Invalid metadata in signal", zap.String("player", player))
			return
		}
	} else {
		metadata, _ = m.property(sig.Sender, propMetadata).(map[string]dbus.Variant)
	}
	if hasStatus {
		if status, ok = statusVar.Value().(string); !ok {
			m.logger.Warn("Invalid playback status in signal", zap.String("player", player))
			return
		}
	} else {
		status, _ = m.property(sig.Sender, propStatus).(string)
	}

	m.emit(trackFrom(player, metadata, status))
}

// emit delivers meta without blocking the bus reader. A track skipped
// before the consumer reads it is never counted as played, so dropping
// is harmless.
func (m *MprisMonitor) emit(meta domain.MediaMetadata) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.events <- meta:
		m.logger.Debug("Media change detected",
			zap.String("player", meta.Player),
			zap.String("title", meta.Title),
			zap.String("artist", meta.Artist),
			zap.String("status", string(meta.Status)))
	default:
		if n := m.drops.note(time.Now()); n > 0 {
			m.logger.Warn("Events channel full, dropping playback changes", zap.Int("dropped", n))
		}
	}
}
