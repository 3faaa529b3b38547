//go:build !linux

package monitor

import (
	"context"
	"errors"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

var errUnsupported = errors.New("MPRIS monitoring is only supported on Linux")

// MprisMonitor never reports playback outside Linux; play history stays
// empty there.
type MprisMonitor struct {
	logger *zap.Logger
	events chan domain.MediaMetadata
}

func NewMprisMonitor(logger *zap.Logger, players ...string) *MprisMonitor {
	events := make(chan domain.MediaMetadata)
	close(events)
	return &MprisMonitor{logger: logger, events: events}
}

func (m *MprisMonitor) Start(context.Context) error {
	return errUnsupported
}

func (m *MprisMonitor) Events() <-chan domain.MediaMetadata {
	return m.events
}

func (m *MprisMonitor) Stop(context.Context) error {
	return nil
}
