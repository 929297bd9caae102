package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/randomizedcoder/go-whep-stats/internal/poller"
	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

// StatsProvider is the part of *webrtc.PeerConnection the source needs.
type StatsProvider interface {
	GetStats() webrtc.StatsReport
	ConnectionState() webrtc.PeerConnectionState
}

// PeerSource reads snapshots from a pion peer connection.
type PeerSource struct {
	pc     StatsProvider
	logger *slog.Logger
}

// NewPeerSource wraps pc.
func NewPeerSource(pc StatsProvider, logger *slog.Logger) *PeerSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeerSource{pc: pc, logger: logger}
}

// Alive reports whether the connection can still produce stats.
func (s *PeerSource) Alive() bool {
	switch s.pc.ConnectionState() {
	case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed:
		return false
	default:
		return true
	}
}

// Snapshot returns the current inbound audio/video and transport counters.
func (s *PeerSource) Snapshot(ctx context.Context) (stats.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Alive() {
		return nil, fmt.Errorf("peer connection %s: %w", s.pc.ConnectionState(), poller.ErrTransportUnavailable)
	}

	report := s.pc.GetStats()
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode stats report: %w", err)
	}

	snap, err := DecodeReport(raw)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("stats_snapshot", "entries", len(report), "kinds", len(snap))
	return snap, nil
}
