// Package source adapts WebRTC stats reports into stats.Snapshot values.
//
// Both pion's StatsReport and a browser RTCStatsReport serialise to the same
// W3C JSON dictionaries, so everything goes through DecodeReport.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

// W3C stats types consumed here.
const (
	typeInboundRTP    = "inbound-rtp"
	typeCandidatePair = "candidate-pair"
	pairSucceeded     = "succeeded"
)

// ErrEmptyReport is returned for input that is neither a JSON array nor a
// JSON object.
var ErrEmptyReport = errors.New("empty stats report")

// entry is the discriminating subset of every stats dictionary.
type entry struct {
	Type      string  `json:"type"`
	Kind      string  `json:"kind"`
	MediaType string  `json:"mediaType"`
	State     string  `json:"state"`
	Nominated bool    `json:"nominated"`
	Bytes     float64 `json:"bytesReceived"`
}

func (e entry) kind() string {
	if e.Kind != "" {
		return e.Kind
	}
	return e.MediaType
}

// pairRank orders candidate pairs: nominated and succeeded first.
func (e entry) pairRank() int {
	rank := 0
	if e.State == pairSucceeded {
		rank++
	}
	if e.Nominated {
		rank += 2
	}
	return rank
}

// DecodeReport parses a stats report given either as a JSON array of stats
// objects or as an object keyed by stats id.
//
// The inbound-rtp stream with the most bytes per kind becomes that kind's
// sample. The transport sample comes from the best candidate pair: nominated,
// then succeeded, then most bytes. Kinds with nothing usable are absent.
func DecodeReport(data []byte) (stats.Snapshot, error) {
	raws, err := splitReport(data)
	if err != nil {
		return nil, err
	}

	snap := make(stats.Snapshot, len(stats.Kinds))
	best := make(map[stats.Kind]entry, len(stats.Kinds))

	for _, raw := range raws {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode stats entry: %w", err)
		}

		var kind stats.Kind
		switch e.Type {
		case typeInboundRTP:
			switch e.kind() {
			case string(stats.KindVideo):
				kind = stats.KindVideo
			case string(stats.KindAudio):
				kind = stats.KindAudio
			default:
				continue
			}
			if prev, ok := best[kind]; ok && prev.Bytes >= e.Bytes {
				continue
			}
		case typeCandidatePair:
			if e.pairRank() == 0 {
				continue
			}
			kind = stats.KindTransport
			if prev, ok := best[kind]; ok {
				if prev.pairRank() > e.pairRank() {
					continue
				}
				if prev.pairRank() == e.pairRank() && prev.Bytes >= e.Bytes {
					continue
				}
			}
		default:
			continue
		}

		var s stats.Sample
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode %s sample: %w", kind, err)
		}
		s.Kind = kind
		snap[kind] = s
		best[kind] = e
	}
	return snap, nil
}

// splitReport returns the individual stats objects of a report.
func splitReport(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyReport
	}

	switch data[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode stats report: %w", err)
		}
		return list, nil
	case '{':
		var byID map[string]json.RawMessage
		if err := json.Unmarshal(data, &byID); err != nil {
			return nil, fmt.Errorf("decode stats report: %w", err)
		}
		list := make([]json.RawMessage, 0, len(byID))
		for _, raw := range byID {
			list = append(list, raw)
		}
		return list, nil
	default:
		return nil, ErrEmptyReport
	}
}
