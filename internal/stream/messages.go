package stream

import (
	"time"

	"github.com/star/terrafusion/internal/telemetry"
)

// metadataMessage is the first message on every connection.
type metadataMessage struct {
	Type           string `json:"type"`
	SessionID      string `json:"session_id"`
	ServerTime     string `json:"server_time"`
	LandmassSource string `json:"landmass_source,omitempty"`
	LandmassAge    int    `json:"landmass_age_seconds"`
	Every          int    `json:"every"`
}

// snapshotMessage wraps a telemetry snapshot on the wire.
type snapshotMessage struct {
	Type string `json:"type"`
	*telemetry.Snapshot
	Dropped uint64 `json:"dropped,omitempty"`
}

func newSnapshotMessage(s *telemetry.Snapshot, dropped uint64) snapshotMessage {
	return snapshotMessage{Type: "snapshot", Snapshot: s, Dropped: dropped}
}

func (h *Handler) metadata(session string, every int) metadataMessage {
	m := metadataMessage{
		Type:       "metadata",
		SessionID:  session,
		ServerTime: time.Now().UTC().Format(time.RFC3339),
		Every:      every,
	}
	if h.landmass != nil {
		if ds := h.landmass.Get(); ds != nil {
			m.LandmassSource = ds.Source
			m.LandmassAge = int(h.landmass.AgeSeconds())
		}
	}
	return m
}
