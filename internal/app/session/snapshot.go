package session

import (
	"github.com/dkeye/VoicePeer/internal/app/debugsrc"
	"github.com/dkeye/VoicePeer/internal/app/peers"
	"github.com/dkeye/VoicePeer/internal/app/spatial"
)

type PeerInfo struct {
	ID       string      `json:"id"`
	State    peers.State `json:"state"`
	Pipeline bool        `json:"pipeline"`
}

// Snapshot is the internal view exposed for diagnostics.
type Snapshot struct {
	Session    string          `json:"session"`
	State      State           `json:"state"`
	SelfID     string          `json:"selfId"`
	Muted      bool            `json:"muted"`
	PttEnabled bool            `json:"pttEnabled"`
	PttActive  bool            `json:"pttActive"`
	Capture    string          `json:"capture"`
	Peers      []PeerInfo      `json:"peers"`
	Spatial    spatial.State   `json:"spatial"`
	Debug      []debugsrc.Kind `json:"debug"`
}

func (c *Controller) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := c.exec(func() { s = c.snapshot() })
	return s, err
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		Session:    c.id,
		State:      c.state(),
		SelfID:     c.selfID,
		Muted:      c.muted,
		PttEnabled: c.pttEnabled,
		PttActive:  c.pttActive,
		Capture:    "none",
		Peers:      []PeerInfo{},
		Spatial:    c.engine.State(),
		Debug:      c.debug.Active(),
	}
	if c.capture != nil {
		s.Capture = c.capture.State().String()
	}
	for _, id := range c.peers.IDs() {
		p := c.peers.Get(id)
		s.Peers = append(s.Peers, PeerInfo{ID: id, State: p.State(), Pipeline: p.HasPipeline()})
	}
	return s
}
