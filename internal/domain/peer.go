package domain

type PeerState string

const (
	PeerIdle    PeerState = "Idle"
	PeerTalking PeerState = "Talking"
	PeerMuted   PeerState = "Muted"
	PeerPTT     PeerState = "PTT"
)

// PeerEntry is one row of the peer list shown to the user.
type PeerEntry struct {
	ID    string    `json:"id"`
	State PeerState `json:"state"`
}

// Synthetic ids used by the debug sources.
const (
	DebugFilePeerID = "debug-file"
	DebugMicPeerID  = "debug-mic"
)

// IsDebugPeerID reports whether id is reserved for a local debug source.
func IsDebugPeerID(id string) bool {
	return id == DebugFilePeerID || id == DebugMicPeerID
}
