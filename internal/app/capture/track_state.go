package capture

import "sync/atomic"

type TrackState int32

const (
	TrackLive TrackState = iota
	TrackMuted
	TrackStopped
)

func (s TrackState) String() string {
	switch s {
	case TrackLive:
		return "live"
	case TrackMuted:
		return "muted"
	case TrackStopped:
		return "stopped"
	}
	return "unknown"
}

// trackGate is read on the capture goroutine and written by the session loop.
type trackGate struct {
	state atomic.Int32 // Zero by default (TrackLive)
}

func (g *trackGate) get() TrackState { return TrackState(g.state.Load()) }

func (g *trackGate) markLive() {
	g.state.CompareAndSwap(int32(TrackMuted), int32(TrackLive))
}

func (g *trackGate) markMuted() {
	g.state.CompareAndSwap(int32(TrackLive), int32(TrackMuted))
}

func (g *trackGate) markStopped() { g.state.Store(int32(TrackStopped)) }
