package peers

import (
	"context"
	"errors"

	"github.com/dkeye/VoicePeer/internal/app/spatial"
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type State string

const (
	StateNew         State = "new"
	StateNegotiating State = "negotiating"
	StateConnected   State = "connected"
	StateClosed      State = "closed"
)

const (
	evNegotiate = "negotiate"
	evConnect   = "connect"
	evClose     = "close"
)

// Peer is the record of one remote participant. Its connection and pipeline
// live and die together.
type Peer struct {
	ID string

	conn     core.MediaConnection
	machine  *fsm.FSM
	pipeline *spatial.Pipeline
	source   core.PCMSource

	// offering is set while our offer waits for an answer.
	offering bool
	pending  []webrtc.ICECandidateInit

	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

func newPeer(ctx context.Context, id string, conn core.MediaConnection, logger zerolog.Logger) *Peer {
	p := &Peer{ID: id, conn: conn, log: logger}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.machine = fsm.NewFSM(
		string(StateNew),
		fsm.Events{
			{Name: evNegotiate, Src: []string{string(StateNew)}, Dst: string(StateNegotiating)},
			{Name: evConnect, Src: []string{string(StateNew), string(StateNegotiating)}, Dst: string(StateConnected)},
			{Name: evClose, Src: []string{string(StateNew), string(StateNegotiating), string(StateConnected)}, Dst: string(StateClosed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				p.log.Debug().Str("from", e.Src).Str("state", e.Dst).Msg("peer state")
			},
		},
	)
	return p
}

func (p *Peer) State() State { return State(p.machine.Current()) }

// HasPipeline reports whether remote audio is being rendered.
func (p *Peer) HasPipeline() bool { return p.pipeline != nil }

func (p *Peer) Pipeline() *spatial.Pipeline { return p.pipeline }

func (p *Peer) fire(event string) {
	if !p.machine.Can(event) {
		return
	}
	err := p.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		p.log.Warn().Err(err).Str("event", event).Msg("peer transition failed")
	}
}
