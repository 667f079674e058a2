// Package session is the top-level orchestrator of a voice session: identity,
// capture gating, signaling dispatch and the observable state surface.
package session

import (
	"context"
	"errors"

	"github.com/dkeye/VoicePeer/internal/app/capture"
	"github.com/dkeye/VoicePeer/internal/app/debugsrc"
	"github.com/dkeye/VoicePeer/internal/app/peers"
	"github.com/dkeye/VoicePeer/internal/app/spatial"
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/metrics"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateIdle              State = "idle"
	StateRequestingCapture State = "requesting_capture"
	StateJoining           State = "joining"
	StateJoined            State = "joined"
	StateError             State = "error"
	StateClosed            State = "closed"
)

const (
	evStart   = "start"
	evJoin    = "join"
	evWelcome = "welcome"
	evFail    = "fail"
	evReset   = "reset"
	evClose   = "close"
)

type Deps struct {
	Connector     core.SignalConnector
	Microphone    core.Microphone
	NewConnection core.MediaConnectionFactory
	Pump          core.RemoteAudioPump
	Engine        *spatial.Engine
	Observer      core.Observer
	Metrics       *metrics.Metrics
}

type Config struct {
	// Endpoint is the resolved rendezvous URL.
	Endpoint string
	Capture  capture.Config
}

// Controller owns the local session and every peer record. All state is
// touched on the loop goroutine started by Run.
type Controller struct {
	id   string
	cfg  Config
	deps Deps
	obs  core.Observer
	log  zerolog.Logger

	box  *mailbox
	done chan struct{}

	machine *fsm.FSM
	engine  *spatial.Engine
	peers   *peers.Manager
	debug   *debugsrc.Manager

	// gen invalidates completions of a previous join attempt.
	gen           uint64
	conn          core.SignalConnection
	capture       *capture.Stream
	captureCancel context.CancelFunc

	token      string
	selfID     string
	userName   string
	muted      bool
	pttEnabled bool
	pttActive  bool
	list       []peerRow
}

func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Connector == nil || deps.Microphone == nil || deps.NewConnection == nil || deps.Engine == nil {
		return nil, errors.New("session: connector, microphone, connection factory and engine are required")
	}
	obs := deps.Observer
	if obs == nil {
		obs = core.NopObserver{}
	}
	c := &Controller{
		id:     uuid.NewString(),
		cfg:    cfg,
		deps:   deps,
		obs:    obs,
		box:    newMailbox(),
		done:   make(chan struct{}),
		engine: deps.Engine,
	}
	c.log = log.With().Str("module", "session").Str("session", c.id).Logger()
	c.machine = c.newMachine()
	c.peers = peers.NewManager(context.Background(), peers.Deps{
		NewConnection: deps.NewConnection,
		Renderer:      deps.Engine,
		Pump:          deps.Pump,
		Send:          c.send,
		Post:          c.post,
		LocalTrack:    c.localTrack,
		SelfID:        func() string { return c.selfID },
		Status:        obs.OnStatus,
		Metrics:       deps.Metrics,
	})
	c.debug = debugsrc.NewManager(deps.Engine, cfg.Capture.SampleRate, deps.Metrics)
	return c, nil
}

func (c *Controller) newMachine() *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evStart, Src: []string{string(StateIdle), string(StateError), string(StateClosed)}, Dst: string(StateRequestingCapture)},
			{Name: evJoin, Src: []string{string(StateRequestingCapture)}, Dst: string(StateJoining)},
			{Name: evWelcome, Src: []string{string(StateJoining)}, Dst: string(StateJoined)},
			{Name: evFail, Src: []string{string(StateIdle), string(StateRequestingCapture), string(StateJoining), string(StateJoined)}, Dst: string(StateError)},
			{Name: evReset, Src: []string{string(StateJoining), string(StateJoined), string(StateError)}, Dst: string(StateIdle)},
			{Name: evClose, Src: []string{string(StateIdle), string(StateRequestingCapture), string(StateJoining), string(StateJoined), string(StateError)}, Dst: string(StateClosed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.log.Info().Str("from", e.Src).Str("state", e.Dst).Msg("session state")
				c.deps.Metrics.SessionState(e.Dst)
			},
		},
	)
}

// ID is the correlation id of this controller, used in logs.
func (c *Controller) ID() string { return c.id }

func (c *Controller) state() State { return State(c.machine.Current()) }

func (c *Controller) fire(event string) {
	if !c.machine.Can(event) {
		return
	}
	err := c.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		c.log.Warn().Err(err).Str("event", event).Msg("session transition failed")
	}
}

func (c *Controller) localTrack() webrtc.TrackLocal {
	if c.capture == nil {
		return nil
	}
	return c.capture.Track
}

func (c *Controller) send(env core.Envelope) bool {
	if c.conn == nil {
		return false
	}
	if !c.conn.Send(env) {
		c.log.Debug().Str("type", env.Type).Msg("envelope not sent, channel not open")
		return false
	}
	return true
}

// sendCounted is send plus the outbound metric; the peers manager counts its own.
func (c *Controller) sendCounted(env core.Envelope) {
	if c.send(env) {
		c.deps.Metrics.EnvelopeOut(env.Type)
	}
}
