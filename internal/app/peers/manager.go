// Package peers owns one negotiation state machine per remote participant.
package peers

import (
	"context"
	"fmt"
	"sort"

	"github.com/dkeye/VoicePeer/internal/app/spatial"
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/dkeye/VoicePeer/internal/metrics"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	StatusCandidateFailed  = "Failed to add ICE candidate."
	StatusNegotiationError = "Failed to negotiate audio."
)

// Renderer is the part of the spatial engine remote audio is fed into.
type Renderer interface {
	NewPCMSource() (core.PCMSource, error)
	BuildPipeline(peerID string, src core.AudioSource) (*spatial.Pipeline, error)
	RemovePeer(peerID string)
}

type Deps struct {
	NewConnection core.MediaConnectionFactory
	Renderer      Renderer
	Pump          core.RemoteAudioPump
	// Send delivers an envelope to the rendezvous; false when the channel is not open.
	Send func(core.Envelope) bool
	// Post schedules fn on the session loop. Media callbacks never touch state directly.
	Post func(fn func())
	// LocalTrack is attached to every new connection when non-nil.
	LocalTrack func() webrtc.TrackLocal
	SelfID     func() string
	Status     func(text string)
	Metrics    *metrics.Metrics
}

// Manager is driven from the session loop only.
type Manager struct {
	deps  Deps
	ctx   context.Context
	peers map[string]*Peer
	log   zerolog.Logger
}

func NewManager(ctx context.Context, deps Deps) *Manager {
	if deps.Status == nil {
		deps.Status = func(string) {}
	}
	if deps.SelfID == nil {
		deps.SelfID = func() string { return "" }
	}
	return &Manager{
		deps:  deps,
		ctx:   ctx,
		peers: make(map[string]*Peer),
		log:   log.With().Str("module", "peers").Logger(),
	}
}

func (m *Manager) Get(id string) *Peer { return m.peers[id] }

func (m *Manager) Len() int { return len(m.peers) }

func (m *Manager) IDs() []string {
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Add returns the record for id, creating it on first reference.
func (m *Manager) Add(id string) (*Peer, bool, error) {
	if p, ok := m.peers[id]; ok {
		return p, false, nil
	}
	conn, err := m.deps.NewConnection(id)
	if err != nil {
		return nil, false, fmt.Errorf("peer %s: %w", id, err)
	}
	logger := m.log.With().Str("peer", id).Logger()
	p := newPeer(m.ctx, id, conn, logger)

	if err := conn.Start(p.ctx); err != nil {
		p.cancel()
		conn.Close()
		return nil, false, fmt.Errorf("peer %s: start: %w", id, err)
	}
	if m.deps.LocalTrack != nil {
		if track := m.deps.LocalTrack(); track != nil {
			if err := conn.AddLocalTrack(track); err != nil {
				logger.Warn().Err(err).Msg("attach local track failed")
			}
		}
	}
	m.bind(p)

	m.peers[id] = p
	m.deps.Metrics.SetPeers(len(m.peers))
	logger.Info().Msg("peer added")
	return p, true, nil
}

// bind routes media callbacks onto the session loop. Each completion checks
// that p is still the current record for its id.
func (m *Manager) bind(p *Peer) {
	p.conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		m.deps.Post(func() {
			if m.current(p) {
				m.send(core.ICE(p.ID, c))
			}
		})
	})
	p.conn.OnTrack(func(_ context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.deps.Post(func() { m.attachRemote(p, track) })
	})
	p.conn.OnConnected(func() {
		m.deps.Post(func() {
			if m.current(p) {
				p.fire(evConnect)
			}
		})
	})
	p.conn.OnClosed(func() {
		m.deps.Post(func() {
			if m.current(p) && p.State() != StateClosed {
				p.log.Warn().Msg("connection closed underneath")
				p.fire(evClose)
			}
		})
	})
}

func (m *Manager) current(p *Peer) bool { return m.peers[p.ID] == p }

func (m *Manager) send(env core.Envelope) {
	if m.deps.Send(env) {
		m.deps.Metrics.EnvelopeOut(env.Type)
	}
}

// Offer creates and sends a local offer for a known peer in the New state.
func (m *Manager) Offer(id string) error {
	p := m.peers[id]
	if p == nil {
		return fmt.Errorf("offer to unknown peer %s", id)
	}
	if p.State() != StateNew {
		p.log.Debug().Str("state", string(p.State())).Msg("offer skipped")
		return nil
	}
	sdp, err := p.conn.CreateAndSetOffer()
	if err != nil {
		return m.negotiationFailed(p, "offer", err)
	}
	p.offering = true
	p.fire(evNegotiate)
	m.send(core.Offer(id, sdp))
	return nil
}

// polite reports whether we yield when both sides offered at once.
// The lexicographically smaller id is the polite side.
func (m *Manager) polite(remote string) bool { return m.deps.SelfID() < remote }

// HandleOffer applies a remote offer and answers it, creating the record when needed.
func (m *Manager) HandleOffer(from string, offer webrtc.SessionDescription) error {
	p, _, err := m.Add(from)
	if err != nil {
		return err
	}
	switch {
	case p.State() == StateConnected:
		p.log.Warn().Msg("offer for connected peer dropped")
		return nil
	case p.State() == StateClosed:
		p.log.Debug().Msg("offer for closed peer dropped")
		return nil
	case p.offering:
		if !m.polite(from) {
			p.log.Info().Msg("offer collision, keeping local offer")
			return nil
		}
		p.log.Info().Msg("offer collision, rolling back local offer")
		if err := p.conn.Rollback(); err != nil {
			return m.negotiationFailed(p, "rollback", err)
		}
		p.offering = false
	}

	answer, err := p.conn.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		return m.negotiationFailed(p, "answer", err)
	}
	p.fire(evNegotiate)
	m.flushPending(p)
	m.send(core.Answer(from, answer))
	return nil
}

// HandleAnswer completes our offer. Unknown peers and stale answers are ignored.
func (m *Manager) HandleAnswer(from string, answer webrtc.SessionDescription) error {
	p := m.peers[from]
	if p == nil {
		m.log.Debug().Str("peer", from).Msg("answer from unknown peer")
		return nil
	}
	if !p.offering {
		p.log.Debug().Msg("answer without pending offer ignored")
		return nil
	}
	if err := p.conn.ApplyAnswer(answer); err != nil {
		return m.negotiationFailed(p, "apply-answer", err)
	}
	p.offering = false
	m.flushPending(p)
	return nil
}

// HandleCandidate applies a remote candidate, queueing it until the remote
// description is known.
func (m *Manager) HandleCandidate(from string, c webrtc.ICECandidateInit) {
	p := m.peers[from]
	if p == nil {
		m.log.Debug().Str("peer", from).Msg("candidate from unknown peer")
		return
	}
	if !p.conn.HasRemoteDescription() {
		p.pending = append(p.pending, c)
		return
	}
	m.applyCandidate(p, c)
}

func (m *Manager) flushPending(p *Peer) {
	pending := p.pending
	p.pending = nil
	for _, c := range pending {
		m.applyCandidate(p, c)
	}
}

func (m *Manager) applyCandidate(p *Peer, c webrtc.ICECandidateInit) {
	if err := p.conn.AddICECandidate(c); err != nil {
		p.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("add ICE candidate failed")
		m.deps.Metrics.ICECandidate(false)
		m.deps.Status(StatusCandidateFailed)
		return
	}
	m.deps.Metrics.ICECandidate(true)
}

func (m *Manager) negotiationFailed(p *Peer, step string, err error) error {
	p.log.Error().Err(err).Str("step", step).Msg("negotiation failed")
	m.deps.Metrics.NegotiationFailed(step)
	m.deps.Status(StatusNegotiationError)
	return fmt.Errorf("%w: peer %s %s: %v", domain.ErrNegotiationFailure, p.ID, step, err)
}

// attachRemote builds the pipeline on the first remote track only.
func (m *Manager) attachRemote(p *Peer, track *webrtc.TrackRemote) {
	if !m.current(p) || p.State() == StateClosed {
		return
	}
	if p.pipeline != nil {
		p.log.Debug().Msg("additional remote track ignored")
		return
	}
	src, err := m.deps.Renderer.NewPCMSource()
	if err != nil {
		p.log.Error().Err(err).Msg("remote source unavailable")
		return
	}
	pipeline, err := m.deps.Renderer.BuildPipeline(p.ID, src)
	if err != nil {
		p.log.Error().Err(err).Msg("remote pipeline failed")
		src.Stop()
		return
	}
	p.source, p.pipeline = src, pipeline
	p.log.Info().Msg("remote audio attached")
	if m.deps.Pump != nil && track != nil {
		go m.deps.Pump(p.ctx, p.ID, track, src)
	}
}

// Remove tears the peer down. Unknown ids are a no-op.
func (m *Manager) Remove(id string) bool {
	p := m.peers[id]
	if p == nil {
		return false
	}
	delete(m.peers, id)
	m.teardown(p)
	m.deps.Renderer.RemovePeer(id)
	m.deps.Metrics.SetPeers(len(m.peers))
	p.log.Info().Msg("peer removed")
	return true
}

func (m *Manager) teardown(p *Peer) {
	p.cancel()
	if !p.conn.IsClosed() {
		p.conn.Close()
	}
	p.fire(evClose)
	p.pipeline, p.source, p.pending = nil, nil, nil
}

// CloseAll tears down every peer.
func (m *Manager) CloseAll() {
	for _, id := range m.IDs() {
		m.Remove(id)
	}
}
