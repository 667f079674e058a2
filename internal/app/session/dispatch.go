package session

import (
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
)

// HandleEnvelope dispatches one inbound envelope on the loop.
func (c *Controller) HandleEnvelope(env core.Envelope) error {
	return c.exec(func() { c.handleEnvelope(env) })
}

func (c *Controller) handleEnvelope(env core.Envelope) {
	c.deps.Metrics.EnvelopeIn(env.Type)
	l := c.log.With().Str("type", env.Type).Logger()
	drop := func(reason string) {
		c.deps.Metrics.EnvelopeDropped()
		l.Debug().Str("reason", reason).Msg("envelope dropped")
	}

	switch env.Type {
	case core.TypeWelcome:
		c.onWelcome(env)
	case core.TypePeerJoin:
		c.onPeerJoin(env.ID)
	case core.TypePeerLeave:
		c.onPeerLeave(env.ID)
	case core.TypeOffer:
		if env.From == "" || env.SDP == nil {
			drop("incomplete offer")
			return
		}
		if !c.isPeer(env.From) {
			drop("offer from reserved id")
			return
		}
		_, created, err := c.peers.Add(env.From)
		if err != nil {
			l.Error().Err(err).Str("peer", env.From).Msg("peer create failed")
			return
		}
		if created {
			c.addListItem(env.From)
		}
		if err := c.peers.HandleOffer(env.From, *env.SDP); err != nil {
			l.Warn().Err(err).Msg("offer not answered")
		}
	case core.TypeAnswer:
		if env.From == "" || env.SDP == nil {
			drop("incomplete answer")
			return
		}
		if err := c.peers.HandleAnswer(env.From, *env.SDP); err != nil {
			l.Warn().Err(err).Msg("answer not applied")
		}
	case core.TypeICE:
		if env.From == "" || env.Candidate == nil {
			drop("incomplete candidate")
			return
		}
		c.peers.HandleCandidate(env.From, *env.Candidate)
	case core.TypeMute:
		if env.ID == "" || env.Muted == nil {
			drop("incomplete mute")
			return
		}
		state := domain.PeerTalking
		if *env.Muted {
			state = domain.PeerMuted
		}
		c.updateListItem(env.ID, state)
	case core.TypePTT:
		if env.ID == "" || env.Active == nil {
			drop("incomplete ptt")
			return
		}
		state := domain.PeerIdle
		if *env.Active {
			state = domain.PeerPTT
		}
		c.updateListItem(env.ID, state)
	case core.TypePosition:
		if env.Position == nil {
			drop("missing position")
			return
		}
		if c.isPeer(env.ID) {
			c.engine.UpdatePeerPosition(env.ID, *env.Position)
		} else {
			c.engine.SetSelfPosition(*env.Position)
		}
	case core.TypeRotation:
		if env.Rotation == nil {
			drop("missing rotation")
			return
		}
		if c.isPeer(env.ID) {
			c.engine.UpdatePeerRotation(env.ID, *env.Rotation)
		} else {
			c.engine.SetSelfRotation(*env.Rotation)
		}
	case core.TypeError:
		msg := env.Message
		if msg == "" {
			msg = StatusRemoteError
		}
		l.Warn().Str("message", msg).Msg("remote error")
		c.fail(msg)
	default:
		drop("unknown type")
	}
}

// isPeer reports whether id can name a remote peer. Our own id and the
// debug source ids never can.
func (c *Controller) isPeer(id string) bool {
	return id != "" && id != c.selfID && !domain.IsDebugPeerID(id)
}

func (c *Controller) onWelcome(env core.Envelope) {
	c.selfID = env.ID
	c.engine.SetSelfID(env.ID)
	c.obs.OnSelfID(env.ID)
	c.userName = env.UserName
	c.obs.OnUserName(env.UserName)
	if env.Config != nil {
		c.engine.SetRangeConfig(*env.Config)
	}
	c.obs.OnStatus(StatusWaitingForPeers)
	c.obs.OnMuteDisabled(false)
	c.fire(evWelcome)

	added := 0
	for _, id := range env.Peers {
		if !c.isPeer(id) {
			continue
		}
		if c.connectPeer(id) {
			added++
		}
	}
	if added > 0 {
		c.obs.OnStatus(StatusNegotiating)
	}
}

func (c *Controller) onPeerJoin(id string) {
	if !c.isPeer(id) || c.peers.Get(id) != nil {
		return
	}
	c.connectPeer(id)
}

// connectPeer creates the record and sends our offer.
func (c *Controller) connectPeer(id string) bool {
	_, created, err := c.peers.Add(id)
	if err != nil {
		c.log.Error().Err(err).Str("peer", id).Msg("peer create failed")
		return false
	}
	if created {
		c.addListItem(id)
	}
	if err := c.peers.Offer(id); err != nil {
		c.log.Warn().Err(err).Str("peer", id).Msg("offer failed")
	}
	return true
}

func (c *Controller) onPeerLeave(id string) {
	if id == "" {
		return
	}
	if !c.peers.Remove(id) {
		return
	}
	c.removeListItem(id)
	c.obs.OnStatus(StatusPeerLeft)
}
