package session

import "github.com/dkeye/VoicePeer/internal/core"

// transportHandler forwards channel events of one join attempt onto the loop.
type transportHandler struct {
	c   *Controller
	gen uint64
}

func (h *transportHandler) current(conn core.SignalConnection) bool {
	return h.gen == h.c.gen && h.c.conn == conn
}

func (h *transportHandler) OnOpen(conn core.SignalConnection) {
	h.c.post(func() {
		if !h.current(conn) {
			return
		}
		c := h.c
		c.obs.OnConnectionStatus(ConnectionOnline)
		c.obs.OnStatus(StatusJoiningVoice)
		c.sendCounted(core.Hello(c.token))
	})
}

func (h *transportHandler) OnEnvelope(conn core.SignalConnection, env core.Envelope) {
	h.c.post(func() {
		if h.current(conn) {
			h.c.handleEnvelope(env)
		}
	})
}

func (h *transportHandler) OnClose(conn core.SignalConnection, wasOpen bool, err error) {
	h.c.post(func() {
		if !h.current(conn) {
			return
		}
		c := h.c
		c.conn = nil
		if !wasOpen {
			c.log.Error().Err(err).Msg("signal channel failed before open")
			c.fail(StatusConnectFailed)
			return
		}
		c.log.Info().Err(err).Msg("signal channel closed")
		c.resetUI()
		c.fire(evReset)
	})
}
