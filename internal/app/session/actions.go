package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/VoicePeer/internal/app/capture"
	"github.com/dkeye/VoicePeer/internal/app/debugsrc"
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
)

// StartSession requests capture and opens the signaling channel. It returns
// once capture is granted and the channel is dialing; the rest of the join is
// reported through the observer.
func (c *Controller) StartSession(ctx context.Context, token string) error {
	var (
		gen      uint64
		startErr error
		capCtx   context.Context
	)
	if err := c.exec(func() { gen, capCtx, startErr = c.beginJoin(token) }); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	// Waiting for the device happens on the caller, never on the loop.
	frames, capErr := c.deps.Microphone.Open(capCtx)

	var joinErr error
	if err := c.exec(func() { joinErr = c.captureReady(ctx, gen, frames, capErr) }); err != nil {
		return err
	}
	return joinErr
}

func (c *Controller) beginJoin(token string) (uint64, context.Context, error) {
	if token == "" {
		c.fail(StatusMissingToken)
		return 0, nil, domain.ErrMissingCredential
	}
	if !c.machine.Can(evStart) {
		return 0, nil, fmt.Errorf("%w: %s", domain.ErrSessionActive, c.state())
	}
	// A rejoin after a transport close starts from a clean slate.
	c.release()

	c.gen++
	c.fire(evStart)
	c.obs.OnJoinDisabled(true)
	c.obs.OnStatus(StatusRequestingMic)

	capCtx, cancel := context.WithCancel(context.Background())
	c.captureCancel = cancel
	c.token = token
	return c.gen, capCtx, nil
}

func (c *Controller) captureReady(ctx context.Context, gen uint64, frames <-chan []int16, capErr error) error {
	if gen != c.gen || c.state() != StateRequestingCapture {
		c.log.Debug().Msg("stale capture completion ignored")
		return domain.ErrClosed
	}
	if capErr != nil {
		c.log.Warn().Err(capErr).Msg("capture denied")
		c.obs.OnMicStatus(MicDenied)
		c.fail(StatusMicDenied)
		c.stopCapture()
		return fmt.Errorf("%w: %v", domain.ErrCaptureDenied, capErr)
	}
	c.obs.OnMicStatus(MicGranted)

	stream, err := capture.NewStream(c.cfg.Capture)
	if err != nil {
		c.fail(err.Error())
		c.stopCapture()
		return err
	}
	c.capture = stream
	stream.Start(context.Background(), frames)
	c.applyTrackState(false)

	c.fire(evJoin)
	h := &transportHandler{c: c, gen: gen}
	conn, err := c.deps.Connector.Connect(ctx, c.cfg.Endpoint, h)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("signal connect failed")
		c.fail(StatusConnectFailed)
		return fmt.Errorf("%w: %v", domain.ErrSignalingFailure, err)
	}
	c.conn = conn
	return nil
}

// fail reports a session-fatal error and leaves the controller rejoinable.
func (c *Controller) fail(status string) {
	c.obs.OnStatus(status)
	c.obs.OnConnectionStatus(ConnectionError)
	c.obs.OnJoinDisabled(false)
	c.obs.OnMuteDisabled(true)
	c.fire(evFail)
}

func (c *Controller) talkEnabled() bool {
	return !c.muted && (!c.pttEnabled || c.pttActive)
}

// applyTrackState gates the shared capture track and optionally reports it.
func (c *Controller) applyTrackState(announce bool) {
	if c.capture == nil {
		return
	}
	live := c.talkEnabled()
	c.capture.SetEnabled(live)
	if !announce {
		return
	}
	if live {
		c.obs.OnStatus(StatusMicLive)
	} else {
		c.obs.OnStatus(StatusMicMuted)
	}
}

// ToggleMute flips the local mute flag and returns the new value.
func (c *Controller) ToggleMute() (bool, error) {
	var muted bool
	err := c.exec(func() {
		c.muted = !c.muted
		muted = c.muted
		c.obs.OnMuted(muted)
		c.applyTrackState(true)
		c.sendCounted(core.Mute(muted))
	})
	return muted, err
}

// TogglePttMode flips push-to-talk mode; the key always starts released.
func (c *Controller) TogglePttMode() (bool, error) {
	var enabled bool
	err := c.exec(func() {
		c.pttEnabled = !c.pttEnabled
		c.pttActive = false
		enabled = c.pttEnabled
		c.obs.OnPttActive(false)
		c.applyTrackState(true)
		c.sendCounted(core.PTT(false))
	})
	return enabled, err
}

// SetPttActive is the push-to-talk key input. Ignored unless the mode is on.
func (c *Controller) SetPttActive(active bool) error {
	return c.exec(func() {
		if !c.pttEnabled || c.pttActive == active {
			return
		}
		c.pttActive = active
		c.obs.OnPttActive(active)
		c.applyTrackState(true)
		c.sendCounted(core.PTT(active))
	})
}

func (c *Controller) SetPanningModel(m domain.PanningModel) error {
	return c.exec(func() { c.engine.SetPanningModel(m) })
}

func (c *Controller) SetDirectionalMode(mode domain.DirectionalMode) error {
	var err error
	if e := c.exec(func() { err = c.engine.SetDirectionalMode(mode) }); e != nil {
		return e
	}
	return err
}

// SetSourcePosition places any source, typically a debug one, in the world.
func (c *Controller) SetSourcePosition(id string, pos domain.Vec3) error {
	return c.exec(func() {
		if c.selfID != "" && id == c.selfID {
			c.engine.SetSelfPosition(pos)
			return
		}
		c.engine.UpdatePeerPosition(id, pos)
	})
}

func (c *Controller) StartDebugFile(path string) error {
	var err error
	if e := c.exec(func() { err = c.debug.StartFile(path) }); e != nil {
		return e
	}
	return err
}

func (c *Controller) StartDebugMic() error {
	var err error
	e := c.exec(func() {
		if c.capture == nil {
			err = c.debug.StartMic(nil)
			return
		}
		err = c.debug.StartMic(c.capture)
	})
	if e != nil {
		return e
	}
	return err
}

func (c *Controller) StopDebug() error {
	return c.exec(c.debug.StopAll)
}

// Destroy tears everything down. Safe to call repeatedly and from any state.
func (c *Controller) Destroy() error {
	err := c.exec(c.destroy)
	if errors.Is(err, domain.ErrClosed) {
		return nil
	}
	return err
}

func (c *Controller) destroy() {
	hadConn := c.conn != nil
	c.gen++
	c.release()
	c.debug.StopAll()
	c.engine.Close()
	if hadConn {
		c.resetUI()
	}
	c.fire(evClose)
}

// release closes the channel, stops capture and drops every peer record.
func (c *Controller) release() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.debug.Stop(debugsrc.KindMic)
	c.stopCapture()
	if c.peers.Len() > 0 {
		c.peers.CloseAll()
	}
	if len(c.list) > 0 {
		c.list = nil
		c.publishList()
	}
}

func (c *Controller) stopCapture() {
	if c.captureCancel != nil {
		c.captureCancel()
		c.captureCancel = nil
	}
	if c.capture != nil {
		c.capture.Stop()
		c.capture = nil
	}
}

func (c *Controller) resetUI() {
	c.obs.OnConnectionStatus(ConnectionOffline)
	c.obs.OnStatus(StatusDisconnected)
	c.obs.OnJoinDisabled(false)
	c.obs.OnMuteDisabled(true)
	c.userName = ""
	c.obs.OnUserName("")
}
