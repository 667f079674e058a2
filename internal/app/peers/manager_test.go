package peers

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/VoicePeer/internal/app/spatial"
	"github.com/dkeye/VoicePeer/internal/audio"
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	closed     bool
	tracks     []webrtc.TrackLocal
	remote     bool
	rollbacks  int
	candidates []webrtc.ICECandidateInit

	offerErr  error
	answerErr error
	applyErr  error
	iceErr    error

	onICE       func(webrtc.ICECandidateInit)
	onTrack     func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)
	onConnected func()
	onClosed    func()
}

func (c *fakeConn) Start(context.Context) error { return nil }
func (c *fakeConn) Close()                      { c.closed = true }
func (c *fakeConn) IsClosed() bool              { return c.closed }

func (c *fakeConn) AddLocalTrack(t webrtc.TrackLocal) error {
	c.tracks = append(c.tracks, t)
	return nil
}

func (c *fakeConn) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	if c.offerErr != nil {
		return nil, c.offerErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "local-offer"}, nil
}

func (c *fakeConn) ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if c.answerErr != nil {
		return nil, c.answerErr
	}
	c.remote = true
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "local-answer"}, nil
}

func (c *fakeConn) ApplyAnswer(webrtc.SessionDescription) error {
	if c.applyErr != nil {
		return c.applyErr
	}
	c.remote = true
	return nil
}

func (c *fakeConn) Rollback() error {
	c.rollbacks++
	return nil
}

func (c *fakeConn) HasRemoteDescription() bool { return c.remote }

func (c *fakeConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	if c.iceErr != nil {
		return c.iceErr
	}
	c.candidates = append(c.candidates, cand)
	return nil
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }
func (c *fakeConn) OnTrack(fn func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.onTrack = fn
}
func (c *fakeConn) OnConnected(fn func()) { c.onConnected = fn }
func (c *fakeConn) OnClosed(fn func())    { c.onClosed = fn }

type harness struct {
	m       *Manager
	engine  *spatial.Engine
	conns   map[string]*fakeConn
	made    int
	sent    []core.Envelope
	posted  []func()
	status  []string
	selfID  string
	connErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{conns: make(map[string]*fakeConn), selfID: "me"}
	e, err := spatial.NewEngine(func() (core.AudioContext, error) {
		return audio.NewContext(16000), nil
	}, spatial.Options{})
	require.NoError(t, err)
	h.engine = e
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeG722, ClockRate: 8000}, "audio", "test")
	require.NoError(t, err)

	h.m = NewManager(context.Background(), Deps{
		NewConnection: func(id string) (core.MediaConnection, error) {
			if h.connErr != nil {
				return nil, h.connErr
			}
			h.made++
			c := &fakeConn{}
			h.conns[id] = c
			return c, nil
		},
		Renderer:   e,
		Send:       func(env core.Envelope) bool { h.sent = append(h.sent, env); return true },
		Post:       func(fn func()) { h.posted = append(h.posted, fn) },
		LocalTrack: func() webrtc.TrackLocal { return track },
		SelfID:     func() string { return h.selfID },
		Status:     func(s string) { h.status = append(h.status, s) },
	})
	return h
}

func (h *harness) drain() {
	for len(h.posted) > 0 {
		fn := h.posted[0]
		h.posted = h.posted[1:]
		fn()
	}
}

func (h *harness) types() []string {
	out := make([]string, 0, len(h.sent))
	for _, e := range h.sent {
		out = append(out, e.Type)
	}
	return out
}

var remoteOffer = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote-offer"}
var remoteAnswer = webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "remote-answer"}

func TestManager_AddIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p1, created, err := h.m.Add("p1")
	require.NoError(t, err)
	assert.True(t, created)

	p2, created, err := h.m.Add("p1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, h.made)
	assert.Len(t, h.conns["p1"].tracks, 1)
	assert.Equal(t, StateNew, p1.State())
}

func TestManager_AddFactoryError(t *testing.T) {
	h := newHarness(t)
	h.connErr = errors.New("no ice servers")
	_, _, err := h.m.Add("p1")
	assert.Error(t, err)
	assert.Zero(t, h.m.Len())
}

func TestManager_OutboundOffer(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	require.NoError(t, h.m.Offer("p1"))

	require.Len(t, h.sent, 1)
	assert.Equal(t, core.TypeOffer, h.sent[0].Type)
	assert.Equal(t, "p1", h.sent[0].To)
	assert.Equal(t, "local-offer", h.sent[0].SDP.SDP)
	assert.Equal(t, StateNegotiating, h.m.Get("p1").State())

	require.NoError(t, h.m.Offer("p1"))
	assert.Len(t, h.sent, 1, "second offer skipped")
	assert.Error(t, h.m.Offer("ghost"))
}

func TestManager_JoinThenOfferKeepsOneRecord(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("zz")
	require.NoError(t, err)
	require.NoError(t, h.m.HandleOffer("zz", remoteOffer))

	assert.Equal(t, 1, h.made)
	assert.Equal(t, []string{"zz"}, h.m.IDs())
	assert.Equal(t, []string{core.TypeAnswer}, h.types())
	assert.Equal(t, "zz", h.sent[0].To)
}

func TestManager_InboundOfferCreatesRecord(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.HandleOffer("p9", remoteOffer))
	assert.NotNil(t, h.m.Get("p9"))
	assert.Equal(t, StateNegotiating, h.m.Get("p9").State())
}

func TestManager_OfferCollision(t *testing.T) {
	tests := []struct {
		name      string
		self      string
		rollbacks int
		sent      []string
	}{
		{"polite side answers", "a", 1, []string{core.TypeOffer, core.TypeAnswer}},
		{"impolite side keeps offer", "z", 0, []string{core.TypeOffer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.selfID = tt.self
			_, _, err := h.m.Add("m")
			require.NoError(t, err)
			require.NoError(t, h.m.Offer("m"))

			require.NoError(t, h.m.HandleOffer("m", remoteOffer))
			assert.Equal(t, tt.rollbacks, h.conns["m"].rollbacks)
			assert.Equal(t, tt.sent, h.types())
		})
	}
}

func TestManager_OfferForConnectedPeerDropped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.HandleOffer("p1", remoteOffer))
	h.conns["p1"].onConnected()
	h.drain()
	require.Equal(t, StateConnected, h.m.Get("p1").State())

	require.NoError(t, h.m.HandleOffer("p1", remoteOffer))
	assert.Len(t, h.sent, 1)
}

func TestManager_AnswerPaths(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.HandleAnswer("ghost", remoteAnswer))

	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	require.NoError(t, h.m.HandleAnswer("p1", remoteAnswer))
	assert.False(t, h.conns["p1"].remote, "answer without offer ignored")

	require.NoError(t, h.m.Offer("p1"))
	require.NoError(t, h.m.HandleAnswer("p1", remoteAnswer))
	assert.True(t, h.conns["p1"].remote)
}

func TestManager_CandidatesQueuedUntilRemoteDescription(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	require.NoError(t, h.m.Offer("p1"))

	h.m.HandleCandidate("p1", webrtc.ICECandidateInit{Candidate: "c1"})
	h.m.HandleCandidate("p1", webrtc.ICECandidateInit{Candidate: "c2"})
	assert.Empty(t, h.conns["p1"].candidates)

	require.NoError(t, h.m.HandleAnswer("p1", remoteAnswer))
	require.Len(t, h.conns["p1"].candidates, 2)
	assert.Equal(t, "c1", h.conns["p1"].candidates[0].Candidate)

	h.m.HandleCandidate("p1", webrtc.ICECandidateInit{Candidate: "c3"})
	assert.Len(t, h.conns["p1"].candidates, 3)
	h.m.HandleCandidate("ghost", webrtc.ICECandidateInit{Candidate: "c4"})
}

func TestManager_RejectedCandidateDegradesToStatus(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.HandleOffer("p1", remoteOffer))
	h.conns["p1"].iceErr = errors.New("bad candidate")

	h.m.HandleCandidate("p1", webrtc.ICECandidateInit{Candidate: "garbage"})
	assert.Equal(t, []string{StatusCandidateFailed}, h.status)
	assert.NotNil(t, h.m.Get("p1"))
}

func TestManager_NegotiationFailure(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	h.conns["p1"].answerErr = errors.New("bad sdp")

	err = h.m.HandleOffer("p1", remoteOffer)
	assert.ErrorIs(t, err, domain.ErrNegotiationFailure)
	assert.Empty(t, h.sent)
	assert.Equal(t, []string{StatusNegotiationError}, h.status)
	assert.NotNil(t, h.m.Get("p1"))
}

func TestManager_LocalCandidatesForwarded(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	h.conns["p1"].onICE(webrtc.ICECandidateInit{Candidate: "local"})
	assert.Empty(t, h.sent, "posted, not sent inline")

	h.drain()
	require.Len(t, h.sent, 1)
	assert.Equal(t, core.TypeICE, h.sent[0].Type)
	assert.Equal(t, "local", h.sent[0].Candidate.Candidate)
}

func TestManager_RemoteTrackAttachedOnce(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	c := h.conns["p1"]
	c.onTrack(context.Background(), nil, nil)
	c.onTrack(context.Background(), nil, nil)
	h.drain()

	p := h.m.Get("p1")
	require.True(t, p.HasPipeline())
	assert.Same(t, p.Pipeline(), h.engine.Pipeline("p1"))
	assert.Equal(t, []string{"p1"}, h.engine.Pipelines())
}

func TestManager_RemoveTearsDownOnlyThatPeer(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"p1", "p2"} {
		_, _, err := h.m.Add(id)
		require.NoError(t, err)
		h.conns[id].onTrack(context.Background(), nil, nil)
	}
	h.drain()
	require.Len(t, h.engine.Pipelines(), 2)

	assert.True(t, h.m.Remove("p1"))
	assert.True(t, h.conns["p1"].closed)
	assert.False(t, h.conns["p2"].closed)
	assert.Equal(t, []string{"p2"}, h.engine.Pipelines())
	assert.Equal(t, []string{"p2"}, h.m.IDs())

	assert.False(t, h.m.Remove("p1"))
	assert.False(t, h.m.Remove("unknown"))
}

func TestManager_StaleCallbacksAreNoops(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	c := h.conns["p1"]
	h.m.Remove("p1")

	c.onICE(webrtc.ICECandidateInit{Candidate: "late"})
	c.onTrack(context.Background(), nil, nil)
	c.onConnected()
	c.onClosed()
	h.drain()

	assert.Empty(t, h.sent)
	assert.Empty(t, h.engine.Pipelines())
}

func TestManager_ClosedUnderneath(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.m.Add("p1")
	require.NoError(t, err)
	h.conns["p1"].onClosed()
	h.drain()
	assert.Equal(t, StateClosed, h.m.Get("p1").State())

	require.NoError(t, h.m.HandleOffer("p1", remoteOffer))
	assert.Empty(t, h.sent)
}

func TestManager_CloseAll(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := h.m.Add(id)
		require.NoError(t, err)
	}
	h.m.CloseAll()
	assert.Zero(t, h.m.Len())
	for _, c := range h.conns {
		assert.True(t, c.closed)
	}
	assert.NotPanics(t, h.m.CloseAll)
}
