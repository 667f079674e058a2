package session

import (
	"context"
	"sync"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/pion/webrtc/v4"
)

type fakeSignal struct {
	mu     sync.Mutex
	open   bool
	closed bool
	sent   []core.Envelope
}

func (s *fakeSignal) Send(env core.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.closed {
		return false
	}
	s.sent = append(s.sent, env)
	return true
}

func (s *fakeSignal) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && !s.closed
}

func (s *fakeSignal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSignal) envelopes(typ string) []core.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Envelope
	for _, e := range s.sent {
		if typ == "" || e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeConnector struct {
	mu       sync.Mutex
	err      error
	endpoint string
	conns    []*fakeSignal
	handlers []core.SignalHandler
}

func (f *fakeConnector) Connect(_ context.Context, endpoint string, h core.SignalHandler) (core.SignalConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.endpoint = endpoint
	s := &fakeSignal{}
	f.conns = append(f.conns, s)
	f.handlers = append(f.handlers, h)
	return s, nil
}

func (f *fakeConnector) last() (*fakeSignal, core.SignalHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil, nil
	}
	return f.conns[len(f.conns)-1], f.handlers[len(f.handlers)-1]
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

type fakeMic struct {
	err error
}

func (m *fakeMic) Open(ctx context.Context) (<-chan []int16, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan []int16)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

type fakeMedia struct {
	mu      sync.Mutex
	closed  bool
	remote  bool
	onTrack func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)
}

func (c *fakeMedia) Start(context.Context) error { return nil }

func (c *fakeMedia) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeMedia) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeMedia) AddLocalTrack(webrtc.TrackLocal) error { return nil }

func (c *fakeMedia) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}, nil
}

func (c *fakeMedia) ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	c.remote = true
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (c *fakeMedia) ApplyAnswer(webrtc.SessionDescription) error {
	c.remote = true
	return nil
}

func (c *fakeMedia) Rollback() error                               { return nil }
func (c *fakeMedia) HasRemoteDescription() bool                    { return c.remote }
func (c *fakeMedia) AddICECandidate(webrtc.ICECandidateInit) error { return nil }
func (c *fakeMedia) OnICECandidate(func(webrtc.ICECandidateInit))  {}
func (c *fakeMedia) OnConnected(func())                            {}
func (c *fakeMedia) OnClosed(func())                               {}

func (c *fakeMedia) OnTrack(fn func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

// statusLog records every status text in order.
type statusLog struct {
	core.NopObserver
	mu       sync.Mutex
	statuses []string
}

func (s *statusLog) OnStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, text)
}

func (s *statusLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}
