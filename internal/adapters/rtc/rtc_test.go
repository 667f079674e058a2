package rtc

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dkeye/VoicePeer/internal/app/capture"
	g722 "github.com/gotranspile/g722"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const audioSDP = "v=0\r\n" +
	"o=- 1 1 IN IP4 0.0.0.0\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 9\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:9 G722/8000\r\n"

const videoSDP = "v=0\r\n" +
	"o=- 1 1 IN IP4 0.0.0.0\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n"

func TestCheckAudio(t *testing.T) {
	assert.NoError(t, checkAudio(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: audioSDP}))
	assert.Error(t, checkAudio(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: videoSDP}))
	assert.Error(t, checkAudio(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"}))
}

func newPair(t *testing.T) (*WebRTCConnection, *WebRTCConnection) {
	t.Helper()
	api, err := NewAPI()
	require.NoError(t, err)
	cfg := webrtc.Configuration{}
	a, err := NewWebRTCConnection(api, cfg, "b")
	require.NoError(t, err)
	b, err := NewWebRTCConnection(api, cfg, "a")
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestOfferAnswer_NegotiatesG722(t *testing.T) {
	a, b := newPair(t)
	track, err := webrtc.NewTrackLocalStaticSample(capture.Codec, "audio", "test")
	require.NoError(t, err)
	require.NoError(t, a.AddLocalTrack(track))

	offer, err := a.CreateAndSetOffer()
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "G722")
	assert.False(t, a.HasRemoteDescription())

	answer, err := b.ApplyOfferAndCreateAnswer(*offer)
	require.NoError(t, err)
	assert.True(t, b.HasRemoteDescription())
	assert.True(t, strings.Contains(answer.SDP, "m=audio"))

	require.NoError(t, a.ApplyAnswer(*answer))
	assert.True(t, a.HasRemoteDescription())
}

func TestOffer_WithoutLocalTrackStillCarriesAudio(t *testing.T) {
	a, _ := newPair(t)
	offer, err := a.CreateAndSetOffer()
	require.NoError(t, err)
	assert.NoError(t, checkAudio(*offer))
}

func TestRollback(t *testing.T) {
	a, _ := newPair(t)
	assert.Error(t, a.Rollback())

	_, err := a.CreateAndSetOffer()
	require.NoError(t, err)
	require.NoError(t, a.Rollback())
	assert.Error(t, a.Rollback())
}

func TestClose_Idempotent(t *testing.T) {
	a, _ := newPair(t)
	assert.False(t, a.IsClosed())
	a.Close()
	a.Close()
	assert.True(t, a.IsClosed())
}

type sinkRecorder struct {
	mu      sync.Mutex
	samples int
	frames  int
}

func (s *sinkRecorder) Push(pcm []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples += len(pcm)
	s.frames++
}

func TestDecodeLoop(t *testing.T) {
	enc := g722.NewEncoder(g722.Rate64000, 0)
	pcm := make([]int16, 320)
	for i := range pcm {
		pcm[i] = int16((i % 40) * 500)
	}
	payload := make([]byte, 160)
	n := enc.Encode(payload, pcm)
	require.Equal(t, 160, n)

	packets := []*rtp.Packet{
		{Payload: payload},
		{Payload: nil},
		{Payload: payload},
	}
	read := func() (*rtp.Packet, error) {
		if len(packets) == 0 {
			return nil, io.EOF
		}
		p := packets[0]
		packets = packets[1:]
		return p, nil
	}

	sink := &sinkRecorder{}
	logger := zerolog.Nop()
	decodeLoop(context.Background(), read, sink, nil, &logger)

	assert.Equal(t, 2, sink.frames)
	assert.Equal(t, 640, sink.samples)
}

func TestDecodeLoop_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	logger := zerolog.Nop()
	decodeLoop(ctx, func() (*rtp.Packet, error) {
		called = true
		return nil, io.EOF
	}, &sinkRecorder{}, nil, &logger)
	assert.False(t, called)
}
