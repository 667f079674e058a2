package rtc

import (
	"context"
	"errors"
	"io"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/metrics"
	g722 "github.com/gotranspile/g722"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewPump returns a RemoteAudioPump that decodes G.722 payloads into the
// peer's PCM source.
func NewPump(m *metrics.Metrics) core.RemoteAudioPump {
	return func(ctx context.Context, peerID string, track *webrtc.TrackRemote, sink core.PCMSink) {
		l := log.With().Str("module", "webrtc").Str("peer", peerID).Logger()
		decodeLoop(ctx, func() (*rtp.Packet, error) {
			pkt, _, err := track.ReadRTP()
			return pkt, err
		}, sink, m, &l)
	}
}

// decodeLoop reads packets until the source ends or ctx is done.
func decodeLoop(ctx context.Context, read func() (*rtp.Packet, error), sink core.PCMSink, m *metrics.Metrics, logger *zerolog.Logger) {
	dec := g722.NewDecoder(g722.Rate64000, 0)
	var pcm []int16
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("remote pump ctx done")
			return
		default:
		}
		pkt, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Msg("remote track ended")
			} else {
				logger.Error().Err(err).Msg("remote read RTP error, stopping")
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		// 64 kbit/s G.722 yields two samples per byte.
		if need := len(pkt.Payload) * 2; cap(pcm) < need {
			pcm = make([]int16, need)
		}
		n := dec.Decode(pcm[:len(pkt.Payload)*2], pkt.Payload)
		if n <= 0 {
			logger.Debug().Int("len", len(pkt.Payload)).Msg("decode produced no samples")
			continue
		}
		frame := make([]int16, n)
		copy(frame, pcm[:n])
		sink.Push(frame)
		m.RemoteFrame()
	}
}
