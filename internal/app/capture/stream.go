// Package capture turns microphone frames into the local outbound track shared
// by every peer connection.
package capture

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/metrics"
	"github.com/google/uuid"
	g722 "github.com/gotranspile/g722"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// ClockRate is the RTP clock of G.722, which is 8000 for historical reasons.
	ClockRate = 8000
	// PayloadType is the static RTP payload type of G.722.
	PayloadType = 9

	// SampleRate is the PCM rate G.722 encodes, for both capture and playback.
	SampleRate = 16000

	codecRate  = g722.Rate64000
	codecFlags = 0
)

// Codec is the capability the local track is created with.
var Codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeG722, ClockRate: ClockRate, Channels: 1}

type Config struct {
	SampleRate int
	FrameMs    int
	Metrics    *metrics.Metrics
}

// Stream encodes capture frames into one TrackLocalStaticSample. Muting
// keeps the track flowing with encoded silence.
type Stream struct {
	Track *webrtc.TrackLocalStaticSample

	gate  trackGate
	enc   *g722.Encoder
	frame int
	dur   time.Duration

	mu   sync.RWMutex
	subs map[int]core.PCMSink
	next int

	cancel  context.CancelFunc
	done    chan struct{}
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewStream(cfg Config) (*Stream, error) {
	if cfg.SampleRate <= 0 || cfg.FrameMs <= 0 {
		return nil, errors.New("capture: sample rate and frame size must be positive")
	}
	if cfg.SampleRate != SampleRate {
		return nil, fmt.Errorf("capture: G.722 needs %d Hz input, got %d", SampleRate, cfg.SampleRate)
	}
	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticSample(Codec, "audio", "voicepeer-"+id)
	if err != nil {
		return nil, fmt.Errorf("capture: create local track: %w", err)
	}
	return &Stream{
		Track:   track,
		enc:     g722.NewEncoder(codecRate, codecFlags),
		frame:   cfg.SampleRate * cfg.FrameMs / 1000,
		dur:     time.Duration(cfg.FrameMs) * time.Millisecond,
		subs:    make(map[int]core.PCMSink),
		metrics: cfg.Metrics,
		log:     log.With().Str("module", "capture").Str("track", id).Logger(),
	}, nil
}

// FrameSamples is the number of PCM samples per encoded frame.
func (s *Stream) FrameSamples() int { return s.frame }

// Start consumes frames until the channel closes, ctx is done or Stop is called.
func (s *Stream) Start(ctx context.Context, frames <-chan []int16) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, frames)
}

func (s *Stream) loop(ctx context.Context, frames <-chan []int16) {
	defer close(s.done)
	s.log.Info().Int("frame", s.frame).Msg("capture started")

	var pending []int16
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("capture ctx done")
			return
		case in, ok := <-frames:
			if !ok {
				s.log.Info().Msg("capture source closed")
				return
			}
			pending = append(pending, in...)
			for len(pending) >= s.frame {
				if s.gate.get() == TrackStopped {
					return
				}
				s.emit(pending[:s.frame])
				pending = pending[s.frame:]
			}
			if len(pending) == 0 {
				pending = nil
			}
		}
	}
}

func (s *Stream) emit(pcm []int16) {
	if s.gate.get() != TrackLive {
		pcm = make([]int16, len(pcm))
	} else {
		pcm = append([]int16(nil), pcm...)
	}
	s.fanout(pcm)

	buf := make([]byte, len(pcm)/2)
	n := s.enc.Encode(buf, pcm)
	if n <= 0 {
		s.log.Error().Int("written", n).Msg("encode produced no bytes")
		return
	}
	if err := s.Track.WriteSample(media.Sample{Data: buf[:n], Duration: s.dur}); err != nil {
		s.log.Warn().Err(err).Msg("write sample failed")
		return
	}
	s.metrics.CaptureFrame()
}

func (s *Stream) fanout(pcm []int16) {
	s.mu.RLock()
	snapshot := maps.Clone(s.subs)
	s.mu.RUnlock()
	for _, sink := range snapshot {
		sink.Push(pcm)
	}
}

// Subscribe forwards every gated frame to sink until the returned func is called.
func (s *Stream) Subscribe(sink core.PCMSink) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = sink
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// SetEnabled gates the outbound audio. Has no effect after Stop.
func (s *Stream) SetEnabled(enabled bool) {
	if enabled {
		s.gate.markLive()
	} else {
		s.gate.markMuted()
	}
}

func (s *Stream) State() TrackState { return s.gate.get() }

// Stop ends capture and waits for the loop to exit. Safe to call twice.
func (s *Stream) Stop() {
	s.gate.markStopped()
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.mu.Lock()
	clear(s.subs)
	s.mu.Unlock()
}
