// Package debugsrc injects calibration audio through the same pipelines as real peers.
package debugsrc

import (
	"fmt"
	"sort"

	"github.com/dkeye/VoicePeer/internal/app/spatial"
	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/dkeye/VoicePeer/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindFile Kind = "file"
	KindMic  Kind = "mic"
)

const (
	toneFrequency = 440
	toneAmplitude = 0.2
)

// PeerID is the synthetic id a kind renders under.
func (k Kind) PeerID() string {
	if k == KindMic {
		return domain.DebugMicPeerID
	}
	return domain.DebugFilePeerID
}

type Engine interface {
	NewBufferSource(samples []float32, loop bool) (core.AudioSource, error)
	NewPCMSource() (core.PCMSource, error)
	BuildPipeline(peerID string, src core.AudioSource) (*spatial.Pipeline, error)
	TeardownPipeline(p *spatial.Pipeline)
}

// Loopback hands out the local capture frames.
type Loopback interface {
	Subscribe(sink core.PCMSink) (unsubscribe func())
}

type source struct {
	pipeline *spatial.Pipeline
	release  func()
}

// Manager keeps at most one source per kind. Not safe for concurrent use.
type Manager struct {
	engine     Engine
	sampleRate int
	active     map[Kind]*source
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

func NewManager(engine Engine, sampleRate int, m *metrics.Metrics) *Manager {
	return &Manager{
		engine:     engine,
		sampleRate: sampleRate,
		active:     make(map[Kind]*source),
		metrics:    m,
		log:        log.With().Str("module", "debugsrc").Logger(),
	}
}

// StartFile loops a WAV file, or a synthetic tone when path is empty.
func (m *Manager) StartFile(path string) error {
	samples := Tone(toneFrequency, m.sampleRate, toneAmplitude)
	if path != "" {
		var err error
		if samples, err = LoadWAV(path, m.sampleRate); err != nil {
			return fmt.Errorf("debug file %s: %w", path, err)
		}
	}
	m.Stop(KindFile)
	src, err := m.engine.NewBufferSource(samples, true)
	if err != nil {
		return err
	}
	return m.attach(KindFile, src, nil)
}

// StartMic renders the local capture through a pipeline of its own.
func (m *Manager) StartMic(loop Loopback) error {
	if loop == nil {
		return fmt.Errorf("debug mic: %w", domain.ErrCaptureDenied)
	}
	m.Stop(KindMic)
	src, err := m.engine.NewPCMSource()
	if err != nil {
		return err
	}
	return m.attach(KindMic, src, loop.Subscribe(src))
}

func (m *Manager) attach(kind Kind, src core.AudioSource, release func()) error {
	p, err := m.engine.BuildPipeline(kind.PeerID(), src)
	if err != nil {
		if release != nil {
			release()
		}
		src.Stop()
		return fmt.Errorf("debug %s: %w", kind, err)
	}
	m.active[kind] = &source{pipeline: p, release: release}
	m.metrics.SetDebugSource(string(kind), true)
	m.log.Info().Str("kind", string(kind)).Str("peer", kind.PeerID()).Msg("debug source started")
	return nil
}

func (m *Manager) Stop(kind Kind) {
	s, ok := m.active[kind]
	if !ok {
		return
	}
	delete(m.active, kind)
	if s.release != nil {
		s.release()
	}
	m.engine.TeardownPipeline(s.pipeline)
	m.metrics.SetDebugSource(string(kind), false)
	m.log.Info().Str("kind", string(kind)).Msg("debug source stopped")
}

func (m *Manager) StopAll() {
	for _, k := range m.Active() {
		m.Stop(k)
	}
}

func (m *Manager) Active() []Kind {
	kinds := make([]Kind, 0, len(m.active))
	for k := range m.active {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
