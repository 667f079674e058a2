// Package spatial renders every audio source as if it were placed in 3D space
// around the local listener.
package spatial

import (
	"fmt"
	"slices"
	"sort"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/dkeye/VoicePeer/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultSmoothing is the time constant of every parameter transition, in seconds.
const DefaultSmoothing = 0.05

type Options struct {
	Stages       []string
	Mode         domain.DirectionalMode
	PanningModel domain.PanningModel
	Smoothing    float64
	Metrics      *metrics.Metrics
}

// Engine owns the shared audio context and one pipeline per source.
// It is not safe for concurrent use; the session loop serialises access.
type Engine struct {
	newContext core.AudioContextFactory
	ac         core.AudioContext

	builders map[string]StageBuilder
	order    []string

	pipelines map[string]*Pipeline
	spatial   map[string]*domain.PeerSpatial

	selfID  string
	selfPos *domain.Vec3
	selfRot *domain.Vec3
	ranges  *domain.RangeConfig
	panning domain.PanningModel
	mode    domain.DirectionalMode
	tau     float64

	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewEngine(newContext core.AudioContextFactory, opts Options) (*Engine, error) {
	e := &Engine{
		newContext: newContext,
		builders:   builtinStages(),
		order:      opts.Stages,
		pipelines:  make(map[string]*Pipeline),
		spatial:    make(map[string]*domain.PeerSpatial),
		panning:    opts.PanningModel,
		mode:       opts.Mode,
		tau:        opts.Smoothing,
		metrics:    opts.Metrics,
		log:        log.With().Str("module", "spatial").Logger(),
	}
	if len(e.order) == 0 {
		e.order = DefaultStages
	}
	if e.panning == "" {
		e.panning = domain.PanningBinaural
	}
	if e.mode == "" {
		e.mode = domain.DirectionalPositional
	}
	if e.tau <= 0 {
		e.tau = DefaultSmoothing
	}
	for _, id := range e.order {
		if _, ok := e.builders[id]; !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStage, id)
		}
	}
	return e, nil
}

// Context returns the shared context, creating it on first use and resuming
// it when suspended. A failed resume is retried on the next call.
func (e *Engine) Context() (core.AudioContext, error) {
	if e.ac != nil && e.ac.State() == core.ContextClosed {
		e.ac = nil
	}
	if e.ac == nil {
		ac, err := e.newContext()
		if err != nil {
			return nil, fmt.Errorf("create audio context: %w", err)
		}
		e.ac = ac
		e.applyListener()
	}
	if e.ac.State() == core.ContextSuspended {
		if err := e.ac.Resume(); err != nil {
			e.log.Debug().Err(err).Msg("audio context resume deferred")
		}
	}
	return e.ac, nil
}

func (e *Engine) NewPCMSource() (core.PCMSource, error) {
	ac, err := e.Context()
	if err != nil {
		return nil, err
	}
	return ac.CreatePCMSource(), nil
}

func (e *Engine) NewBufferSource(samples []float32, loop bool) (core.AudioSource, error) {
	ac, err := e.Context()
	if err != nil {
		return nil, err
	}
	return ac.CreateBufferSource(samples, loop), nil
}

// BuildPipeline wires src through every stage to the output and applies the
// current geometry once. An existing pipeline for peerID is torn down first.
func (e *Engine) BuildPipeline(peerID string, src core.AudioSource) (*Pipeline, error) {
	ac, err := e.Context()
	if err != nil {
		return nil, err
	}
	if old := e.pipelines[peerID]; old != nil {
		e.TeardownPipeline(old)
	}
	p := &Pipeline{PeerID: peerID, Source: src}
	if err := e.wire(ac, p); err != nil {
		e.TeardownPipeline(p)
		return nil, err
	}
	e.pipelines[peerID] = p
	e.metrics.SetPipelines(len(e.pipelines))
	e.log.Debug().Str("peer", peerID).Str("mode", string(e.mode)).Msg("pipeline built")
	return p, nil
}

func (e *Engine) wire(ac core.AudioContext, p *Pipeline) error {
	p.Stages = make([]*Stage, 0, len(e.order))
	for _, id := range e.order {
		p.Stages = append(p.Stages, e.builders[id](ac, e.mode))
	}
	prev := core.AudioNode(p.Source)
	for _, s := range p.Stages {
		if err := prev.Connect(s.Node()); err != nil {
			return fmt.Errorf("connect stage %s: %w", s.ID, err)
		}
		prev = s.Node()
	}
	if err := prev.Connect(ac.Destination()); err != nil {
		return fmt.Errorf("connect output: %w", err)
	}
	e.update(p)
	return nil
}

// TeardownPipeline runs stage cleanup hooks, then disconnects every stage and
// finally the source. A nil pipeline is ignored.
func (e *Engine) TeardownPipeline(p *Pipeline) {
	if p == nil {
		return
	}
	e.unwireStages(p)
	if p.Source != nil {
		p.Source.Disconnect()
		p.Source.Stop()
	}
	if e.pipelines[p.PeerID] == p {
		delete(e.pipelines, p.PeerID)
		e.metrics.SetPipelines(len(e.pipelines))
	}
}

func (e *Engine) unwireStages(p *Pipeline) {
	for _, s := range p.Stages {
		if s.Cleanup != nil {
			s.Cleanup()
		}
	}
	for _, s := range p.Stages {
		if n := s.Node(); n != nil {
			n.Disconnect()
		}
	}
	p.Stages = nil
}

func (e *Engine) Pipeline(peerID string) *Pipeline { return e.pipelines[peerID] }

func (e *Engine) Pipelines() []string {
	ids := make([]string, 0, len(e.pipelines))
	for id := range e.pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RemovePeer drops the pipeline and the geometry of peerID.
func (e *Engine) RemovePeer(peerID string) {
	e.TeardownPipeline(e.pipelines[peerID])
	delete(e.spatial, peerID)
}

func (e *Engine) peer(peerID string) *domain.PeerSpatial {
	s := e.spatial[peerID]
	if s == nil {
		s = &domain.PeerSpatial{}
		e.spatial[peerID] = s
	}
	return s
}

// Spatial returns a copy of the known geometry of peerID.
func (e *Engine) Spatial(peerID string) (domain.PeerSpatial, bool) {
	s, ok := e.spatial[peerID]
	if !ok {
		return domain.PeerSpatial{}, false
	}
	return *s, true
}

func (e *Engine) UpdatePeerPosition(peerID string, pos domain.Vec3) {
	e.peer(peerID).Position = &pos
	e.updatePeer(peerID)
}

func (e *Engine) UpdatePeerRotation(peerID string, rot domain.Vec3) {
	e.peer(peerID).Rotation = &rot
	e.updatePeer(peerID)
}

func (e *Engine) updatePeer(peerID string) {
	if p := e.pipelines[peerID]; p != nil {
		e.update(p)
	}
}

func (e *Engine) SetSelfID(id string) {
	e.selfID = id
	e.UpdateAll()
}

func (e *Engine) SelfID() string { return e.selfID }

func (e *Engine) SetSelfPosition(pos domain.Vec3) {
	e.selfPos = &pos
	e.applyListener()
	e.UpdateAll()
}

func (e *Engine) SetSelfRotation(rot domain.Vec3) {
	e.selfRot = &rot
	e.applyListener()
	e.UpdateAll()
}

func (e *Engine) SetRangeConfig(cfg domain.RangeConfig) {
	e.ranges = &cfg
	e.UpdateAll()
}

func (e *Engine) RangeConfig() (domain.RangeConfig, bool) {
	if e.ranges == nil {
		return domain.RangeConfig{}, false
	}
	return *e.ranges, true
}

// SetPanningModel takes effect on every pipeline without rebuilding it.
func (e *Engine) SetPanningModel(m domain.PanningModel) {
	e.panning = m
	e.UpdateAll()
}

func (e *Engine) PanningModel() domain.PanningModel { return e.panning }

// SetDirectionalMode rebuilds the stages of every pipeline, keeping its source.
func (e *Engine) SetDirectionalMode(mode domain.DirectionalMode) error {
	if mode == e.mode {
		return nil
	}
	e.mode = mode
	if e.ac == nil {
		return nil
	}
	var errs []error
	for _, id := range e.Pipelines() {
		p := e.pipelines[id]
		e.unwireStages(p)
		p.Source.Disconnect()
		if err := e.wire(e.ac, p); err != nil {
			e.log.Error().Err(err).Str("peer", id).Msg("pipeline rebuild failed")
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (e *Engine) DirectionalMode() domain.DirectionalMode { return e.mode }

// UpdateAll re-runs the stage updates of every pipeline.
func (e *Engine) UpdateAll() {
	for _, p := range e.pipelines {
		e.update(p)
	}
}

func (e *Engine) update(p *Pipeline) {
	for _, s := range p.Stages {
		e.updateStage(p.PeerID, s)
	}
}

func (e *Engine) isSelf(peerID string) bool { return e.selfID != "" && peerID == e.selfID }

func (e *Engine) updateStage(peerID string, s *Stage) {
	ps := e.spatial[peerID]
	var peerPos *domain.Vec3
	if ps != nil {
		peerPos = ps.Position
	}
	self := e.isSelf(peerID)

	switch s.Kind {
	case KindGain:
		g := 1.0
		if !self && e.selfPos != nil && peerPos != nil && e.ranges != nil {
			g = DistanceGain(e.selfPos.Distance(*peerPos), *e.ranges)
		}
		e.smooth(s.Gain.Gain(), g)
	case KindStereoPan:
		pan := 0.0
		if !self && e.selfPos != nil && e.selfRot != nil && peerPos != nil {
			pan = StereoPan(*e.selfPos, *e.selfRot, *peerPos)
		}
		e.smooth(s.Pan.Pan(), pan)
	case KindPositional:
		s.Panner.SetPanningModel(e.panning)
		if e.ranges != nil {
			s.Panner.SetRefDistance(e.ranges.FullVolumeRange)
			s.Panner.SetMaxDistance(e.ranges.SilentRange())
		}
		pos := e.listenerPosition()
		if !self && peerPos != nil {
			pos = *peerPos
		}
		e.smooth(s.Panner.PositionX(), pos.X)
		e.smooth(s.Panner.PositionY(), pos.Y)
		e.smooth(s.Panner.PositionZ(), pos.Z)
	}
}

func (e *Engine) listenerPosition() domain.Vec3 {
	if e.selfPos == nil {
		return domain.Vec3{}
	}
	return *e.selfPos
}

func (e *Engine) applyListener() {
	if e.ac == nil {
		return
	}
	l := e.ac.Listener()
	if e.selfPos != nil {
		e.smooth(l.PositionX(), e.selfPos.X)
		e.smooth(l.PositionY(), e.selfPos.Y)
		e.smooth(l.PositionZ(), e.selfPos.Z)
	}
	if e.selfRot != nil {
		f := Forward(*e.selfRot)
		e.smooth(l.ForwardX(), f.X)
		e.smooth(l.ForwardY(), f.Y)
		e.smooth(l.ForwardZ(), f.Z)
		l.UpX().SetValue(0)
		l.UpY().SetValue(1)
		l.UpZ().SetValue(0)
	}
}

// smooth ramps p to v, or steps it when there is no running clock.
func (e *Engine) smooth(p core.AudioParam, v float64) {
	if e.ac == nil || e.ac.State() == core.ContextClosed {
		p.SetValue(v)
		return
	}
	p.SetTargetAtTime(v, e.ac.CurrentTime(), e.tau)
}

// Close tears down every pipeline and releases the audio context.
func (e *Engine) Close() {
	for _, id := range e.Pipelines() {
		e.TeardownPipeline(e.pipelines[id])
	}
	clear(e.spatial)
	if e.ac != nil {
		if err := e.ac.Close(); err != nil {
			e.log.Warn().Err(err).Msg("audio context close failed")
		}
		e.ac = nil
	}
}

// State is a point-in-time view for diagnostics.
type State struct {
	Mode         domain.DirectionalMode `json:"mode"`
	PanningModel domain.PanningModel    `json:"panningModel"`
	Stages       []string               `json:"stages"`
	Pipelines    []string               `json:"pipelines"`
	Position     *domain.Vec3           `json:"position,omitempty"`
	Rotation     *domain.Vec3           `json:"rotation,omitempty"`
	Ranges       *domain.RangeConfig    `json:"config,omitempty"`
}

func (e *Engine) State() State {
	return State{
		Mode:         e.mode,
		PanningModel: e.panning,
		Stages:       slices.Clone(e.order),
		Pipelines:    e.Pipelines(),
		Position:     e.selfPos,
		Rotation:     e.selfRot,
		Ranges:       e.ranges,
	}
}
