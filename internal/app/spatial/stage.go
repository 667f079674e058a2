package spatial

import (
	"fmt"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
)

// Stage ids accepted in the stage order.
const (
	StageDistanceGain = "distance-gain"
	StageDirectional  = "directional"
)

// DefaultStages is the fixed order used when none is configured.
var DefaultStages = []string{StageDistanceGain, StageDirectional}

// StageKind tags which node a Stage carries.
type StageKind int

const (
	KindGain StageKind = iota
	KindStereoPan
	KindPositional
)

func (k StageKind) String() string {
	switch k {
	case KindGain:
		return "gain"
	case KindStereoPan:
		return "stereo-pan"
	case KindPositional:
		return "positional"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Stage is one filter of a pipeline. Exactly one node field is set, matching Kind.
type Stage struct {
	ID     string
	Kind   StageKind
	Gain   core.GainNode
	Pan    core.StereoPannerNode
	Panner core.PannerNode

	// Cleanup runs before the stage nodes are disconnected.
	Cleanup func()
}

func (s *Stage) Node() core.AudioNode {
	switch s.Kind {
	case KindGain:
		return s.Gain
	case KindStereoPan:
		return s.Pan
	default:
		return s.Panner
	}
}

// StageBuilder creates a fresh stage on ac for the current directional mode.
type StageBuilder func(ac core.AudioContext, mode domain.DirectionalMode) *Stage

func builtinStages() map[string]StageBuilder {
	return map[string]StageBuilder{
		StageDistanceGain: func(ac core.AudioContext, _ domain.DirectionalMode) *Stage {
			return &Stage{ID: StageDistanceGain, Kind: KindGain, Gain: ac.CreateGain()}
		},
		StageDirectional: func(ac core.AudioContext, mode domain.DirectionalMode) *Stage {
			if mode == domain.DirectionalStereo {
				return &Stage{ID: StageDirectional, Kind: KindStereoPan, Pan: ac.CreateStereoPanner()}
			}
			p := ac.CreatePanner()
			p.SetDistanceModel(domain.DistanceExponential)
			p.SetRolloffFactor(RolloffFactor)
			return &Stage{ID: StageDirectional, Kind: KindPositional, Panner: p}
		},
	}
}

// RolloffFactor is the exponential rolloff of the positional model.
const RolloffFactor = 1.2

// Pipeline is source → stages... → destination for one audio source.
type Pipeline struct {
	PeerID string
	Source core.AudioSource
	Stages []*Stage
}

// Stage returns the stage registered under id, or nil.
func (p *Pipeline) Stage(id string) *Stage {
	if p == nil {
		return nil
	}
	for _, s := range p.Stages {
		if s.ID == id {
			return s
		}
	}
	return nil
}
