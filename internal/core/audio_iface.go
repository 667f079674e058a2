package core

import "github.com/dkeye/VoicePeer/internal/domain"

// AudioParam is a continuously variable node parameter.
type AudioParam interface {
	Value() float64
	// SetValue steps the parameter immediately and cancels any pending ramp.
	SetValue(v float64)
	// SetTargetAtTime approaches target exponentially from startTime (context seconds).
	SetTargetAtTime(target, startTime, timeConstant float64)
}

type AudioNode interface {
	Connect(dst AudioNode) error
	// Disconnect removes all outgoing connections of the node.
	Disconnect()
}

type AudioSource interface {
	AudioNode
	Stop()
}

// PCMSink accepts mono 16-bit frames at the context sample rate.
type PCMSink interface {
	Push(samples []int16)
}

// PCMSource is a streaming source fed from the network or a loopback.
type PCMSource interface {
	AudioSource
	PCMSink
}

type GainNode interface {
	AudioNode
	Gain() AudioParam
}

type StereoPannerNode interface {
	AudioNode
	Pan() AudioParam
}

type PannerNode interface {
	AudioNode
	PositionX() AudioParam
	PositionY() AudioParam
	PositionZ() AudioParam
	SetPanningModel(domain.PanningModel)
	SetDistanceModel(domain.DistanceModel)
	SetRefDistance(float64)
	SetMaxDistance(float64)
	SetRolloffFactor(float64)
}

type AudioListener interface {
	PositionX() AudioParam
	PositionY() AudioParam
	PositionZ() AudioParam
	ForwardX() AudioParam
	ForwardY() AudioParam
	ForwardZ() AudioParam
	UpX() AudioParam
	UpY() AudioParam
	UpZ() AudioParam
}

type ContextState string

const (
	ContextSuspended ContextState = "suspended"
	ContextRunning   ContextState = "running"
	ContextClosed    ContextState = "closed"
)

// AudioContext is the shared rendering graph. All pipelines hang off one context.
type AudioContext interface {
	SampleRate() int
	CurrentTime() float64
	State() ContextState
	Resume() error
	Close() error
	Destination() AudioNode
	Listener() AudioListener

	CreateGain() GainNode
	CreateStereoPanner() StereoPannerNode
	CreatePanner() PannerNode
	CreatePCMSource() PCMSource
	// CreateBufferSource plays mono samples once, or forever when loop is set.
	CreateBufferSource(samples []float32, loop bool) AudioSource
}

// AudioContextFactory lazily builds the shared context.
type AudioContextFactory func() (AudioContext, error)
