// Package audio is a small software rendering graph with smoothed parameters.
// Output is pulled block by block by a device callback through Render.
package audio

import (
	"math"
	"sync"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
)

// Context owns every node and parameter of one graph.
type Context struct {
	mu sync.Mutex

	sampleRate int
	frame      int64
	quantum    uint64
	state      core.ContextState

	dest     *node
	listener *Listener
	onClose  []func()
}

var _ core.AudioContext = (*Context)(nil)

// NewContext returns a suspended context. Resume starts the clock.
func NewContext(sampleRate int) *Context {
	c := &Context{sampleRate: sampleRate, state: core.ContextSuspended}
	c.dest = newNode(c, passthrough{})
	c.listener = newListener(c)
	return c
}

func (c *Context) SampleRate() int { return c.sampleRate }

func (c *Context) timeLocked() float64 { return float64(c.frame) / float64(c.sampleRate) }

func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeLocked()
}

func (c *Context) State() core.ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == core.ContextClosed {
		return domain.ErrClosed
	}
	c.state = core.ContextRunning
	return nil
}

func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == core.ContextClosed {
		return domain.ErrClosed
	}
	c.state = core.ContextSuspended
	return nil
}

// OnClose registers fn to run once when the context is closed.
func (c *Context) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == core.ContextClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = core.ContextClosed
	hooks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (c *Context) Destination() core.AudioNode { return c.dest }

func (c *Context) Listener() core.AudioListener { return c.listener }

func (c *Context) CreateGain() core.GainNode { return newGain(c) }

func (c *Context) CreateStereoPanner() core.StereoPannerNode { return newStereoPanner(c) }

func (c *Context) CreatePanner() core.PannerNode { return newPanner(c) }

func (c *Context) CreatePCMSource() core.PCMSource { return newPCMSource(c) }

func (c *Context) CreateBufferSource(samples []float32, loop bool) core.AudioSource {
	return newBufferSource(c, samples, loop)
}

// Render fills out with interleaved stereo frames. A context that is not
// running renders silence and does not advance its clock.
func (c *Context) Render(out []float32) {
	frames := len(out) / 2
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != core.ContextRunning || frames == 0 {
		clear(out)
		return
	}
	c.quantum++
	b := c.dest.pull(c.quantum, frames)
	right := b.r
	if b.channels == 1 {
		right = b.l
	}
	for i := 0; i < frames; i++ {
		out[2*i] = clip(b.l[i])
		out[2*i+1] = clip(right[i])
	}
	c.frame += int64(frames)
}

// RenderInt16 is Render for 16-bit devices.
func (c *Context) RenderInt16(out []int16, scratch []float32) []float32 {
	scratch = grow(scratch, len(out))
	c.Render(scratch)
	for i, v := range scratch {
		out[i] = int16(v * math.MaxInt16)
	}
	return scratch
}

func clip(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Listener is the reference frame for every positional panner.
type Listener struct {
	posX, posY, posZ *Param
	fwdX, fwdY, fwdZ *Param
	upX, upY, upZ    *Param
}

func newListener(c *Context) *Listener {
	inf := math.Inf(1)
	p := func(v float64) *Param { return newParam(c, v, -inf, inf) }
	return &Listener{
		posX: p(0), posY: p(0), posZ: p(0),
		fwdX: p(0), fwdY: p(0), fwdZ: p(-1),
		upX: p(0), upY: p(1), upZ: p(0),
	}
}

func (l *Listener) PositionX() core.AudioParam { return l.posX }
func (l *Listener) PositionY() core.AudioParam { return l.posY }
func (l *Listener) PositionZ() core.AudioParam { return l.posZ }
func (l *Listener) ForwardX() core.AudioParam  { return l.fwdX }
func (l *Listener) ForwardY() core.AudioParam  { return l.fwdY }
func (l *Listener) ForwardZ() core.AudioParam  { return l.fwdZ }
func (l *Listener) UpX() core.AudioParam       { return l.upX }
func (l *Listener) UpY() core.AudioParam       { return l.upY }
func (l *Listener) UpZ() core.AudioParam       { return l.upZ }
