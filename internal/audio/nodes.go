package audio

import (
	"math"

	"github.com/dkeye/VoicePeer/internal/core"
)

type Gain struct {
	*node
	gain *Param
}

func newGain(c *Context) *Gain {
	g := &Gain{gain: newParam(c, 1, math.Inf(-1), math.Inf(1))}
	g.node = newNode(c, g)
	return g
}

func (g *Gain) Gain() core.AudioParam { return g.gain }

func (g *Gain) process(q uint64, frames int, in, out *bus) {
	out.reset(in.channels, frames)
	k := g.gain.fill(q, frames)
	for i := range out.l {
		out.l[i] = in.l[i] * float32(k[i])
	}
	if in.channels == 2 {
		for i := range out.r {
			out.r[i] = in.r[i] * float32(k[i])
		}
	}
}

// StereoPanner follows the equal-power law of the WebAudio StereoPannerNode.
type StereoPanner struct {
	*node
	pan *Param
}

func newStereoPanner(c *Context) *StereoPanner {
	p := &StereoPanner{pan: newParam(c, 0, -1, 1)}
	p.node = newNode(c, p)
	return p
}

func (p *StereoPanner) Pan() core.AudioParam { return p.pan }

func (p *StereoPanner) process(q uint64, frames int, in, out *bus) {
	out.reset(2, frames)
	pan := p.pan.fill(q, frames)
	for i := 0; i < frames; i++ {
		if in.channels == 1 {
			x := (pan[i] + 1) / 2
			gl, gr := math.Cos(x*math.Pi/2), math.Sin(x*math.Pi/2)
			out.l[i] = in.l[i] * float32(gl)
			out.r[i] = in.l[i] * float32(gr)
			continue
		}
		if pan[i] <= 0 {
			x := pan[i] + 1
			gl, gr := math.Cos(x*math.Pi/2), math.Sin(x*math.Pi/2)
			out.l[i] = in.l[i] + in.r[i]*float32(gl)
			out.r[i] = in.r[i] * float32(gr)
		} else {
			x := pan[i]
			gl, gr := math.Cos(x*math.Pi/2), math.Sin(x*math.Pi/2)
			out.l[i] = in.l[i] * float32(gl)
			out.r[i] = in.r[i] + in.l[i]*float32(gr)
		}
	}
}
