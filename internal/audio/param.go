package audio

import "math"

// settle is the distance below which a ramp snaps onto its target.
const settle = 1e-6

// Param is a smoothed parameter owned by a Context.
// Ramps advance per sample while the owning node is rendered.
type Param struct {
	ctx *Context

	value  float64
	target float64
	start  float64
	tau    float64
	min    float64
	max    float64

	q   uint64
	buf []float64
}

func newParam(ctx *Context, v, lo, hi float64) *Param {
	return &Param{ctx: ctx, value: v, target: v, min: lo, max: hi}
}

func (p *Param) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.value
	}
	return math.Max(p.min, math.Min(p.max, v))
}

func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.value
}

// Target is the value the parameter is converging to.
func (p *Param) Target() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.target
}

func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	v = p.clamp(v)
	p.value, p.target, p.tau, p.start = v, v, 0, 0
}

func (p *Param) SetTargetAtTime(target, startTime, timeConstant float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.target = p.clamp(target)
	p.start = startTime
	p.tau = math.Max(0, timeConstant)
	if p.tau == 0 && startTime <= p.ctx.timeLocked() {
		p.value = p.target
	}
}

// fill computes per-sample values for the current render quantum.
// Called with ctx.mu held.
func (p *Param) fill(q uint64, frames int) []float64 {
	if p.q == q && len(p.buf) == frames {
		return p.buf
	}
	if cap(p.buf) < frames {
		p.buf = make([]float64, frames)
	}
	p.buf = p.buf[:frames]

	sr := float64(p.ctx.sampleRate)
	k := 1.0
	if p.tau > 0 {
		k = 1 - math.Exp(-1/(p.tau*sr))
	}
	for i := range p.buf {
		if p.value != p.target && float64(p.ctx.frame+int64(i))/sr >= p.start {
			p.value += (p.target - p.value) * k
			if math.Abs(p.target-p.value) < settle {
				p.value = p.target
			}
		}
		p.buf[i] = p.value
	}
	p.q = q
	return p.buf
}

// last is the value at the end of the current quantum.
func (p *Param) last(q uint64, frames int) float64 {
	b := p.fill(q, frames)
	if len(b) == 0 {
		return p.value
	}
	return b[len(b)-1]
}
