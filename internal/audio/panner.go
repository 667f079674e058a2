package audio

import (
	"math"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/domain"
)

// maxITD is the largest interaural delay applied by the binaural model, in seconds.
const maxITD = 0.00066

const historySize = 64

// Panner places a source in listener space. Azimuth follows the WebAudio
// PannerNode; both models use equal-power gains and binaural adds an
// interaural delay on the far ear. Stereo input is down-mixed first.
type Panner struct {
	*node
	posX, posY, posZ *Param

	model    domain.PanningModel
	distance domain.DistanceModel
	ref      float64
	maxDist  float64
	rolloff  float64

	primed       bool
	prevL, prevR float64
	mono         []float32
	history      [historySize]float32
	hpos         int
}

func newPanner(c *Context) *Panner {
	inf := math.Inf(1)
	p := &Panner{
		posX:     newParam(c, 0, -inf, inf),
		posY:     newParam(c, 0, -inf, inf),
		posZ:     newParam(c, 0, -inf, inf),
		model:    domain.PanningEqualPower,
		distance: domain.DistanceInverse,
		ref:      1,
		maxDist:  10000,
		rolloff:  1,
	}
	p.node = newNode(c, p)
	return p
}

func (p *Panner) PositionX() core.AudioParam { return p.posX }
func (p *Panner) PositionY() core.AudioParam { return p.posY }
func (p *Panner) PositionZ() core.AudioParam { return p.posZ }

func (p *Panner) SetPanningModel(m domain.PanningModel) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.model = m
}

func (p *Panner) PanningModel() domain.PanningModel {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.model
}

func (p *Panner) SetDistanceModel(m domain.DistanceModel) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.distance = m
}

func (p *Panner) SetRefDistance(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.ref = math.Max(0, v)
}

func (p *Panner) SetMaxDistance(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.maxDist = math.Max(0, v)
}

func (p *Panner) SetRolloffFactor(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.rolloff = math.Max(0, v)
}

// Settings reports the distance parameters, for inspection.
func (p *Panner) Settings() (model domain.DistanceModel, ref, maxDist, rolloff float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.distance, p.ref, p.maxDist, p.rolloff
}

func (p *Panner) process(q uint64, frames int, in, out *bus) {
	out.reset(2, frames)
	p.mono = in.mono(p.mono)

	l := p.ctx.listener
	src := vec{p.posX.last(q, frames), p.posY.last(q, frames), p.posZ.last(q, frames)}
	lis := vec{l.posX.last(q, frames), l.posY.last(q, frames), l.posZ.last(q, frames)}
	fwd := vec{l.fwdX.last(q, frames), l.fwdY.last(q, frames), l.fwdZ.last(q, frames)}
	up := vec{l.upX.last(q, frames), l.upY.last(q, frames), l.upZ.last(q, frames)}

	az := azimuth(src.sub(lis), fwd, up)
	dg := distanceGain(p.distance, src.sub(lis).length(), p.ref, p.maxDist, p.rolloff)
	gl, gr := equalPower(az)
	gl, gr = gl*dg, gr*dg
	if !p.primed {
		p.prevL, p.prevR, p.primed = gl, gr, true
	}

	delay := 0
	if p.model == domain.PanningBinaural {
		delay = int(math.Round(maxITD * math.Abs(math.Sin(az*math.Pi/180)) * float64(p.ctx.sampleRate)))
		delay = min(delay, historySize-1)
	}
	for i := 0; i < frames; i++ {
		t := float64(i+1) / float64(frames)
		curL := p.prevL + (gl-p.prevL)*t
		curR := p.prevR + (gr-p.prevR)*t

		s := p.mono[i]
		p.history[p.hpos] = s
		late := p.history[(p.hpos-delay+historySize)%historySize]
		p.hpos = (p.hpos + 1) % historySize

		near, far := s, late
		if az < 0 {
			out.l[i] = near * float32(curL)
			out.r[i] = far * float32(curR)
		} else {
			out.l[i] = far * float32(curL)
			out.r[i] = near * float32(curR)
		}
	}
	p.prevL, p.prevR = gl, gr
}

type vec struct{ x, y, z float64 }

func (a vec) sub(b vec) vec       { return vec{a.x - b.x, a.y - b.y, a.z - b.z} }
func (a vec) dot(b vec) float64   { return a.x*b.x + a.y*b.y + a.z*b.z }
func (a vec) scale(k float64) vec { return vec{a.x * k, a.y * k, a.z * k} }
func (a vec) length() float64     { return math.Sqrt(a.dot(a)) }

func (a vec) cross(b vec) vec {
	return vec{a.y*b.z - a.z*b.y, a.z*b.x - a.x*b.z, a.x*b.y - a.y*b.x}
}

func (a vec) norm() (vec, bool) {
	n := a.length()
	if n == 0 || math.IsNaN(n) {
		return vec{}, false
	}
	return a.scale(1 / n), true
}

// azimuth of rel in degrees, -90 hard left, +90 hard right, 0 straight ahead.
func azimuth(rel, forward, up vec) float64 {
	dir, ok := rel.norm()
	if !ok {
		return 0
	}
	fwd, ok := forward.norm()
	if !ok {
		return 0
	}
	right, ok := fwd.cross(up).norm()
	if !ok {
		return 0
	}
	lup := right.cross(fwd)

	projected, ok := dir.sub(lup.scale(dir.dot(lup))).norm()
	if !ok {
		return 0
	}
	az := 180 * math.Acos(clampUnit(projected.dot(right))) / math.Pi
	if projected.dot(fwd) < 0 {
		az = 360 - az
	}
	if az >= 0 && az <= 270 {
		az = 90 - az
	} else {
		az = 450 - az
	}
	return az
}

// equalPower folds rear azimuths to the front and maps them to channel gains.
func equalPower(az float64) (float64, float64) {
	az = math.Max(-180, math.Min(180, az))
	if az < -90 {
		az = -180 - az
	} else if az > 90 {
		az = 180 - az
	}
	x := (az + 90) / 180
	return math.Cos(x * math.Pi / 2), math.Sin(x * math.Pi / 2)
}

func distanceGain(model domain.DistanceModel, d, ref, maxDist, rolloff float64) float64 {
	switch model {
	case domain.DistanceLinear:
		if maxDist <= ref {
			return 1
		}
		d = math.Max(ref, math.Min(maxDist, d))
		return 1 - math.Min(1, rolloff)*(d-ref)/(maxDist-ref)
	case domain.DistanceExponential:
		if ref <= 0 {
			return 1
		}
		d = math.Max(ref, d)
		return math.Pow(d/ref, -rolloff)
	default:
		if ref <= 0 {
			return 1
		}
		d = math.Max(ref, d)
		return ref / (ref + rolloff*(d-ref))
	}
}

func clampUnit(v float64) float64 { return math.Max(-1, math.Min(1, v)) }
