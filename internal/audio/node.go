package audio

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dkeye/VoicePeer/internal/core"
)

var errForeignContext = errors.New("audio: nodes belong to different contexts")

// bus is one rendered block, mono or stereo.
type bus struct {
	channels int
	l, r     []float32
}

func grow(b []float32, n int) []float32 {
	if cap(b) < n {
		return make([]float32, n)
	}
	b = b[:n]
	clear(b)
	return b
}

func (b *bus) reset(channels, frames int) {
	b.channels = channels
	b.l = grow(b.l, frames)
	if channels == 2 {
		b.r = grow(b.r, frames)
	} else {
		b.r = b.r[:0]
	}
}

// add mixes src into b, up-mixing mono into both channels.
func (b *bus) add(src *bus) {
	for i := range b.l {
		b.l[i] += src.l[i]
	}
	if b.channels != 2 {
		return
	}
	right := src.r
	if src.channels == 1 {
		right = src.l
	}
	for i := range b.r {
		b.r[i] += right[i]
	}
}

// mono returns the left channel, or the average of both channels.
func (b *bus) mono(dst []float32) []float32 {
	dst = grow(dst, len(b.l))
	if b.channels == 1 {
		copy(dst, b.l)
		return dst
	}
	for i := range dst {
		dst[i] = (b.l[i] + b.r[i]) / 2
	}
	return dst
}

type kernel interface {
	process(q uint64, frames int, in, out *bus)
}

type graphNode interface {
	graph() *node
}

// node carries the wiring shared by every graph element.
type node struct {
	ctx     *Context
	k       kernel
	inputs  []*node
	outputs []*node

	q      uint64
	in     bus
	out    bus
	pulled []*bus
}

func newNode(ctx *Context, k kernel) *node {
	return &node{ctx: ctx, k: k}
}

func (n *node) graph() *node { return n }

func (n *node) Connect(dst core.AudioNode) error {
	g, ok := dst.(graphNode)
	if !ok {
		return fmt.Errorf("audio: cannot connect to %T", dst)
	}
	d := g.graph()
	if d.ctx != n.ctx {
		return errForeignContext
	}
	if d == n {
		return errors.New("audio: node connected to itself")
	}
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if slices.Contains(n.outputs, d) {
		return nil
	}
	n.outputs = append(n.outputs, d)
	d.inputs = append(d.inputs, n)
	return nil
}

func (n *node) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for _, d := range n.outputs {
		d.inputs = slices.DeleteFunc(d.inputs, func(x *node) bool { return x == n })
	}
	n.outputs = nil
}

// pull renders the node once per quantum. Called with ctx.mu held.
func (n *node) pull(q uint64, frames int) *bus {
	if n.q == q {
		return &n.out
	}
	n.q = q

	channels := 1
	n.pulled = n.pulled[:0]
	for _, in := range n.inputs {
		b := in.pull(q, frames)
		n.pulled = append(n.pulled, b)
		channels = max(channels, b.channels)
	}
	n.in.reset(channels, frames)
	for _, b := range n.pulled {
		n.in.add(b)
	}
	n.k.process(q, frames, &n.in, &n.out)
	return &n.out
}

// passthrough copies the mixed input.
type passthrough struct{}

func (passthrough) process(_ uint64, frames int, in, out *bus) {
	out.reset(in.channels, frames)
	out.add(in)
}
