package audio

import (
	"math"
	"sync"
)

// jitter is how much audio a PCM source buffers before it starts playing.
const jitter = 0.04

// maxQueue bounds a PCM source backlog; older samples are dropped first.
const maxQueue = 0.5

type PCMSource struct {
	*node

	mu      sync.Mutex
	queue   []float32
	prime   int
	limit   int
	playing bool
	stopped bool
}

func newPCMSource(c *Context) *PCMSource {
	s := &PCMSource{
		prime: int(jitter * float64(c.sampleRate)),
		limit: int(maxQueue * float64(c.sampleRate)),
	}
	s.node = newNode(c, s)
	return s
}

func (s *PCMSource) Push(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	for _, v := range samples {
		s.queue = append(s.queue, float32(v)/math.MaxInt16)
	}
	if over := len(s.queue) - s.limit; over > 0 {
		s.queue = append(s.queue[:0], s.queue[over:]...)
	}
}

// Buffered returns the number of queued samples.
func (s *PCMSource) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *PCMSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.queue = nil
}

func (s *PCMSource) process(_ uint64, frames int, _, out *bus) {
	out.reset(1, frames)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if !s.playing {
		if len(s.queue) < s.prime {
			return
		}
		s.playing = true
	}
	n := copy(out.l, s.queue)
	s.queue = s.queue[n:]
	if n < frames {
		s.playing = false
	}
}

// BufferSource plays a fixed mono clip.
type BufferSource struct {
	*node
	samples []float32
	loop    bool
	pos     int
	stopped bool
}

func newBufferSource(c *Context, samples []float32, loop bool) *BufferSource {
	s := &BufferSource{samples: samples, loop: loop}
	s.node = newNode(c, s)
	return s
}

func (s *BufferSource) Stop() {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.stopped = true
}

func (s *BufferSource) process(_ uint64, frames int, _, out *bus) {
	out.reset(1, frames)
	if s.stopped || len(s.samples) == 0 {
		return
	}
	for i := 0; i < frames; i++ {
		if s.pos >= len(s.samples) {
			if !s.loop {
				return
			}
			s.pos = 0
		}
		out.l[i] = s.samples[s.pos]
		s.pos++
	}
}
