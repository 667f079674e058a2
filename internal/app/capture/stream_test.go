package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu     sync.Mutex
	frames [][]int16
}

func (s *sink) Push(pcm []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, pcm)
}

func (s *sink) snapshot() [][]int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]int16(nil), s.frames...)
}

func newStream(t *testing.T) *Stream {
	t.Helper()
	s, err := NewStream(Config{SampleRate: 16000, FrameMs: 20})
	require.NoError(t, err)
	return s
}

func ones(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = 1000
	}
	return out
}

func TestNewStream_Validates(t *testing.T) {
	_, err := NewStream(Config{})
	assert.Error(t, err)
	_, err = NewStream(Config{SampleRate: 48000, FrameMs: 20})
	assert.Error(t, err)

	s := newStream(t)
	assert.Equal(t, 320, s.FrameSamples())
	assert.Equal(t, "audio", s.Track.ID())
	assert.Equal(t, Codec.MimeType, s.Track.Codec().MimeType)
}

func TestStream_RechunksIntoFrames(t *testing.T) {
	s := newStream(t)
	out := &sink{}
	s.Subscribe(out)

	frames := make(chan []int16)
	s.Start(context.Background(), frames)
	frames <- ones(100)
	frames <- ones(500)
	frames <- ones(50)
	close(frames)
	<-s.done

	got := out.snapshot()
	require.Len(t, got, 2)
	for _, f := range got {
		assert.Len(t, f, 320)
	}
}

func TestStream_MutedFramesAreSilent(t *testing.T) {
	s := newStream(t)
	out := &sink{}
	s.Subscribe(out)
	s.SetEnabled(false)
	assert.Equal(t, TrackMuted, s.State())

	frames := make(chan []int16, 1)
	s.Start(context.Background(), frames)
	frames <- ones(320)
	close(frames)
	<-s.done

	got := out.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, make([]int16, 320), got[0])

	s.SetEnabled(true)
	assert.Equal(t, TrackLive, s.State())
}

func TestStream_Unsubscribe(t *testing.T) {
	s := newStream(t)
	out := &sink{}
	unsubscribe := s.Subscribe(out)
	unsubscribe()
	unsubscribe()

	s.fanout(ones(4))
	assert.Empty(t, out.snapshot())
}

func TestStream_StopIsFinal(t *testing.T) {
	s := newStream(t)
	frames := make(chan []int16)
	s.Start(context.Background(), frames)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}

	s.SetEnabled(true)
	assert.Equal(t, TrackStopped, s.State())
	assert.NotPanics(t, s.Stop)
}
