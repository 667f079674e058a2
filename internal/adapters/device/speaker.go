package device

import (
	"sync"
	"time"

	malgo "github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
)

// Renderer pulls the next block of interleaved stereo output.
type Renderer interface {
	RenderInt16(out []int16, scratch []float32) []float32
}

// Output is a running sink that drives a Renderer.
type Output interface {
	Close()
}

const channels = 2

// Speaker handles audio playback via malgo.
type Speaker struct {
	dev  *malgo.Device
	ctx  *malgo.AllocatedContext
	once sync.Once
}

// StartSpeaker opens the default playback device and renders r on its
// callback thread. onStop is invoked if the device stops underneath us.
func StartSpeaker(sampleRate int, r Renderer, onStop func()) (*Speaker, error) {
	logger := log.With().Str("module", "device").Str("device", "speaker").Logger()
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug().Msg(message)
	})
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = uint32(sampleRate)

	var (
		samples []int16
		scratch []float32
	)
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			need := int(frameCount) * channels
			if cap(samples) < need {
				samples = make([]int16, need)
			}
			samples = samples[:need]
			scratch = r.RenderInt16(samples, scratch)
			int16ToBytes(pOutput, samples)
		},
		Stop: func() {
			if onStop != nil {
				onStop()
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, err
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, err
	}
	logger.Info().Int("sample_rate", sampleRate).Msg("speaker started")
	return &Speaker{dev: dev, ctx: ctx}, nil
}

// Close stops playback and releases device resources.
func (s *Speaker) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.dev != nil {
			_ = s.dev.Stop()
			s.dev.Uninit()
		}
		if s.ctx != nil {
			_ = s.ctx.Uninit()
			s.ctx.Free()
		}
	})
}

// NullOutput renders in real time and discards the result so the audio
// clock keeps advancing without a device.
type NullOutput struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func StartNullOutput(sampleRate, blockMs int, r Renderer) *NullOutput {
	if blockMs <= 0 {
		blockMs = 20
	}
	n := &NullOutput{stop: make(chan struct{}), done: make(chan struct{})}
	buf := make([]int16, sampleRate*blockMs/1000*channels)
	go func() {
		defer close(n.done)
		t := time.NewTicker(time.Duration(blockMs) * time.Millisecond)
		defer t.Stop()
		var scratch []float32
		for {
			select {
			case <-n.stop:
				return
			case <-t.C:
				scratch = r.RenderInt16(buf, scratch)
			}
		}
	}()
	return n
}

func (n *NullOutput) Close() {
	n.once.Do(func() {
		close(n.stop)
		<-n.done
	})
}
