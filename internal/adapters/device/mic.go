// Package device binds the audio pipeline to real hardware through malgo,
// with headless stand-ins for machines without sound devices.
package device

import (
	"context"
	"sync"
	"time"

	malgo "github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
)

// Microphone captures mono 16-bit PCM from the default input device.
type Microphone struct {
	SampleRate int
}

func (m *Microphone) Open(ctx context.Context) (<-chan []int16, error) {
	out := make(chan []int16, 16)
	logger := log.With().Str("module", "device").Str("device", "mic").Logger()

	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug().Msg(message)
	})
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(m.SampleRate)

	var mu sync.Mutex
	closed := false

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			if len(pInput) == 0 {
				return
			}
			samples := bytesToInt16(pInput)
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			select {
			case out <- samples:
			default:
			}
		},
	}

	dev, err := malgo.InitDevice(mCtx.Context, cfg, callbacks)
	if err != nil {
		_ = mCtx.Uninit()
		mCtx.Free()
		return nil, err
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
		return nil, err
	}
	logger.Info().Int("sample_rate", m.SampleRate).Msg("microphone started")

	go func() {
		<-ctx.Done()
		_ = dev.Stop()
		dev.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
		logger.Info().Msg("microphone stopped")
	}()

	return out, nil
}

// SilenceMic produces zero frames in real time. It stands in for a
// microphone on headless hosts.
type SilenceMic struct {
	SampleRate int
	FrameMs    int
}

func (m *SilenceMic) Open(ctx context.Context) (<-chan []int16, error) {
	frameMs := m.FrameMs
	if frameMs <= 0 {
		frameMs = 20
	}
	samples := m.SampleRate * frameMs / 1000
	out := make(chan []int16, 4)
	go func() {
		defer close(out)
		t := time.NewTicker(time.Duration(frameMs) * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				select {
				case out <- make([]int16, samples):
				default:
				}
			}
		}
	}()
	return out, nil
}
