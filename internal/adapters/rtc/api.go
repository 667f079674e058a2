// Package rtc adapts pion/webrtc to the media connection capability.
package rtc

import (
	"fmt"

	"github.com/dkeye/VoicePeer/internal/app/capture"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// DefaultICEServers is used when no servers are configured.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

func DefaultWebRTCConfig(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		urls = DefaultICEServers
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: urls}},
	}
}

// NewAPI builds a pion API that negotiates G.722 audio only.
func NewAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: capture.Codec,
		PayloadType:        capture.PayloadType,
	}, webrtc.RTPCodecTypeAudio)
	if err != nil {
		return nil, fmt.Errorf("register g722: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m)), nil
}

// checkAudio rejects descriptions without an audio section.
func checkAudio(desc webrtc.SessionDescription) error {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return fmt.Errorf("parse %s: %w", desc.Type, err)
	}
	for _, md := range parsed.MediaDescriptions {
		if md.MediaName.Media == "audio" {
			return nil
		}
	}
	return fmt.Errorf("%s has no audio section", desc.Type)
}
