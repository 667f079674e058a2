package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is one direct media-negotiation channel to a remote peer.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources. Safe to call twice.
	Close()
	IsClosed() bool
	// AddLocalTrack attaches a local track (shared capture) to the connection.
	AddLocalTrack(track webrtc.TrackLocal) error
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	ApplyAnswer(answer webrtc.SessionDescription) error
	// Rollback discards a pending local offer.
	Rollback() error
	HasRemoteDescription() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote audio track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// OnConnected fires once the transport reaches the connected state.
	OnConnected(func())
	// OnClosed sets a callback for a connection that failed or closed underneath us.
	OnClosed(func())
}

// MediaConnectionFactory builds a fresh, not yet started connection for peerID.
type MediaConnectionFactory func(peerID string) (MediaConnection, error)

// RemoteAudioPump decodes a remote track into sink until the track ends or ctx is done.
type RemoteAudioPump func(ctx context.Context, peerID string, track *webrtc.TrackRemote, sink PCMSink)
