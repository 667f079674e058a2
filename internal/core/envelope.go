package core

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/pion/webrtc/v4"
)

const (
	TypeHello     = "hello"
	TypeWelcome   = "welcome"
	TypePeerJoin  = "peer-join"
	TypePeerLeave = "peer-leave"
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeICE       = "ice"
	TypeMute      = "mute"
	TypePTT       = "ptt"
	TypePosition  = "position"
	TypeRotation  = "rotation"
	TypeError     = "error"
)

// Envelope is the single discriminated message shape exchanged with the rendezvous.
type Envelope struct {
	Type string `json:"type"`

	Token    string              `json:"token,omitempty"`
	ID       string              `json:"id,omitempty"`
	Peers    []string            `json:"peers,omitempty"`
	UserName string              `json:"userName,omitempty"`
	Config   *domain.RangeConfig `json:"config,omitempty"`

	To        string                     `json:"to,omitempty"`
	From      string                     `json:"from,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`

	Muted  *bool `json:"muted,omitempty"`
	Active *bool `json:"active,omitempty"`

	Position *domain.Vec3 `json:"position,omitempty"`
	Rotation *domain.Vec3 `json:"rotation,omitempty"`

	Message string `json:"message,omitempty"`
}

func Hello(token string) Envelope { return Envelope{Type: TypeHello, Token: token} }

func Mute(muted bool) Envelope { return Envelope{Type: TypeMute, Muted: &muted} }

func PTT(active bool) Envelope { return Envelope{Type: TypePTT, Active: &active} }

func Offer(to string, sdp *webrtc.SessionDescription) Envelope {
	return Envelope{Type: TypeOffer, To: to, SDP: sdp}
}

func Answer(to string, sdp *webrtc.SessionDescription) Envelope {
	return Envelope{Type: TypeAnswer, To: to, SDP: sdp}
}

func ICE(to string, c webrtc.ICECandidateInit) Envelope {
	return Envelope{Type: TypeICE, To: to, Candidate: &c}
}

var errMissingType = errors.New("envelope has no type")

func EncodeEnvelope(env Envelope) (Frame, error) {
	return json.Marshal(env)
}

// DecodeEnvelope parses one text frame. Frames without a type are rejected.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, errMissingType
	}
	return env, nil
}
