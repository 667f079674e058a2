package domain

import "errors"

var (
	ErrMissingCredential  = errors.New("missing credential")
	ErrCaptureDenied      = errors.New("capture denied")
	ErrSignalingFailure   = errors.New("signaling failure")
	ErrNegotiationFailure = errors.New("negotiation failure")
	ErrRemoteError        = errors.New("remote error")
	ErrSessionActive      = errors.New("session already active")
	ErrClosed             = errors.New("closed")
	ErrUnknownStage       = errors.New("unknown filter stage")
)
