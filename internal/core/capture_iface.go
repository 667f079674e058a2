package core

import "context"

// Microphone yields mono 16-bit frames at the configured sample rate.
// The channel is closed once ctx is done or the device stops.
type Microphone interface {
	Open(ctx context.Context) (<-chan []int16, error)
}
