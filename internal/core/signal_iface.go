package core

import "context"

// Frame is a raw encoded envelope.
type Frame []byte

// SignalConnection is the client side of the rendezvous channel.
// Owned by the controller; the controller must Close() it.
type SignalConnection interface {
	// Send is a no-op returning false unless the channel is open.
	Send(Envelope) bool
	IsOpen() bool
	Close()
}

// SignalHandler receives transport events in arrival order.
type SignalHandler interface {
	OnOpen(conn SignalConnection)
	OnEnvelope(conn SignalConnection, env Envelope)
	// OnClose is terminal. err is nil for a clean close; wasOpen reports
	// whether OnOpen was ever delivered.
	OnClose(conn SignalConnection, wasOpen bool, err error)
}

// SignalConnector opens a channel without blocking; the outcome is
// delivered through the handler.
type SignalConnector interface {
	Connect(ctx context.Context, endpoint string, h SignalHandler) (SignalConnection, error)
}
