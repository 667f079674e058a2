// Package signal is the websocket client side of the rendezvous channel.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/dkeye/VoicePeer/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

const defaultPath = "/voice/ws"

// ResolveEndpoint turns a configured address into a websocket URL. Full
// ws:// or wss:// URLs are used verbatim.
func ResolveEndpoint(address string) string {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address
	}
	return "ws://" + address + defaultPath
}

type Options struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	SendBuffer   int
	Metrics      *metrics.Metrics
}

func (o *Options) normalize() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
}

// Connector dials the rendezvous service.
type Connector struct {
	opts   Options
	dialer *websocket.Dialer
}

func NewConnector(opts Options) *Connector {
	opts.normalize()
	return &Connector{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
	}
}

// Connect validates the endpoint and dials in the background. The outcome is
// reported through h; the returned connection is usable immediately.
func (ct *Connector) Connect(ctx context.Context, endpoint string, h core.SignalHandler) (core.SignalConnection, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("signal endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("signal endpoint: unsupported scheme %q", u.Scheme)
	}

	// The channel outlives the request that opened it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &WsSignalConn{
		opts:    ct.opts,
		handler: h,
		send:    make(chan core.Frame, ct.opts.SendBuffer),
		cancel:  cancel,
		log:     log.With().Str("module", "signal").Str("endpoint", endpoint).Logger(),
	}
	go c.run(ctx, ct.dialer, endpoint)
	return c, nil
}

// WsSignalConn is one rendezvous channel.
type WsSignalConn struct {
	opts    Options
	handler core.SignalHandler
	send    chan core.Frame
	cancel  context.CancelFunc
	log     zerolog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	open   bool
	closed bool

	closeOnce sync.Once
}

func (c *WsSignalConn) run(ctx context.Context, dialer *websocket.Dialer, endpoint string) {
	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.log.Error().Err(err).Msg("dial failed")
		c.finish(false, err)
		return
	}
	ws.SetReadLimit(c.opts.ReadLimit)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		c.finish(false, nil)
		return
	}
	c.conn = ws
	c.open = true
	c.mu.Unlock()

	c.log.Info().Msg("signal channel open")
	c.handler.OnOpen(c)

	go c.writePump(ctx, ws)
	c.readPump(ws)
}

// finish delivers the terminal event exactly once.
func (c *WsSignalConn) finish(wasOpen bool, err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		local := c.closed
		c.closed = true
		c.open = false
		c.mu.Unlock()
		c.cancel()
		if local {
			err = nil
		}
		c.handler.OnClose(c, wasOpen, err)
	})
}

func (c *WsSignalConn) Send(env core.Envelope) bool {
	data, err := core.EncodeEnvelope(env)
	if err != nil {
		c.log.Error().Err(err).Str("type", env.Type).Msg("marshal envelope")
		return false
	}
	return c.TrySend(data) == nil
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || !c.open {
		return errors.New("connection not open")
	}
	select {
	case c.send <- f:
	default:
		c.log.Warn().Msg("send queue full")
		c.opts.Metrics.EnvelopeDropped()
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open && !c.closed
}

// Close shuts the channel down. The handler still receives OnClose with a nil
// error.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.conn
	c.mu.Unlock()

	c.cancel()
	if ws != nil {
		deadline := time.Now().Add(c.opts.WriteTimeout)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = ws.Close()
	}
}
