package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/VoicePeer/internal/core"
	"github.com/gorilla/websocket"
)

func (c *WsSignalConn) writePump(ctx context.Context, ws *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Msg("writePump ctx done")
			return
		case data := <-c.send:
			if err := ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.log.Error().Err(err).Msg("writePump set deadline")
				_ = ws.Close()
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error().Err(err).Msg("writePump write error")
				_ = ws.Close()
				return
			}
		}
	}
}

func (c *WsSignalConn) readPump(ws *websocket.Conn) {
	var readErr error
	defer func() {
		c.log.Info().Err(readErr).Msg("readPump closing")
		_ = ws.Close()
		c.finish(true, readErr)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure {
				readErr = err
			}
			return
		}
		env, err := core.DecodeEnvelope(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("malformed envelope dropped")
			c.opts.Metrics.EnvelopeDropped()
			continue
		}
		c.handler.OnEnvelope(c, env)
	}
}
