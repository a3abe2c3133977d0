package wsstore

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "wsstore").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "wsstore").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "wsstore").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "wsstore").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, p *peer) {
	defer func() {
		log.Info().Str("module", "wsstore").Str("client", p.token).Msg("readPump closing")
		p.cancelAll()
		ctl.Limiter.Forget(p.token)
		p.conn.Close()
	}()

	idle := 2 * ctl.PingPeriod
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "wsstore").Str("client", p.token).Msg("readPump ctx done")
			return
		default:
		}
		if idle > 0 {
			_ = p.conn.conn.SetReadDeadline(time.Now().Add(idle))
		}
		_, data, err := p.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Str("module", "wsstore").Str("client", p.token).Msg("client closed")
			} else {
				log.Error().Err(err).Str("module", "wsstore").Str("client", p.token).Msg("readPump read error")
			}
			return
		}
		ctl.handleFrame(ctx, p, data)
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, p *peer, data []byte) {
	f, err := decodeFrame(data)
	if err != nil {
		log.Error().Err(err).Str("module", "wsstore").Msg("bad json")
		return
	}

	switch f.Type {
	case typePing:
		ctl.handlePing(p, f)
	case typeAdd, typeSet, typeUpdate:
		ctl.handleWrite(ctx, p, f)
	case typeGet:
		ctl.handleGet(ctx, p, f)
	case typeListen:
		ctl.handleListen(ctx, p, f)
	case typeUnlisten:
		ctl.handleUnlisten(p, f)
	default:
		log.Warn().Str("module", "wsstore").Str("type", f.Type).Msg("unknown frame")
		ctl.reply(p, errorFrame(f.Seq, errBadRequest))
	}
}

// reply queues f. A client that cannot keep up is dropped, since a lost
// change would leave its listeners silently stale.
func (ctl *Controller) reply(p *peer, f frame) {
	b, err := encodeFrame(f)
	if err != nil {
		log.Error().Err(err).Str("module", "wsstore").Msg("reply marshal")
		return
	}
	if err := p.conn.TrySend(b); err == ErrBackpressure {
		log.Warn().Str("module", "wsstore").Str("client", p.token).Msg("client too slow, dropping")
		p.conn.Close()
	}
}
