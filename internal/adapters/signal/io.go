package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns, the connection is
// closed and disconnect cleanup runs.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, meta *domain.Member, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(meta.Conn)).Msg("readPump closing")
		c.Close()
		cancel()
		ctl.Orch.OnDisconnect(ctx, meta)
	}()

	pongWait := ctl.Opts.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(meta.Conn)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(ctx, meta, c, data)
	}
}

// handleSignal dispatches one client frame. Any failure, a panic included,
// is reported to this connection only.
func (ctl *SignalWSController) handleSignal(ctx context.Context, meta *domain.Member, c *WsSignalConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(meta.Conn)).Msg("bad json")
		return
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(meta.Conn)).Str("event", env.Type).Interface("panic", r).Msg("handler panic")
			err = fmt.Errorf("handler panic: %v", r)
		}
		ctl.Metrics.Event(env.Type, err)
		ctl.ack(c, meta, env, err)
	}()

	switch env.Type {
	case core.EventPing:
		ctl.handlePing(c)
	case core.EventHeartbeat:
		err = ctl.Orch.Heartbeat(ctx, meta)
	case core.EventChatSend:
		var req chatPayload
		if err = decode(env.Data, &req); err == nil {
			err = ctl.Orch.SendChat(ctx, meta, req.normalize())
		}
	case core.EventCallOffer:
		var req callPayload
		if err = decode(env.Data, &req); err == nil {
			err = ctl.Orch.Offer(ctx, meta, req.offer())
		}
	case core.EventCallAnswer:
		var req callPayload
		if err = decode(env.Data, &req); err == nil {
			err = ctl.Orch.Answer(ctx, meta, req.answer(meta))
		}
	case core.EventCallICE:
		var req callPayload
		if err = decode(env.Data, &req); err == nil {
			err = ctl.Orch.ICE(ctx, meta, req.ice(meta))
		}
	case core.EventCallEnd:
		var req callPayload
		if err = decode(env.Data, &req); err == nil {
			err = ctl.Orch.End(ctx, meta, req.end(meta))
		}
	case core.EventAuth:
		err = domain.Errorf(domain.KindConflict, "already authenticated")
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		err = domain.Errorf(domain.KindBadRequest, "unknown event %q", env.Type)
	}
}

// ack answers a client event that carried an id.
func (ctl *SignalWSController) ack(c *WsSignalConn, meta *domain.Member, env core.Envelope, err error) {
	status := core.AckStatus{Status: "ok"}
	if err != nil {
		status = core.AckStatus{Status: "error", Message: domain.PublicMessage(err)}
		ev := log.Debug()
		if domain.KindOf(err) == domain.KindInternal {
			ev = log.Error()
		}
		ev.Err(err).Str("module", "signal").Str("conn", string(meta.Conn)).Str("user", string(meta.Principal.ID)).Str("event", env.Type).Msg("event failed")
	}
	if len(env.ID) == 0 {
		return
	}
	f, encErr := core.EncodeAck(env.ID, status)
	if encErr != nil {
		log.Error().Err(encErr).Str("module", "signal").Msg("encode ack")
		return
	}
	if err := c.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(meta.Conn)).Msg("ack dropped")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event string, v any) {
	f, err := core.EncodeEvent(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(f)
}
