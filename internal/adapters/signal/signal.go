package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/coachline/internal/app/orch"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/dkeye/coachline/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Options tune the websocket transport.
type Options struct {
	ReadLimit   int64
	PingPeriod  time.Duration
	WriteWait   time.Duration
	AuthTimeout time.Duration
	SendBuffer  int
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:   32 << 10,
		PingPeriod:  54 * time.Second,
		WriteWait:   5 * time.Second,
		AuthTimeout: 10 * time.Second,
		SendBuffer:  64,
	}
}

func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Verifier core.TokenVerifier
	Metrics  *observability.Metrics
	Opts     Options
}

func NewSignalWSController(o *orch.Orchestrator, verifier core.TokenVerifier, metrics *observability.Metrics, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		Verifier: verifier,
		Metrics:  metrics,
		Opts:     opts,
	}
}

// WsSignalConn is the outbound side of one websocket. Frames are queued and
// written by the write pump only.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request, authenticates it and starts the pumps.
// Nothing joins a room before the credential resolves.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	cred := credentialFromRequest(c.Request)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Opts.ReadLimit)

	if cred == "" {
		cred, err = ctl.awaitAuthFrame(ws)
		if err != nil {
			ctl.reject(ws, err)
			return
		}
	}
	principal, err := ctl.Verifier.Resolve(ctx, cred)
	if err != nil {
		ctl.reject(ws, err)
		return
	}

	conn := newWsSignalConn(ws, ctl.Opts.SendBuffer)
	meta := domain.NewMember(principal, domain.NewConnID())
	sess := core.NewMemberSession(meta, conn)
	if err := ctl.Orch.OnConnect(ctx, sess); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(principal.ID)).Msg("connect failed")
		ctl.reject(ws, err)
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(meta.Conn)).Str("user", string(principal.ID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, meta, conn)
}
