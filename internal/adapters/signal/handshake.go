package signal

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/coachline/internal/adapters/auth"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// credentialFromRequest looks at the Authorization header, then the token query parameter.
func credentialFromRequest(r *http.Request) string {
	if tok := auth.StripBearer(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return auth.StripBearer(r.URL.Query().Get("token"))
}

// awaitAuthFrame reads the in-band auth frame of a client that sent no
// header or query credential.
func (ctl *SignalWSController) awaitAuthFrame(ws *websocket.Conn) (string, error) {
	if err := ws.SetReadDeadline(time.Now().Add(ctl.Opts.AuthTimeout)); err != nil {
		return "", err
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		return "", domain.Errorf(domain.KindUnauthorized, "authentication timeout")
	}
	_ = ws.SetReadDeadline(time.Time{})

	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != core.EventAuth {
		return "", domain.Errorf(domain.KindUnauthorized, "authentication required")
	}
	var p struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &p)
	tok := auth.StripBearer(p.Token)
	if tok == "" {
		return "", domain.ErrUnauthorized
	}
	return tok, nil
}

// reject tells the client why the connection failed and closes it.
func (ctl *SignalWSController) reject(ws *websocket.Conn, err error) {
	if errors.Is(err, domain.ErrUnauthorized) {
		ctl.Metrics.AuthFailed()
	}
	log.Warn().Err(err).Str("module", "signal").Str("remote", ws.RemoteAddr().String()).Msg("connection rejected")

	f, _ := core.EncodeEvent(core.EventConnectError, struct {
		Message string `json:"message"`
	}{domain.PublicMessage(err)})
	deadline := time.Now().Add(ctl.Opts.WriteWait)
	_ = ws.SetWriteDeadline(deadline)
	_ = ws.WriteMessage(websocket.TextMessage, f)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), deadline)
	_ = ws.Close()
}
