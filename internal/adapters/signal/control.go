package signal

import "github.com/dkeye/coachline/internal/core"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendJSON(conn, core.EventPong, nil)
}
