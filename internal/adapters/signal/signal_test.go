package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/coachline/internal/adapters/auth"
	"github.com/dkeye/coachline/internal/adapters/memstore"
	"github.com/dkeye/coachline/internal/app"
	"github.com/dkeye/coachline/internal/app/orch"
	"github.com/dkeye/coachline/internal/core"
	"github.com/dkeye/coachline/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const secret = "signal-test"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(app.SimplePolicy{}, nil),
		Calls:    app.NewCallManager(nil),
		Locks:    app.NewUserLocks(),
		Presence: app.NewPresence(memstore.NewKV(nil), time.Minute, 100),
		Chat:     app.NewChatService(memstore.NewMessageStore(nil)),
	}
	opts := DefaultOptions()
	opts.AuthTimeout = time.Second
	ctl := NewSignalWSController(o, auth.NewJWTVerifier(secret, nil), nil, opts)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctx, cancel := context.WithCancel(context.Background())
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := auth.Issue(secret, domain.UserID(user), role, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
	n  int
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, srv *httptest.Server, header http.Header, query string) *client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+query, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return &client{t: t, ws: ws}
}

// connect dials with a bearer header and waits until the server has joined the rooms.
func connect(t *testing.T, srv *httptest.Server, user, role string) *client {
	t.Helper()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token(t, user, role))
	c := dial(t, srv, h, "")
	if ack := c.call(core.EventPing, nil); ack.Status != "ok" {
		t.Fatalf("ping ack: %+v", ack)
	}
	return c
}

func (c *client) send(typ string, id int, data any) {
	c.t.Helper()
	frame := map[string]any{"type": typ}
	if id != 0 {
		frame["id"] = id
	}
	if data != nil {
		frame["data"] = data
	}
	if err := c.ws.WriteJSON(frame); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// call sends an event with a fresh id and returns its ack.
func (c *client) call(typ string, data any) core.AckStatus {
	c.t.Helper()
	c.n++
	id := c.n
	c.send(typ, id, data)
	for {
		env := c.next(core.EventAck)
		var got int
		_ = json.Unmarshal(env.ID, &got)
		if got != id {
			continue
		}
		var status core.AckStatus
		_ = json.Unmarshal(env.Data, &status)
		return status
	}
}

// next reads frames until one of the given type arrives.
func (c *client) next(typ string) core.Envelope {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env core.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			c.t.Fatalf("waiting for %s: %v", typ, err)
		}
		if env.Type == typ {
			return env
		}
	}
}

func data(env core.Envelope) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(env.Data, &m)
	return m
}

func TestCallFlowOverWebsocket(t *testing.T) {
	srv := newServer(t)
	u := connect(t, srv, "U", "user")
	s := connect(t, srv, "S", "trainer")
	s2 := connect(t, srv, "S2", "admin")

	if ack := u.call(core.EventCallOffer, map[string]any{"offer": "O1"}); ack.Status != "ok" {
		t.Fatalf("offer ack: %+v", ack)
	}
	for _, c := range []*client{s, s2} {
		offer := data(c.next(core.EventCallOffer))
		if offer["userId"] != "U" || offer["offer"] != "O1" {
			t.Fatalf("unexpected offer %v", offer)
		}
	}

	if ack := s.call(core.EventCallAnswer, map[string]any{"userId": "U", "answer": "A1"}); ack.Status != "ok" {
		t.Fatalf("answer ack: %+v", ack)
	}
	answer := data(u.next(core.EventCallAnswer))
	if answer["answer"] != "A1" || answer["userId"] != "U" {
		t.Fatalf("unexpected answer %v", answer)
	}

	ack := s2.call(core.EventCallAnswer, map[string]any{"userId": "U", "answer": "A2"})
	if ack.Status != "error" || ack.Message != "already answered" {
		t.Fatalf("expected already answered, got %+v", ack)
	}

	if ack := s.call(core.EventCallEnd, map[string]any{"userId": "U", "reason": "done"}); ack.Status != "ok" {
		t.Fatalf("end ack: %+v", ack)
	}
	for _, c := range []*client{u, s} {
		end := data(c.next(core.EventCallEnd))
		if end["userId"] != "U" || end["endedBy"] != "trainer" || end["reason"] != "done" || end["status"] != "ended" {
			t.Fatalf("unexpected end %v", end)
		}
	}
}

func TestLegacyTargetField(t *testing.T) {
	srv := newServer(t)
	u := connect(t, srv, "U", "user")
	s := connect(t, srv, "S", "trainer")

	_ = u.call(core.EventCallOffer, map[string]any{"offer": "O"})
	if ack := s.call(core.EventCallAnswer, map[string]any{"target": "staff", "answer": "A"}); ack.Status != "error" || ack.Message != "userId is required" {
		t.Fatalf("staff target should mean no target, got %+v", ack)
	}
	if ack := s.call(core.EventCallAnswer, map[string]any{"target": "room:U", "answer": "A"}); ack.Status != "ok" {
		t.Fatalf("legacy room target should resolve, got %+v", ack)
	}
	u.next(core.EventCallAnswer)
}

func TestChatOverWebsocket(t *testing.T) {
	srv := newServer(t)
	u := connect(t, srv, "U", "user")
	s := connect(t, srv, "S", "trainer")

	if ack := u.call(core.EventChatSend, map[string]any{"content": "hello"}); ack.Status != "ok" {
		t.Fatalf("chat ack: %+v", ack)
	}
	if msg := data(u.next(core.EventChatMessage)); msg["isMine"] != true {
		t.Fatalf("unexpected user view %v", msg)
	}
	if msg := data(s.next(core.EventChatMessage)); msg["senderId"] != "U" {
		t.Fatalf("unexpected staff view %v", msg)
	}
	if ack := u.call(core.EventChatSend, map[string]any{"content": "   "}); ack.Status != "error" || ack.Message != "Message content is required" {
		t.Fatalf("expected empty content error, got %+v", ack)
	}
}

func TestInBandAuth(t *testing.T) {
	srv := newServer(t)
	c := dial(t, srv, nil, "")
	c.send(core.EventAuth, 0, map[string]any{"token": "Bearer " + token(t, "U", "user")})
	if ack := c.call(core.EventHeartbeat, nil); ack.Status != "ok" {
		t.Fatalf("heartbeat ack: %+v", ack)
	}
	if ack := c.call(core.EventAuth, map[string]any{"token": "x"}); ack.Status != "error" {
		t.Fatalf("second auth should fail, got %+v", ack)
	}
}

func TestQueryTokenAuth(t *testing.T) {
	srv := newServer(t)
	c := dial(t, srv, nil, "?token="+token(t, "U", "user"))
	if ack := c.call(core.EventPing, nil); ack.Status != "ok" {
		t.Fatalf("ping ack: %+v", ack)
	}
	c.next(core.EventPong)
}

func TestRejectsBadCredentials(t *testing.T) {
	srv := newServer(t)
	tests := map[string]func() *client{
		"bad header": func() *client {
			h := http.Header{}
			h.Set("Authorization", "Bearer nope")
			return dial(t, srv, h, "")
		},
		"missing user": func() *client {
			return dial(t, srv, nil, "?token="+token(t, "", "user"))
		},
		"no auth frame": func() *client {
			c := dial(t, srv, nil, "")
			c.send(core.EventHeartbeat, 0, nil)
			return c
		},
	}
	for name, open := range tests {
		t.Run(name, func(t *testing.T) {
			c := open()
			env := c.next(core.EventConnectError)
			if msg := data(env)["message"]; msg == "" || msg == nil {
				t.Fatalf("expected a reason, got %v", data(env))
			}
			_ = c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := c.ws.ReadMessage(); err == nil {
				t.Fatal("connection should be closed after connect_error")
			}
		})
	}
}

func TestUnknownEvent(t *testing.T) {
	srv := newServer(t)
	c := connect(t, srv, "U", "user")
	ack := c.call("call:hold", nil)
	if ack.Status != "error" || !strings.Contains(ack.Message, "unknown event") {
		t.Fatalf("expected unknown event error, got %+v", ack)
	}
}
