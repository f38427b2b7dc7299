package chat

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mvoronin/parlor/internal/config"
	"github.com/mvoronin/parlor/internal/engine"
)

func testConfig() *config.Config {
	return &config.Config{
		ReadLimit:       32768,
		PingPeriod:      50 * time.Second,
		SendBuffer:      32,
		RateLimitBurst:  100,
		RateLimitWindow: time.Second,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eng := engine.New()
	ctl := NewController(eng, testConfig())

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleChat(context.Background(), c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, eng
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	if err := ws.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return m
}

func TestAuthJoinMessageRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, srv)
	send(t, alice, map[string]string{"type": "auth", "user": "alice"})
	if ev := recv(t, alice); ev["type"] != "auth_success" || ev["userId"] != "alice" {
		t.Fatalf("auth reply = %v", ev)
	}

	send(t, alice, map[string]string{"type": "join_room", "room": "lobby"})
	if ev := recv(t, alice); ev["type"] != "room_users" || ev["roomId"] != "lobby" {
		t.Fatalf("join reply = %v", ev)
	}

	bob := dial(t, srv)
	send(t, bob, map[string]string{"type": "auth", "user": "bob"})
	recv(t, bob)
	send(t, bob, map[string]string{"type": "join_room", "room": "lobby"})
	if ev := recv(t, bob); ev["type"] != "room_users" {
		t.Fatalf("bob join reply = %v", ev)
	}
	if ev := recv(t, alice); ev["type"] != "user_joined" || ev["userId"] != "bob" {
		t.Fatalf("alice join notice = %v", ev)
	}

	send(t, alice, map[string]string{"type": "message", "room": "lobby", "text": "hi"})
	for _, ws := range []*websocket.Conn{alice, bob} {
		ev := recv(t, ws)
		if ev["type"] != "message" || ev["userId"] != "alice" || ev["text"] != "hi" {
			t.Fatalf("message = %v", ev)
		}
	}
}

func TestPingPong(t *testing.T) {
	srv, _ := newTestServer(t)

	ws := dial(t, srv)
	send(t, ws, map[string]string{"type": "ping"})
	if ev := recv(t, ws); ev["type"] != "pong" {
		t.Fatalf("ping reply = %v", ev)
	}
}

func TestBadPayloadGetsError(t *testing.T) {
	srv, _ := newTestServer(t)

	ws := dial(t, srv)
	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := recv(t, ws); ev["type"] != "error" || ev["error"] != "bad_payload" {
		t.Fatalf("reply = %v", ev)
	}
}

func TestCloseTriggersDisconnect(t *testing.T) {
	srv, eng := newTestServer(t)

	ws := dial(t, srv)
	send(t, ws, map[string]string{"type": "auth", "user": "alice"})
	recv(t, ws)
	send(t, ws, map[string]string{"type": "join_room", "room": "lobby"})
	recv(t, ws)

	_ = ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(eng.ListRooms()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room survived disconnect: %v", eng.ListRooms())
}
