// Package chat is the WebSocket transport adapter. It owns the socket
// lifecycle (upgrade, pumps, close) and translates wire envelopes into
// engine operations; all membership state lives in the engine.
package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mvoronin/parlor/internal/config"
	"github.com/mvoronin/parlor/internal/core"
	"github.com/mvoronin/parlor/internal/engine"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Engine  *engine.Engine
	Cfg     *config.Config
	limiter *RateLimiter
}

func NewController(eng *engine.Engine, cfg *config.Config) *Controller {
	return &Controller{
		Engine:  eng,
		Cfg:     cfg,
		limiter: NewRateLimiter(cfg.RateLimitBurst, cfg.RateLimitWindow),
	}
}

// wsConn wraps one websocket with a buffered outbound channel. TrySend
// never blocks; the writePump drains the channel onto the socket.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
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

// HandleChat upgrades the request and runs the connection until it
// drops. Every socket gets its own connection handle; the client token
// cookie only travels in logs.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	cid := core.ConnID(uuid.NewString())
	log.Info().Str("module", "chat").Str("cid", string(cid)).Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}
	ctl.Engine.Register(cid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cid, conn)
}
