package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
)

// WSHandler upgrades HTTP connections and runs the line protocol over them,
// one text frame per line.
type WSHandler struct {
	hub          *core.Hub
	log          *zerolog.Logger
	idleTimeout  time.Duration
	writeTimeout time.Duration
	maxLineBytes int64
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:          hub,
		log:          logger,
		idleTimeout:  cfg.IdleTimeout,
		writeTimeout: cfg.WriteTimeout,
		maxLineBytes: int64(cfg.MaxLineBytes),
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxLineBytes > 0 {
		conn.SetReadLimit(h.maxLineBytes)
	}

	h.hub.Serve(r.Context(), &wsConn{
		conn:         conn,
		remote:       r.RemoteAddr,
		idleTimeout:  h.idleTimeout,
		writeTimeout: h.writeTimeout,
	})
}

// wsConn adapts a websocket connection to core.Conn.
type wsConn struct {
	conn         *websocket.Conn
	remote       string
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *wsConn) ReadLine(ctx context.Context) (string, error) {
	if c.idleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.idleTimeout)
		defer cancel()
	}

	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", fmt.Errorf("unexpected %v frame", typ)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// WriteLine bounds each frame by the write timeout; a peer that stops reading
// gets its connection closed instead of stalling the writer.
func (c *wsConn) WriteLine(ctx context.Context, line string) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, []byte(line))
}

func (c *wsConn) Close() error {
	return c.conn.CloseNow()
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
