// ABOUTME: One live WebSocket connection: identity, outbound queue and write pump
// ABOUTME: Implements rooms.Member so the registry can fan events out to it

package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/support-gateway/internal/auth"
	"github.com/2389/support-gateway/internal/rooms"
	"github.com/2389/support-gateway/internal/session"
)

// Frame is the JSON envelope of every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is an authenticated WebSocket connection.
type Conn struct {
	id       string
	ws       *websocket.Conn
	identity *auth.Identity
	opts     Options
	logger   *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, identity *auth.Identity, opts Options, logger *slog.Logger) *Conn {
	id := uuid.New().String()
	return &Conn{
		id:       id,
		ws:       ws,
		identity: identity,
		opts:     opts,
		logger:   logger.With("conn", id, "user_id", identity.ID),
		send:     make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
	}
}

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

// Identity returns the identity resolved at handshake.
func (c *Conn) Identity() *auth.Identity { return c.identity }

// Deliver queues the event for the write pump. It never blocks: a closed
// connection or a full queue drops the event.
func (c *Conn) Deliver(ev rooms.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	data, err := json.Marshal(outboundFrame{Event: ev.Name, Data: ev.Data})
	if err != nil {
		c.logger.Error("encoding event", "event", ev.Name, "error", err)
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendError tells the client a frame could not be processed.
func (c *Conn) sendError(msg string) {
	c.Deliver(rooms.Event{Name: session.EventError, Data: session.ErrorPayload{Message: msg}})
}

// Close stops the write pump, which sends a close frame and closes the socket.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump drains the outbound queue and keeps the connection alive with
// pings. It owns every write to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		}
	}
}
