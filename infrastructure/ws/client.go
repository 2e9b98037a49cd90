// Package ws carries the relay's persistent client connections: one
// goroutine reads inbound frames sequentially, a write pump drains the
// session sink concurrently. Closing the sink is the only way a session
// ends from the server side.
package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/sink"
)

const (
	// Time allowed to write an envelope to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong before the peer counts as dead.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 << 10
)

// Client pairs one websocket connection with its session sink.
type Client struct {
	conn *websocket.Conn
	sink *sink.SessionSink
	log  *slog.Logger
}

func NewClient(log *slog.Logger, conn *websocket.Conn, s *sink.SessionSink) *Client {
	conn.SetReadLimit(maxFrameSize)
	return &Client{conn: conn, sink: s, log: log}
}

// ReadLoop pulls inbound frames sequentially and hands them to the
// endpoint handler. It returns when the peer disconnects, the liveness
// deadline lapses, or the handler reports a fatal error.
func (c *Client) ReadLoop(handle func(raw []byte) error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected socket close", "error", err)
			}
			return
		}
		if err := handle(raw); err != nil {
			return
		}
	}
}

// WritePump serializes envelopes from the sink onto the wire and keeps the
// peer alive with pings. Closing the sink is the only shutdown signal: the
// pump flushes whatever is still buffered, sends a close frame, and closes
// the connection, which unblocks any pending read.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.sink.Outbound:
			if !c.write(env) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sink.Done():
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush drains envelopes already buffered at shutdown, so a final reply
// (an auth refusal, a close notice) still reaches the peer.
func (c *Client) flush() {
	for {
		select {
		case env := <-c.sink.Outbound:
			if !c.write(env) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(env any) bool {
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("Envelope marshal failed", "error", err)
		return true
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}
