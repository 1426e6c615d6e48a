/*
Package chat contains the real-time direct-message delivery core.

This file defines the Client struct, the registry handle wrapping one active WebSocket connection.
It serializes writes, keeps the connection alive with pings, and closes it exactly once.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dmchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// default time allowed to read the next frame or pong from the peer.
	defaultPongWait = 60 * time.Second

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 64 * 1024

	// CloseCodeSessionReplaced is a custom WebSocket close code (4000-4999 range)
	// telling the client its session was replaced by a newer connection.
	CloseCodeSessionReplaced = 4001
)

// ErrClientClosed is returned by writes on a closed client.
var ErrClientClosed = errors.New("client connection closed")

// Client wraps one WebSocket connection for the lifetime of a session.
type Client struct {
	// ID identifies the connection in logs.
	ID uuid.UUID

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// writeMu serializes data frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	logger zerolog.Logger
}

// NewClient wraps conn. The caller owns the read side.
func NewClient(conn *websocket.Conn) *Client {
	id := uuid.New()

	return &Client{
		ID:     id,
		conn:   conn,
		done:   make(chan struct{}),
		logger: logx.Component("client").With().Str("conn_id", id.String()).Logger(),
	}
}

// Write sends one text frame. A failed write closes the connection, so every later write fails fast.
func (c *Client) Write(data []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrClientClosed
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.Close()
		return err
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug().Err(err).Msg("Write failed, closing connection")
		c.Close()
		return err
	}

	return nil
}

// WriteJSON marshals v and writes it as one text frame.
func (c *Client) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(data)
}

// CloseWith sends a close frame carrying code and reason, then closes the connection.
func (c *Client) CloseWith(code int, reason string) {
	if c.closed.Load() {
		return
	}

	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Int("close_code", code).Msg("Failed to send close frame")
	}

	c.Close()
}

// Close closes the underlying connection. Safe to call more than once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error")
		}
	})
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// keepAlive pings the peer every pingPeriod until ctx ends or the client closes.
// A failed ping closes the client, which unblocks the session's read loop.
func (c *Client) keepAlive(ctx context.Context, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.done:
			return

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed, closing connection")
				c.Close()
				return
			}
		}
	}
}
