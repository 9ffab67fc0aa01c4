// Package ws provides the WebSocket transport for the presence gateway.
package ws

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// ErrConnectionClosed is returned by Send after the connection has
// shut down or when the outbound buffer is full.
var ErrConnectionClosed = errors.New("connection closed")

// MessageHandler is invoked for each inbound text frame.
type MessageHandler func(ctx context.Context, raw []byte)

// CloseHandler is invoked exactly once when the connection terminates,
// whether by clean close, read error, or abrupt drop.
type CloseHandler func(err error)

// ConnectionConfig bounds a connection's IO behavior.
type ConnectionConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// Connection wraps a single WebSocket connection with a buffered
// outbound queue and read/write pumps. Send is safe for concurrent
// use; everything else runs on the pumps.
type Connection struct {
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   CloseHandler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	logger *zap.Logger
}

// NewConnection wraps an accepted WebSocket connection.
//
// Precondition: conn must be an accepted, open WebSocket connection;
// config.SendBuffer must be >= 1.
// Postcondition: Returns a Connection ready for Run. No goroutines are
// started yet.
func NewConnection(parent context.Context, conn *websocket.Conn, config ConnectionConfig, onMessage MessageHandler, onClose CloseHandler, logger *zap.Logger) *Connection {
	ctx, cancel := context.WithCancel(parent)
	return &Connection{
		conn:      conn,
		config:    config,
		send:      make(chan []byte, config.SendBuffer),
		onMessage: onMessage,
		onClose:   onClose,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Run starts the read and write pumps.
//
// Postcondition: The pumps run until the peer disconnects, a timeout
// fires, or Close is called.
func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()
}

// readPump delivers inbound text frames to the message handler until
// the connection fails or closes.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		readCtx := c.ctx
		cancelRead := context.CancelFunc(func() {})
		if c.config.ReadTimeout > 0 {
			readCtx, cancelRead = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}

		typ, r, err := c.conn.Reader(readCtx)
		if err != nil {
			cancelRead()
			readErr = err
			return
		}
		if typ != websocket.MessageText {
			cancelRead()
			continue
		}

		message, err := io.ReadAll(r)
		cancelRead()
		if err != nil {
			readErr = err
			return
		}
		c.onMessage(c.ctx, message)
	}
}

// writePump drains the send queue onto the wire.
func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			writeCtx := c.ctx
			cancelWrite := context.CancelFunc(func() {})
			if c.config.WriteTimeout > 0 {
				writeCtx, cancelWrite = context.WithTimeout(c.ctx, c.config.WriteTimeout)
			}
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancelWrite()
			if err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a frame for delivery. It never blocks: if the session's
// buffer is full or the connection is closed the frame is dropped and
// an error returned. Delivery is at-most-once.
//
// Postcondition: Returns nil if the frame was queued.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrConnectionClosed
	}
}

// Close shuts the connection down exactly once and fires the close
// handler. Safe to call from any goroutine, repeatedly.
//
// Postcondition: Both pumps stop and Done is closed.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
			c.logger.Debug("connection closing", zap.Error(err))
		}
		c.cancel()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(err)
		}
		close(c.done)
	})
}

// Done returns a channel closed when the connection is fully
// terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}
