package transport

import (
	"chat-relay/errors"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

var DefaultOptions = Options{
	WriteTimeout:   10 * time.Second,
	PingInterval:   30 * time.Second,
	MaxMessageSize: 4096,
}

// Conn adapts a gorilla websocket to contract.LiveConnection.
// Writes are serialized; pings and the close frame go through WriteControl,
// which gorilla allows concurrently with everything else.
type Conn struct {
	ws        *websocket.Conn
	opts      Options
	log       *slog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewConn(ws *websocket.Conn, opts Options, log *slog.Logger) *Conn {
	c := &Conn{ws: ws, opts: opts, log: log, done: make(chan struct{})}
	if opts.MaxMessageSize > 0 {
		ws.SetReadLimit(opts.MaxMessageSize)
	}
	if opts.PingInterval > 0 {
		pongWait := 2 * opts.PingInterval
		if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Debug("Cannot set initial read deadline", "error", err)
		}
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		go c.pingLoop()
	}
	return c
}

func (c *Conn) SendText(text string) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.opts.WriteTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}

// ReceiveText blocks until the next text frame. Binary frames are skipped.
// A closed connection, on either side, is reported as errors.ErrConnectionClosed.
func (c *Conn) ReceiveText() (string, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", c.readError(err)
		}
		if kind != websocket.TextMessage {
			c.log.Debug("Ignoring non-text frame", "type", kind)
			continue
		}
		return string(data), nil
	}
}

func (c *Conn) readError(err error) error {
	select {
	case <-c.done:
		return fmt.Errorf("%w: %v", errors.ErrConnectionClosed, err)
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		goerrors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", errors.ErrConnectionClosed, err)
	}
	return fmt.Errorf("read: %w", err)
}

func (c *Conn) Close() error {
	return c.CloseWithReason(websocket.CloseNormalClosure, "")
}

// CloseWithReason sends a close frame with code and reason, then drops the
// underlying connection. Only the first call has an effect.
func (c *Conn) CloseWithReason(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		if c.opts.WriteTimeout > 0 {
			deadline = time.Now().Add(c.opts.WriteTimeout)
		}
		msg := websocket.FormatCloseMessage(code, reason)
		if werr := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil && !goerrors.Is(werr, websocket.ErrCloseSent) {
			c.log.Debug("Cannot send close frame", "error", werr)
		}
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.PingInterval / 2)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("Ping failed", "error", err)
				_ = c.CloseWithReason(websocket.CloseGoingAway, "ping timeout")
				return
			}
		}
	}
}
