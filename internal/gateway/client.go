package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/logging"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	// A peer that misses two pings is considered gone.
	pongWait = 2*pingInterval + writeTimeout
)

// errMalformedFrame marks a message that is not a JSON frame. The
// connection survives it.
var errMalformedFrame = errors.New("malformed frame")

// Client is one authenticated WebSocket connection. Caller is the end
// user bound at connect time; every chat RPC on the connection runs as
// that caller.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Caller      domain.Caller
	Socket      *websocket.Conn
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	log    *logging.Logger
}

// NewClient wraps an upgraded connection that passed the handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, caller domain.Caller, log *logging.Logger) *Client {
	return &Client{
		ConnID:      uuid.NewString(),
		Info:        info,
		Caller:      caller,
		Socket:      conn,
		ConnectedAt: time.Now(),
		log:         log,
	}
}

// Send writes one frame under the write lock. gorilla allows a single
// concurrent writer per connection.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.Socket == nil {
		return ErrClientClosed
	}
	if err := c.Socket.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.Socket.WriteJSON(frame)
}

func (c *Client) sendBuilt(f Frame, err error) error {
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) SendEvent(event string, payload any, seq int64) error {
	return c.sendBuilt(NewEvent(event, payload, seq))
}

func (c *Client) Respond(reqID string, payload any) error {
	return c.sendBuilt(NewResponse(reqID, payload))
}

func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

// ReadFrame blocks for the next frame. Undecodable messages return an
// error wrapping errMalformedFrame.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", errMalformedFrame)
	}
	return f, nil
}

// armPongs sets the read deadline and extends it on every pong. It must
// run on the reading goroutine before the read loop starts.
func (c *Client) armPongs() {
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		return c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// keepalive pings the peer every pingInterval until ctx is done or a ping
// fails.
func (c *Client) keepalive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.Socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.mu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Str("connId", c.ConnID).Msg("ping failed")
				return
			}
		}
	}
}

// Close is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.Socket == nil {
		return nil
	}
	return c.Socket.Close()
}
