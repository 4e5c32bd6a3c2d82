package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockgate/internal/logger"
)

const reconnectBackoff = time.Second

// Client is the dialing side of the websocket transport binding. It
// reconnects with a fixed short backoff and resubscribes every known
// channel after each reconnect.
type Client struct {
	url   string
	local *Memory

	mu       sync.Mutex
	ws       *websocket.Conn
	channels map[string]struct{}
	closed   bool
}

// Dial connects to a Hub and starts the read loop.
func Dial(ctx context.Context, url string) (*Client, error) {
	c := &Client{
		url:      url,
		local:    NewMemory(),
		channels: make(map[string]struct{}),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	go c.readLoop(ctx)
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.ws = ws
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	for _, ch := range channels {
		if err := c.writeFrame(frame{Op: opSubscribe, Channel: ch}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) writeFrame(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.ws == nil {
		return ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(f)
}

func (c *Client) Publish(_ context.Context, channel string, payload []byte) error {
	return c.writeFrame(frame{Op: opPublish, Channel: channel, Payload: payload})
}

func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.channels[channel] = struct{}{}
	c.mu.Unlock()

	if err := c.writeFrame(frame{Op: opSubscribe, Channel: channel}); err != nil {
		return nil, err
	}
	return c.local.Subscribe(ctx, channel)
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
	return c.local.Close()
}

// readLoop dispatches inbound frames to local subscribers, reconnecting
// on transport errors until ctx is done or the client is closed.
func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		ws := c.ws
		closed := c.closed
		c.mu.Unlock()
		if closed || ws == nil {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			closed = c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			logger.Warnf("bus: connection lost, reconnecting err=%v", err)
			c.reconnect(ctx)
			continue
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Warnf("bus: malformed frame dropped err=%v", err)
			continue
		}
		if f.Op != opPublish {
			continue
		}
		if err := c.local.Publish(ctx, f.Channel, f.Payload); err != nil {
			return
		}
	}
}

func (c *Client) reconnect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
		if err := c.connect(ctx); err != nil {
			logger.Warnf("bus: reconnect failed err=%v", err)
			continue
		}
		logger.Infof("bus: reconnected url=%s", c.url)
		return
	}
}
