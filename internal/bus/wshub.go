package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockgate/internal/logger"
)

// frame is the wire format of the websocket binding.
type frame struct {
	Op      string `json:"op"` // "pub" | "sub"
	Channel string `json:"channel"`
	Payload []byte `json:"payload,omitempty"`
}

const (
	opPublish   = "pub"
	opSubscribe = "sub"

	connSendBuffer = 256
	writeTimeout   = 5 * time.Second
)

// Hub is the server side of the websocket transport binding, hosted by
// the connector process. It is itself a Transport: local Publish fans out
// to in-process subscribers and to remote connections, and frames
// published by remote peers are routed the same way.
type Hub struct {
	local    *Memory
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*hubConn]struct{}
}

type hubConn struct {
	ws       *websocket.Conn
	send     chan frame
	channels map[string]struct{}
	mu       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		local:    NewMemory(),
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		conns:    make(map[*hubConn]struct{}),
	}
}

func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := h.local.Publish(ctx, channel, payload); err != nil {
		return err
	}
	h.fanOut(channel, payload)
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return h.local.Subscribe(ctx, channel)
}

func (h *Hub) Close() error {
	h.mu.Lock()
	for c := range h.conns {
		close(c.send)
		_ = c.ws.Close()
	}
	h.conns = make(map[*hubConn]struct{})
	h.mu.Unlock()
	return h.local.Close()
}

// ServeHTTP upgrades a peer connection and serves it until it drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("bus: websocket upgrade failed err=%v", err)
		return
	}
	conn := &hubConn{
		ws:       ws,
		send:     make(chan frame, connSendBuffer),
		channels: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go conn.writeLoop()
	h.readLoop(conn)
}

func (h *Hub) readLoop(conn *hubConn) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.conns[conn]; ok {
			delete(h.conns, conn)
			close(conn.send)
		}
		h.mu.Unlock()
		_ = conn.ws.Close()
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			logger.Debugf("bus: peer disconnected err=%v", err)
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Warnf("bus: malformed frame dropped err=%v", err)
			continue
		}
		switch f.Op {
		case opSubscribe:
			conn.mu.Lock()
			conn.channels[f.Channel] = struct{}{}
			conn.mu.Unlock()
			logger.Infof("bus: peer subscribed channel=%s", f.Channel)
		case opPublish:
			if err := h.local.Publish(context.Background(), f.Channel, f.Payload); err != nil {
				logger.Warnf("bus: relay publish failed channel=%s err=%v", f.Channel, err)
			}
			h.fanOut(f.Channel, f.Payload)
		default:
			logger.Warnf("bus: unknown frame op=%s dropped", f.Op)
		}
	}
}

func (h *Hub) fanOut(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.conns {
		conn.mu.RLock()
		_, wants := conn.channels[channel]
		conn.mu.RUnlock()
		if !wants {
			continue
		}
		select {
		case conn.send <- frame{Op: opPublish, Channel: channel, Payload: payload}:
		default:
			logger.Warnf("bus: peer lagging, dropped message channel=%s", channel)
		}
	}
}

func (c *hubConn) writeLoop() {
	for f := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteJSON(f); err != nil {
			logger.Debugf("bus: peer write failed err=%v", err)
			return
		}
	}
}
