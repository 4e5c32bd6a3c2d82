package bus

import (
	"context"
	"sync"

	"stockgate/internal/logger"
)

const subscriberBuffer = 256

// Memory is an in-process Transport. It backs single-process deployments
// and tests; both ends of the websocket binding speak through one too.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan []byte)}
}

// Publish delivers payload to every subscriber of channel. A subscriber
// that cannot keep up loses the message rather than blocking the
// publisher.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for _, ch := range m.subs[channel] {
		select {
		case ch <- payload:
		default:
			logger.Warnf("bus: subscriber lagging, dropped message channel=%s", channel)
		}
	}
	return nil
}

// Subscribe registers a new subscriber channel. The returned channel is
// closed when ctx is done or the transport closes.
func (m *Memory) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan []byte, subscriberBuffer)
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	if ctx != nil {
		go func() {
			<-ctx.Done()
			m.unsubscribe(channel, ch)
		}()
	}
	return ch, nil
}

func (m *Memory) unsubscribe(channel string, ch chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[channel]
	for i, sub := range subs {
		if sub == ch {
			m.subs[channel] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, subs := range m.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	m.subs = make(map[string][]chan []byte)
	return nil
}
