// Package bus is the publish/subscribe transport used between the
// connector and the trade servers. Delivery is at-most-once and ordered
// per channel; there is no acknowledgment and no retry. Account state is
// rebuilt from periodic full snapshots, so a dropped message heals on the
// next poll.
package bus

import (
	"context"
	"errors"
)

var (
	ErrClosed = errors.New("bus closed")
)

// Transport publishes and subscribes raw payloads on named channels.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
