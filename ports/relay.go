package ports

import (
	"context"

	"github.com/layer-3/authrelay/core"
)

// MessageHandler receives one relay message at a time.
type MessageHandler func(ctx context.Context, topic, message string)

// Relay is the pub/sub transport carrying encrypted envelopes between topics.
type Relay interface {
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic, message string, opts core.PublishOptions) error
	// OnMessage registers the single handler for every subscribed topic.
	OnMessage(handler MessageHandler)
	Close() error
}
