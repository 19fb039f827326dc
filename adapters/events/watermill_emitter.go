package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/ports"
)

// Metadata key holding the event name.
const MetadataEvent = "event"

// Topic returns the watermill topic an event is published on.
func Topic(prefix string, event core.Event) string {
	return prefix + "." + string(event)
}

// WatermillEmitter implements the EventEmitter interface using Watermill
type WatermillEmitter struct {
	publisher message.Publisher
	prefix    string
}

var _ ports.EventEmitter = (*WatermillEmitter)(nil)

// NewWatermillEmitter creates a new Watermill emitter publishing on
// "<prefix>.<event>" topics
func NewWatermillEmitter(publisher message.Publisher, prefix string) *WatermillEmitter {
	return &WatermillEmitter{
		publisher: publisher,
		prefix:    prefix,
	}
}

// Emit publishes args as a JSON event
func (p *WatermillEmitter) Emit(ctx context.Context, event core.Event, args any) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEvent, string(event))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(Topic(p.prefix, event), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Listen decodes every event of one kind and passes it to fn until ctx is
// done. Messages that fail to decode are acked and skipped.
func Listen[T any](ctx context.Context, sub message.Subscriber, prefix string, event core.Event, fn func(T)) error {
	messages, err := sub.Subscribe(ctx, Topic(prefix, event))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event, err)
	}

	go func() {
		for msg := range messages {
			var v T
			if err := json.Unmarshal(msg.Payload, &v); err == nil {
				fn(v)
			}
			msg.Ack()
		}
	}()
	return nil
}
