package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/ports"
)

// Metadata keys carried on every relay message.
const (
	MetadataTTL    = "ttl"
	MetadataTag    = "tag"
	MetadataPrompt = "prompt"
)

var ErrClosed = errors.New("relay closed")

type delivery struct {
	topic string
	msg   *message.Message
}

// WatermillRelay implements ports.Relay on top of a watermill publisher and
// subscriber. Every subscribed topic feeds one inbox drained by a single
// dispatcher goroutine, so the handler never runs concurrently with itself.
type WatermillRelay struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	log        log.Logger

	mu      sync.Mutex
	subs    map[string]context.CancelFunc
	handler ports.MessageHandler

	inbox  chan delivery
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

var _ ports.Relay = (*WatermillRelay)(nil)

// NewWatermillRelay creates a relay and starts its dispatcher.
func NewWatermillRelay(publisher message.Publisher, subscriber message.Subscriber, logger log.Logger) *WatermillRelay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &WatermillRelay{
		publisher:  publisher,
		subscriber: subscriber,
		log:        logger.Module("relay"),
		subs:       make(map[string]context.CancelFunc),
		inbox:      make(chan delivery),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go r.dispatch()
	return r
}

// OnMessage registers the handler for every subscribed topic.
func (r *WatermillRelay) OnMessage(handler ports.MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Subscribe starts forwarding messages of topic to the dispatcher. It is a
// no-op for topics already subscribed.
func (r *WatermillRelay) Subscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return ErrClosed
	}
	if _, ok := r.subs[topic]; ok {
		return nil
	}

	subCtx, cancel := context.WithCancel(r.ctx)
	messages, err := r.subscriber.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	r.subs[topic] = cancel
	go r.forward(subCtx, topic, messages)

	r.log.Debug().Str("topic", topic).Msg("subscribed")
	return nil
}

// Unsubscribe stops delivery for topic.
func (r *WatermillRelay) Unsubscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.subs[topic]
	if !ok {
		return nil
	}
	cancel()
	delete(r.subs, topic)

	r.log.Debug().Str("topic", topic).Msg("unsubscribed")
	return nil
}

// Subscribed reports whether topic currently has a subscription.
func (r *WatermillRelay) Subscribed(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[topic]
	return ok
}

// Publish sends message to topic with the relay options as metadata.
func (r *WatermillRelay) Publish(ctx context.Context, topic, payload string, opts core.PublishOptions) error {
	if r.ctx.Err() != nil {
		return ErrClosed
	}

	msg := message.NewMessage(watermill.NewUUID(), []byte(payload))
	msg.Metadata.Set(MetadataTTL, strconv.FormatInt(int64(opts.TTL.Seconds()), 10))
	msg.Metadata.Set(MetadataTag, strconv.Itoa(opts.Tag))
	msg.Metadata.Set(MetadataPrompt, strconv.FormatBool(opts.Prompt))
	msg.SetContext(ctx)

	if err := r.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close stops all subscriptions and the dispatcher. The publisher and
// subscriber are owned by the caller.
func (r *WatermillRelay) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.cancel()
		r.subs = make(map[string]context.CancelFunc)
		r.mu.Unlock()
		<-r.done
	})
	return nil
}

func (r *WatermillRelay) forward(ctx context.Context, topic string, messages <-chan *message.Message) {
	for msg := range messages {
		select {
		case r.inbox <- delivery{topic: topic, msg: msg}:
		case <-ctx.Done():
			msg.Nack()
			return
		}
	}
}

func (r *WatermillRelay) dispatch() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case d := <-r.inbox:
			r.mu.Lock()
			handler := r.handler
			r.mu.Unlock()

			if handler == nil {
				r.log.Warn().Str("topic", d.topic).Msg("no message handler registered, dropping message")
			} else {
				handler(r.ctx, d.topic, string(d.msg.Payload))
			}
			d.msg.Ack()
		}
	}
}
