package authrelay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/authrelay/adapters/crypto"
	"github.com/layer-3/authrelay/adapters/events"
	"github.com/layer-3/authrelay/adapters/expirer"
	"github.com/layer-3/authrelay/adapters/history"
	"github.com/layer-3/authrelay/adapters/relay"
	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/adapters/verifier"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/internal/metrics"
	"github.com/layer-3/authrelay/ports"
	"github.com/layer-3/authrelay/service"
)

// Options configure a Client.
type Options struct {
	// Name prefixes event topics and labels logs. Two clients sharing a
	// message bus need distinct names.
	Name      string
	ProjectID string
	Metadata  core.Metadata

	// Publisher and Subscriber carry both relay envelopes and events.
	Publisher  message.Publisher
	Subscriber message.Subscriber

	// Store defaults to an in-memory store.
	Store ports.Store

	ExpiryBounds    core.ExpiryBounds
	ExpirerInterval time.Duration
	HistoryTTL      time.Duration

	RPCURL string
	Dial   verifier.Dialer

	Logger log.Logger
}

// Client is the auth client: an engine plus the adapters it runs on.
type Client struct {
	*service.Engine

	name       string
	subscriber message.Subscriber
	relay      *relay.WatermillRelay
	expirer    *expirer.Expirer
	metrics    *metrics.ComponentRegistry
	log        log.Logger
}

var _ AuthClient = (*Client)(nil)

// NewClient wires a client and initializes its engine.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Publisher == nil || opts.Subscriber == nil {
		return nil, errors.New("publisher and subscriber are required")
	}
	if opts.Name == "" {
		opts.Name = "authrelay"
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = history.DefaultTTL
	}

	logger := opts.Logger.With().Str("client", opts.Name).Logger()
	clientLog := log.Logger{Logger: logger}

	v, err := verifier.New(opts.RPCURL, opts.Dial, clientLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}

	registry := metrics.NewComponentRegistry("authrelay", "engine")
	r := relay.NewWatermillRelay(opts.Publisher, opts.Subscriber, clientLog)
	exp := expirer.New(opts.Store, opts.ExpirerInterval, clientLog)

	engine := service.NewEngine(service.EngineDeps{
		Store:    opts.Store,
		Relay:    r,
		Crypto:   crypto.NewKeychain(opts.Store, clientLog),
		History:  history.NewHistory(opts.Store, opts.HistoryTTL),
		Emitter:  events.NewWatermillEmitter(opts.Publisher, opts.Name),
		Expirer:  exp,
		Verifier: v,
		Metrics:  registry,
		Logger:   clientLog,
	}, service.EngineConfig{
		ProjectID:    opts.ProjectID,
		Metadata:     opts.Metadata,
		ExpiryBounds: opts.ExpiryBounds,
	})

	if err := engine.Init(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	exp.Start()

	return &Client{
		Engine:     engine,
		name:       opts.Name,
		subscriber: opts.Subscriber,
		relay:      r,
		expirer:    exp,
		metrics:    registry,
		log:        clientLog.Module("client"),
	}, nil
}

// Metrics returns the registry holding the client's metrics.
func (c *Client) Metrics() *metrics.ComponentRegistry {
	return c.metrics
}

func (c *Client) OnAuthRequest(ctx context.Context, fn func(core.AuthRequestEvent)) error {
	return events.Listen(ctx, c.subscriber, c.name, core.EventAuthRequest, fn)
}

func (c *Client) OnAuthResponse(ctx context.Context, fn func(core.AuthResponseEvent)) error {
	return events.Listen(ctx, c.subscriber, c.name, core.EventAuthResponse, fn)
}

func (c *Client) OnPairingPing(ctx context.Context, fn func(core.PairingEvent)) error {
	return events.Listen(ctx, c.subscriber, c.name, core.EventPairingPing, fn)
}

func (c *Client) OnPairingDelete(ctx context.Context, fn func(core.PairingEvent)) error {
	return events.Listen(ctx, c.subscriber, c.name, core.EventPairingDelete, fn)
}

func (c *Client) OnPairingExpire(ctx context.Context, fn func(core.PairingEvent)) error {
	return events.Listen(ctx, c.subscriber, c.name, core.EventPairingExpire, fn)
}

// Close stops the expiry loop and the relay. The publisher, subscriber
// and store stay open.
func (c *Client) Close() error {
	c.expirer.Stop()
	if err := c.relay.Close(); err != nil {
		return err
	}
	c.log.Info().Msg("client closed")
	return nil
}
