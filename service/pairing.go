package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/ports"
)

const (
	// PairingProposalTTL is the lifetime of a pairing that has not been used yet.
	PairingProposalTTL = 5 * time.Minute
	// PairingActiveTTL is the lifetime granted on activation.
	PairingActiveTTL = 30 * 24 * time.Hour
)

// Reason sent with wc_pairingDelete.
var userDisconnected = core.RPCError{Code: 6000, Message: "User disconnected."}

// PairingController manages the pairing lifecycle: create, pair, activate,
// ping, disconnect and expiry.
type PairingController struct {
	pairings *store.Collection[core.Pairing]
	crypto   ports.Crypto
	relay    ports.Relay
	history  ports.History
	expirer  ports.Expirer
	emitter  ports.EventEmitter
	sender   *rpcSender
	log      log.Logger
	now      func() time.Time

	mu       sync.Mutex
	methods  []string
	onDelete []func(ctx context.Context, topic string)
	waiters  map[uint64]chan core.Response
}

func newPairingController(st ports.Store, sender *rpcSender, expirer ports.Expirer, emitter ports.EventEmitter, logger log.Logger) *PairingController {
	return &PairingController{
		pairings: store.NewCollection[core.Pairing](st, "pairing", 0),
		crypto:   sender.crypto,
		relay:    sender.relay,
		history:  sender.history,
		expirer:  expirer,
		emitter:  emitter,
		sender:   sender,
		log:      logger.Module("pairing"),
		now:      time.Now,
		waiters:  make(map[uint64]chan core.Response),
	}
}

// Register declares the methods a protocol engine speaks over pairings.
func (c *PairingController) Register(methods []core.Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range methods {
		c.methods = append(c.methods, string(m))
	}
}

// OnDelete adds a hook run after a pairing is torn down locally.
func (c *PairingController) OnDelete(fn func(ctx context.Context, topic string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDelete = append(c.onDelete, fn)
}

func (c *PairingController) registeredMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.methods...)
}

// Create opens a new inactive pairing and returns it with its URI.
func (c *PairingController) Create(ctx context.Context, ttl time.Duration) (core.Pairing, string, error) {
	if ttl <= 0 {
		ttl = PairingProposalTTL
	}
	symKey, err := core.RandomBytes32()
	if err != nil {
		return core.Pairing{}, "", err
	}
	topic, err := c.crypto.SetSymKey(ctx, symKey, "")
	if err != nil {
		return core.Pairing{}, "", err
	}

	pairing := core.Pairing{
		Topic:   topic,
		Relay:   core.RelayProtocol{Protocol: core.RelayProtocolIRN},
		Expiry:  c.now().Add(ttl).Unix(),
		Active:  false,
		Methods: c.registeredMethods(),
	}
	if err := c.store(ctx, pairing); err != nil {
		_ = c.crypto.DeleteSymKey(ctx, topic)
		return core.Pairing{}, "", err
	}

	uri := core.FormatURI(core.URIParams{
		Protocol: core.URIProtocol,
		Topic:    topic,
		Version:  core.URIVersion,
		SymKey:   symKey,
		Relay:    pairing.Relay,
	})
	return pairing, uri, nil
}

// Pair joins the pairing encoded in uri. Pairing an existing topic returns
// the stored pairing unchanged.
func (c *PairingController) Pair(ctx context.Context, uri string, activate bool) (core.Pairing, error) {
	if !core.IsValidPairURI(uri) {
		return core.Pairing{}, fmt.Errorf("%w: pair() uri: %s", core.ErrMissingOrInvalid, uri)
	}
	params, err := core.ParseURI(uri)
	if err != nil {
		return core.Pairing{}, err
	}

	if existing, err := c.pairings.Get(ctx, params.Topic); err == nil {
		return existing, nil
	}

	if _, err := c.crypto.SetSymKey(ctx, params.SymKey, params.Topic); err != nil {
		return core.Pairing{}, err
	}
	pairing := core.Pairing{
		Topic:   params.Topic,
		Relay:   params.Relay,
		Expiry:  c.now().Add(PairingProposalTTL).Unix(),
		Active:  false,
		Methods: c.registeredMethods(),
	}
	if err := c.store(ctx, pairing); err != nil {
		_ = c.crypto.DeleteSymKey(ctx, params.Topic)
		return core.Pairing{}, err
	}
	if activate {
		return c.Activate(ctx, pairing.Topic)
	}
	return pairing, nil
}

// store persists, subscribes and schedules expiry, undoing earlier steps
// when a later one fails.
func (c *PairingController) store(ctx context.Context, p core.Pairing) error {
	if err := c.pairings.Set(ctx, p.Topic, p); err != nil {
		return err
	}
	if err := c.relay.Subscribe(ctx, p.Topic); err != nil {
		_ = c.pairings.Delete(ctx, p.Topic)
		return err
	}
	if err := c.expirer.Set(ctx, p.Topic, time.Unix(p.Expiry, 0)); err != nil {
		_ = c.relay.Unsubscribe(ctx, p.Topic)
		_ = c.pairings.Delete(ctx, p.Topic)
		return err
	}
	return nil
}

// Activate marks the pairing active and extends its expiry.
func (c *PairingController) Activate(ctx context.Context, topic string) (core.Pairing, error) {
	expiry := c.now().Add(PairingActiveTTL)
	var updated core.Pairing
	err := c.pairings.Update(ctx, topic, func(p *core.Pairing) {
		p.Active = true
		p.Expiry = expiry.Unix()
		updated = *p
	})
	if err != nil {
		return core.Pairing{}, err
	}
	if err := c.expirer.Set(ctx, topic, expiry); err != nil {
		return core.Pairing{}, err
	}
	return updated, nil
}

func (c *PairingController) UpdateExpiry(ctx context.Context, topic string, expiry time.Time) error {
	if err := c.pairings.Update(ctx, topic, func(p *core.Pairing) {
		p.Expiry = expiry.Unix()
	}); err != nil {
		return err
	}
	return c.expirer.Set(ctx, topic, expiry)
}

func (c *PairingController) Get(ctx context.Context, topic string) (core.Pairing, error) {
	return c.pairings.Get(ctx, topic)
}

// GetPairings lists every pairing ordered by topic.
func (c *PairingController) GetPairings(ctx context.Context) ([]core.Pairing, error) {
	all, err := c.pairings.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Pairing, 0, len(all))
	for _, p := range all {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

// Ping sends wc_pairingPing and waits for the peer's answer or ctx.
func (c *PairingController) Ping(ctx context.Context, topic string) error {
	if _, err := c.pairings.Get(ctx, topic); err != nil {
		return fmt.Errorf("%w: ping() topic: %s", core.ErrMissingOrInvalid, topic)
	}

	wait := make(chan core.Response, 1)
	id, err := c.sendWithWaiter(ctx, topic, core.MethodPairingPing, wait)
	if err != nil {
		return err
	}
	defer c.dropWaiter(id)

	select {
	case res := <-wait:
		if res.Error != nil {
			return res.Error
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *PairingController) sendWithWaiter(ctx context.Context, topic string, method core.Method, wait chan core.Response) (uint64, error) {
	// The waiter must exist before the response can possibly arrive, so the
	// request is built here rather than through sendRequest.
	req, err := core.NewRequest(method, struct{}{})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.waiters[req.ID] = wait
	c.mu.Unlock()

	message, err := c.sender.encode(ctx, topic, req, nil)
	if err == nil {
		err = c.history.Set(ctx, topic, req, core.Outbound)
	}
	if err == nil {
		err = c.relay.Publish(ctx, topic, message, core.RPCOpts[method].Req)
	}
	if err != nil {
		c.dropWaiter(req.ID)
		return 0, err
	}
	return req.ID, nil
}

func (c *PairingController) dropWaiter(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, id)
}

// Disconnect notifies the peer with wc_pairingDelete and tears the pairing
// down locally.
func (c *PairingController) Disconnect(ctx context.Context, topic string) error {
	if _, err := c.pairings.Get(ctx, topic); err != nil {
		return fmt.Errorf("%w: disconnect() topic: %s", core.ErrMissingOrInvalid, topic)
	}
	if _, err := c.sender.sendRequest(ctx, topic, core.MethodPairingDelete, userDisconnected, nil, 0); err != nil {
		return err
	}
	return c.deletePairing(ctx, topic)
}

func (c *PairingController) deletePairing(ctx context.Context, topic string) error {
	var errs []error
	errs = append(errs,
		c.relay.Unsubscribe(ctx, topic),
		c.crypto.DeleteSymKey(ctx, topic),
		c.pairings.Delete(ctx, topic),
		c.expirer.Delete(ctx, topic),
		c.history.DeleteTopic(ctx, topic),
	)

	c.mu.Lock()
	hooks := append([]func(context.Context, string){}, c.onDelete...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx, topic)
	}
	return errors.Join(errs...)
}

// Cleanup drops expired pairings and resubscribes the live ones.
func (c *PairingController) Cleanup(ctx context.Context) error {
	pairings, err := c.GetPairings(ctx)
	if err != nil {
		return err
	}
	now := c.now()
	for _, p := range pairings {
		if p.Expired(now) {
			c.log.Info().Str("topic", p.Topic).Msg("deleting expired pairing")
			if err := c.deletePairing(ctx, p.Topic); err != nil {
				return err
			}
			continue
		}
		if err := c.relay.Subscribe(ctx, p.Topic); err != nil {
			return err
		}
		if err := c.expirer.Set(ctx, p.Topic, time.Unix(p.Expiry, 0)); err != nil {
			return err
		}
	}
	return nil
}

// onExpired is the expirer callback for pairing topics.
func (c *PairingController) onExpired(ctx context.Context, topic string) {
	if _, err := c.pairings.Get(ctx, topic); err != nil {
		return
	}
	if err := c.deletePairing(ctx, topic); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("failed to delete expired pairing")
	}
	c.emit(ctx, core.EventPairingExpire, core.PairingEvent{Topic: topic})
}

func (c *PairingController) onPingRequest(ctx context.Context, topic string, req core.Request) {
	if err := c.sender.sendResult(ctx, req.ID, topic, true, nil); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("failed to answer ping")
		return
	}
	c.emit(ctx, core.EventPairingPing, core.PairingEvent{ID: req.ID, Topic: topic})
}

func (c *PairingController) onDeleteRequest(ctx context.Context, topic string, req core.Request) {
	var reason core.RPCError
	_ = json.Unmarshal(req.Params, &reason)
	c.log.Info().Str("topic", topic).Str("reason", reason.Message).Msg("peer deleted pairing")

	if err := c.sender.sendResult(ctx, req.ID, topic, true, nil); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("failed to answer pairing delete")
	}
	if err := c.deletePairing(ctx, topic); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("failed to delete pairing")
	}
	c.emit(ctx, core.EventPairingDelete, core.PairingEvent{ID: req.ID, Topic: topic})
}

// onResponse wakes a waiting Ping.
func (c *PairingController) onResponse(ctx context.Context, topic string, rec core.HistoryRecord, res core.Response) {
	c.mu.Lock()
	wait, ok := c.waiters[res.ID]
	c.mu.Unlock()
	if ok {
		select {
		case wait <- res:
		default:
		}
	}
	c.log.Debug().Uint64("id", res.ID).Str("method", rec.Request.Method).Msg("pairing response")
}

func (c *PairingController) emit(ctx context.Context, event core.Event, args any) {
	if err := c.emitter.Emit(ctx, event, args); err != nil {
		c.log.Error().Err(err).Str("event", string(event)).Msg("failed to emit event")
	}
}
