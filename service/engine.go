package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/internal/metrics"
	"github.com/layer-3/authrelay/ports"
)

var invalidSignature = core.RPCError{Code: core.CodeInvalidSignature, Message: "Invalid signature"}

// EngineConfig holds the engine's static settings.
type EngineConfig struct {
	ProjectID    string
	Metadata     core.Metadata
	ExpiryBounds core.ExpiryBounds
}

// EngineDeps are the collaborators the engine drives.
type EngineDeps struct {
	Store    ports.Store
	Relay    ports.Relay
	Crypto   ports.Crypto
	History  ports.History
	Emitter  ports.EventEmitter
	Expirer  ports.Expirer
	Verifier ports.SignatureVerifier
	Metrics  *metrics.ComponentRegistry
	Logger   log.Logger
}

// RequestOptions are optional arguments of Request.
type RequestOptions struct {
	// Topic reuses an active pairing instead of creating a new one.
	Topic string
}

type requestHandler func(ctx context.Context, topic string, req core.Request)
type responseHandler func(ctx context.Context, topic string, rec core.HistoryRecord, res core.Response)

type methodHandlers struct {
	request  requestHandler
	response responseHandler
}

// Engine is the auth protocol state machine. It is created by NewEngine and
// must be started with Init before any other call.
type Engine struct {
	cfg EngineConfig

	relay    ports.Relay
	crypto   ports.Crypto
	history  ports.History
	emitter  ports.EventEmitter
	expirer  ports.Expirer
	verifier ports.SignatureVerifier

	pairing       *PairingController
	requests      *RequestStore
	authKeys      *store.Collection[core.AuthKey]
	pairingTopics *store.Collection[core.PairingTopic]
	sender        *rpcSender
	metrics       *engineMetrics
	handlers      map[core.Method]methodHandlers
	log           log.Logger
	now           func() time.Time

	initOnce    sync.Once
	initErr     error
	initialized atomic.Bool
	respondMu   sync.Mutex
}

// NewEngine wires an engine without touching the relay.
func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	if cfg.ExpiryBounds == (core.ExpiryBounds{}) {
		cfg.ExpiryBounds = core.DefaultExpiryBounds
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewComponentRegistry("authrelay", "engine")
	}
	logger := deps.Logger.Module("engine")

	sender := &rpcSender{
		relay:   deps.Relay,
		crypto:  deps.Crypto,
		history: deps.History,
		log:     logger,
	}

	e := &Engine{
		cfg:           cfg,
		relay:         deps.Relay,
		crypto:        deps.Crypto,
		history:       deps.History,
		emitter:       deps.Emitter,
		expirer:       deps.Expirer,
		verifier:      deps.Verifier,
		pairing:       newPairingController(deps.Store, sender, deps.Expirer, deps.Emitter, deps.Logger),
		requests:      NewRequestStore(deps.Store),
		authKeys:      store.NewCollection[core.AuthKey](deps.Store, "authKeys", 0),
		pairingTopics: store.NewCollection[core.PairingTopic](deps.Store, "pairingTopics", 0),
		sender:        sender,
		metrics:       newEngineMetrics(deps.Metrics),
		log:           logger,
		now:           time.Now,
	}

	e.handlers = map[core.Method]methodHandlers{
		core.MethodAuthRequest:   {request: e.onAuthRequest, response: e.onAuthResponse},
		core.MethodPairingPing:   {request: e.pairing.onPingRequest, response: e.pairing.onResponse},
		core.MethodPairingDelete: {request: e.pairing.onDeleteRequest, response: e.pairing.onResponse},
	}
	return e
}

// Init registers the relay handler and the owned methods, then restores
// persisted pairings and response topics. Only the first call has effect.
func (e *Engine) Init(ctx context.Context) error {
	e.initOnce.Do(func() {
		e.pairing.Register(core.AuthMethods)
		e.pairing.OnDelete(e.onPairingDeleted)
		e.expirer.OnExpired(e.pairing.onExpired)
		e.relay.OnMessage(e.onRelayMessage)

		if err := e.cleanup(ctx); err != nil {
			e.initErr = fmt.Errorf("failed to restore state: %w", err)
			return
		}
		e.initialized.Store(true)
		e.log.Info().Msg("engine initialized")
	})
	return e.initErr
}

func (e *Engine) isInitialized() error {
	if !e.initialized.Load() {
		return fmt.Errorf("%w: engine", core.ErrNotInitialized)
	}
	return nil
}

// Pairing exposes the pairing controller.
func (e *Engine) Pairing() *PairingController {
	return e.pairing
}

// Request asks a responder to sign in. Without a reusable pairing a new one
// is created and its URI returned.
func (e *Engine) Request(ctx context.Context, params core.RequestParams, opts *RequestOptions) (core.RequestResult, error) {
	if err := e.isInitialized(); err != nil {
		return core.RequestResult{}, err
	}
	if err := IsValidRequest(params, e.cfg.ExpiryBounds); err != nil {
		return core.RequestResult{}, err
	}

	var (
		ttl           time.Duration
		pairingExpiry = PairingProposalTTL
	)
	if params.Expiry > 0 {
		ttl = time.Duration(params.Expiry) * time.Second
		pairingExpiry = max(pairingExpiry, ttl)
	}

	var rb rollback
	result := core.RequestResult{}

	pairingTopic, known := e.knownPairing(ctx, opts)
	if !known {
		pairing, uri, err := e.pairing.Create(ctx, pairingExpiry)
		if err != nil {
			return result, fmt.Errorf("failed to create pairing: %w", err)
		}
		rb.push(func(ctx context.Context) error { return e.pairing.deletePairing(ctx, pairing.Topic) })
		pairingTopic, result.URI = pairing.Topic, uri
	}

	responseTopic, publicKey, err := e.prepareResponseChannel(ctx, pairingTopic, &rb)
	if err != nil {
		rb.run(ctx, e.log)
		return core.RequestResult{}, err
	}

	payload := core.AuthRequestParams{
		PayloadParams: core.NewPayloadParams(params, e.now()),
		Requester:     core.Requester{PublicKey: publicKey, Metadata: e.cfg.Metadata},
	}
	id, err := e.sender.sendRequest(ctx, pairingTopic, core.MethodAuthRequest, payload, nil, ttl)
	if err != nil {
		rb.run(ctx, e.log)
		return core.RequestResult{}, fmt.Errorf("failed to send auth request: %w", err)
	}

	e.metrics.requestsSent.Inc()
	e.log.Info().Uint64("id", id).Str("pairingTopic", pairingTopic).Str("responseTopic", responseTopic).Bool("knownPairing", known).Msg("auth request sent")

	result.ID = id
	return result, nil
}

func (e *Engine) knownPairing(ctx context.Context, opts *RequestOptions) (string, bool) {
	if opts == nil || opts.Topic == "" {
		return "", false
	}
	p, err := e.pairing.Get(ctx, opts.Topic)
	if err != nil || !p.Active || p.Expired(e.now()) {
		return "", false
	}
	return p.Topic, true
}

// prepareResponseChannel generates the response key pair, records its
// correlation with the pairing and subscribes to the response topic.
func (e *Engine) prepareResponseChannel(ctx context.Context, pairingTopic string, rb *rollback) (string, string, error) {
	publicKey, err := e.crypto.GenerateKeyPair(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key pair: %w", err)
	}
	rb.push(func(ctx context.Context) error { return e.crypto.DeleteKeyPair(ctx, publicKey) })

	responseTopic, err := core.HashKey(publicKey)
	if err != nil {
		return "", "", err
	}

	if err := e.pairingTopics.Set(ctx, responseTopic, core.PairingTopic{PairingTopic: pairingTopic, PublicKey: publicKey}); err != nil {
		return "", "", fmt.Errorf("failed to store pairing topic: %w", err)
	}
	rb.push(func(ctx context.Context) error { return e.pairingTopics.Delete(ctx, responseTopic) })

	previous, prevErr := e.authKeys.Get(ctx, core.AuthKeyName)
	if err := e.authKeys.Set(ctx, core.AuthKeyName, core.AuthKey{PublicKey: publicKey, ResponseTopic: responseTopic}); err != nil {
		return "", "", fmt.Errorf("failed to store auth key: %w", err)
	}
	rb.push(func(ctx context.Context) error {
		if prevErr != nil {
			return e.authKeys.Delete(ctx, core.AuthKeyName)
		}
		return e.authKeys.Set(ctx, core.AuthKeyName, previous)
	})

	if err := e.relay.Subscribe(ctx, responseTopic); err != nil {
		return "", "", fmt.Errorf("failed to subscribe to response topic: %w", err)
	}
	rb.push(func(ctx context.Context) error { return e.relay.Unsubscribe(ctx, responseTopic) })

	return responseTopic, publicKey, nil
}

// Respond answers a pending request with a signature or an error. The
// first answer wins; later calls for the same id fail. An error answer drops
// the pending request without storing a Cacao.
func (e *Engine) Respond(ctx context.Context, params core.RespondParams, iss string) error {
	if err := e.isInitialized(); err != nil {
		return err
	}
	if params.Signature == nil && params.Error == nil {
		return fmt.Errorf("%w: respond() needs a signature or an error", core.ErrMissingOrInvalid)
	}

	e.respondMu.Lock()
	defer e.respondMu.Unlock()

	ok, err := IsValidRespond(ctx, e.requests, params.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", core.ErrInvalidRespond, params.ID)
	}
	pending, err := e.requests.GetPending(ctx, params.ID)
	if err != nil {
		return err
	}
	if params.Error == nil {
		if _, ok := core.ParseDID(iss); !ok {
			return fmt.Errorf("%w: %q", core.ErrInvalidIssuer, iss)
		}
	}

	receiverPublicKey := pending.Requester.PublicKey
	senderPublicKey, err := e.crypto.GenerateKeyPair(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}
	defer func() {
		if err := e.crypto.DeleteKeyPair(ctx, senderPublicKey); err != nil {
			e.log.Warn().Err(err).Msg("failed to delete sender key pair")
		}
	}()

	responseTopic, err := core.HashKey(receiverPublicKey)
	if err != nil {
		return fmt.Errorf("%w: requester public key", core.ErrMissingOrInvalid)
	}
	enc := &ports.EncodeOptions{
		Type:              ports.EnvelopeType1,
		SenderPublicKey:   senderPublicKey,
		ReceiverPublicKey: receiverPublicKey,
	}

	if params.Error != nil {
		if err := e.sender.sendError(ctx, params.ID, responseTopic, *params.Error, enc); err != nil {
			return err
		}
		return e.requests.Delete(ctx, params.ID)
	}

	cacao := core.Cacao{
		H: core.CacaoHeader{T: core.CacaoHeaderType},
		P: core.CacaoPayload{Iss: iss, CacaoRequestPayload: pending.CacaoPayload},
		S: *params.Signature,
	}
	if err := e.sender.sendResult(ctx, params.ID, responseTopic, cacao, enc); err != nil {
		return err
	}
	return e.requests.SetCompleted(ctx, params.ID, cacao)
}

// GetPendingRequests returns the requests still waiting for Respond.
func (e *Engine) GetPendingRequests(ctx context.Context) (map[uint64]core.PendingRequest, error) {
	if err := e.isInitialized(); err != nil {
		return nil, err
	}
	return e.requests.GetPendingRequests(ctx)
}

// GetResponse returns the Cacao stored for a completed request.
func (e *Engine) GetResponse(ctx context.Context, id uint64) (core.Cacao, error) {
	if err := e.isInitialized(); err != nil {
		return core.Cacao{}, err
	}
	return e.requests.GetCompleted(ctx, id)
}

// FormatMessage renders the text a wallet signs for payload and iss.
func (e *Engine) FormatMessage(payload core.CacaoRequestPayload, iss string) (string, error) {
	return core.FormatMessage(payload, iss)
}

// VerifyCacao rebuilds the signed message from the Cacao and checks its
// signature against the issuer address.
func (e *Engine) VerifyCacao(ctx context.Context, cacao core.Cacao) (bool, error) {
	message, err := core.FormatMessage(cacao.P.CacaoRequestPayload, cacao.P.Iss)
	if err != nil {
		return false, err
	}
	did, ok := core.ParseDID(cacao.P.Iss)
	if !ok {
		return false, fmt.Errorf("%w: %q", core.ErrInvalidIssuer, cacao.P.Iss)
	}

	start := e.now()
	valid, err := e.verifier.Verify(ctx, did.Address, message, cacao.S, did.NamespacedChainID(), e.cfg.ProjectID)
	e.metrics.verifyDuration.Observe(time.Since(start).Seconds())
	return valid, err
}

// Pair joins a pairing URI received from a requester.
func (e *Engine) Pair(ctx context.Context, uri string) (core.Pairing, error) {
	if err := e.isInitialized(); err != nil {
		return core.Pairing{}, err
	}
	return e.pairing.Pair(ctx, uri, false)
}

// Ping checks the peer on an existing pairing is reachable.
func (e *Engine) Ping(ctx context.Context, topic string) error {
	if err := e.isInitialized(); err != nil {
		return err
	}
	return e.pairing.Ping(ctx, topic)
}

// Disconnect deletes a pairing on both sides.
func (e *Engine) Disconnect(ctx context.Context, topic string) error {
	if err := e.isInitialized(); err != nil {
		return err
	}
	return e.pairing.Disconnect(ctx, topic)
}

func (e *Engine) GetPairings(ctx context.Context) ([]core.Pairing, error) {
	if err := e.isInitialized(); err != nil {
		return nil, err
	}
	return e.pairing.GetPairings(ctx)
}

// ---------- relay router ----------

func (e *Engine) onRelayMessage(ctx context.Context, topic, message string) {
	data, err := e.crypto.Decode(ctx, topic, message, e.decodeOptions(ctx, topic))
	if err != nil {
		e.log.Warn().Err(err).Str("topic", topic).Msg("failed to decode relay message")
		return
	}

	payload, err := core.ParsePayload(data)
	if err != nil {
		e.log.Warn().Err(err).Str("topic", topic).Msg("dropping malformed payload")
		return
	}

	if payload.Request != nil {
		e.onRequest(ctx, topic, *payload.Request)
		return
	}
	e.onResponse(ctx, topic, *payload.Response)
}

// decodeOptions picks the receiver key hint: the key recorded for this
// response topic, else the latest auth key.
func (e *Engine) decodeOptions(ctx context.Context, topic string) *ports.DecodeOptions {
	if pt, err := e.pairingTopics.Get(ctx, topic); err == nil && pt.PublicKey != "" {
		return &ports.DecodeOptions{ReceiverPublicKey: pt.PublicKey}
	}
	if key, err := e.authKeys.Get(ctx, core.AuthKeyName); err == nil {
		return &ports.DecodeOptions{ReceiverPublicKey: key.PublicKey}
	}
	return nil
}

func (e *Engine) onRequest(ctx context.Context, topic string, req core.Request) {
	method, err := core.ParseMethod(req.Method)
	if err != nil {
		e.log.Info().Str("method", req.Method).Uint64("id", req.ID).Msg("ignoring unsupported request method")
		return
	}

	rec, err := e.history.Get(ctx, req.ID)
	switch {
	case err == nil && rec.Direction == core.Outbound:
		e.log.Debug().Uint64("id", req.ID).Msg("ignoring echo of own request")
		return
	case err == nil && rec.Answered():
		e.log.Debug().Uint64("id", req.ID).Msg("ignoring duplicate of answered request")
		return
	case err != nil && !errors.Is(err, core.ErrNotFound):
		e.log.Error().Err(err).Uint64("id", req.ID).Msg("failed to read history")
		return
	}

	if err := e.history.Set(ctx, topic, req, core.Inbound); err != nil {
		e.log.Error().Err(err).Uint64("id", req.ID).Msg("failed to record request")
		return
	}
	e.handlers[method].request(ctx, topic, req)
}

func (e *Engine) onResponse(ctx context.Context, topic string, res core.Response) {
	rec, err := e.history.Get(ctx, res.ID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		e.log.Debug().Uint64("id", res.ID).Msg("ignoring response to unknown request")
		return
	case err != nil:
		e.log.Error().Err(err).Uint64("id", res.ID).Msg("failed to read history")
		return
	case rec.Direction == core.Inbound:
		e.log.Debug().Uint64("id", res.ID).Msg("ignoring echo of own response")
		return
	case rec.Answered():
		e.log.Debug().Uint64("id", res.ID).Msg("ignoring duplicate response")
		return
	}

	rec, err = e.history.Resolve(ctx, res)
	if err != nil {
		e.log.Error().Err(err).Uint64("id", res.ID).Msg("failed to resolve response")
		return
	}
	method, err := core.ParseMethod(rec.Request.Method)
	if err != nil {
		e.log.Info().Str("method", rec.Request.Method).Uint64("id", res.ID).Msg("ignoring response to unsupported method")
		return
	}
	e.handlers[method].response(ctx, topic, rec, res)
}

// ---------- wc_authRequest ----------

func (e *Engine) onAuthRequest(ctx context.Context, topic string, req core.Request) {
	if err := e.handleAuthRequest(ctx, topic, req); err != nil {
		e.log.Error().Err(err).Uint64("id", req.ID).Str("topic", topic).Msg("failed to process auth request")

		if rec, getErr := e.requests.Get(ctx, req.ID); getErr == nil && rec.Kind == core.RecordPending {
			if err := e.requests.Delete(ctx, req.ID); err != nil {
				e.log.Error().Err(err).Uint64("id", req.ID).Msg("failed to drop pending request")
			}
		}

		rpcErr := core.RPCError{Code: core.CodeInternalError, Message: err.Error()}
		if errors.Is(err, core.ErrMissingOrInvalid) || errors.Is(err, core.ErrMalformedPayload) {
			rpcErr.Code = core.CodeInvalidParams
		}
		if err := e.sender.sendError(ctx, req.ID, topic, rpcErr, nil); err != nil {
			e.log.Error().Err(err).Uint64("id", req.ID).Msg("failed to send error response")
		}
	}
}

func (e *Engine) handleAuthRequest(ctx context.Context, topic string, req core.Request) error {
	var params core.AuthRequestParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedPayload, err)
	}
	if err := isValidPayloadParams(params.PayloadParams); err != nil {
		return err
	}
	if params.Requester.PublicKey == "" {
		return fmt.Errorf("%w: requester public key", core.ErrMissingOrInvalid)
	}

	if rec, err := e.requests.Get(ctx, req.ID); err == nil && rec.Kind == core.RecordCompleted {
		e.log.Debug().Uint64("id", req.ID).Msg("request already completed")
		return nil
	}

	pending := core.PendingRequest{
		ID:           req.ID,
		PairingTopic: topic,
		Requester:    params.Requester,
		CacaoPayload: params.PayloadParams.CacaoPayload(),
	}
	if err := e.requests.SetPending(ctx, pending); err != nil {
		return fmt.Errorf("failed to store pending request: %w", err)
	}

	if p, err := e.pairing.Get(ctx, topic); err == nil && !p.Active {
		if _, err := e.pairing.Activate(ctx, topic); err != nil {
			return fmt.Errorf("failed to activate pairing: %w", err)
		}
	}

	hash, err := core.HashPayload(pending.CacaoPayload)
	if err != nil {
		return err
	}

	e.metrics.requestsReceived.Inc()
	return e.emitter.Emit(ctx, core.EventAuthRequest, core.AuthRequestEvent{
		ID:    req.ID,
		Topic: topic,
		Params: core.AuthRequestDetail{
			Requester:    pending.Requester,
			CacaoPayload: pending.CacaoPayload,
			Context:      verifyContext(hash, pending.Requester.Metadata, pending.CacaoPayload.Domain),
		},
	})
}

func (e *Engine) onAuthResponse(ctx context.Context, topic string, rec core.HistoryRecord, res core.Response) {
	event := core.AuthResponseEvent{
		ID:    res.ID,
		Topic: topic,
		Params: core.AuthResponseParams{
			ID:      res.ID,
			JSONRPC: res.JSONRPC,
			Result:  res.Result,
			Error:   res.Error,
		},
	}

	defer e.releaseResponseChannel(ctx, topic)

	if res.IsError() {
		e.metrics.responses.WithLabelValues(outcomeError).Inc()
		e.emit(ctx, core.EventAuthResponse, event)
		return
	}

	valid, err := e.handleAuthResult(ctx, topic, res)
	if err != nil {
		e.log.Error().Err(err).Uint64("id", res.ID).Str("topic", topic).Msg("abandoning auth response")
		return
	}
	if !valid {
		e.metrics.responses.WithLabelValues(outcomeInvalidSignature).Inc()
		rpcErr := invalidSignature
		event.Params = core.AuthResponseParams{Error: &rpcErr}
		e.emit(ctx, core.EventAuthResponse, event)
		return
	}

	e.metrics.responses.WithLabelValues(outcomeSigned).Inc()
	e.emit(ctx, core.EventAuthResponse, event)
}

// handleAuthResult activates the pairing, stores the Cacao and verifies it.
func (e *Engine) handleAuthResult(ctx context.Context, topic string, res core.Response) (bool, error) {
	var cacao core.Cacao
	if err := json.Unmarshal(res.Result, &cacao); err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrMalformedPayload, err)
	}

	if pt, err := e.pairingTopics.Get(ctx, topic); err == nil {
		if _, err := e.pairing.Activate(ctx, pt.PairingTopic); err != nil && !errors.Is(err, core.ErrNotFound) {
			return false, fmt.Errorf("failed to activate pairing: %w", err)
		}
	} else {
		e.log.Warn().Str("topic", topic).Msg("no pairing recorded for response topic")
	}

	if err := e.requests.SetCompleted(ctx, res.ID, cacao); err != nil {
		return false, fmt.Errorf("failed to store cacao: %w", err)
	}

	return e.VerifyCacao(ctx, cacao)
}

// releaseResponseChannel drops the key pair, correlation entry and
// subscription of a response topic once its response is resolved.
func (e *Engine) releaseResponseChannel(ctx context.Context, responseTopic string) {
	pt, err := e.pairingTopics.Get(ctx, responseTopic)
	if err != nil {
		return
	}

	errs := []error{
		e.pairingTopics.Delete(ctx, responseTopic),
		e.crypto.DeleteKeyPair(ctx, pt.PublicKey),
	}
	if key, err := e.authKeys.Get(ctx, core.AuthKeyName); err == nil && key.ResponseTopic == responseTopic {
		errs = append(errs, e.authKeys.Delete(ctx, core.AuthKeyName))
	}
	errs = append(errs, e.relay.Unsubscribe(ctx, responseTopic))
	if err := errors.Join(errs...); err != nil {
		e.log.Warn().Err(err).Str("topic", responseTopic).Msg("failed to release response channel")
	}
}

func (e *Engine) emit(ctx context.Context, event core.Event, args any) {
	if err := e.emitter.Emit(ctx, event, args); err != nil {
		e.log.Error().Err(err).Str("event", string(event)).Msg("failed to emit event")
	}
}

// ---------- lifecycle ----------

// cleanup restores pairings and resubscribes response topics whose pairing
// is still alive. Orphaned correlations are dropped.
func (e *Engine) cleanup(ctx context.Context) error {
	if err := e.pairing.Cleanup(ctx); err != nil {
		return err
	}

	topics, err := e.pairingTopics.GetAll(ctx)
	if err != nil {
		return err
	}
	for responseTopic, pt := range topics {
		if _, err := e.pairing.Get(ctx, pt.PairingTopic); err != nil {
			if err := e.pairingTopics.Delete(ctx, responseTopic); err != nil {
				return err
			}
			continue
		}
		if err := e.relay.Subscribe(ctx, responseTopic); err != nil {
			return err
		}
	}
	return nil
}

// onPairingDeleted drops everything that hangs off a deleted pairing.
func (e *Engine) onPairingDeleted(ctx context.Context, pairingTopic string) {
	topics, err := e.pairingTopics.GetAll(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to list pairing topics")
		return
	}
	for responseTopic, pt := range topics {
		if pt.PairingTopic != pairingTopic {
			continue
		}
		if err := errors.Join(
			e.relay.Unsubscribe(ctx, responseTopic),
			e.pairingTopics.Delete(ctx, responseTopic),
		); err != nil {
			e.log.Warn().Err(err).Str("topic", responseTopic).Msg("failed to drop response topic")
		}
	}
	if err := e.requests.DeletePendingByTopic(ctx, pairingTopic); err != nil {
		e.log.Warn().Err(err).Str("topic", pairingTopic).Msg("failed to drop pending requests")
	}
}

// rollback undoes completed pipeline steps in reverse order.
type rollback struct {
	steps []func(ctx context.Context) error
}

func (r *rollback) push(step func(ctx context.Context) error) {
	r.steps = append(r.steps, step)
}

func (r *rollback) run(ctx context.Context, logger log.Logger) {
	for i := len(r.steps) - 1; i >= 0; i-- {
		if err := r.steps[i](ctx); err != nil {
			logger.Warn().Err(err).Msg("rollback step failed")
		}
	}
	r.steps = nil
}
