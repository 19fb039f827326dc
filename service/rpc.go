package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/ports"
)

// rpcSender encodes, publishes and records JSON-RPC messages. It is shared
// by the engine and the pairing controller.
type rpcSender struct {
	relay   ports.Relay
	crypto  ports.Crypto
	history ports.History
	log     log.Logger
}

// sendRequest publishes a request on topic. A positive ttl overrides the
// method's default relay ttl. The history record is written before the
// publish so an echo of our own message is always recognised.
func (s *rpcSender) sendRequest(ctx context.Context, topic string, method core.Method, params any, enc *ports.EncodeOptions, ttl time.Duration) (uint64, error) {
	req, err := core.NewRequest(method, params)
	if err != nil {
		return 0, err
	}
	message, err := s.encode(ctx, topic, req, enc)
	if err != nil {
		return 0, err
	}

	opts := core.RPCOpts[method].Req
	if ttl > 0 {
		opts.TTL = ttl
	}

	if err := s.history.Set(ctx, topic, req, core.Outbound); err != nil {
		return 0, fmt.Errorf("failed to record request: %w", err)
	}
	if err := s.relay.Publish(ctx, topic, message, opts); err != nil {
		return 0, err
	}

	s.log.Debug().Uint64("id", req.ID).Str("method", req.Method).Str("topic", topic).Msg("request sent")
	return req.ID, nil
}

func (s *rpcSender) sendResult(ctx context.Context, id uint64, topic string, result any, enc *ports.EncodeOptions) error {
	res, err := core.NewResult(id, result)
	if err != nil {
		return err
	}
	return s.sendResponse(ctx, topic, res, enc)
}

func (s *rpcSender) sendError(ctx context.Context, id uint64, topic string, rpcErr core.RPCError, enc *ports.EncodeOptions) error {
	return s.sendResponse(ctx, topic, core.NewError(id, rpcErr), enc)
}

// sendResponse picks the relay options from the method of the original
// request and resolves the history record once published.
func (s *rpcSender) sendResponse(ctx context.Context, topic string, res core.Response, enc *ports.EncodeOptions) error {
	rec, err := s.history.Get(ctx, res.ID)
	if err != nil {
		return fmt.Errorf("failed to load request %d: %w", res.ID, err)
	}
	method, err := core.ParseMethod(rec.Request.Method)
	if err != nil {
		return err
	}

	message, err := s.encode(ctx, topic, res, enc)
	if err != nil {
		return err
	}
	if err := s.relay.Publish(ctx, topic, message, core.RPCOpts[method].Res); err != nil {
		return err
	}
	if _, err := s.history.Resolve(ctx, res); err != nil {
		return fmt.Errorf("failed to resolve request %d: %w", res.ID, err)
	}

	s.log.Debug().Uint64("id", res.ID).Str("method", string(method)).Str("topic", topic).Bool("error", res.IsError()).Msg("response sent")
	return nil
}

func (s *rpcSender) encode(ctx context.Context, topic string, payload any, enc *ports.EncodeOptions) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	message, err := s.crypto.Encode(ctx, topic, raw, enc)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return message, nil
}
