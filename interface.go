package authrelay

import (
	"context"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/service"
)

// AuthClient is the public interface of the auth client
type AuthClient interface {
	// Request asks a wallet to sign in. The returned URI is empty when an
	// active pairing was reused.
	Request(ctx context.Context, params core.RequestParams, opts *service.RequestOptions) (core.RequestResult, error)

	// Respond answers a pending request with a signature or an error
	Respond(ctx context.Context, params core.RespondParams, iss string) error

	// Pair joins a pairing URI received from a requester
	Pair(ctx context.Context, uri string) (core.Pairing, error)

	GetPendingRequests(ctx context.Context) (map[uint64]core.PendingRequest, error)
	GetResponse(ctx context.Context, id uint64) (core.Cacao, error)
	FormatMessage(payload core.CacaoRequestPayload, iss string) (string, error)
	VerifyCacao(ctx context.Context, cacao core.Cacao) (bool, error)

	Ping(ctx context.Context, topic string) error
	Disconnect(ctx context.Context, topic string) error
	GetPairings(ctx context.Context) ([]core.Pairing, error)

	OnAuthRequest(ctx context.Context, fn func(core.AuthRequestEvent)) error
	OnAuthResponse(ctx context.Context, fn func(core.AuthResponseEvent)) error
	OnPairingPing(ctx context.Context, fn func(core.PairingEvent)) error
	OnPairingDelete(ctx context.Context, fn func(core.PairingEvent)) error
	OnPairingExpire(ctx context.Context, fn func(core.PairingEvent)) error

	Close() error
}
