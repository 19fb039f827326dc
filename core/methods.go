package core

import (
	"fmt"
	"time"
)

// Method is a JSON-RPC method spoken over a pairing.
type Method string

const (
	MethodAuthRequest   Method = "wc_authRequest"
	MethodPairingDelete Method = "wc_pairingDelete"
	MethodPairingPing   Method = "wc_pairingPing"
)

// AuthMethods are the methods owned by the auth engine.
var AuthMethods = []Method{MethodAuthRequest}

// ParseMethod rejects method names outside the closed set.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodAuthRequest, MethodPairingDelete, MethodPairingPing:
		return m, nil
	default:
		return "", fmt.Errorf("unknown method %q", s)
	}
}

// PublishOptions are relay hints attached to a published message.
type PublishOptions struct {
	TTL    time.Duration
	Prompt bool
	Tag    int
}

// MethodOptions holds the request and response publish options of one method.
type MethodOptions struct {
	Req PublishOptions
	Res PublishOptions
}

const (
	oneDay     = 24 * time.Hour
	thirtySecs = 30 * time.Second
)

// RPCOpts is the fixed relay option table.
var RPCOpts = map[Method]MethodOptions{
	MethodAuthRequest: {
		Req: PublishOptions{TTL: oneDay, Prompt: true, Tag: 3000},
		Res: PublishOptions{TTL: oneDay, Prompt: false, Tag: 3001},
	},
	MethodPairingDelete: {
		Req: PublishOptions{TTL: oneDay, Prompt: false, Tag: 1000},
		Res: PublishOptions{TTL: oneDay, Prompt: false, Tag: 1001},
	},
	MethodPairingPing: {
		Req: PublishOptions{TTL: thirtySecs, Prompt: false, Tag: 1002},
		Res: PublishOptions{TTL: thirtySecs, Prompt: false, Tag: 1003},
	},
}
