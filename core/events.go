package core

import "encoding/json"

// Event names emitted to the owning client.
type Event string

const (
	EventAuthRequest   Event = "auth_request"
	EventAuthResponse  Event = "auth_response"
	EventPairingPing   Event = "pairing_ping"
	EventPairingDelete Event = "pairing_delete"
	EventPairingExpire Event = "pairing_expire"
)

// Validation is the verdict on a requester's claimed origin.
type Validation string

const (
	ValidationValid   Validation = "VALID"
	ValidationInvalid Validation = "INVALID"
	ValidationUnknown Validation = "UNKNOWN"
)

// VerifyContext accompanies an auth_request for origin checks.
type VerifyContext struct {
	Hash       string     `json:"hash"`
	Origin     string     `json:"origin,omitempty"`
	Validation Validation `json:"validation"`
	VerifyURL  string     `json:"verifyUrl,omitempty"`
}

// AuthRequestEvent is delivered to the responder.
type AuthRequestEvent struct {
	ID     uint64            `json:"id"`
	Topic  string            `json:"topic"`
	Params AuthRequestDetail `json:"params"`
}

type AuthRequestDetail struct {
	Requester    Requester           `json:"requester"`
	CacaoPayload CacaoRequestPayload `json:"cacaoPayload"`
	Context      VerifyContext       `json:"context"`
}

// AuthResponseEvent is delivered to the requester. Params is either the raw
// JSON-RPC response or a synthetic error object.
type AuthResponseEvent struct {
	ID     uint64             `json:"id"`
	Topic  string             `json:"topic"`
	Params AuthResponseParams `json:"params"`
}

// AuthResponseParams mirrors a JSON-RPC response body.
type AuthResponseParams struct {
	ID      uint64          `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Cacao decodes the result as a Cacao.
func (p AuthResponseParams) Cacao() (Cacao, error) {
	var c Cacao
	if p.Error != nil {
		return c, p.Error
	}
	if err := json.Unmarshal(p.Result, &c); err != nil {
		return c, err
	}
	return c, nil
}

// PairingEvent is emitted for pairing lifecycle changes.
type PairingEvent struct {
	ID    uint64 `json:"id,omitempty"`
	Topic string `json:"topic"`
}
