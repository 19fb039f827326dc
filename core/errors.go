package core

import "errors"

var (
	ErrNotInitialized       = errors.New("not initialized")
	ErrMissingOrInvalid     = errors.New("missing or invalid")
	ErrInvalidRespond       = errors.New("invalid respond params: no pending request with this id")
	ErrNotFound             = errors.New("not found")
	ErrMalformedPayload     = errors.New("malformed json-rpc payload")
	ErrInvalidIssuer        = errors.New("invalid issuer")
	ErrUnknownSignatureType = errors.New("unknown signature type")
	ErrNoMatchingKey        = errors.New("no matching key")
	ErrInvalidURI           = errors.New("invalid pairing uri")

	ErrTokenExpired     = errors.New("token has expired")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid signature")
)

// JSON-RPC error codes used on the wire.
const (
	CodeInvalidSignature = -1
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
)

// RPCError is the error object of a JSON-RPC error response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e RPCError) Error() string {
	return e.Message
}
