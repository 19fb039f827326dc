package ports

import "context"

// Envelope types.
const (
	EnvelopeType0 = 0 // symmetric, pairing topic key
	EnvelopeType1 = 1 // sender public key travels with the envelope
)

// EncodeOptions select the envelope type. Type 1 needs both public keys.
type EncodeOptions struct {
	Type              int
	SenderPublicKey   string
	ReceiverPublicKey string
}

// DecodeOptions carry the receiver key hint for type 1 envelopes.
type DecodeOptions struct {
	ReceiverPublicKey string
}

// Crypto owns key material and turns payloads into relay envelopes.
type Crypto interface {
	// GenerateKeyPair stores a fresh X25519 key pair and returns the public key.
	GenerateKeyPair(ctx context.Context) (string, error)
	// SetSymKey stores symKey under overrideTopic, or under sha256(symKey)
	// when overrideTopic is empty, and returns the topic.
	SetSymKey(ctx context.Context, symKey, overrideTopic string) (string, error)
	HasSymKey(ctx context.Context, topic string) (bool, error)
	DeleteSymKey(ctx context.Context, topic string) error
	DeleteKeyPair(ctx context.Context, publicKey string) error

	Encode(ctx context.Context, topic string, payload []byte, opts *EncodeOptions) (string, error)
	Decode(ctx context.Context, topic, encoded string, opts *DecodeOptions) ([]byte, error)
}
