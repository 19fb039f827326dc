package crypto

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/ports"
)

// Keychain implements ports.Crypto. Symmetric keys are stored by topic and
// private keys by their public key.
type Keychain struct {
	keys *store.Collection[string]
	log  log.Logger
}

var _ ports.Crypto = (*Keychain)(nil)

// NewKeychain creates a keychain persisted in st.
func NewKeychain(st ports.Store, logger log.Logger) *Keychain {
	return &Keychain{
		keys: store.NewCollection[string](st, "keychain", 0),
		log:  logger.Module("crypto"),
	}
}

func (k *Keychain) GenerateKeyPair(ctx context.Context) (string, error) {
	kp, err := generateX25519()
	if err != nil {
		return "", err
	}
	if err := k.keys.Set(ctx, kp.PublicKey, kp.PrivateKey); err != nil {
		return "", fmt.Errorf("failed to store key pair: %w", err)
	}
	return kp.PublicKey, nil
}

func (k *Keychain) SetSymKey(ctx context.Context, symKey, overrideTopic string) (string, error) {
	if _, err := hex.DecodeString(symKey); err != nil {
		return "", fmt.Errorf("invalid sym key: %w", err)
	}
	topic := overrideTopic
	if topic == "" {
		var err error
		if topic, err = core.HashKey(symKey); err != nil {
			return "", err
		}
	}
	if err := k.keys.Set(ctx, topic, symKey); err != nil {
		return "", fmt.Errorf("failed to store sym key: %w", err)
	}
	return topic, nil
}

func (k *Keychain) HasSymKey(ctx context.Context, topic string) (bool, error) {
	return k.keys.Has(ctx, topic)
}

func (k *Keychain) DeleteSymKey(ctx context.Context, topic string) error {
	return k.keys.Delete(ctx, topic)
}

func (k *Keychain) DeleteKeyPair(ctx context.Context, publicKey string) error {
	return k.keys.Delete(ctx, publicKey)
}

// Encode seals payload for topic. Type 0 uses the topic sym key; type 1
// derives a key from the sender private key and the receiver public key.
func (k *Keychain) Encode(ctx context.Context, topic string, payload []byte, opts *EncodeOptions) (string, error) {
	if opts != nil && opts.Type == ports.EnvelopeType1 {
		priv, err := k.lookup(ctx, opts.SenderPublicKey)
		if err != nil {
			return "", err
		}
		key, err := deriveSymKey(priv, opts.ReceiverPublicKey)
		if err != nil {
			return "", err
		}
		sender, err := hex.DecodeString(opts.SenderPublicKey)
		if err != nil || len(sender) != pubKeyLength {
			return "", fmt.Errorf("invalid sender public key")
		}
		iv, sealed, err := seal(key, payload)
		if err != nil {
			return "", err
		}
		return serialize(envelope{Type: ports.EnvelopeType1, Sender: sender, IV: iv, Sealed: sealed}), nil
	}

	key, err := k.symKey(ctx, topic)
	if err != nil {
		return "", err
	}
	iv, sealed, err := seal(key, payload)
	if err != nil {
		return "", err
	}
	return serialize(envelope{Type: ports.EnvelopeType0, IV: iv, Sealed: sealed}), nil
}

// Decode opens an envelope received on topic. Type 1 envelopes need the
// receiver public key hint.
func (k *Keychain) Decode(ctx context.Context, topic, encoded string, opts *DecodeOptions) ([]byte, error) {
	env, err := deserialize(encoded)
	if err != nil {
		return nil, err
	}

	if env.Type == ports.EnvelopeType1 {
		if opts == nil || opts.ReceiverPublicKey == "" {
			return nil, fmt.Errorf("%w: type 1 envelope without receiver key", core.ErrNoMatchingKey)
		}
		priv, err := k.lookup(ctx, opts.ReceiverPublicKey)
		if err != nil {
			return nil, err
		}
		key, err := deriveSymKey(priv, hex.EncodeToString(env.Sender))
		if err != nil {
			return nil, err
		}
		return open(key, env)
	}

	key, err := k.symKey(ctx, topic)
	if err != nil {
		return nil, err
	}
	return open(key, env)
}

func (k *Keychain) symKey(ctx context.Context, topic string) ([]byte, error) {
	symKey, err := k.lookup(ctx, topic)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(symKey)
}

func (k *Keychain) lookup(ctx context.Context, tag string) (string, error) {
	v, err := k.keys.Get(ctx, tag)
	if errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", core.ErrNoMatchingKey, tag)
	}
	return v, err
}

// EncodeOptions and DecodeOptions are re-exported for callers that only
// import this package.
type (
	EncodeOptions = ports.EncodeOptions
	DecodeOptions = ports.DecodeOptions
)
