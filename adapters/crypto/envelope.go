package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/layer-3/authrelay/ports"
)

const (
	ivLength     = chacha20poly1305.NonceSize
	pubKeyLength = 32
)

var errShortEnvelope = errors.New("envelope too short")

// envelope is the decoded relay message: type | [sender pub] | iv | sealed.
type envelope struct {
	Type   int
	Sender []byte
	IV     []byte
	Sealed []byte
}

func seal(key, plaintext []byte) (iv, sealed []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("chacha new: %w", err)
	}
	iv = make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("chacha nonce: %w", err)
	}
	return iv, aead.Seal(nil, iv, plaintext, nil), nil
}

func open(key []byte, env envelope) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("chacha new: %w", err)
	}
	plaintext, err := aead.Open(nil, env.IV, env.Sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("chacha decrypt: %w", err)
	}
	return plaintext, nil
}

func serialize(env envelope) string {
	buf := make([]byte, 0, 1+len(env.Sender)+len(env.IV)+len(env.Sealed))
	buf = append(buf, byte(env.Type))
	if env.Type == ports.EnvelopeType1 {
		buf = append(buf, env.Sender...)
	}
	buf = append(buf, env.IV...)
	buf = append(buf, env.Sealed...)
	return base64.StdEncoding.EncodeToString(buf)
}

func deserialize(encoded string) (envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return envelope{}, fmt.Errorf("decode base64: %w", err)
	}
	if len(raw) < 1 {
		return envelope{}, errShortEnvelope
	}

	env := envelope{Type: int(raw[0])}
	rest := raw[1:]
	switch env.Type {
	case ports.EnvelopeType0:
	case ports.EnvelopeType1:
		if len(rest) < pubKeyLength {
			return envelope{}, errShortEnvelope
		}
		env.Sender, rest = rest[:pubKeyLength], rest[pubKeyLength:]
	default:
		return envelope{}, fmt.Errorf("unknown envelope type %d", env.Type)
	}
	if len(rest) < ivLength {
		return envelope{}, errShortEnvelope
	}
	env.IV, env.Sealed = rest[:ivLength], rest[ivLength:]
	return env, nil
}
