package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// keyPair is an X25519 key pair, hex encoded.
type keyPair struct {
	PublicKey  string
	PrivateKey string
}

func generateX25519() (keyPair, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return keyPair{}, fmt.Errorf("x25519 keygen: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return keyPair{}, fmt.Errorf("x25519 basepoint mul: %w", err)
	}
	return keyPair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv),
	}, nil
}

// deriveSymKey runs X25519 between privHex and peerHex and expands the
// shared secret with HKDF-SHA256 into a 32 byte key.
func deriveSymKey(privHex, peerHex string) ([]byte, error) {
	priv, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	peer, err := hex.DecodeString(peerHex)
	if err != nil {
		return nil, fmt.Errorf("decode peer key: %w", err)
	}
	shared, err := curve25519.X25519(priv, peer)
	if err != nil {
		return nil, fmt.Errorf("x25519 derive: %w", err)
	}

	reader := hkdf.New(sha256.New, shared, nil, nil)
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}
