package core

import "time"

// Session represents a wallet session opened by a verified Cacao
type Session struct {
	ID           string    // Unique session identifier
	Address      string    // Wallet address taken from the Cacao issuer
	ChainID      string    // Namespaced chain id, e.g. eip155:1
	RequestID    uint64    // JSON-RPC id of the auth request that opened it
	IssuedAt     time.Time // When the session was created
	AccessExpiry time.Time // When the access capability expires
}
