package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with session-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	ChainID   string `json:"chain_id"`
	RequestID uint64 `json:"rid"` // JSON-RPC id of the auth request
}
