package core

import (
	"fmt"
	"strings"
)

// FormatMessage renders the EIP-4361 sign-in text for a payload and issuer.
// Requester and responder must produce byte-identical output, so the label
// strings and line order are fixed.
func FormatMessage(payload CacaoRequestPayload, iss string) (string, error) {
	did, ok := ParseDID(iss)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidIssuer, iss)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", payload.Domain)
	fmt.Fprintf(&b, "%s\n", did.Address)
	b.WriteString("\n")
	if payload.Statement != "" {
		fmt.Fprintf(&b, "%s\n", payload.Statement)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "URI: %s\n", payload.Aud)
	fmt.Fprintf(&b, "Version: %s\n", payload.Version)
	fmt.Fprintf(&b, "Chain ID: %s\n", did.ChainID())
	fmt.Fprintf(&b, "Nonce: %s\n", payload.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", payload.Iat)
	if payload.Exp != "" {
		fmt.Fprintf(&b, "\nExpiration Time: %s", payload.Exp)
	}
	if payload.Nbf != "" {
		fmt.Fprintf(&b, "\nNot Before: %s", payload.Nbf)
	}
	if payload.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", payload.RequestID)
	}
	if len(payload.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range payload.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String(), nil
}
