package ports

import (
	"context"

	"github.com/layer-3/authrelay/core"
)

// SignatureVerifier checks a Cacao signature against the claimed address.
type SignatureVerifier interface {
	// Verify returns an error only for unsupported signature types. RPC
	// failures during contract checks report false.
	Verify(ctx context.Context, address, message string, sig core.CacaoSignature, chainID, projectID string) (bool, error)
}
