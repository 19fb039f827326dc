package authrelay

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/adapters/verifier"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
)

func newTestClient(t *testing.T, ps *gochannel.GoChannel, name string, metadata core.Metadata) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), Options{
		Name:            name,
		ProjectID:       "test-project",
		Metadata:        metadata,
		Publisher:       ps,
		Subscriber:      ps,
		ExpirerInterval: time.Hour,
		Logger:          log.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClientRequiresBus(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Name: "x"})
	require.Error(t, err)
}

func TestClientSignIn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ps := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer ps.Close()

	dapp := newTestClient(t, ps, "dapp", core.Metadata{Name: "Dapp", URL: "http://localhost:3000"})
	wallet := newTestClient(t, ps, "wallet", core.Metadata{Name: "Wallet"})

	requests := make(chan core.AuthRequestEvent, 1)
	responses := make(chan core.AuthResponseEvent, 1)
	require.NoError(t, wallet.OnAuthRequest(ctx, func(ev core.AuthRequestEvent) { requests <- ev }))
	require.NoError(t, dapp.OnAuthResponse(ctx, func(ev core.AuthResponseEvent) { responses <- ev }))

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	iss := "did:pkh:eip155:1:" + ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	res, err := dapp.Request(ctx, core.RequestParams{
		Aud:     "http://localhost:3000/login",
		Domain:  "localhost:3000",
		ChainID: "eip155:1",
		Nonce:   "abc",
	}, nil)
	require.NoError(t, err)

	_, err = wallet.Pair(ctx, res.URI)
	require.NoError(t, err)

	var req core.AuthRequestEvent
	select {
	case req = <-requests:
	case <-time.After(3 * time.Second):
		t.Fatal("wallet never saw the auth request")
	}
	assert.Equal(t, res.ID, req.ID)
	assert.Equal(t, "http://localhost:3000/login", req.Params.CacaoPayload.Aud)

	message, err := wallet.FormatMessage(req.Params.CacaoPayload, iss)
	require.NoError(t, err)
	sig, err := verifier.SignEIP191(message, func(hash []byte) ([]byte, error) {
		return ethcrypto.Sign(hash, key)
	})
	require.NoError(t, err)

	require.NoError(t, wallet.Respond(ctx, core.RespondParams{
		ID:        req.ID,
		Signature: &core.CacaoSignature{T: core.SignatureEIP191, S: sig},
	}, iss))

	var resp core.AuthResponseEvent
	select {
	case resp = <-responses:
	case <-time.After(3 * time.Second):
		t.Fatal("dapp never saw the auth response")
	}
	require.Nil(t, resp.Params.Error)
	cacao, err := resp.Params.Cacao()
	require.NoError(t, err)
	assert.Equal(t, iss, cacao.P.Iss)

	stored, err := dapp.GetResponse(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, cacao, stored)

	pairings, err := dapp.GetPairings(ctx)
	require.NoError(t, err)
	require.Len(t, pairings, 1)
	assert.True(t, pairings[0].Active)
}
