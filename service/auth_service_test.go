package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/adapters/tokenizer"
	"github.com/layer-3/authrelay/core"
)

type stubCacaos struct {
	cacaos map[uint64]core.Cacao
	valid  bool
}

func (s stubCacaos) GetResponse(ctx context.Context, id uint64) (core.Cacao, error) {
	c, ok := s.cacaos[id]
	if !ok {
		return core.Cacao{}, core.ErrNotFound
	}
	return c, nil
}

func (s stubCacaos) VerifyCacao(ctx context.Context, cacao core.Cacao) (bool, error) {
	return s.valid, nil
}

func newTestAuthService(t *testing.T, cacaos CacaoSource, ttl time.Duration) *AuthService {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewAuthService(cacaos, tokenizer.NewJWTTokenizer(key, "authrelay-test"), ttl)
}

func TestExchange(t *testing.T) {
	ctx := context.Background()
	iss := "did:pkh:eip155:1:0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	svc := newTestAuthService(t, stubCacaos{
		cacaos: map[uint64]core.Cacao{42: {P: core.CacaoPayload{Iss: iss}}},
		valid:  true,
	}, time.Minute)

	token, session, err := svc.Exchange(ctx, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", session.Address)
	assert.Equal(t, "eip155:1", session.ChainID)
	assert.Equal(t, uint64(42), session.RequestID)
	assert.NotEmpty(t, session.ID)

	validated, err := svc.ValidateAccessToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.Address, validated.Address)
	assert.Equal(t, session.ID, validated.ID)
	assert.Equal(t, uint64(42), validated.RequestID)
}

func TestExchangeFailures(t *testing.T) {
	ctx := context.Background()
	cacaos := map[uint64]core.Cacao{
		1: {P: core.CacaoPayload{Iss: "did:pkh:eip155:1:0xabc"}},
		2: {P: core.CacaoPayload{Iss: "0xabc"}},
	}

	svc := newTestAuthService(t, stubCacaos{cacaos: cacaos, valid: true}, time.Minute)
	_, _, err := svc.Exchange(ctx, 7)
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = svc.Exchange(ctx, 2)
	require.ErrorIs(t, err, core.ErrInvalidIssuer)

	svc = newTestAuthService(t, stubCacaos{cacaos: cacaos, valid: false}, time.Minute)
	_, _, err = svc.Exchange(ctx, 1)
	require.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(t, stubCacaos{}, 0)
	_, err := svc.ValidateAccessToken(context.Background(), "not-a-token")
	require.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t, stubCacaos{
		cacaos: map[uint64]core.Cacao{1: {P: core.CacaoPayload{Iss: "did:pkh:eip155:1:0xabc"}}},
		valid:  true,
	}, time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := svc.Exchange(ctx, 1)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateAccessToken(ctx, token)
	require.ErrorIs(t, err, core.ErrTokenExpired)
}
