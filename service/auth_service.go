package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/ports"
)

// DefaultSessionTTL is the lifetime of an access token.
const DefaultSessionTTL = 15 * time.Minute

// CacaoSource looks up and checks completed auth responses.
type CacaoSource interface {
	GetResponse(ctx context.Context, id uint64) (core.Cacao, error)
	VerifyCacao(ctx context.Context, cacao core.Cacao) (bool, error)
}

// AuthService exchanges verified Cacaos for session tokens
type AuthService struct {
	cacaos    CacaoSource
	tokenizer ports.Tokenizer

	accessTTL time.Duration
	now       func() time.Time
}

// NewAuthService creates a new authentication service. A non-positive
// accessTTL selects DefaultSessionTTL.
func NewAuthService(cacaos CacaoSource, tokenizer ports.Tokenizer, accessTTL time.Duration) *AuthService {
	if accessTTL <= 0 {
		accessTTL = DefaultSessionTTL
	}
	return &AuthService{
		cacaos:    cacaos,
		tokenizer: tokenizer,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// Exchange opens a session for the wallet that signed request id
func (s *AuthService) Exchange(ctx context.Context, id uint64) (string, *core.Session, error) {
	cacao, err := s.cacaos.GetResponse(ctx, id)
	if err != nil {
		return "", nil, err
	}

	// The stored Cacao was verified on receipt, but the store may be shared
	valid, err := s.cacaos.VerifyCacao(ctx, cacao)
	if err != nil {
		return "", nil, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return "", nil, core.ErrInvalidSignature
	}

	did, ok := core.ParseDID(cacao.P.Iss)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", core.ErrInvalidIssuer, cacao.P.Iss)
	}

	now := s.now()
	session := &core.Session{
		ID:           uuid.New().String(),
		Address:      did.Address,
		ChainID:      did.NamespacedChainID(),
		RequestID:    id,
		IssuedAt:     now,
		AccessExpiry: now.Add(s.accessTTL),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return accessToken, session, nil
}

func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if s.now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	return session, nil
}
