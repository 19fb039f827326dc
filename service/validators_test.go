package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
)

func TestIsValidRequest(t *testing.T) {
	valid := core.RequestParams{Aud: "https://foo.bar.com/login", Domain: "bar.com", Nonce: "n"}

	tests := []struct {
		name   string
		mutate func(p *core.RequestParams)
		ok     bool
	}{
		{"valid", func(p *core.RequestParams) {}, true},
		{"bad aud", func(p *core.RequestParams) { p.Aud = "bad url" }, false},
		{"relative aud", func(p *core.RequestParams) { p.Aud = "/login" }, false},
		{"foreign domain", func(p *core.RequestParams) { p.Domain = "evil.com" }, false},
		{"suffix without dot", func(p *core.RequestParams) { p.Domain = "ar.com" }, false},
		{"empty domain", func(p *core.RequestParams) { p.Domain = "" }, false},
		{"empty nonce", func(p *core.RequestParams) { p.Nonce = "" }, false},
		{"explicit type", func(p *core.RequestParams) { p.Type = core.CacaoHeaderType }, true},
		{"unsupported type", func(p *core.RequestParams) { p.Type = "eip191" }, false},
		{"min expiry", func(p *core.RequestParams) { p.Expiry = 300 }, true},
		{"max expiry", func(p *core.RequestParams) { p.Expiry = 604800 }, true},
		{"short expiry", func(p *core.RequestParams) { p.Expiry = 299 }, false},
		{"long expiry", func(p *core.RequestParams) { p.Expiry = 604801 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := IsValidRequest(p, core.DefaultExpiryBounds)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, core.ErrMissingOrInvalid)
			}
		})
	}
}

func TestIsValidRequestCustomBounds(t *testing.T) {
	bounds := core.ExpiryBounds{Min: time.Minute, Max: time.Hour}
	p := core.RequestParams{Aud: "https://example.com", Domain: "example.com", Nonce: "n", Expiry: 60}
	require.NoError(t, IsValidRequest(p, bounds))

	p.Expiry = 7200
	err := IsValidRequest(p, bounds)
	require.ErrorIs(t, err, core.ErrMissingOrInvalid)
	assert.Contains(t, err.Error(), "between 60 and 3600")
}

func TestIsDomainInAudience(t *testing.T) {
	tests := []struct {
		domain, aud string
		want        bool
	}{
		{"localhost:3000", "http://localhost:3000/login", true},
		{"localhost:3001", "http://localhost:3000/login", false},
		{"localhost", "http://localhost:3000/login", true},
		{"app.example.com", "https://app.example.com", true},
		{"example.com", "https://app.example.com", true},
		{"EXAMPLE.com", "https://app.example.COM", true},
		{"app.example.com", "https://example.com", false},
		{"xample.com", "https://example.com", false},
		{"example.com", "not a url", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isDomainInAudience(tt.domain, tt.aud), "%s in %s", tt.domain, tt.aud)
	}
}

func TestIsValidPayloadParams(t *testing.T) {
	p := core.NewPayloadParams(core.RequestParams{
		Aud:    "https://app.example.com/login",
		Domain: "app.example.com",
		Nonce:  "n",
	}, time.Now())
	require.NoError(t, isValidPayloadParams(p))

	bad := p
	bad.Type = "other"
	require.ErrorIs(t, isValidPayloadParams(bad), core.ErrMissingOrInvalid)

	bad = p
	bad.Iat = ""
	require.ErrorIs(t, isValidPayloadParams(bad), core.ErrMissingOrInvalid)
}

func TestVerifyContext(t *testing.T) {
	vc := verifyContext("h", core.Metadata{URL: "https://app.example.com"}, "app.example.com")
	assert.Equal(t, core.ValidationValid, vc.Validation)
	assert.Equal(t, "https://app.example.com", vc.Origin)
	assert.Equal(t, "h", vc.Hash)

	vc = verifyContext("h", core.Metadata{URL: "https://phish.example.net"}, "app.example.com")
	assert.Equal(t, core.ValidationInvalid, vc.Validation)

	vc = verifyContext("h", core.Metadata{}, "app.example.com")
	assert.Equal(t, core.ValidationUnknown, vc.Validation)
}

func TestIsValidRespond(t *testing.T) {
	ctx := context.Background()
	requests := NewRequestStore(store.NewMemoryStore())

	ok, err := IsValidRespond(ctx, requests, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, requests.SetPending(ctx, core.PendingRequest{ID: 1, PairingTopic: "t"}))
	ok, err = IsValidRespond(ctx, requests, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, requests.SetCompleted(ctx, 1, core.Cacao{}))
	ok, err = IsValidRespond(ctx, requests, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
