package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/authrelay/core"
)

// IsValidRequest checks outbound request params and reports the first
// failing clause wrapped in core.ErrMissingOrInvalid.
func IsValidRequest(params core.RequestParams, bounds core.ExpiryBounds) error {
	switch {
	case !isValidAudience(params.Aud):
		return fmt.Errorf("%w: request() aud: %q is not a valid url", core.ErrMissingOrInvalid, params.Aud)
	case !isDomainInAudience(params.Domain, params.Aud):
		return fmt.Errorf("%w: request() domain: %q does not match aud %q", core.ErrMissingOrInvalid, params.Domain, params.Aud)
	case !hasNonce(params.Nonce):
		return fmt.Errorf("%w: request() nonce is empty", core.ErrMissingOrInvalid)
	case !isValidType(params.Type):
		return fmt.Errorf("%w: request() type: %q is not supported", core.ErrMissingOrInvalid, params.Type)
	case params.Expiry != 0 && !isValidExpiry(params.Expiry, bounds):
		return fmt.Errorf("%w: request() expiry: %d. Expiry must be a number (in seconds) between %d and %d",
			core.ErrMissingOrInvalid, params.Expiry, int64(bounds.Min.Seconds()), int64(bounds.Max.Seconds()))
	}
	return nil
}

// IsValidRespond reports whether a pending request with id exists.
func IsValidRespond(ctx context.Context, requests *RequestStore, id uint64) (bool, error) {
	_, err := requests.GetPending(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// isValidPayloadParams checks an inbound wc_authRequest payload.
func isValidPayloadParams(p core.PayloadParams) error {
	switch {
	case !isValidAudience(p.Aud):
		return fmt.Errorf("%w: payload aud", core.ErrMissingOrInvalid)
	case !isDomainInAudience(p.Domain, p.Aud):
		return fmt.Errorf("%w: payload domain", core.ErrMissingOrInvalid)
	case !hasNonce(p.Nonce):
		return fmt.Errorf("%w: payload nonce", core.ErrMissingOrInvalid)
	case p.Type != core.CacaoHeaderType:
		return fmt.Errorf("%w: payload type", core.ErrMissingOrInvalid)
	case p.Version == "" || p.Iat == "":
		return fmt.Errorf("%w: payload version or iat", core.ErrMissingOrInvalid)
	}
	return nil
}

func isValidAudience(aud string) bool {
	u, err := url.Parse(aud)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// isDomainInAudience matches domain against the audience authority: equal
// or a parent domain. A domain without a port ignores the audience port.
func isDomainInAudience(domain, aud string) bool {
	if domain == "" {
		return false
	}
	u, err := url.Parse(aud)
	if err != nil || u.Host == "" {
		return false
	}

	host := u.Hostname()
	if _, _, err := net.SplitHostPort(domain); err == nil {
		host = u.Host
	}
	host, domain = strings.ToLower(host), strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func hasNonce(nonce string) bool {
	return nonce != ""
}

func isValidType(t string) bool {
	return t == "" || t == core.CacaoHeaderType
}

func isValidExpiry(expiry int64, bounds core.ExpiryBounds) bool {
	d := time.Duration(expiry) * time.Second
	return d >= bounds.Min && d <= bounds.Max
}

// verifyContext judges the requester's claimed origin against the payload
// domain.
func verifyContext(hash string, metadata core.Metadata, domain string) core.VerifyContext {
	vc := core.VerifyContext{
		Hash:       hash,
		Origin:     metadata.URL,
		Validation: core.ValidationUnknown,
	}
	if metadata.URL == "" {
		return vc
	}
	if isDomainInAudience(domain, metadata.URL) {
		vc.Validation = core.ValidationValid
	} else {
		vc.Validation = core.ValidationInvalid
	}
	return vc
}
