package core

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	URIProtocol      = "wc"
	URIVersion       = 2
	RelayProtocolIRN = "irn"
)

// URIParams are the components of a pairing URI.
type URIParams struct {
	Protocol string
	Topic    string
	Version  int
	SymKey   string
	Relay    RelayProtocol
}

// FormatURI renders <protocol>:<topic>@<version>?relay-protocol=..&symKey=..
func FormatURI(p URIParams) string {
	q := url.Values{}
	q.Set("symKey", p.SymKey)
	q.Set("relay-protocol", p.Relay.Protocol)
	if p.Relay.Data != "" {
		q.Set("relay-data", p.Relay.Data)
	}
	return fmt.Sprintf("%s:%s@%d?%s", p.Protocol, p.Topic, p.Version, q.Encode())
}

// ParseURI is the inverse of FormatURI.
func ParseURI(raw string) (URIParams, error) {
	protocol, rest, ok := strings.Cut(raw, ":")
	if !ok || protocol == "" {
		return URIParams{}, fmt.Errorf("%w: missing protocol", ErrInvalidURI)
	}
	path, query, _ := strings.Cut(rest, "?")
	topic, version, ok := strings.Cut(path, "@")
	if !ok {
		return URIParams{}, fmt.Errorf("%w: missing version", ErrInvalidURI)
	}

	var v int
	if _, err := fmt.Sscanf(version, "%d", &v); err != nil {
		return URIParams{}, fmt.Errorf("%w: bad version %q", ErrInvalidURI, version)
	}

	q, err := url.ParseQuery(query)
	if err != nil {
		return URIParams{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	return URIParams{
		Protocol: protocol,
		Topic:    topic,
		Version:  v,
		SymKey:   q.Get("symKey"),
		Relay: RelayProtocol{
			Protocol: q.Get("relay-protocol"),
			Data:     q.Get("relay-data"),
		},
	}, nil
}

// IsValidPairURI reports whether raw parses and carries a topic, a sym key
// and a relay protocol.
func IsValidPairURI(raw string) bool {
	p, err := ParseURI(raw)
	if err != nil {
		return false
	}
	return p.Topic != "" && p.SymKey != "" && p.Relay.Protocol != ""
}
