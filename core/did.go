package core

import "strings"

// DID is a parsed did:pkh issuer.
type DID struct {
	Namespace string
	Reference string
	Address   string
}

// ParseDID splits an issuer of the form did:pkh:<namespace>:<reference>:<address>.
func ParseDID(iss string) (DID, bool) {
	parts := strings.Split(iss, ":")
	if len(parts) != 5 || parts[0] != "did" || parts[1] != "pkh" {
		return DID{}, false
	}
	for _, p := range parts[2:] {
		if p == "" {
			return DID{}, false
		}
	}
	return DID{Namespace: parts[2], Reference: parts[3], Address: parts[4]}, true
}

// ChainID returns the bare chain reference, e.g. "1".
func (d DID) ChainID() string {
	return d.Reference
}

// NamespacedChainID returns "<namespace>:<reference>", e.g. "eip155:1".
func (d DID) NamespacedChainID() string {
	return d.Namespace + ":" + d.Reference
}

// String renders the DID back to issuer form.
func (d DID) String() string {
	return "did:pkh:" + d.NamespacedChainID() + ":" + d.Address
}

// AddressFromIssuer returns the account address of an issuer.
func AddressFromIssuer(iss string) (string, bool) {
	d, ok := ParseDID(iss)
	if !ok {
		return "", false
	}
	return d.Address, true
}

// ChainIDFromIssuer returns the chain reference of an issuer.
func ChainIDFromIssuer(iss string) (string, bool) {
	d, ok := ParseDID(iss)
	if !ok {
		return "", false
	}
	return d.ChainID(), true
}

// NamespacedChainIDFromIssuer returns the namespaced chain id of an issuer.
func NamespacedChainIDFromIssuer(iss string) (string, bool) {
	d, ok := ParseDID(iss)
	if !ok {
		return "", false
	}
	return d.NamespacedChainID(), true
}
