package core

import "time"

const (
	// CacaoHeaderType is the only supported request/header type.
	CacaoHeaderType = "eip4361"

	// ProtocolVersion is the sign-in message version carried in every payload.
	ProtocolVersion = "1"

	// AuthKeyName is the well-known slot holding the latest response key.
	AuthKeyName = "authKey"
)

// SignatureType tags a CacaoSignature.
type SignatureType string

const (
	SignatureEIP191  SignatureType = "eip191"
	SignatureEIP1271 SignatureType = "eip1271"
)

// ExpiryBounds limits a caller-supplied request expiry.
type ExpiryBounds struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// DefaultExpiryBounds are 5 minutes to 7 days.
var DefaultExpiryBounds = ExpiryBounds{
	Min: 5 * time.Minute,
	Max: 7 * 24 * time.Hour,
}

// Metadata describes a peer application.
type Metadata struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	URL         string   `json:"url" yaml:"url"`
	Icons       []string `json:"icons" yaml:"icons"`
}

// RequestParams is what a requester passes to Request.
type RequestParams struct {
	ChainID   string   `json:"chainId"`
	Domain    string   `json:"domain"`
	Nonce     string   `json:"nonce"`
	Aud       string   `json:"aud"`
	Type      string   `json:"type,omitempty"`
	Nbf       string   `json:"nbf,omitempty"`
	Exp       string   `json:"exp,omitempty"`
	Statement string   `json:"statement,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
	Resources []string `json:"resources,omitempty"`
	// Expiry is a custom request lifetime in seconds.
	Expiry int64 `json:"expiry,omitempty"`
}

// PayloadParams is the wire form of a request.
type PayloadParams struct {
	Type      string   `json:"type"`
	ChainID   string   `json:"chainId"`
	Domain    string   `json:"domain"`
	Aud       string   `json:"aud"`
	Version   string   `json:"version"`
	Nonce     string   `json:"nonce"`
	Iat       string   `json:"iat"`
	Nbf       string   `json:"nbf,omitempty"`
	Exp       string   `json:"exp,omitempty"`
	Statement string   `json:"statement,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
	Resources []string `json:"resources,omitempty"`
}

// NewPayloadParams stamps validated request params with version and issuance time.
func NewPayloadParams(params RequestParams, now time.Time) PayloadParams {
	typ := params.Type
	if typ == "" {
		typ = CacaoHeaderType
	}
	return PayloadParams{
		Type:      typ,
		ChainID:   params.ChainID,
		Domain:    params.Domain,
		Aud:       params.Aud,
		Version:   ProtocolVersion,
		Nonce:     params.Nonce,
		Iat:       now.UTC().Format(time.RFC3339Nano),
		Nbf:       params.Nbf,
		Exp:       params.Exp,
		Statement: params.Statement,
		RequestID: params.RequestID,
		Resources: params.Resources,
	}
}

// CacaoPayload copies every field except the signature scheme type.
func (p PayloadParams) CacaoPayload() CacaoRequestPayload {
	return CacaoRequestPayload{
		Domain:    p.Domain,
		Aud:       p.Aud,
		Version:   p.Version,
		Nonce:     p.Nonce,
		Iat:       p.Iat,
		Nbf:       p.Nbf,
		Exp:       p.Exp,
		ChainID:   p.ChainID,
		Statement: p.Statement,
		RequestID: p.RequestID,
		Resources: p.Resources,
	}
}

// CacaoRequestPayload is a payload that has not been signed yet.
type CacaoRequestPayload struct {
	Domain    string   `json:"domain"`
	Aud       string   `json:"aud"`
	Version   string   `json:"version"`
	Nonce     string   `json:"nonce"`
	Iat       string   `json:"iat"`
	Nbf       string   `json:"nbf,omitempty"`
	Exp       string   `json:"exp,omitempty"`
	ChainID   string   `json:"chainId,omitempty"`
	Statement string   `json:"statement,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
	Resources []string `json:"resources,omitempty"`
}

// CacaoPayload is a request payload bound to its signer.
type CacaoPayload struct {
	Iss string `json:"iss"`
	CacaoRequestPayload
}

type CacaoHeader struct {
	T string `json:"t"`
}

type CacaoSignature struct {
	T SignatureType `json:"t"`
	S string        `json:"s"`
	M string        `json:"m,omitempty"`
}

// Cacao is a signed Chain Agnostic CApability Object.
type Cacao struct {
	H CacaoHeader    `json:"h"`
	P CacaoPayload   `json:"p"`
	S CacaoSignature `json:"s"`
}

// Requester identifies who asked for authentication and where to answer.
type Requester struct {
	PublicKey string   `json:"publicKey"`
	Metadata  Metadata `json:"metadata"`
}

// AuthRequestParams are the params of a wc_authRequest call.
type AuthRequestParams struct {
	PayloadParams PayloadParams `json:"payloadParams"`
	Requester     Requester     `json:"requester"`
}

// PendingRequest is an inbound request waiting for the responder.
type PendingRequest struct {
	ID           uint64              `json:"id"`
	PairingTopic string              `json:"pairingTopic"`
	Requester    Requester           `json:"requester"`
	CacaoPayload CacaoRequestPayload `json:"cacaoPayload"`
}

// RecordKind discriminates RequestRecord.
type RecordKind string

const (
	RecordPending   RecordKind = "pending"
	RecordCompleted RecordKind = "completed"
)

// RequestRecord is one entry of the requests store: either a pending
// request or the completed Cacao that answered it.
type RequestRecord struct {
	ID      uint64          `json:"id"`
	Kind    RecordKind      `json:"kind"`
	Pending *PendingRequest `json:"pending,omitempty"`
	Cacao   *Cacao          `json:"cacao,omitempty"`
}

func NewPendingRecord(p PendingRequest) RequestRecord {
	return RequestRecord{ID: p.ID, Kind: RecordPending, Pending: &p}
}

func NewCompletedRecord(id uint64, c Cacao) RequestRecord {
	return RequestRecord{ID: id, Kind: RecordCompleted, Cacao: &c}
}

// AsPending returns the pending request if the record holds one.
func (r RequestRecord) AsPending() (PendingRequest, bool) {
	if r.Kind != RecordPending || r.Pending == nil {
		return PendingRequest{}, false
	}
	return *r.Pending, true
}

// AsCompleted returns the Cacao if the record holds one.
func (r RequestRecord) AsCompleted() (Cacao, bool) {
	if r.Kind != RecordCompleted || r.Cacao == nil {
		return Cacao{}, false
	}
	return *r.Cacao, true
}

// RelayProtocol names the relay a pairing travels over.
type RelayProtocol struct {
	Protocol string `json:"protocol"`
	Data     string `json:"data,omitempty"`
}

// Pairing is a shared-secret channel between requester and responder.
type Pairing struct {
	Topic   string        `json:"topic"`
	Relay   RelayProtocol `json:"relay"`
	Expiry  int64         `json:"expiry"`
	Active  bool          `json:"active"`
	Methods []string      `json:"methods,omitempty"`
}

// Expired reports whether the pairing is past its expiry.
func (p Pairing) Expired(now time.Time) bool {
	return now.Unix() >= p.Expiry
}

// AuthKey is the public half of the latest response key pair.
type AuthKey struct {
	PublicKey     string `json:"publicKey"`
	ResponseTopic string `json:"responseTopic"`
}

// PairingTopic correlates a response topic with the pairing that spawned it.
type PairingTopic struct {
	PairingTopic string `json:"pairingTopic"`
	PublicKey    string `json:"publicKey,omitempty"`
}

// RequestResult is returned by Request. URI is empty on a known pairing.
type RequestResult struct {
	URI string `json:"uri,omitempty"`
	ID  uint64 `json:"id"`
}

// RespondParams carries either a signature or an error for a pending request.
type RespondParams struct {
	ID        uint64          `json:"id"`
	Signature *CacaoSignature `json:"signature,omitempty"`
	Error     *RPCError       `json:"error,omitempty"`
}
