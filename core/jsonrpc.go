package core

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"
)

const JSONRPCVersion = "2.0"

// Request is a JSON-RPC request as sent over the relay.
type Request struct {
	ID      uint64          `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC result or error response.
type Response struct {
	ID      uint64          `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsError reports whether the response carries an error object.
func (r Response) IsError() bool {
	return r.Error != nil
}

// NewRequestID returns a millisecond timestamp padded with three random digits.
func NewRequestID() uint64 {
	return uint64(time.Now().UnixMilli())*1000 + rand.Uint64N(1000)
}

// NewRequest builds a request with a fresh id.
func NewRequest(method Method, params any) (Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal params: %w", err)
	}
	return Request{
		ID:      NewRequestID(),
		JSONRPC: JSONRPCVersion,
		Method:  string(method),
		Params:  raw,
	}, nil
}

// NewResult builds a result response for the request id.
func NewResult(id uint64, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return Response{ID: id, JSONRPC: JSONRPCVersion, Result: raw}, nil
}

// NewError builds an error response for the request id.
func NewError(id uint64, rpcErr RPCError) Response {
	return Response{ID: id, JSONRPC: JSONRPCVersion, Error: &rpcErr}
}

// Payload is a decoded relay message: exactly one of Request or Response is set.
type Payload struct {
	Request  *Request
	Response *Response
}

// ParsePayload classifies a decoded JSON-RPC message.
func ParsePayload(data []byte) (Payload, error) {
	var probe struct {
		ID     *uint64         `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if probe.ID == nil {
		return Payload{}, fmt.Errorf("%w: missing id", ErrMalformedPayload)
	}

	switch {
	case probe.Method != "":
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return Payload{Request: &req}, nil
	case probe.Result != nil || probe.Error != nil:
		var res Response
		if err := json.Unmarshal(data, &res); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return Payload{Response: &res}, nil
	default:
		return Payload{}, fmt.Errorf("%w: neither request nor response", ErrMalformedPayload)
	}
}

// Direction records which side of the relay a history entry originated on.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// HistoryRecord correlates a request with its eventual response.
type HistoryRecord struct {
	ID        uint64    `json:"id"`
	Topic     string    `json:"topic"`
	Direction Direction `json:"direction"`
	Request   Request   `json:"request"`
	Response  *Response `json:"response,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Answered reports whether a response has been recorded.
func (h HistoryRecord) Answered() bool {
	return h.Response != nil
}
