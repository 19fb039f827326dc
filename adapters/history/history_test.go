package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
)

func newRequest(t *testing.T) core.Request {
	t.Helper()
	req, err := core.NewRequest(core.MethodPairingPing, struct{}{})
	require.NoError(t, err)
	return req
}

func TestSetKeepsFirstRecord(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.NewMemoryStore(), DefaultTTL)
	req := newRequest(t)

	require.NoError(t, h.Set(ctx, "topic-a", req, core.Outbound))
	require.NoError(t, h.Set(ctx, "topic-b", req, core.Inbound))

	rec, err := h.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Outbound, rec.Direction)
	assert.Equal(t, "topic-a", rec.Topic)
	assert.Equal(t, string(core.MethodPairingPing), rec.Request.Method)
	assert.False(t, rec.Answered())
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.NewMemoryStore(), DefaultTTL)
	req := newRequest(t)
	require.NoError(t, h.Set(ctx, "topic", req, core.Outbound))

	res, err := core.NewResult(req.ID, true)
	require.NoError(t, err)
	rec, err := h.Resolve(ctx, res)
	require.NoError(t, err)
	require.True(t, rec.Answered())

	second := core.NewError(req.ID, core.RPCError{Code: 1, Message: "late"})
	rec, err = h.Resolve(ctx, second)
	require.NoError(t, err)
	assert.Nil(t, rec.Response.Error)
}

func TestResolveUnknown(t *testing.T) {
	h := NewHistory(store.NewMemoryStore(), DefaultTTL)
	_, err := h.Resolve(context.Background(), core.NewError(42, core.RPCError{}))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteTopic(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.NewMemoryStore(), DefaultTTL)

	keep := newRequest(t)
	drop := core.Request{ID: keep.ID + 1, JSONRPC: core.JSONRPCVersion, Method: keep.Method}
	require.NoError(t, h.Set(ctx, "keep", keep, core.Outbound))
	require.NoError(t, h.Set(ctx, "drop", drop, core.Outbound))

	require.NoError(t, h.DeleteTopic(ctx, "drop"))

	_, err := h.Get(ctx, drop.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = h.Get(ctx, keep.ID)
	assert.NoError(t, err)
}
