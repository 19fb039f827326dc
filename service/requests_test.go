package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
)

func TestRequestStorePartition(t *testing.T) {
	ctx := context.Background()
	requests := NewRequestStore(store.NewMemoryStore())

	for id := uint64(1); id <= 4; id++ {
		require.NoError(t, requests.SetPending(ctx, core.PendingRequest{ID: id, PairingTopic: "topic-a"}))
	}
	cacao := core.Cacao{P: core.CacaoPayload{Iss: "did:pkh:eip155:1:0xabc"}}
	require.NoError(t, requests.SetCompleted(ctx, 2, cacao))
	require.NoError(t, requests.SetCompleted(ctx, 3, cacao))

	pending, err := requests.GetPendingRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Contains(t, pending, uint64(1))
	assert.Contains(t, pending, uint64(4))

	for id := uint64(1); id <= 4; id++ {
		_, pendingErr := requests.GetPending(ctx, id)
		_, completedErr := requests.GetCompleted(ctx, id)
		// every id is in exactly one partition
		assert.True(t, (pendingErr == nil) != (completedErr == nil), "id %d", id)
	}

	got, err := requests.GetCompleted(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, cacao, got)

	_, err = requests.GetPending(ctx, 2)
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = requests.Get(ctx, 99)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeletePendingByTopic(t *testing.T) {
	ctx := context.Background()
	requests := NewRequestStore(store.NewMemoryStore())

	require.NoError(t, requests.SetPending(ctx, core.PendingRequest{ID: 1, PairingTopic: "topic-a"}))
	require.NoError(t, requests.SetPending(ctx, core.PendingRequest{ID: 2, PairingTopic: "topic-b"}))
	require.NoError(t, requests.SetPending(ctx, core.PendingRequest{ID: 3, PairingTopic: "topic-a"}))
	require.NoError(t, requests.SetCompleted(ctx, 3, core.Cacao{}))

	require.NoError(t, requests.DeletePendingByTopic(ctx, "topic-a"))

	pending, err := requests.GetPendingRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Contains(t, pending, uint64(2))

	// completed records survive
	_, err = requests.GetCompleted(ctx, 3)
	require.NoError(t, err)
}
