package crypto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/ports"
)

func newKeychain() *Keychain {
	return NewKeychain(store.NewMemoryStore(), log.Nop())
}

func TestSymmetricRoundTrip(t *testing.T) {
	ctx := context.Background()
	kc := newKeychain()

	symKey, err := core.RandomBytes32()
	require.NoError(t, err)
	topic, err := kc.SetSymKey(ctx, symKey, "")
	require.NoError(t, err)

	expected, err := core.HashKey(symKey)
	require.NoError(t, err)
	assert.Equal(t, expected, topic)

	encoded, err := kc.Encode(ctx, topic, []byte(`{"id":1}`), nil)
	require.NoError(t, err)
	decoded, err := kc.Decode(ctx, topic, encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(decoded))
}

func TestSymKeySharedAcrossKeychains(t *testing.T) {
	ctx := context.Background()
	a, b := newKeychain(), newKeychain()

	symKey, err := core.RandomBytes32()
	require.NoError(t, err)
	topic, err := a.SetSymKey(ctx, symKey, "")
	require.NoError(t, err)
	_, err = b.SetSymKey(ctx, symKey, topic)
	require.NoError(t, err)

	encoded, err := a.Encode(ctx, topic, []byte("hello"), nil)
	require.NoError(t, err)
	decoded, err := b.Decode(ctx, topic, encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(decoded))
}

func TestType1RoundTrip(t *testing.T) {
	ctx := context.Background()
	requester, responder := newKeychain(), newKeychain()

	receiverPub, err := requester.GenerateKeyPair(ctx)
	require.NoError(t, err)
	senderPub, err := responder.GenerateKeyPair(ctx)
	require.NoError(t, err)

	topic, err := core.HashKey(receiverPub)
	require.NoError(t, err)

	encoded, err := responder.Encode(ctx, topic, []byte("cacao"), &ports.EncodeOptions{
		Type:              ports.EnvelopeType1,
		SenderPublicKey:   senderPub,
		ReceiverPublicKey: receiverPub,
	})
	require.NoError(t, err)

	_, err = requester.Decode(ctx, topic, encoded, nil)
	assert.ErrorIs(t, err, core.ErrNoMatchingKey)

	decoded, err := requester.Decode(ctx, topic, encoded, &ports.DecodeOptions{ReceiverPublicKey: receiverPub})
	require.NoError(t, err)
	assert.Equal(t, "cacao", string(decoded))
}

func TestDecodeUnknownTopic(t *testing.T) {
	ctx := context.Background()
	kc := newKeychain()

	symKey, err := core.RandomBytes32()
	require.NoError(t, err)
	topic, err := kc.SetSymKey(ctx, symKey, "")
	require.NoError(t, err)
	encoded, err := kc.Encode(ctx, topic, []byte("x"), nil)
	require.NoError(t, err)

	require.NoError(t, kc.DeleteSymKey(ctx, topic))
	has, err := kc.HasSymKey(ctx, topic)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = kc.Decode(ctx, topic, encoded, nil)
	assert.ErrorIs(t, err, core.ErrNoMatchingKey)
}

func TestDecodeTampered(t *testing.T) {
	ctx := context.Background()
	kc := newKeychain()

	symKey, err := core.RandomBytes32()
	require.NoError(t, err)
	topic, err := kc.SetSymKey(ctx, symKey, "")
	require.NoError(t, err)

	encoded, err := kc.Encode(ctx, topic, []byte("payload"), nil)
	require.NoError(t, err)

	env, err := deserialize(encoded)
	require.NoError(t, err)
	env.Sealed[0] ^= 0xff
	_, err = kc.Decode(ctx, topic, serialize(env), nil)
	assert.Error(t, err)

	_, err = kc.Decode(ctx, topic, "AA==", nil)
	assert.Error(t, err)
}
