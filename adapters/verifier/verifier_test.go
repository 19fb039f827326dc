package verifier

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
)

type mockCaller struct {
	out   []byte
	err   error
	calls int
	msg   ethereum.CallMsg
}

func (m *mockCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.calls++
	m.msg = msg
	return m.out, m.err
}

func dialerFor(caller ethereum.ContractCaller, gotURL *string) Dialer {
	return func(ctx context.Context, url string) (ethereum.ContractCaller, error) {
		if gotURL != nil {
			*gotURL = url
		}
		return caller, nil
	}
}

func signPersonal(t *testing.T, message string) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := SignEIP191(message, func(hash []byte) ([]byte, error) {
		return crypto.Sign(hash, key)
	})
	require.NoError(t, err)
	return sig, crypto.PubkeyToAddress(key.PublicKey)
}

func TestVerifyEIP191(t *testing.T) {
	v, err := New("", nil, log.Nop())
	require.NoError(t, err)

	msg := "localhost wants you to sign in with your Ethereum account"
	sig, addr := signPersonal(t, msg)
	ctx := context.Background()

	ok, err := v.Verify(ctx, addr.Hex(), msg, core.CacaoSignature{T: core.SignatureEIP191, S: sig}, "eip155:1", "p")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(ctx, strings.ToLower(addr.Hex()), msg, core.CacaoSignature{T: core.SignatureEIP191, S: sig}, "eip155:1", "p")
	require.NoError(t, err)
	assert.True(t, ok, "address comparison is case-insensitive")

	other := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	ok, err = v.Verify(ctx, other.Hex(), msg, core.CacaoSignature{T: core.SignatureEIP191, S: sig}, "eip155:1", "p")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(ctx, addr.Hex(), msg+"!", core.CacaoSignature{T: core.SignatureEIP191, S: sig}, "eip155:1", "p")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyEIP191Tampered(t *testing.T) {
	v, err := New("", nil, log.Nop())
	require.NoError(t, err)

	msg := "hello"
	sig, addr := signPersonal(t, msg)
	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	raw[10] ^= 0x01

	ok, err := v.Verify(context.Background(), addr.Hex(), msg, core.CacaoSignature{T: core.SignatureEIP191, S: hexutil.Encode(raw)}, "eip155:1", "p")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(context.Background(), addr.Hex(), msg, core.CacaoSignature{T: core.SignatureEIP191, S: "not-hex"}, "eip155:1", "p")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyUnknownType(t *testing.T) {
	v, err := New("", nil, log.Nop())
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "0x0", "m", core.CacaoSignature{T: "eip712", S: "0x"}, "eip155:1", "p")
	assert.ErrorIs(t, err, core.ErrUnknownSignatureType)
}

func TestVerifyEIP1271(t *testing.T) {
	contract := "0x1111111111111111111111111111111111111111"
	magic := make([]byte, 32)
	copy(magic, EIP1271MagicValue[:])

	caller := &mockCaller{out: magic}
	var url string
	v, err := New("https://rpc.example", dialerFor(caller, &url), log.Nop())
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), contract, "msg", core.CacaoSignature{T: core.SignatureEIP1271, S: "0xdeadbeef"}, "eip155:137", "project")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, caller.calls)
	assert.Equal(t, common.HexToAddress(contract), *caller.msg.To)
	assert.Equal(t, "https://rpc.example/?chainId=eip155:137&projectId=project", url)
}

func TestVerifyEIP1271WrongMagic(t *testing.T) {
	caller := &mockCaller{out: make([]byte, 32)}
	v, err := New("", dialerFor(caller, nil), log.Nop())
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "0x1111111111111111111111111111111111111111", "msg", core.CacaoSignature{T: core.SignatureEIP1271, S: "0x01"}, "eip155:1", "p")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyEIP1271RPCFailureIsNotValid(t *testing.T) {
	caller := &mockCaller{err: errors.New("execution reverted")}
	v, err := New("", dialerFor(caller, nil), log.Nop())
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "0x1111111111111111111111111111111111111111", "msg", core.CacaoSignature{T: core.SignatureEIP1271, S: "0x01"}, "eip155:1", "p")
	require.NoError(t, err)
	assert.False(t, ok)

	failing := func(ctx context.Context, url string) (ethereum.ContractCaller, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	v, err = New("", failing, log.Nop())
	require.NoError(t, err)
	ok, err = v.Verify(context.Background(), "0x1111111111111111111111111111111111111111", "msg", core.CacaoSignature{T: core.SignatureEIP1271, S: "0x01"}, "eip155:1", "p")
	require.NoError(t, err)
	assert.False(t, ok)
}
