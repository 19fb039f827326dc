package verifier

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/ports"
)

// DefaultRPCURL is the chain RPC used for contract signature checks.
const DefaultRPCURL = "https://rpc.walletconnect.com/v1"

const isValidSignatureABI = `[{"inputs":[{"internalType":"bytes32","name":"_hash","type":"bytes32"},{"internalType":"bytes","name":"_signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"internalType":"bytes4","name":"","type":"bytes4"}],"stateMutability":"view","type":"function"}]`

// EIP1271MagicValue is returned by isValidSignature for a valid signature.
var EIP1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// Dialer opens a contract caller for an RPC endpoint.
type Dialer func(ctx context.Context, url string) (ethereum.ContractCaller, error)

// DialEthClient dials url with go-ethereum's ethclient.
func DialEthClient(ctx context.Context, url string) (ethereum.ContractCaller, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Verifier implements ports.SignatureVerifier for eip191 and eip1271.
type Verifier struct {
	rpcURL string
	dial   Dialer
	abi    abi.ABI
	log    log.Logger
}

var _ ports.SignatureVerifier = (*Verifier)(nil)

// New creates a verifier. An empty rpcURL selects DefaultRPCURL and a nil
// dial selects DialEthClient.
func New(rpcURL string, dial Dialer, logger log.Logger) (*Verifier, error) {
	parsed, err := abi.JSON(strings.NewReader(isValidSignatureABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	if dial == nil {
		dial = DialEthClient
	}
	return &Verifier{
		rpcURL: rpcURL,
		dial:   dial,
		abi:    parsed,
		log:    logger.Module("verifier"),
	}, nil
}

// Verify checks sig over message for address. chainID is the namespaced
// chain id, e.g. eip155:1.
func (v *Verifier) Verify(ctx context.Context, address, message string, sig core.CacaoSignature, chainID, projectID string) (bool, error) {
	switch sig.T {
	case core.SignatureEIP191:
		return v.verifyEIP191(address, message, sig.S), nil
	case core.SignatureEIP1271:
		return v.verifyEIP1271(ctx, address, message, sig.S, chainID, projectID), nil
	default:
		return false, fmt.Errorf("%w: %q", core.ErrUnknownSignatureType, sig.T)
	}
}

// RPCURL builds the endpoint queried for a chain.
func (v *Verifier) RPCURL(chainID, projectID string) string {
	return fmt.Sprintf("%s/?chainId=%s&projectId=%s", v.rpcURL, chainID, projectID)
}

func (v *Verifier) verifyEIP191(address, message, signature string) bool {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		v.log.Debug().Err(err).Msg("eip191 recovery failed")
		return false
	}
	return strings.EqualFold(recovered.Hex(), address)
}

func (v *Verifier) verifyEIP1271(ctx context.Context, address, message, signature, chainID, projectID string) bool {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		v.log.Debug().Err(err).Msg("eip1271 signature decode failed")
		return false
	}
	if !common.IsHexAddress(address) {
		return false
	}

	var hash [32]byte
	copy(hash[:], accounts.TextHash([]byte(message)))
	data, err := v.abi.Pack("isValidSignature", hash, sig)
	if err != nil {
		v.log.Debug().Err(err).Msg("eip1271 pack failed")
		return false
	}

	client, err := v.dial(ctx, v.RPCURL(chainID, projectID))
	if err != nil {
		v.log.Warn().Err(err).Str("chainId", chainID).Msg("eip1271 dial failed")
		return false
	}
	if c, ok := client.(interface{ Close() }); ok {
		defer c.Close()
	}

	contract := common.HexToAddress(address)
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, (*big.Int)(nil))
	if err != nil {
		v.log.Warn().Err(err).Str("address", address).Msg("eip1271 call failed")
		return false
	}
	return len(out) >= 4 && bytes.Equal(out[:4], EIP1271MagicValue[:])
}

// RecoverAddress recovers the personal-sign signer of message.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes: %w", core.ErrInvalidSignature)
	}

	// Normalize V: wallets use 27/28, ecrecover expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignEIP191 personal-signs message with V in {27, 28}.
func SignEIP191(message string, sign func(hash []byte) ([]byte, error)) (string, error) {
	sig, err := sign(accounts.TextHash([]byte(message)))
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
