package signature

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/clients/ethereum"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/snapshot"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

var (
	// ErrInvalidSignature is returned when a signature does not prove the payload was signed by the address
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrContractSignatureUnavailable is returned when a signature does not recover to the address and
	// no RPC caller is configured to check it as a contract signature
	ErrContractSignatureUnavailable = errors.New("contract signature check unavailable without an RPC url")
)

var (
	// MagicValue is returned by isValidSignature(bytes32,bytes) for a valid signature
	MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}
	// LegacyMagicValue is returned by isValidSignature(bytes,bytes) for a valid signature
	LegacyMagicValue = [4]byte{0x20, 0xc1, 0x3b, 0x0b}
)

var (
	erc1271Contract = ethereum.MustParseABI(`[{"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"","type":"bytes4"}],"stateMutability":"view","type":"function"}]`)
	legacyContract  = ethereum.MustParseABI(`[{"inputs":[{"name":"data","type":"bytes"},{"name":"signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"","type":"bytes4"}],"stateMutability":"view","type":"function"}]`)
)

// Verifier checks that a Safe signature covers the EIP-712 digest of a payload. Plain ECDSA
// signatures are recovered locally; anything else is checked against the Safe contract with
// EIP-1271 when an RPC caller is configured.
type Verifier struct {
	caller ethereum.ContractCaller
	logger *zap.Logger
}

// NewVerifier creates a verifier. caller may be nil, in which case only ECDSA signatures can be
// confirmed and every other signature is reported as ErrContractSignatureUnavailable.
func NewVerifier(caller ethereum.ContractCaller, logger *zap.Logger) (*Verifier, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Verifier{
		caller: caller,
		logger: logger,
	}, nil
}

// Verify reports whether sig is a valid signature of data by address
func (v *Verifier) Verify(ctx context.Context, address string, sig string, data *types.CanonicalTypedPayload) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, errors.Errorf("invalid signer address %q", address)
	}
	signer := common.HexToAddress(address)

	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return false, errors.Wrapf(err, "signature is not valid hex")
	}

	digest, err := snapshot.HashTypedData(data)
	if err != nil {
		return false, err
	}

	if recovered, ok := recoverSigner(digest, sigBytes); ok && recovered == signer {
		return true, nil
	}

	if v.caller == nil {
		return false, errors.Wrapf(ErrContractSignatureUnavailable, "signature does not recover to %s", signer.Hex())
	}
	return v.verifyContract(ctx, signer, digest, sigBytes)
}

// recoverSigner recovers the address behind a 65 byte [R || S || V] signature, accepting V in
// {0, 1} or {27, 28}
func recoverSigner(digest common.Hash, sig []byte) (common.Address, bool) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, false
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, false
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(*pub), true
}

func (v *Verifier) verifyContract(ctx context.Context, signer common.Address, digest common.Hash, sig []byte) (bool, error) {
	ok, err := v.isValidSignature(ctx, signer, erc1271Contract, MagicValue, digest, sig)
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		v.logger.Sugar().Debugw("EIP-1271 check failed", "address", signer.Hex(), "error", err)
	}

	ok, err = v.isValidSignature(ctx, signer, legacyContract, LegacyMagicValue, digest.Bytes(), sig)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		v.logger.Sugar().Debugw("Legacy EIP-1271 check failed", "address", signer.Hex(), "error", err)
		return false, nil
	}
	return ok, nil
}

func (v *Verifier) isValidSignature(
	ctx context.Context,
	signer common.Address,
	contract abi.ABI,
	magic [4]byte,
	data interface{},
	sig []byte,
) (bool, error) {
	out, err := ethereum.Call(ctx, v.caller, signer, contract, "isValidSignature", data, sig)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("unexpected isValidSignature output length %d", len(out))
	}
	value, ok := out[0].([4]byte)
	if !ok {
		return false, fmt.Errorf("unexpected isValidSignature output type %T", out[0])
	}
	return bytes.Equal(value[:], magic[:]), nil
}
