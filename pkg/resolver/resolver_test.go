package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/clients/ethereum"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/config"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/testutil"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/util"
)

var (
	safeAddress     = common.HexToAddress("0x9D03bb2092270648d7480049d0E58d2FcF0E5123")
	resolverAddress = common.HexToAddress("0x231b0Ee14048e9dCcD1d247744d114a4EB5E8E63")
)

func mainnet(t *testing.T) *config.ChainInfo {
	chain, err := config.GetChainInfo(config.ChainId_EthereumMainnet)
	require.NoError(t, err)
	return chain
}

func ensCaller(t *testing.T, name string, resolved common.Address) *testutil.MockContractCaller {
	caller := testutil.NewMockContractCaller()
	node := util.Namehash(name)
	registry := common.HexToAddress(config.ENSRegistryAddress)

	caller.Handle(registry, ensContract.Methods["resolver"].ID, func(data []byte) ([]byte, error) {
		if common.BytesToHash(data) != node {
			return util.EncodeAddress(common.Address{})
		}
		return util.EncodeAddress(resolverAddress)
	})
	caller.Handle(resolverAddress, ensContract.Methods["addr"].ID, func(data []byte) ([]byte, error) {
		require.Equal(t, node, common.BytesToHash(data))
		return util.EncodeAddress(resolved)
	})
	return caller
}

func newTestResolver(t *testing.T, chain *config.ChainInfo, caller ethereum.ContractCaller) *Resolver {
	t.Helper()
	r, err := NewResolver(chain, caller, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return r
}

func TestNewResolver_RequiresLogger(t *testing.T) {
	_, err := NewResolver(mainnet(t), nil, nil)
	require.Error(t, err)
}

func TestResolve_Literal(t *testing.T) {
	r := newTestResolver(t, mainnet(t), nil)

	tests := []struct {
		name  string
		input string
	}{
		{"checksummed", safeAddress.Hex()},
		{"lowercase", "0x9d03bb2092270648d7480049d0e58d2fcf0e5123"},
		{"eip-3770 prefix", "eth:" + safeAddress.Hex()},
		{"surrounding spaces", "  " + safeAddress.Hex() + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := r.Resolve(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, safeAddress, addr)
		})
	}
}

func TestResolve_Rejects(t *testing.T) {
	r := newTestResolver(t, mainnet(t), nil)

	tests := []struct {
		name        string
		input       string
		expectedErr error
	}{
		{"garbage", "not-a-safe", ErrInvalidAddress},
		{"short hex", "0x1234", ErrInvalidAddress},
		{"wrong chain prefix", "gno:" + safeAddress.Hex(), ErrChainMismatch},
		{"ens without rpc", "morpho.eth", ErrENSUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedErr), "unexpected error: %v", err)
		})
	}
}

func TestResolve_ENS(t *testing.T) {
	caller := ensCaller(t, "safe.morpho.eth", safeAddress)
	r := newTestResolver(t, mainnet(t), caller)

	addr, err := r.Resolve(context.Background(), "safe.morpho.eth")
	require.NoError(t, err)
	assert.Equal(t, safeAddress, addr)
	assert.Len(t, caller.Calls(), 2)

	// names are case-insensitive
	addr, err = r.Resolve(context.Background(), "Safe.Morpho.eth")
	require.NoError(t, err)
	assert.Equal(t, safeAddress, addr)
}

func TestResolve_ENSNotFound(t *testing.T) {
	t.Run("no resolver", func(t *testing.T) {
		caller := ensCaller(t, "other.eth", safeAddress)
		r := newTestResolver(t, mainnet(t), caller)

		_, err := r.Resolve(context.Background(), "unknown.eth")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNameNotFound))
	})

	t.Run("zero address", func(t *testing.T) {
		caller := ensCaller(t, "empty.eth", common.Address{})
		r := newTestResolver(t, mainnet(t), caller)

		_, err := r.Resolve(context.Background(), "empty.eth")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNameNotFound))
	})

	t.Run("rpc failure", func(t *testing.T) {
		r := newTestResolver(t, mainnet(t), testutil.NewMockContractCaller())

		_, err := r.Resolve(context.Background(), "morpho.eth")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to look up resolver for morpho.eth")
	})
}

func TestResolve_ENSUnsupportedChain(t *testing.T) {
	chain, err := config.GetChainInfo(config.ChainId_Gnosis)
	require.NoError(t, err)
	r := newTestResolver(t, chain, testutil.NewMockContractCaller())

	_, err = r.Resolve(context.Background(), "morpho.eth")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrENSUnavailable))
}
