package resolver

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/clients/ethereum"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/config"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/util"
)

var (
	ErrInvalidAddress = errors.New("not an address or ENS name")
	ErrChainMismatch  = errors.New("address prefix does not match the configured chain")
	ErrENSUnavailable = errors.New("ENS resolution is not available")
	ErrNameNotFound   = errors.New("ENS name does not resolve to an address")
)

const ensABI = `[
	{"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var ensContract = ethereum.MustParseABI(ensABI)

// Resolver turns the user supplied Safe identifier into an address. Accepted forms are a plain
// address, an EIP-3770 prefixed address ("eth:0x...") and an ENS name ending in ".eth".
type Resolver struct {
	chain  *config.ChainInfo
	caller ethereum.ContractCaller
	logger *zap.Logger
}

// NewResolver creates a resolver for chain. caller may be nil, in which case ENS names are rejected.
func NewResolver(chain *config.ChainInfo, caller ethereum.ContractCaller, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Resolver{
		chain:  chain,
		caller: caller,
		logger: logger,
	}, nil
}

// Resolve returns the Safe address designated by input
func (r *Resolver) Resolve(ctx context.Context, input string) (common.Address, error) {
	value := strings.TrimSpace(input)

	if prefix, rest, found := strings.Cut(value, ":"); found {
		if r.chain == nil || !strings.EqualFold(prefix, r.chain.ShortName) {
			expected := ""
			if r.chain != nil {
				expected = r.chain.ShortName
			}
			return common.Address{}, errors.Wrapf(ErrChainMismatch, "got %q, expected %q", prefix, expected)
		}
		value = rest
	}

	if common.IsHexAddress(value) {
		return common.HexToAddress(value), nil
	}

	if strings.HasSuffix(strings.ToLower(value), ".eth") {
		return r.resolveName(ctx, value)
	}

	return common.Address{}, errors.Wrapf(ErrInvalidAddress, "%q", input)
}

func (r *Resolver) resolveName(ctx context.Context, name string) (common.Address, error) {
	if r.caller == nil {
		return common.Address{}, errors.Wrapf(ErrENSUnavailable, "no RPC url configured to resolve %s", name)
	}
	if r.chain == nil || r.chain.ENSRegistry == "" {
		return common.Address{}, errors.Wrapf(ErrENSUnavailable, "no ENS registry on chain %s", r.chainName())
	}

	node := util.Namehash(name)
	registry := common.HexToAddress(r.chain.ENSRegistry)

	resolverAddress, err := r.callAddress(ctx, registry, "resolver", node)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to look up resolver for %s", name)
	}
	if resolverAddress == (common.Address{}) {
		return common.Address{}, errors.Wrapf(ErrNameNotFound, "%s has no resolver", name)
	}

	addr, err := r.callAddress(ctx, resolverAddress, "addr", node)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to resolve %s with resolver %s", name, resolverAddress.Hex())
	}
	if addr == (common.Address{}) {
		return common.Address{}, errors.Wrapf(ErrNameNotFound, "%s", name)
	}

	r.logger.Sugar().Infow("Resolved ENS name",
		"name", name,
		"address", addr.Hex(),
	)
	return addr, nil
}

func (r *Resolver) callAddress(ctx context.Context, to common.Address, method string, node common.Hash) (common.Address, error) {
	out, err := ethereum.Call(ctx, r.caller, to, ensContract, method, node)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, errors.Errorf("unexpected %s output length %d", method, len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("unexpected %s output type %T", method, out[0])
	}
	return addr, nil
}

func (r *Resolver) chainName() string {
	if r.chain == nil {
		return "unknown"
	}
	return string(r.chain.Name)
}
