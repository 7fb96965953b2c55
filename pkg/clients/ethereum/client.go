package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ContractCaller is the read-only slice of an Ethereum client used for eth_call
type ContractCaller interface {
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Compile-time check that ethclient satisfies ContractCaller
var _ ContractCaller = (*ethclient.Client)(nil)

// EthereumClientConfig holds the RPC endpoint configuration
type EthereumClientConfig struct {
	BaseUrl string
}

// Client lazily dials the RPC endpoint on first use
type Client struct {
	config *EthereumClientConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *ethclient.Client
}

// NewEthereumClient creates a new RPC client wrapper
func NewEthereumClient(cfg *EthereumClientConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		logger: logger,
	}
}

// GetEthereumContractCaller dials the endpoint if needed and returns the underlying client
func (c *Client) GetEthereumContractCaller() (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.config == nil || c.config.BaseUrl == "" {
		return nil, fmt.Errorf("ethereum RPC url is not configured")
	}

	client, err := ethclient.Dial(c.config.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum RPC %s: %w", c.config.BaseUrl, err)
	}
	c.logger.Sugar().Debugw("Connected to ethereum RPC", "url", c.config.BaseUrl)
	c.client = client
	return client, nil
}

// CallContract implements ContractCaller, dialing on first call
func (c *Client) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	client, err := c.GetEthereumContractCaller()
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, blockNumber)
}

// Close releases the RPC connection if one was opened
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// MustParseABI parses a JSON ABI definition known at compile time
func MustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI definition: %v", err))
	}
	return parsed
}

// Call packs method(args...) for contractABI, executes it against to at the latest block and
// unpacks the outputs
func Call(
	ctx context.Context,
	caller ContractCaller,
	to common.Address,
	contractABI abi.ABI,
	method string,
	args ...interface{},
) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	out, err := caller.CallContract(ctx, geth.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call to %s failed: %w", method, to.Hex(), err)
	}
	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return values, nil
}
