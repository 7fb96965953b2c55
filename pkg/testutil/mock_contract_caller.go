package testutil

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// CallHandler answers an eth_call with raw return data
type CallHandler func(data []byte) ([]byte, error)

// MockContractCaller implements ethereum.ContractCaller without a node. Handlers are keyed by
// contract address and 4-byte method selector.
type MockContractCaller struct {
	mu       sync.Mutex
	handlers map[string]CallHandler
	calls    []geth.CallMsg
}

// NewMockContractCaller creates an empty mock; unregistered calls fail as reverts
func NewMockContractCaller() *MockContractCaller {
	return &MockContractCaller{handlers: make(map[string]CallHandler)}
}

func handlerKey(to common.Address, selector []byte) string {
	return strings.ToLower(to.Hex()) + ":" + hex.EncodeToString(selector)
}

// Handle registers a handler for calls of selector on to
func (m *MockContractCaller) Handle(to common.Address, selector []byte, handler CallHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[handlerKey(to, selector)] = handler
}

// Calls returns the calls received so far
func (m *MockContractCaller) Calls() []geth.CallMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]geth.CallMsg, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallContract implements ethereum.ContractCaller
func (m *MockContractCaller) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("invalid call")
	}

	m.mu.Lock()
	m.calls = append(m.calls, msg)
	handler, ok := m.handlers[handlerKey(*msg.To, msg.Data[:4])]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return handler(msg.Data[4:])
}
