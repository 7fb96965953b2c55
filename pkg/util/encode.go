package util

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EncodeAddress ABI-encodes a single address value, as returned by a view function
func EncodeAddress(addr common.Address) ([]byte, error) {
	addressType, _ := abi.NewType("address", "", nil)
	arguments := abi.Arguments{{Type: addressType}}
	return arguments.Pack(addr)
}

// EncodeBytes4 ABI-encodes a single bytes4 value, as returned by isValidSignature
func EncodeBytes4(value [4]byte) ([]byte, error) {
	bytes4Type, _ := abi.NewType("bytes4", "", nil)
	arguments := abi.Arguments{{Type: bytes4Type}}
	return arguments.Pack(value)
}

// Namehash computes the EIP-137 node of an ENS name. Names are lower-cased; full UTS-46
// normalization is not applied.
func Namehash(name string) common.Hash {
	var node common.Hash
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = common.BytesToHash(crypto.Keccak256(node.Bytes(), labelHash))
	}
	return node
}
