package util

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func FuzzNamehashComposition(f *testing.F) {
	f.Add("vitalik", "eth")
	f.Add("morpho", "eth")
	f.Add("a", "b")

	f.Fuzz(func(t *testing.T, label, parent string) {
		if label == "" || parent == "" || strings.Contains(label, ".") || len(label) > 256 || len(parent) > 256 {
			t.Skip()
		}
		label = strings.ToLower(strings.TrimSpace(label))
		parent = strings.ToLower(strings.TrimSpace(parent))
		if label == "" || parent == "" {
			t.Skip()
		}

		// namehash(label.parent) = keccak(namehash(parent) ++ keccak(label))
		expected := common.BytesToHash(crypto.Keccak256(Namehash(parent).Bytes(), crypto.Keccak256([]byte(label))))
		require.Equal(t, expected, Namehash(label+"."+parent))

		// Deterministic
		require.Equal(t, Namehash(label+"."+parent), Namehash(label+"."+parent))
	})
}
