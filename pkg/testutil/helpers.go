package testutil

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/logger"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/snapshot"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// FixedNow is the clock used across tests: 2023-11-15T00:00:00Z
var FixedNow = time.Unix(1700006400, 0).UTC()

// NewTestLogger returns a quiet logger for tests
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return l
}

// ProposalFields returns stored proposal fields declared at ts (seconds)
func ProposalFields(from common.Address, ts int64) map[string]interface{} {
	return map[string]interface{}{
		"from":       from.Hex(),
		"space":      "morpho.eth",
		"timestamp":  strconv.FormatInt(ts, 10),
		"type":       "single-choice",
		"title":      "MIP-1: enable market",
		"body":       "Enable the market.",
		"discussion": "https://forum.example/t/1",
		"choices":    []interface{}{"For", "Against", "Abstain"},
		"start":      strconv.FormatInt(ts+100, 10),
		"end":        strconv.FormatInt(ts+86400, 10),
		"snapshot":   "18000000",
		"plugins":    "{}",
		"app":        "snapshot",
	}
}

// SpaceFields returns stored space settings fields declared at ts (seconds)
func SpaceFields(from common.Address, ts int64) map[string]interface{} {
	return map[string]interface{}{
		"from":      from.Hex(),
		"space":     "morpho.eth",
		"timestamp": strconv.FormatInt(ts, 10),
		"settings":  `{"name":"Morpho","network":"1","symbol":"MORPHO"}`,
	}
}

// VoteFields returns stored vote fields declared at ts (seconds)
func VoteFields(from common.Address, ts int64) map[string]interface{} {
	return map[string]interface{}{
		"from":      from.Hex(),
		"space":     "morpho.eth",
		"timestamp": strconv.FormatInt(ts, 10),
		"proposal":  "0x5b8e4e2ea2c3e1cd1f1ab1c0dbd7c6cc0e10ef1af2f80a4c7ee3b3d1c1b4d9f0",
		"choice":    "1",
		"reason":    "",
		"app":       "snapshot",
		"metadata":  "{}",
	}
}

// MessageOptions describes a Safe gateway message item
type MessageOptions struct {
	Hash              string
	Status            types.MessageStatus
	Signature         string
	PrimaryType       string
	Fields            map[string]interface{}
	DomainName        string
	CreationTimestamp int64 // milliseconds
}

// NewSafeMessage builds a MESSAGE item as served by the Safe gateway
func NewSafeMessage(opts MessageOptions) *types.RawStoredMessage {
	domainName := opts.DomainName
	if domainName == "" {
		domainName = types.SnapshotDomainName
	}
	status := opts.Status
	if status == "" {
		status = types.MessageStatusConfirmed
	}
	msg := &types.RawStoredMessage{
		Type:              types.ItemTypeMessage,
		MessageHash:       opts.Hash,
		Status:            status,
		Name:              "Snapshot message",
		CreationTimestamp: opts.CreationTimestamp,
		Message: types.StoredMessageContent{
			Typed: &types.StoredTypedDocument{
				Domain:      types.Domain{Name: domainName, Version: types.SnapshotDomainVersion},
				PrimaryType: opts.PrimaryType,
				Message:     opts.Fields,
			},
		},
	}
	if opts.Signature != "" {
		sig := opts.Signature
		msg.PreparedSignature = &sig
	}
	return msg
}

// NewDateLabel builds a DATE_LABEL item at ms
func NewDateLabel(ms int64) *types.RawStoredMessage {
	return &types.RawStoredMessage{Type: types.ItemTypeDateLabel, Timestamp: ms}
}

// NewTextMessage builds a plain text (non typed-data) message item
func NewTextMessage(hash string, createdMs int64) *types.RawStoredMessage {
	sig := "0x01"
	return &types.RawStoredMessage{
		Type:              types.ItemTypeMessage,
		MessageHash:       hash,
		Status:            types.MessageStatusConfirmed,
		CreationTimestamp: createdMs,
		PreparedSignature: &sig,
		Message:           types.StoredMessageContent{Text: "hello"},
	}
}

// NewSigner creates a fresh secp256k1 key and its address
func NewSigner(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return key, ethcrypto.PubkeyToAddress(key.PublicKey)
}

// SignStoredFields reconstructs primaryType/fields and signs the EIP-712 digest with key,
// returning a 0x-prefixed 65 byte signature with v in {27, 28}
func SignStoredFields(t *testing.T, key *ecdsa.PrivateKey, primaryType string, fields map[string]interface{}) string {
	t.Helper()
	payload, err := snapshot.Reconstruct(primaryType, fields)
	if err != nil {
		t.Fatalf("Failed to reconstruct %s: %v", primaryType, err)
	}
	digest, err := snapshot.HashTypedData(payload)
	if err != nil {
		t.Fatalf("Failed to hash %s: %v", primaryType, err)
	}
	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatalf("Failed to sign %s: %v", primaryType, err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

// MessageHash returns a deterministic fake Safe message hash for index i
func MessageHash(i int) string {
	return fmt.Sprintf("0x%064x", i+1)
}
