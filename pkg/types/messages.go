package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Safe client gateway item types
const (
	ItemTypeMessage   = "MESSAGE"
	ItemTypeDateLabel = "DATE_LABEL"
)

// MessageStatus is the confirmation state of a Safe off-chain message
type MessageStatus string

const (
	MessageStatusNeedsConfirmation MessageStatus = "NEEDS_CONFIRMATION"
	MessageStatusConfirmed         MessageStatus = "CONFIRMED"
)

// MessagePage is one page of the Safe message listing
type MessagePage struct {
	Next     *string             `json:"next"`
	Previous *string             `json:"previous,omitempty"`
	Results  []*RawStoredMessage `json:"results"`
}

// RawStoredMessage is a listing item as returned by the Safe client gateway.
// Date labels only carry Type and Timestamp.
type RawStoredMessage struct {
	Type                   string               `json:"type"`
	Timestamp              int64                `json:"timestamp,omitempty"`
	MessageHash            string               `json:"messageHash,omitempty"`
	Status                 MessageStatus        `json:"status,omitempty"`
	Name                   string               `json:"name,omitempty"`
	CreationTimestamp      int64                `json:"creationTimestamp,omitempty"`
	ModifiedTimestamp      int64                `json:"modifiedTimestamp,omitempty"`
	ConfirmationsSubmitted int                  `json:"confirmationsSubmitted,omitempty"`
	ConfirmationsRequired  int                  `json:"confirmationsRequired,omitempty"`
	PreparedSignature      *string              `json:"preparedSignature,omitempty"`
	Message                StoredMessageContent `json:"message"`
}

// Signature returns the prepared signature, or "" if quorum has not been reached
func (m *RawStoredMessage) Signature() string {
	if m == nil || m.PreparedSignature == nil {
		return ""
	}
	return *m.PreparedSignature
}

// ListingTimestamp is the millisecond timestamp used to decide whether to page further
func (m *RawStoredMessage) ListingTimestamp() int64 {
	if m.Timestamp != 0 {
		return m.Timestamp
	}
	return m.CreationTimestamp
}

// IsSnapshotMessage reports whether the item is a typed message in the Snapshot domain
func (m *RawStoredMessage) IsSnapshotMessage() bool {
	return m != nil &&
		m.Type == ItemTypeMessage &&
		m.Message.Typed != nil &&
		m.Message.Typed.Domain.Name == SnapshotDomainName
}

// StoredMessageContent is either a plain text message or an EIP-712 document
type StoredMessageContent struct {
	Text  string
	Typed *StoredTypedDocument
}

func (c *StoredMessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &c.Text)
	}
	var doc StoredTypedDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return fmt.Errorf("failed to decode typed message: %w", err)
	}
	c.Typed = &doc
	return nil
}

func (c StoredMessageContent) MarshalJSON() ([]byte, error) {
	if c.Typed != nil {
		return json.Marshal(c.Typed)
	}
	return json.Marshal(c.Text)
}

// StoredTypedDocument is the EIP-712 envelope as it was signed by the Safe owners
type StoredTypedDocument struct {
	Types       TypeSchema             `json:"types"`
	Domain      Domain                 `json:"domain"`
	PrimaryType string                 `json:"primaryType"`
	Message     map[string]interface{} `json:"message"`
}

// DeclaredTimestamp parses the message's own timestamp field, in seconds
func (d *StoredTypedDocument) DeclaredTimestamp() (int64, bool) {
	if d == nil {
		return 0, false
	}
	switch v := d.Message["timestamp"].(type) {
	case string:
		ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return ts, true
	case float64:
		return int64(v), true
	case json.Number:
		ts, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return ts, true
	default:
		return 0, false
	}
}
