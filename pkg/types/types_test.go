package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewayPage = `{
  "next": "https://safe-client.safe.global/v1/chains/1/safes/0x1234/messages?cursor=limit%3D20%26offset%3D20",
  "previous": null,
  "results": [
    {"type": "DATE_LABEL", "timestamp": 1700006400000},
    {
      "type": "MESSAGE",
      "messageHash": "0xaa",
      "status": "CONFIRMED",
      "creationTimestamp": 1700000000000,
      "modifiedTimestamp": 1700000100000,
      "confirmationsSubmitted": 2,
      "confirmationsRequired": 2,
      "preparedSignature": "0xdeadbeef",
      "message": {
        "types": {"Vote": [{"name": "from", "type": "address"}]},
        "domain": {"name": "snapshot", "version": "0.1.4"},
        "primaryType": "Vote",
        "message": {"from": "0x1234", "timestamp": "1700000000", "choice": 1}
      }
    },
    {
      "type": "MESSAGE",
      "messageHash": "0xbb",
      "status": "NEEDS_CONFIRMATION",
      "creationTimestamp": 1699990000000,
      "preparedSignature": null,
      "message": "hello world"
    }
  ]
}`

func TestMessagePage_DecodesGatewayListing(t *testing.T) {
	var page MessagePage
	require.NoError(t, json.Unmarshal([]byte(gatewayPage), &page))

	require.NotNil(t, page.Next)
	assert.Nil(t, page.Previous)
	require.Len(t, page.Results, 3)

	label := page.Results[0]
	assert.Equal(t, ItemTypeDateLabel, label.Type)
	assert.Equal(t, int64(1700006400000), label.ListingTimestamp())
	assert.False(t, label.IsSnapshotMessage())

	typed := page.Results[1]
	assert.True(t, typed.IsSnapshotMessage())
	assert.Equal(t, MessageStatusConfirmed, typed.Status)
	assert.Equal(t, "0xdeadbeef", typed.Signature())
	assert.Equal(t, int64(1700000000000), typed.ListingTimestamp())
	require.NotNil(t, typed.Message.Typed)
	assert.Equal(t, "Vote", typed.Message.Typed.PrimaryType)
	assert.Equal(t, SnapshotDomain(), typed.Message.Typed.Domain)
	assert.Equal(t, []TypedField{{Name: "from", Type: "address"}}, typed.Message.Typed.Types["Vote"])

	text := page.Results[2]
	assert.False(t, text.IsSnapshotMessage())
	assert.Equal(t, "", text.Signature())
	assert.Equal(t, "hello world", text.Message.Text)
	assert.Nil(t, text.Message.Typed)
}

func TestStoredMessageContent_MarshalKeepsShape(t *testing.T) {
	raw, err := json.Marshal(StoredMessageContent{Text: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `"hi"`, string(raw))

	raw, err = json.Marshal(StoredMessageContent{Typed: &StoredTypedDocument{
		Domain:      SnapshotDomain(),
		PrimaryType: "Space",
		Message:     map[string]interface{}{"space": "morpho.eth"},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"types":null,"domain":{"name":"snapshot","version":"0.1.4"},"primaryType":"Space","message":{"space":"morpho.eth"}}`, string(raw))
}

func TestStoredMessageContent_RejectsMalformedDocument(t *testing.T) {
	var content StoredMessageContent
	err := json.Unmarshal([]byte(`{"primaryType": 3}`), &content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode typed message")

	require.NoError(t, json.Unmarshal([]byte(`null`), &content))
	assert.Nil(t, content.Typed)
}

func TestIsSnapshotMessage_ForeignDomain(t *testing.T) {
	msg := &RawStoredMessage{
		Type:    ItemTypeMessage,
		Message: StoredMessageContent{Typed: &StoredTypedDocument{Domain: Domain{Name: "Permit2"}}},
	}
	assert.False(t, msg.IsSnapshotMessage())

	var nilMsg *RawStoredMessage
	assert.False(t, nilMsg.IsSnapshotMessage())
	assert.Equal(t, "", nilMsg.Signature())
}

func TestDeclaredTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected int64
		ok       bool
	}{
		{name: "decimal string", value: "1700000000", expected: 1700000000, ok: true},
		{name: "padded string", value: " 1700000000 ", expected: 1700000000, ok: true},
		{name: "json number", value: float64(1700000000), expected: 1700000000, ok: true},
		{name: "json.Number", value: json.Number("1700000000"), expected: 1700000000, ok: true},
		{name: "not a number", value: "yesterday", ok: false},
		{name: "missing", value: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &StoredTypedDocument{Message: map[string]interface{}{}}
			if tt.value != nil {
				doc.Message["timestamp"] = tt.value
			}
			ts, ok := doc.DeclaredTimestamp()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, ts)
		})
	}

	var nilDoc *StoredTypedDocument
	_, ok := nilDoc.DeclaredTimestamp()
	assert.False(t, ok)
}

func TestSyncOutcome_MarshalIncludesError(t *testing.T) {
	outcome := &SyncOutcome{
		Message: &RawStoredMessage{Type: ItemTypeMessage, MessageHash: "0xaa"},
		Failed:  true,
		Error:   errors.New("invalid signature"),
	}
	raw, err := json.Marshal(outcome)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, true, decoded["failed"])
	assert.Equal(t, "invalid signature", decoded["error"])
	assert.NotContains(t, decoded, "result")

	ok := &SyncOutcome{Result: json.RawMessage(`{"id":"0x01"}`)}
	raw, err = json.Marshal(ok)
	require.NoError(t, err)
	var accepted map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &accepted))
	assert.NotContains(t, accepted, "error")
	assert.Equal(t, map[string]interface{}{"id": "0x01"}, accepted["result"])
}

func TestCanonicalTypedPayload_MessageMap(t *testing.T) {
	payload := &CanonicalTypedPayload{
		PrimaryType: "Space",
		Domain:      SnapshotDomain(),
		Message: struct {
			Space     string `json:"space"`
			Timestamp uint64 `json:"timestamp"`
		}{Space: "morpho.eth", Timestamp: 1700000000},
	}
	m, err := payload.MessageMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"space": "morpho.eth", "timestamp": float64(1700000000)}, m)

	_, err = (&CanonicalTypedPayload{}).MessageMap()
	require.Error(t, err)
}
