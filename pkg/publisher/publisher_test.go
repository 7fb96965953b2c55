package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

type fakeWriter struct {
	written [][]kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testReport() *types.SyncReport {
	return &types.SyncReport{
		RunID:       "run-1",
		SafeAddress: "0x9D03bb2092270648d7480049d0E58d2FcF0E5123",
		Outcomes: []*types.SyncOutcome{
			{
				Message: &types.RawStoredMessage{
					MessageHash: "0xaaa",
					Message: types.StoredMessageContent{
						Typed: &types.StoredTypedDocument{PrimaryType: "Vote"},
					},
				},
				Result: json.RawMessage(`{"id":"0xreceipt"}`),
			},
			{
				Message: &types.RawStoredMessage{MessageHash: "0xbbb"},
				Failed:  true,
				Error:   errors.New("invalid signature"),
			},
		},
	}
}

func TestPublish_OneMessagePerOutcome(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, zap.NewNop())
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }

	require.NoError(t, p.Publish(context.Background(), testReport()))
	require.Len(t, w.written, 1)
	msgs := w.written[0]
	require.Len(t, msgs, 2)

	assert.Equal(t, []byte("0xaaa"), msgs[0].Key)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &first))
	assert.Equal(t, "run-1", first["runId"])
	assert.Equal(t, "0xaaa", first["messageHash"])
	assert.Equal(t, "Vote", first["primaryType"])
	assert.Equal(t, "0xreceipt", first["receiptId"])
	assert.Equal(t, map[string]interface{}{"id": "0xreceipt"}, first["result"])
	assert.Equal(t, float64(1700000000123), first["publishedAt"])
	assert.Equal(t, false, first["failed"])

	assert.Equal(t, []byte("0xbbb"), msgs[1].Key)
	var second map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[1].Value, &second))
	assert.Equal(t, true, second["failed"])
	assert.Equal(t, "invalid signature", second["error"])
	assert.NotContains(t, second, "result")
}

func TestPublish_NothingToPublish(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), nil))
	require.NoError(t, p.Publish(context.Background(), &types.SyncReport{RunID: "run-1"}))
	assert.Empty(t, w.written)
}

func TestPublish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := NewPublisherWithWriter(w, zap.NewNop())

	err := p.Publish(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish 2 outcomes")
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewPublisherWithWriter(w, zap.NewNop()).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewKafkaPublisher(&KafkaConfig{Brokers: []string{"localhost:9092"}}, zap.NewNop())
	assert.Error(t, err)

	p, err := NewKafkaPublisher(&KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "snapshot-outcomes"}, zap.NewNop())
	require.NoError(t, err)
	writer, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "snapshot-outcomes", writer.Topic)
	assert.Equal(t, kafka.RequireAll, writer.RequiredAcks)
	require.NoError(t, p.Close())
}
