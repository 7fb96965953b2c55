package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// IOutcomePublisher forwards the outcomes of a run to downstream consumers
type IOutcomePublisher interface {
	Publish(ctx context.Context, report *types.SyncReport) error
	Close() error
}

// OutcomeEvent is the value of one published message
type OutcomeEvent struct {
	RunID       string `json:"runId"`
	SafeAddress string `json:"safeAddress"`
	DryRun      bool   `json:"dryRun"`
	*persistence.OutcomeRecord
	Result      json.RawMessage `json:"result,omitempty"`
	PublishedAt int64           `json:"publishedAt"`
}

// MessageWriter is the subset of *kafka.Writer used by the publisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka outcome publisher
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher writes one Kafka message per outcome, keyed by Safe message hash so every
// outcome of a message lands on the same partition
type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewKafkaWriter builds a synchronous writer that waits for all in-sync replicas
func NewKafkaWriter(cfg *KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic
func NewKafkaPublisher(cfg *KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	logger.Sugar().Infow("Kafka publisher initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewPublisherWithWriter(NewKafkaWriter(cfg), logger), nil
}

// NewPublisherWithWriter creates a publisher on top of an existing writer
func NewPublisherWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger,
		now:    time.Now,
	}
}

// Publish writes every outcome of report in a single batch
func (p *KafkaPublisher) Publish(ctx context.Context, report *types.SyncReport) error {
	if report == nil || len(report.Outcomes) == 0 {
		return nil
	}

	publishedAt := p.now().UnixMilli()
	msgs := make([]kafka.Message, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		event := &OutcomeEvent{
			RunID:         report.RunID,
			SafeAddress:   report.SafeAddress,
			DryRun:        report.DryRun,
			OutcomeRecord: persistence.NewOutcomeRecord(outcome),
			Result:        outcome.Result,
			PublishedAt:   publishedAt,
		}
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode outcome event for %s: %w", event.MessageHash, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.MessageHash),
			Value: value,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d outcomes: %w", len(msgs), err)
	}

	p.logger.Sugar().Debugw("Published outcomes", "run_id", report.RunID, "count", len(msgs))
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
