package sequencer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/transport"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// JSONPoster is the part of the transport client used to reach the sequencer
type JSONPoster interface {
	PostJSON(ctx context.Context, url string, body interface{}) (*transport.Response, error)
}

// SubmissionError is returned when the sequencer rejects a submission
type SubmissionError struct {
	StatusCode int
	// Body is the decoded JSON error when the sequencer returned one, otherwise the raw text
	Body interface{}
}

func (e *SubmissionError) Error() string {
	detail := ""
	switch body := e.Body.(type) {
	case string:
		detail = body
	default:
		if encoded, err := json.Marshal(body); err == nil {
			detail = string(encoded)
		}
	}
	return fmt.Sprintf("sequencer rejected submission with status %d: %s", e.StatusCode, detail)
}

// SubmitterConfig configures the sequencer submitter
type SubmitterConfig struct {
	URL string
	// Rate is the number of submissions per second; zero or less disables pacing
	Rate  float64
	Burst int
}

// Submitter posts assembled payloads to the Snapshot sequencer, one at a time and paced
type Submitter struct {
	config  *SubmitterConfig
	client  JSONPoster
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSubmitter creates a submitter
func NewSubmitter(cfg *SubmitterConfig, client JSONPoster, logger *zap.Logger) (*Submitter, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("sequencer url is required")
	}
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Submitter{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// Submit posts payload and returns the sequencer's JSON receipt
func (s *Submitter) Submit(ctx context.Context, payload *types.SubmissionPayload) (json.RawMessage, error) {
	if payload == nil {
		return nil, fmt.Errorf("payload cannot be nil")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("submission cancelled: %w", err)
	}

	resp, err := s.client.PostJSON(ctx, s.config.URL, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to submit to sequencer: %w", err)
	}

	if !resp.OK() {
		s.logger.Sugar().Debugw("Sequencer rejected submission",
			"status_code", resp.StatusCode,
			"body", string(resp.Body),
		)
		return nil, &SubmissionError{
			StatusCode: resp.StatusCode,
			Body:       decodeErrorBody(resp.Body),
		}
	}

	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("sequencer returned invalid JSON: %q", string(resp.Body))
	}
	return json.RawMessage(bytes.TrimSpace(resp.Body)), nil
}

func decodeErrorBody(body []byte) interface{} {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded
	}
	return string(body)
}
