package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/filter"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/publisher"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/sequencer"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/signature"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/snapshot"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

const divider = "------------------------------------------------------------"

// AddressResolver turns the operator supplied target into the Safe address
type AddressResolver interface {
	Resolve(ctx context.Context, input string) (common.Address, error)
}

// MessageFetcher lists the Snapshot messages stored for a Safe
type MessageFetcher interface {
	FetchEligible(ctx context.Context, url string) ([]*types.RawStoredMessage, error)
}

// Validator checks a submission against the sequencer schemas
type Validator interface {
	Validate(category string, payload *types.SubmissionPayload) error
}

// Verifier checks the Safe signature over a payload
type Verifier interface {
	Verify(ctx context.Context, address string, sig string, data *types.CanonicalTypedPayload) (bool, error)
}

// Submitter sends a submission to the sequencer
type Submitter interface {
	Submit(ctx context.Context, payload *types.SubmissionPayload) (json.RawMessage, error)
}

// Config holds the orchestration settings
type Config struct {
	// DelayWindow is how long after its declared timestamp a message may still be submitted
	DelayWindow time.Duration
	// DryRun stops every message after signature verification
	DryRun bool
	// MessagesURL builds the Safe gateway listing URL for an address
	MessagesURL func(safe common.Address) string
}

// Dependencies are the pipeline stages. Journal and Publisher are optional.
type Dependencies struct {
	Resolver  AddressResolver
	Fetcher   MessageFetcher
	Validator Validator
	Verifier  Verifier
	Submitter Submitter
	Journal   persistence.IRunJournal
	Publisher publisher.IOutcomePublisher
	Logger    *zap.Logger
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Syncer runs the Safe to Snapshot synchronization pipeline
type Syncer struct {
	config *Config
	deps   *Dependencies
	logger *zap.Logger
	now    func() time.Time
}

// NewSyncer creates a new Syncer
func NewSyncer(cfg *Config, deps *Dependencies) (*Syncer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.DelayWindow <= 0 {
		return nil, fmt.Errorf("delay window must be positive")
	}
	if cfg.MessagesURL == nil {
		return nil, fmt.Errorf("messages URL builder is required")
	}
	if deps == nil {
		return nil, fmt.Errorf("dependencies cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Resolver == nil || deps.Fetcher == nil || deps.Validator == nil || deps.Verifier == nil {
		return nil, fmt.Errorf("resolver, fetcher, validator and verifier are required")
	}
	if deps.Submitter == nil && !cfg.DryRun {
		return nil, fmt.Errorf("submitter is required unless running dry")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		config: cfg,
		deps:   deps,
		logger: deps.Logger,
		now:    now,
	}, nil
}

// Sync runs the pipeline for target and returns one outcome per filtered message, in order
func (s *Syncer) Sync(ctx context.Context, target string) ([]*types.SyncOutcome, error) {
	report, err := s.Run(ctx, target)
	if err != nil {
		return nil, err
	}
	return report.Outcomes, nil
}

// Run is Sync with the full run report. Only address resolution and fetching are fatal; every
// per-message failure is recorded in its outcome.
func (s *Syncer) Run(ctx context.Context, target string) (*types.SyncReport, error) {
	sugar := s.logger.Sugar()
	report := &types.SyncReport{
		RunID:     uuid.NewString(),
		Target:    target,
		StartedAt: s.now().UnixMilli(),
		DryRun:    s.config.DryRun,
	}

	safeAddress, err := s.deps.Resolver.Resolve(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", target, err)
	}
	report.SafeAddress = safeAddress.Hex()
	sugar.Infow("Starting sync",
		"run_id", report.RunID,
		"target", target,
		"safe", report.SafeAddress,
		"dry_run", s.config.DryRun,
	)

	found, err := s.deps.Fetcher.FetchEligible(ctx, s.config.MessagesURL(safeAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for %s: %w", report.SafeAddress, err)
	}

	eligible, counts := filter.Apply(found, s.config.DelayWindow, s.now())
	report.Counts = types.SyncCounts{
		Found:       counts.Found,
		FullySigned: counts.FullySigned,
		NonExpired:  counts.NonExpired,
	}
	sugar.Infof("Found %d snapshot messages", counts.Found)
	sugar.Infof("%d fully signed messages", counts.FullySigned)
	sugar.Infof("%d non expired messages", counts.NonExpired)
	sugar.Info(divider)

	report.Outcomes = make([]*types.SyncOutcome, 0, len(eligible))
	for _, msg := range eligible {
		outcome := s.process(ctx, safeAddress, msg)
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Failed {
			report.Counts.Failed++
			sugar.Errorw("Message failed",
				"message_hash", msg.MessageHash,
				"error", outcome.ErrorString(),
			)
		} else if outcome.Result != nil {
			report.Counts.Submitted++
			sugar.Infow("Message submitted",
				"message_hash", msg.MessageHash,
				"result", string(outcome.Result),
			)
		}
		sugar.Info(divider)
	}

	report.FinishedAt = s.now().UnixMilli()
	sugar.Infow("Sync finished",
		"run_id", report.RunID,
		"submitted", report.Counts.Submitted,
		"failed", report.Counts.Failed,
	)

	s.record(ctx, report)
	return report, nil
}

// process carries one message through reconstruction, validation, verification and submission
func (s *Syncer) process(ctx context.Context, safeAddress common.Address, msg *types.RawStoredMessage) *types.SyncOutcome {
	outcome := &types.SyncOutcome{Message: msg}
	fail := func(err error) *types.SyncOutcome {
		outcome.Failed = true
		outcome.Error = err
		return outcome
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	payload, err := snapshot.ReconstructDocument(msg.Message.Typed)
	if err != nil {
		return fail(fmt.Errorf("failed to reconstruct message: %w", err))
	}
	if m, ok := payload.Message.(snapshot.Message); ok {
		s.logger.Sugar().Infow("Handling "+m.Summary(), "message_hash", msg.MessageHash)
	}

	submission := sequencer.Assemble(safeAddress.Hex(), msg.Signature(), payload)

	if err := s.deps.Validator.Validate(payload.PrimaryType, submission); err != nil {
		return fail(err)
	}

	valid, err := s.deps.Verifier.Verify(ctx, submission.Address, submission.Sig, payload)
	if err != nil {
		return fail(fmt.Errorf("failed to verify signature: %w", err))
	}
	if !valid {
		return fail(fmt.Errorf("%w: not signed by %s", signature.ErrInvalidSignature, strings.ToLower(safeAddress.Hex())))
	}

	if s.config.DryRun {
		s.logger.Sugar().Infow("Dry run, not submitting", "message_hash", msg.MessageHash)
		return outcome
	}

	result, err := s.deps.Submitter.Submit(ctx, submission)
	if err != nil {
		return fail(err)
	}
	outcome.Result = result
	return outcome
}

// record journals and publishes the run. Failures here never fail the run.
func (s *Syncer) record(ctx context.Context, report *types.SyncReport) {
	if s.deps.Journal != nil {
		if err := s.deps.Journal.SaveRun(persistence.NewRunRecord(report)); err != nil {
			s.logger.Sugar().Warnw("Failed to journal run", "run_id", report.RunID, "error", err)
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.Publish(ctx, report); err != nil {
			s.logger.Sugar().Warnw("Failed to publish outcomes", "run_id", report.RunID, "error", err)
		}
	}
}
