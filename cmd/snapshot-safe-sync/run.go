package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/clients/ethereum"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/config"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/logger"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/publisher"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/resolver"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/safe"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/sequencer"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/signature"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/syncer"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/transport"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/validation"
)

const userAgent = "snapshot-safe-sync/1.0.0"

func runSync(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing target: expected a Safe address, eth:address or ENS name")
	}
	target := c.Args().First()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseSyncConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeAll, err := buildSyncer(cfg, l)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := s.Run(ctx, target)
	if err != nil {
		return err
	}
	return printReport(c.App.Writer, report)
}

// buildSyncer wires every pipeline component from cfg. The returned function releases the RPC
// connection, the journal and the publisher.
func buildSyncer(cfg *config.SyncConfig, l *zap.Logger) (*syncer.Syncer, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*syncer.Syncer, func(), error) {
		closeAll()
		return nil, func() {}, err
	}

	client := transport.NewClient(&transport.ClientConfig{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: userAgent,
	}, l)

	var caller ethereum.ContractCaller
	if cfg.RpcUrl != "" {
		ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{BaseUrl: cfg.RpcUrl}, l)
		closers = append(closers, ethClient.Close)
		caller = ethClient
		l.Sugar().Debugw("Using ethereum RPC", "url", cfg.RpcUrl)
	} else {
		l.Sugar().Infow("No RPC url configured, ENS names and contract signatures are unavailable")
	}

	fetcher, err := safe.NewFetcher(&safe.FetcherConfig{DelayWindow: cfg.DelayWindow}, client, l)
	if err != nil {
		return fail(fmt.Errorf("failed to create fetcher: %w", err))
	}

	validator, err := validation.NewValidator()
	if err != nil {
		return fail(fmt.Errorf("failed to create validator: %w", err))
	}

	addressResolver, err := resolver.NewResolver(cfg.Chain, caller, l)
	if err != nil {
		return fail(fmt.Errorf("failed to create resolver: %w", err))
	}

	verifier, err := signature.NewVerifier(caller, l)
	if err != nil {
		return fail(fmt.Errorf("failed to create verifier: %w", err))
	}

	deps := &syncer.Dependencies{
		Resolver:  addressResolver,
		Fetcher:   fetcher,
		Validator: validator,
		Verifier:  verifier,
		Logger:    l,
	}

	if !cfg.DryRun {
		submitter, err := sequencer.NewSubmitter(&sequencer.SubmitterConfig{
			URL:   cfg.SequencerURL,
			Rate:  cfg.SubmitRate,
			Burst: 1,
		}, client, l)
		if err != nil {
			return fail(fmt.Errorf("failed to create submitter: %w", err))
		}
		deps.Submitter = submitter
	}

	if cfg.Journal.Enabled() {
		journal, err := openJournal(&cfg.Journal, l)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() {
			if err := journal.Close(); err != nil {
				l.Sugar().Warnw("Failed to close journal", "error", err)
			}
		})
		deps.Journal = journal
	}

	if cfg.Kafka.Enabled() {
		pub, err := publisher.NewKafkaPublisher(&publisher.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, l)
		if err != nil {
			return fail(fmt.Errorf("failed to create publisher: %w", err))
		}
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				l.Sugar().Warnw("Failed to close publisher", "error", err)
			}
		})
		deps.Publisher = pub
	}

	s, err := syncer.NewSyncer(&syncer.Config{
		DelayWindow: cfg.DelayWindow,
		DryRun:      cfg.DryRun,
		MessagesURL: cfg.MessagesURL,
	}, deps)
	if err != nil {
		return fail(fmt.Errorf("failed to create syncer: %w", err))
	}
	return s, closeAll, nil
}

func printReport(w io.Writer, report *types.SyncReport) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
