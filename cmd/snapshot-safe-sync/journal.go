package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/config"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/logger"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence/badger"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence/memory"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence/redis"
)

// openJournal opens the configured journal backend and checks it is usable
func openJournal(cfg *config.JournalConfig, l *zap.Logger) (persistence.IRunJournal, error) {
	var (
		journal persistence.IRunJournal
		err     error
	)
	switch cfg.Type {
	case config.JournalTypeMemory:
		journal = memory.NewMemoryJournal()
	case config.JournalTypeBadger:
		journal, err = badger.NewBadgerJournal(cfg.Path, l)
	case config.JournalTypeRedis:
		journal, err = redis.NewRedisJournal(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported journal type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s journal: %w", cfg.Type, err)
	}

	if err := journal.HealthCheck(); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("%s journal health check failed: %w", cfg.Type, err)
	}
	l.Sugar().Infow("Run journal enabled", "type", cfg.Type)
	return journal, nil
}

func runHistory(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseSyncConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.Journal.Enabled() {
		return fmt.Errorf("no journal configured, set --journal-type")
	}
	if cfg.Journal.Type == config.JournalTypeMemory {
		return fmt.Errorf("the memory journal does not outlive a run, use badger or redis")
	}

	journal, err := openJournal(&cfg.Journal, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			l.Sugar().Warnw("Failed to close journal", "error", err)
		}
	}()

	runs, err := journal.ListRuns(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return printRuns(c.App.Writer, runs)
}

func printRuns(w io.Writer, runs []*persistence.RunRecord) error {
	if w == nil {
		w = os.Stdout
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}
	for _, run := range runs {
		mode := ""
		if run.DryRun {
			mode = " (dry run)"
		}
		_, err := fmt.Fprintf(w, "%s %s %s%s: found=%d signed=%d recent=%d submitted=%d failed=%d\n",
			time.UnixMilli(run.StartedAt).UTC().Format(time.RFC3339),
			run.RunID,
			run.SafeAddress,
			mode,
			run.Counts.Found,
			run.Counts.FullySigned,
			run.Counts.NonExpired,
			run.Counts.Submitted,
			run.Counts.Failed,
		)
		if err != nil {
			return err
		}
		for _, outcome := range run.Outcomes {
			if !outcome.Failed {
				continue
			}
			if _, err := fmt.Fprintf(w, "    %s %s: %s\n", outcome.MessageHash, outcome.PrimaryType, outcome.Error); err != nil {
				return err
			}
		}
	}
	return nil
}
