package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "snapshot-safe-sync",
		Usage:     "Relay Safe-signed Snapshot messages to the Snapshot sequencer",
		ArgsUsage: "<address | eth:address | name.eth>",
		Description: `Reads the off-chain messages of a Safe multisig from the Safe client gateway, keeps the
confirmed Snapshot messages that are recent enough to be accepted, checks them and submits
them to the Snapshot sequencer.

The target can be a plain address, an EIP-3770 prefixed address or an ENS name. ENS names
and contract (EIP-1271) signatures are checked over --rpc-url, which defaults to a public
endpoint of the selected chain.`,
		Version: "1.0.0",
		Flags:   syncFlags(),
		Action:  runSync,
		Commands: []*cli.Command{
			{
				Name:   "history",
				Usage:  "List the runs recorded in the journal, newest first",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "Maximum number of runs to list (0 = all)"}},
				Action: runHistory,
			},
		},
	}
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:    "chain-id",
			Aliases: []string{"chain"},
			Value:   uint(config.ChainId_EthereumMainnet),
			Usage:   fmt.Sprintf("Chain ID of the Safe: %s", config.GetSupportedChainIDsString()),
			EnvVars: []string{config.EnvChainID},
		},
		&cli.StringFlag{
			Name:    "safe-url",
			Usage:   "Safe client gateway base URL",
			Value:   config.DefaultSafeURL,
			EnvVars: []string{config.EnvSafeURL},
		},
		&cli.StringFlag{
			Name:    "sequencer-url",
			Usage:   "Snapshot sequencer intake URL",
			Value:   config.DefaultSequencerURL,
			EnvVars: []string{config.EnvSequencerURL},
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Aliases: []string{"rpc"},
			Usage:   "Ethereum RPC endpoint URL, used for ENS names and contract signatures (default: a public endpoint of the chain)",
			EnvVars: []string{config.EnvRPCURL, config.EnvLegacyRPCURL},
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout of every HTTP request",
			Value:   config.DefaultHTTPTimeout,
			EnvVars: []string{config.EnvHTTPTimeout},
		},
		&cli.Float64Flag{
			Name:    "submit-rate",
			Usage:   "Maximum sequencer submissions per second (0 disables pacing)",
			Value:   config.DefaultSubmitRate,
			EnvVars: []string{config.EnvSubmitRate},
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "Check messages without submitting them",
			EnvVars: []string{config.EnvDryRun},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable verbose logging",
			EnvVars: []string{config.EnvVerbose},
		},
		&cli.StringFlag{
			Name:    "journal-type",
			Usage:   "Run journal backend: none, memory, badger, redis",
			Value:   string(config.JournalTypeNone),
			EnvVars: []string{config.EnvJournalType},
		},
		&cli.StringFlag{
			Name:    "journal-path",
			Usage:   "Badger journal directory",
			EnvVars: []string{config.EnvJournalPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis journal address (host:port)",
			EnvVars: []string{config.EnvRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis journal password",
			EnvVars: []string{config.EnvRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis journal database number",
			EnvVars: []string{config.EnvRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix of every redis journal key",
			EnvVars: []string{config.EnvRedisKeyPrefix},
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers receiving one event per outcome",
			EnvVars: []string{config.EnvKafkaBrokers},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Usage:   "Kafka topic of outcome events",
			EnvVars: []string{config.EnvKafkaTopic},
		},
	}
}

// parseSyncConfig builds the configuration from flags and environment
func parseSyncConfig(c *cli.Context) *config.SyncConfig {
	cfg := config.NewDefaultSyncConfig()
	cfg.ChainID = config.ChainId(c.Uint("chain-id"))
	cfg.SafeURL = c.String("safe-url")
	cfg.SequencerURL = c.String("sequencer-url")
	cfg.RpcUrl = c.String("rpc-url")
	cfg.HTTPTimeout = c.Duration("http-timeout")
	cfg.SubmitRate = c.Float64("submit-rate")
	cfg.DryRun = c.Bool("dry-run")
	cfg.Verbose = c.Bool("verbose")
	cfg.Journal = config.JournalConfig{
		Type:           config.JournalType(c.String("journal-type")),
		Path:           c.String("journal-path"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}
	cfg.Kafka = config.KafkaConfig{
		Brokers: c.StringSlice("kafka-brokers"),
		Topic:   c.String("kafka-topic"),
	}
	return cfg
}
