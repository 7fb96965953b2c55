package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the sync configuration
const (
	EnvChainID        = "SNAPSHOT_SAFE_CHAIN_ID"
	EnvSafeURL        = "SNAPSHOT_SAFE_SAFE_URL"
	EnvSequencerURL   = "SNAPSHOT_SAFE_SEQUENCER_URL"
	EnvRPCURL         = "SNAPSHOT_SAFE_RPC_URL"
	EnvLegacyRPCURL   = "RPC_URL"
	EnvHTTPTimeout    = "SNAPSHOT_SAFE_HTTP_TIMEOUT"
	EnvSubmitRate     = "SNAPSHOT_SAFE_SUBMIT_RATE"
	EnvDryRun         = "SNAPSHOT_SAFE_DRY_RUN"
	EnvVerbose        = "SNAPSHOT_SAFE_VERBOSE"
	EnvJournalType    = "SNAPSHOT_SAFE_JOURNAL_TYPE"
	EnvJournalPath    = "SNAPSHOT_SAFE_JOURNAL_PATH"
	EnvRedisAddress   = "SNAPSHOT_SAFE_REDIS_ADDRESS"
	EnvRedisPassword  = "SNAPSHOT_SAFE_REDIS_PASSWORD"
	EnvRedisDB        = "SNAPSHOT_SAFE_REDIS_DB"
	EnvRedisKeyPrefix = "SNAPSHOT_SAFE_REDIS_KEY_PREFIX"
	EnvKafkaBrokers   = "SNAPSHOT_SAFE_KAFKA_BROKERS"
	EnvKafkaTopic     = "SNAPSHOT_SAFE_KAFKA_TOPIC"
)

// Defaults
const (
	DefaultSafeURL      = "https://safe-client.safe.global"
	DefaultSequencerURL = "https://seq.snapshot.org"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultSubmitRate   = 1.0

	// SnapshotDelayValidation is how long after its declared timestamp a Snapshot message
	// is still accepted by the sequencer.
	SnapshotDelayValidation = 3 * 24 * time.Hour
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_Optimism        ChainId = 10
	ChainId_Gnosis          ChainId = 100
	ChainId_Polygon         ChainId = 137
	ChainId_Base            ChainId = 8453
	ChainId_Arbitrum        ChainId = 42161
	ChainId_EthereumSepolia ChainId = 11155111
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_Optimism        ChainName = "optimism"
	ChainName_Gnosis          ChainName = "gnosis"
	ChainName_Polygon         ChainName = "polygon"
	ChainName_Base            ChainName = "base"
	ChainName_Arbitrum        ChainName = "arbitrum"
	ChainName_EthereumSepolia ChainName = "sepolia"
)

// ChainInfo describes how a chain is addressed by the Safe gateway and in EIP-3770 short names
type ChainInfo struct {
	Name        ChainName
	ShortName   string // EIP-3770 prefix, e.g. "eth" in "eth:0x..."
	ENSRegistry string // empty when ENS is not deployed on the chain
	PublicRPC   string // used when no RPC url is configured
}

// ENSRegistryAddress is the ENS registry, deployed at the same address on mainnet and sepolia
const ENSRegistryAddress = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

var Chains = map[ChainId]*ChainInfo{
	ChainId_EthereumMainnet: {
		Name:        ChainName_EthereumMainnet,
		ShortName:   "eth",
		ENSRegistry: ENSRegistryAddress,
		PublicRPC:   "https://ethereum-rpc.publicnode.com",
	},
	ChainId_Optimism: {Name: ChainName_Optimism, ShortName: "oeth", PublicRPC: "https://optimism-rpc.publicnode.com"},
	ChainId_Gnosis:   {Name: ChainName_Gnosis, ShortName: "gno", PublicRPC: "https://gnosis-rpc.publicnode.com"},
	ChainId_Polygon:  {Name: ChainName_Polygon, ShortName: "matic", PublicRPC: "https://polygon-bor-rpc.publicnode.com"},
	ChainId_Base:     {Name: ChainName_Base, ShortName: "base", PublicRPC: "https://base-rpc.publicnode.com"},
	ChainId_Arbitrum: {Name: ChainName_Arbitrum, ShortName: "arb1", PublicRPC: "https://arbitrum-one-rpc.publicnode.com"},
	ChainId_EthereumSepolia: {
		Name:        ChainName_EthereumSepolia,
		ShortName:   "sep",
		ENSRegistry: ENSRegistryAddress,
		PublicRPC:   "https://ethereum-sepolia-rpc.publicnode.com",
	},
}

// GetChainInfo returns the chain description for a chain ID
func GetChainInfo(chainId ChainId) (*ChainInfo, error) {
	info, ok := Chains[chainId]
	if !ok {
		return nil, fmt.Errorf("unsupported chain ID: %d", chainId)
	}
	return info, nil
}

// GetSupportedChainIDs returns all supported chain IDs in ascending order
func GetSupportedChainIDs() []ChainId {
	ids := make([]ChainId, 0, len(Chains))
	for id := range Chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	parts := make([]string, 0, len(Chains))
	for _, id := range GetSupportedChainIDs() {
		parts = append(parts, fmt.Sprintf("%d (%s)", id, Chains[id].Name))
	}
	return strings.Join(parts, ", ")
}

type JournalType string

const (
	JournalTypeNone   JournalType = "none"
	JournalTypeMemory JournalType = "memory"
	JournalTypeBadger JournalType = "badger"
	JournalTypeRedis  JournalType = "redis"
)

// JournalConfig selects where run summaries are recorded
type JournalConfig struct {
	Type           JournalType `json:"type" yaml:"type"`
	Path           string      `json:"path" yaml:"path"`
	RedisAddress   string      `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string      `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int         `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string      `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

// Enabled reports whether a journal backend was requested
func (jc *JournalConfig) Enabled() bool {
	return jc != nil && jc.Type != "" && jc.Type != JournalTypeNone
}

func (jc *JournalConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch jc.Type {
	case "", JournalTypeNone, JournalTypeMemory:
	case JournalTypeBadger:
		if jc.Path == "" {
			allErrors = append(allErrors, field.Required(path.Child("path"), "path is required for the badger journal"))
		}
	case JournalTypeRedis:
		if jc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for the redis journal"))
		}
		if jc.RedisDB < 0 || jc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDb"), jc.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), jc.Type,
			[]string{string(JournalTypeNone), string(JournalTypeMemory), string(JournalTypeBadger), string(JournalTypeRedis)}))
	}
	return allErrors
}

// KafkaConfig configures the optional outcome publisher
type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// Enabled reports whether any broker was configured
func (kc *KafkaConfig) Enabled() bool {
	return kc != nil && len(kc.Brokers) > 0
}

func (kc *KafkaConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	if kc.Enabled() && kc.Topic == "" {
		allErrors = append(allErrors, field.Required(path.Child("topic"), "topic is required when brokers are set"))
	}
	return allErrors
}

// SyncConfig represents the complete configuration of a synchronization run
type SyncConfig struct {
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	SafeURL      string `json:"safe_url"`      // Safe client gateway base URL
	SequencerURL string `json:"sequencer_url"` // Snapshot sequencer intake URL
	RpcUrl       string `json:"rpc_url"`       // Ethereum RPC, used for ENS and EIP-1271; defaults to the chain's PublicRPC

	HTTPTimeout time.Duration `json:"http_timeout"`
	SubmitRate  float64       `json:"submit_rate"` // submissions per second
	DelayWindow time.Duration `json:"delay_window"`

	DryRun  bool `json:"dry_run"`
	Verbose bool `json:"verbose"`

	Journal JournalConfig `json:"journal"`
	Kafka   KafkaConfig   `json:"kafka"`

	// Populated by Validate
	Chain *ChainInfo `json:"chain,omitempty"`
}

// NewDefaultSyncConfig returns a mainnet configuration with default endpoints
func NewDefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		ChainID:      ChainId_EthereumMainnet,
		SafeURL:      DefaultSafeURL,
		SequencerURL: DefaultSequencerURL,
		HTTPTimeout:  DefaultHTTPTimeout,
		SubmitRate:   DefaultSubmitRate,
		DelayWindow:  SnapshotDelayValidation,
	}
}

// Validate validates the sync configuration and resolves the chain description
func (c *SyncConfig) Validate() error {
	var allErrors field.ErrorList

	chain, err := GetChainInfo(c.ChainID)
	if err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("chainId"), c.ChainID,
			fmt.Sprintf("supported: %s", GetSupportedChainIDsString())))
	}

	if err := validateURL(c.SafeURL); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("safeUrl"), c.SafeURL, err.Error()))
	}
	if err := validateURL(c.SequencerURL); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("sequencerUrl"), c.SequencerURL, err.Error()))
	}
	if c.RpcUrl != "" {
		if err := validateURL(c.RpcUrl); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("rpcUrl"), c.RpcUrl, err.Error()))
		}
	}
	if c.HTTPTimeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("httpTimeout"), c.HTTPTimeout.String(), "must be positive"))
	}
	if c.SubmitRate < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("submitRate"), c.SubmitRate, "must not be negative (0 disables pacing)"))
	}
	if c.DelayWindow <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("delayWindow"), c.DelayWindow.String(), "must be positive"))
	}

	allErrors = append(allErrors, c.Journal.validate(field.NewPath("journal"))...)
	allErrors = append(allErrors, c.Kafka.validate(field.NewPath("kafka"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}

	c.Chain = chain
	c.ChainName = chain.Name
	if c.RpcUrl == "" {
		c.RpcUrl = chain.PublicRPC
	}
	return nil
}

// MessagesURL returns the Safe gateway listing URL for the given Safe
func (c *SyncConfig) MessagesURL(safeAddress common.Address) string {
	return fmt.Sprintf("%s/v1/chains/%d/safes/%s/messages",
		strings.TrimRight(c.SafeURL, "/"), c.ChainID, safeAddress.Hex())
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
