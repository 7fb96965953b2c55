package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncConfig_ValidateDefaults(t *testing.T) {
	cfg := NewDefaultSyncConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ChainName_EthereumMainnet, cfg.ChainName)
	require.NotNil(t, cfg.Chain)
	assert.Equal(t, "eth", cfg.Chain.ShortName)
	assert.Equal(t, 72*time.Hour, cfg.DelayWindow)
}

func TestSyncConfig_RPCDefaultsToChainPublicEndpoint(t *testing.T) {
	cfg := NewDefaultSyncConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://ethereum-rpc.publicnode.com", cfg.RpcUrl)

	gnosis := NewDefaultSyncConfig()
	gnosis.ChainID = ChainId_Gnosis
	require.NoError(t, gnosis.Validate())
	assert.Equal(t, "https://gnosis-rpc.publicnode.com", gnosis.RpcUrl)

	custom := NewDefaultSyncConfig()
	custom.RpcUrl = "http://localhost:8545"
	require.NoError(t, custom.Validate())
	assert.Equal(t, "http://localhost:8545", custom.RpcUrl)
}

func TestChains_AllHavePublicRPC(t *testing.T) {
	for id, chain := range Chains {
		assert.NoError(t, validateURL(chain.PublicRPC), "chain %d", id)
	}
}

func TestSyncConfig_ZeroSubmitRateDisablesPacing(t *testing.T) {
	cfg := NewDefaultSyncConfig()
	cfg.SubmitRate = 0
	require.NoError(t, cfg.Validate())
}

func TestSyncConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *SyncConfig)
		expectedErr string
	}{
		{
			name:        "unsupported chain",
			mutate:      func(c *SyncConfig) { c.ChainID = 999 },
			expectedErr: "chainId",
		},
		{
			name:        "empty safe url",
			mutate:      func(c *SyncConfig) { c.SafeURL = "" },
			expectedErr: "safeUrl",
		},
		{
			name:        "bad sequencer scheme",
			mutate:      func(c *SyncConfig) { c.SequencerURL = "ftp://seq.snapshot.org" },
			expectedErr: "sequencerUrl",
		},
		{
			name:        "invalid rpc url",
			mutate:      func(c *SyncConfig) { c.RpcUrl = "not a url" },
			expectedErr: "rpcUrl",
		},
		{
			name:        "non positive timeout",
			mutate:      func(c *SyncConfig) { c.HTTPTimeout = 0 },
			expectedErr: "httpTimeout",
		},
		{
			name:        "negative rate",
			mutate:      func(c *SyncConfig) { c.SubmitRate = -1 },
			expectedErr: "submitRate",
		},
		{
			name:        "badger journal without path",
			mutate:      func(c *SyncConfig) { c.Journal.Type = JournalTypeBadger },
			expectedErr: "journal.path",
		},
		{
			name:        "redis journal without address",
			mutate:      func(c *SyncConfig) { c.Journal.Type = JournalTypeRedis },
			expectedErr: "journal.redisAddress",
		},
		{
			name:        "unknown journal",
			mutate:      func(c *SyncConfig) { c.Journal.Type = "sqlite" },
			expectedErr: "journal.type",
		},
		{
			name:        "kafka without topic",
			mutate:      func(c *SyncConfig) { c.Kafka.Brokers = []string{"localhost:9092"} },
			expectedErr: "kafka.topic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultSyncConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
			assert.Nil(t, cfg.Chain)
		})
	}
}

func TestSyncConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := NewDefaultSyncConfig()
	cfg.SafeURL = ""
	cfg.SequencerURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safeUrl")
	assert.Contains(t, err.Error(), "sequencerUrl")
}

func TestSyncConfig_MessagesURL(t *testing.T) {
	cfg := NewDefaultSyncConfig()
	cfg.SafeURL = "https://safe-client.safe.global/"

	addr := common.HexToAddress("0xcba28b38103307ec8da98377fff9816c164f9afa")
	assert.Equal(t,
		"https://safe-client.safe.global/v1/chains/1/safes/"+addr.Hex()+"/messages",
		cfg.MessagesURL(addr))
}

func TestGetSupportedChainIDs_Sorted(t *testing.T) {
	ids := GetSupportedChainIDs()
	require.Len(t, ids, len(Chains))
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
	assert.Contains(t, GetSupportedChainIDsString(), "1 (mainnet)")
}
