package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefaultsOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 20, cfg.MaxBatchSize)

	_, err = LoadConfig(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, ConfigFileName)
	assert.FileExists(t, path)
}

func TestLoadConfigReadsBackSavedOverrides(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	cfg.LogLevel = "debug"
	cfg.Chains = append(cfg.Chains, ChainConfig{
		ChainName:           "base-sepolia",
		ChainID:             84532,
		RPCURL:              "https://base-sepolia.example/rpc",
		HTLCContractAddress: "0x0000000000000000000000000000000000000001",
		Confirmations:       2,
	})
	require.NoError(t, cfg.Save(ConfigPath(dir)))

	reloaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", reloaded.LogLevel)
	require.Len(t, reloaded.Chains, 1)
	assert.Equal(t, "base-sepolia", reloaded.Chains[0].ChainName)

	chain, ok := reloaded.Chain("base-sepolia")
	require.True(t, ok)
	assert.Equal(t, uint64(84532), chain.ChainID)

	_, ok = reloaded.Chain("nowhere")
	assert.False(t, ok)
}

func TestStorePathAndLedgerPathDefaultUnderDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/resolverd-data"

	assert.Equal(t, "/tmp/resolverd-data/resolver.db", cfg.StorePath())
	assert.Equal(t, "/tmp/resolverd-data/inventory.db", cfg.LedgerPath())

	cfg.DatabasePath = "/custom/path.db"
	assert.Equal(t, "/custom/path.db", cfg.StorePath())
}
