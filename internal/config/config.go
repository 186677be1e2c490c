// Package config loads the resolver's YAML configuration file, writing a
// default one on first run so an operator has something to edit instead of
// hunting through source for field names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ChainConfig holds the per-chain settings an Engine and its Adapter need:
// where to dial, what to sign with, and what the chain's own HTLC deployment
// looks like.
type ChainConfig struct {
	ChainName           string        `yaml:"chainName"`
	ChainID             uint64        `yaml:"chainId"`
	RPCURL              string        `yaml:"rpcUrl"`
	FallbackRPCURLs     []string      `yaml:"fallbackRpcUrls,omitempty"`
	HTLCContractAddress string        `yaml:"htlcContractAddress"`
	OperatorSigningKey  string        `yaml:"operatorSigningKey"`
	GasLimit            uint64        `yaml:"gasLimit"`
	MaxGasPrice         string        `yaml:"maxGasPrice"`
	Confirmations       uint64        `yaml:"confirmations"`
	LookbackBlocks      uint64        `yaml:"lookbackBlocks,omitempty"`
}

// Config is the top-level resolverd configuration.
type Config struct {
	// ProcessingInterval is the tick period each chain's Engine runs on.
	ProcessingInterval time.Duration `yaml:"processingInterval"`

	// MaxBatchSize bounds how many swaps one tick pulls per role.
	MaxBatchSize int `yaml:"maxBatchSize"`

	// MaxRetries bounds per-step retry attempts before a swap moves to ERROR.
	MaxRetries int `yaml:"maxRetries"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// APIListenAddr is the address the HTTP/WebSocket API binds to.
	APIListenAddr string `yaml:"apiListenAddr"`

	// DataDir holds the SQLite store and inventory ledger files.
	DataDir string `yaml:"dataDir"`

	// DatabasePath overrides the swap store file location. Empty means
	// DataDir/resolver.db.
	DatabasePath string `yaml:"databasePath,omitempty"`

	// InventoryPath overrides the inventory ledger file location. Empty
	// means DataDir/inventory.db.
	InventoryPath string `yaml:"inventoryPath,omitempty"`

	// Chains lists every chain this resolverd instance runs an Engine for.
	Chains []ChainConfig `yaml:"chains"`
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// DefaultConfig returns a Config with sensible defaults and no chains: an
// operator must name at least one chain before resolverd will start.
func DefaultConfig() *Config {
	return &Config{
		ProcessingInterval: 5 * time.Second,
		MaxBatchSize:       20,
		MaxRetries:         5,
		LogLevel:           "info",
		APIListenAddr:      "127.0.0.1:8080",
		DataDir:            "~/.resolverd",
		Chains:             []ChainConfig{},
	}
}

// LoadConfig loads configuration from dataDir/config.yaml. If the file
// doesn't exist, it writes one populated with defaults and returns that.
func LoadConfig(dataDir string) (*Config, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("config: create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML, creating the parent
// directory if necessary.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal config: %w", err)
	}

	header := []byte("# resolverd configuration\n# generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write config file: %w", err)
	}
	return nil
}

// ConfigPath returns the full path to the config file for dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// StorePath returns the resolved path to the swap store database file.
func (c *Config) StorePath() string {
	if c.DatabasePath != "" {
		return expandPath(c.DatabasePath)
	}
	return filepath.Join(expandPath(c.DataDir), "resolver.db")
}

// LedgerPath returns the resolved path to the inventory ledger database file.
func (c *Config) LedgerPath() string {
	if c.InventoryPath != "" {
		return expandPath(c.InventoryPath)
	}
	return filepath.Join(expandPath(c.DataDir), "inventory.db")
}

// Chain looks up one chain's config by name.
func (c *Config) Chain(name string) (ChainConfig, bool) {
	for _, cc := range c.Chains {
		if cc.ChainName == name {
			return cc, true
		}
	}
	return ChainConfig{}, false
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
