// Package main provides resolverd, the cross-chain atomic-swap resolver
// daemon: one Engine per configured chain, a Swap Store and inventory
// ledger shared across them, and a JSON/WebSocket API surface for clients.
package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/meridian-labs/resolverd/internal/api"
	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/config"
	"github.com/meridian-labs/resolverd/internal/inventory"
	"github.com/meridian-labs/resolverd/internal/resolver"
	"github.com/meridian-labs/resolverd/internal/signer"
	"github.com/meridian-labs/resolverd/internal/store"
	"github.com/meridian-labs/resolverd/internal/tokenregistry"
	"github.com/meridian-labs/resolverd/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.resolverd", "Data directory")
		configFile  = flag.String("config", "", "Config file path; only its directory is used and config.yaml is read there (default: <data-dir>/config.yaml)")
		apiAddr     = flag.String("api", "", "API listen address, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("resolverd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	effectiveDataDir := *dataDir

	configDir := effectiveDataDir
	if *configFile != "" {
		configDir = filepath.Dir(*configFile)
	}
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}

	if *apiAddr != "" {
		cfg.APIListenAddr = *apiAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	cfg.DataDir = effectiveDataDir

	log = logging.New(&logging.Config{Level: cfg.LogLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)
	log.Info("config loaded", "path", config.ConfigPath(configDir))

	if len(cfg.Chains) == 0 {
		log.Fatal("no chains configured; add at least one entry under chains in the config file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swapStore, err := store.Open(cfg.StorePath(), log)
	if err != nil {
		log.Fatal("failed to open swap store", "err", err)
	}
	defer swapStore.Close()
	log.Info("swap store opened", "path", cfg.StorePath())

	ledger, err := inventory.Open(cfg.LedgerPath(), log)
	if err != nil {
		log.Fatal("failed to open inventory ledger", "err", err)
	}
	defer ledger.Close()
	log.Info("inventory ledger opened", "path", cfg.LedgerPath())

	registry, err := tokenregistry.Default()
	if err != nil {
		log.Fatal("failed to build token registry", "err", err)
	}
	confirmationOverrides := make(map[string]uint64, len(cfg.Chains))
	for _, cc := range cfg.Chains {
		if cc.Confirmations > 0 {
			confirmationOverrides[cc.ChainName] = cc.Confirmations
		}
	}
	registry = registry.WithConfirmations(confirmationOverrides)

	adapters := make(map[string]chainadapter.Adapter)
	operators := make(map[string]common.Address)

	for _, cc := range cfg.Chains {
		client, err := ethclient.DialContext(ctx, cc.RPCURL)
		if err != nil {
			log.Fatal("failed to dial chain", "chain", cc.ChainName, "err", err)
		}

		var fallbacks []*ethclient.Client
		for _, fallbackURL := range cc.FallbackRPCURLs {
			fb, err := ethclient.DialContext(ctx, fallbackURL)
			if err != nil {
				log.Warn("failed to dial fallback rpc", "chain", cc.ChainName, "url", fallbackURL, "err", err)
				continue
			}
			fallbacks = append(fallbacks, fb)
		}

		sgn, err := signer.New(cc.ChainName, cc.ChainID, cc.OperatorSigningKey, client)
		if err != nil {
			log.Fatal("failed to load operator signer", "chain", cc.ChainName, "err", err)
		}
		operators[cc.ChainName] = sgn.Address()

		var maxGasPrice *big.Int
		if cc.MaxGasPrice != "" {
			var ok bool
			maxGasPrice, ok = new(big.Int).SetString(cc.MaxGasPrice, 10)
			if !ok {
				log.Fatal("invalid maxGasPrice, expected a base-10 wei amount", "chain", cc.ChainName, "maxGasPrice", cc.MaxGasPrice)
			}
		}

		adapter, err := chainadapter.NewEVMAdapter(chainadapter.EVMAdapterConfig{
			ChainName:      cc.ChainName,
			Client:         client,
			Fallbacks:      fallbacks,
			HTLCAddress:    common.HexToAddress(cc.HTLCContractAddress),
			Transactor:     sgn.TransactOpts,
			LookbackBlocks: cc.LookbackBlocks,
			GasLimit:       cc.GasLimit,
			MaxGasPrice:    maxGasPrice,
			Logger:         log,
		})
		if err != nil {
			log.Fatal("failed to build chain adapter", "chain", cc.ChainName, "err", err)
		}
		adapters[cc.ChainName] = adapter

		log.Info("chain adapter ready", "chain", cc.ChainName, "chainId", cc.ChainID, "operator", sgn.Address().Hex())
	}

	adapterLookup := func(chain string) (chainadapter.Adapter, bool) {
		a, ok := adapters[chain]
		return a, ok
	}
	operatorLookup := func(chain string) (common.Address, bool) {
		a, ok := operators[chain]
		return a, ok
	}

	apiServer := api.NewServer(swapStore, log)
	if err := apiServer.Start(cfg.APIListenAddr); err != nil {
		log.Fatal("failed to start api server", "err", err)
	}
	defer apiServer.Stop()

	for _, cc := range cfg.Chains {
		engine := resolver.New(resolver.Config{
			ChainName:          cc.ChainName,
			Store:              swapStore,
			Ledger:             ledger,
			Registry:           registry,
			Adapters:           adapterLookup,
			OperatorAddress:    operatorLookup,
			ProcessingInterval: cfg.ProcessingInterval,
			MaxBatchSize:       cfg.MaxBatchSize,
			MaxRetries:         cfg.MaxRetries,
			Events:             apiServer.WSHub(),
			Logger:             log,
		})
		go engine.Run(ctx)
		log.Info("resolver engine started", "chain", cc.ChainName)
	}

	printBanner(log, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down...")

	cancel()
	if err := apiServer.Stop(); err != nil {
		log.Error("error stopping api server", "err", err)
	}
	log.Info("goodbye")
}

func printBanner(log *logging.Logger, cfg *config.Config) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  resolverd %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API: http://%s", cfg.APIListenAddr)
	log.Infof("  Chains:")
	for _, cc := range cfg.Chains {
		log.Infof("    %s (chainId %d)", cc.ChainName, cc.ChainID)
	}
	log.Info("")
	log.Infof("  Data dir: %s", cfg.DataDir)
	log.Info("=================================================")
	log.Info("")
}
