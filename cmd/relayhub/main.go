package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"relayhub/config"
	"relayhub/core/errors"
	"relayhub/core/host"
	"relayhub/core/state"
	"relayhub/observability/logging"
	"relayhub/relay"
	"relayhub/storage"
)

// relayhub administers a locally stored relay state: it initializes the
// registry on first run, applies pending schema migrations and prints a
// summary. The contract surface itself is driven by the host runtime, not by
// this tool.
func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	migrate := flag.Bool("migrate", false, "Apply pending schema migrations")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("RELAYHUB_ENV"))
	logger := logging.Setup("relayhub", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("failed to open state database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	relay.RegisterMetrics(nil)

	sim := host.NewSim(cfg.OwnerAccount)
	registry := relay.NewRegistry(sim, state.NewManager(db), cfg.CycleNanos())

	minStake, err := cfg.MinimumStaking()
	if err != nil {
		logger.Error("invalid minimum staking amount", "err", err)
		os.Exit(1)
	}
	price, err := cfg.CollateralPrice()
	if err != nil {
		logger.Error("invalid collateral price", "err", err)
		os.Exit(1)
	}
	err = registry.Init(cfg.OwnerAccount, relay.Settings{
		TokenContractID:   cfg.TokenContractID,
		MinimumValidators: cfg.AppchainMinimumValidators,
		MinimumStaking:    minStake,
		BridgeLimitRatio:  cfg.BridgeLimitRatio,
		CollateralPrice:   price,
	})
	switch {
	case err == nil:
		logger.Info("registry initialized", "owner", cfg.OwnerAccount)
	case errors.HasCode(err, errors.CodeAlreadyInitialized):
		// existing store
	default:
		logger.Error("failed to initialize registry", "err", err)
		os.Exit(1)
	}

	if *migrate {
		sim.SetCaller(cfg.OwnerAccount, cfg.OwnerAccount)
		if err := registry.Migrate(); err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	version, err := registry.SchemaVersion()
	if err != nil {
		logger.Error("failed to read schema version", "err", err)
		os.Exit(1)
	}
	count, err := registry.NumAppchains()
	if err != nil {
		logger.Error("failed to read appchain registry", "err", err)
		os.Exit(1)
	}
	fmt.Printf("schema version %d, %d appchains registered\n", version, count)
}
