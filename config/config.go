// Package config loads the relay hub's deployment configuration from a TOML
// file, writing a default file on first run.
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir     string `toml:"DataDir"`
	Environment string `toml:"Environment"`

	// OwnerAccount administers the registry; TokenContractID is the account
	// of the collateral token contract.
	OwnerAccount    string `toml:"OwnerAccount"`
	TokenContractID string `toml:"TokenContractID"`

	AppchainMinimumValidators uint32 `toml:"AppchainMinimumValidators"`
	// MinimumStakingAmount and OctTokenPrice are decimal strings since their
	// values exceed uint64.
	MinimumStakingAmount  string `toml:"MinimumStakingAmount"`
	BridgeLimitRatio      uint32 `toml:"BridgeLimitRatio"`
	OctTokenPrice         string `toml:"OctTokenPrice"`
	ValidatorSetCycleSecs uint64 `toml:"ValidatorSetCycleSecs"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:                   "./relayhub-data",
		Environment:               "local",
		OwnerAccount:              "relay-owner.testnet",
		TokenContractID:           "oct.testnet",
		AppchainMinimumValidators: 4,
		MinimumStakingAmount:      "100000000000000000000000000",
		BridgeLimitRatio:          3333,
		OctTokenPrice:             "2000000",
		ValidatorSetCycleSecs:     86400,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// MinimumStaking parses the minimum staking amount.
func (c *Config) MinimumStaking() (*big.Int, error) {
	return parseUintAmount(c.MinimumStakingAmount)
}

// CollateralPrice parses the configured collateral token price.
func (c *Config) CollateralPrice() (*big.Int, error) {
	return parseUintAmount(c.OctTokenPrice)
}

// CycleNanos returns the validator-set period in nanoseconds.
func (c *Config) CycleNanos() uint64 {
	return c.ValidatorSetCycleSecs * uint64(time.Second)
}

func parseUintAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("not a non-negative decimal integer: %q", s)
	}
	return v, nil
}
