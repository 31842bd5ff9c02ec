package config

import "fmt"

// Validate checks the invariants the registry relies on before deployment.
func (c *Config) Validate() error {
	if c.OwnerAccount == "" {
		return fmt.Errorf("OwnerAccount must be set")
	}
	if c.TokenContractID == "" {
		return fmt.Errorf("TokenContractID must be set")
	}
	if c.AppchainMinimumValidators == 0 {
		return fmt.Errorf("AppchainMinimumValidators must be positive")
	}
	if c.BridgeLimitRatio == 0 || c.BridgeLimitRatio > 10000 {
		return fmt.Errorf("BridgeLimitRatio must be within (0, 10000] basis points")
	}
	if c.ValidatorSetCycleSecs == 0 {
		return fmt.Errorf("ValidatorSetCycleSecs must be positive")
	}
	if _, err := c.MinimumStaking(); err != nil {
		return fmt.Errorf("MinimumStakingAmount: %w", err)
	}
	if _, err := c.CollateralPrice(); err != nil {
		return fmt.Errorf("OctTokenPrice: %w", err)
	}
	return nil
}
