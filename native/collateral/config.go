package collateral

import (
	"fmt"
	"strings"

	"fylend/crypto"
)

// Config captures the runtime configuration for the collateral module as it
// appears in the node's TOML file. Params derives the genesis record from it.
type Config struct {
	OwnerAddress            string `toml:"OwnerAddress"`
	LiquidatorAddress       string `toml:"LiquidatorAddress"`
	CollateralDenom         string `toml:"CollateralDenom"`
	CounterDenom            string `toml:"CounterDenom"`
	SyntheticSymbol         string `toml:"SyntheticSymbol"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	LiquidationPenaltyBps   uint64 `toml:"LiquidationPenaltyBps"`
	RedemptionDeadline      int64  `toml:"RedemptionDeadline"`
}

// Params resolves the configuration into the immutable genesis params,
// deriving the module vault address and validating every bound.
func (c Config) Params() (*Params, error) {
	params := &Params{
		CollateralVault:         crypto.ModuleAddress("collateral_vault"),
		CollateralDenom:         strings.TrimSpace(c.CollateralDenom),
		CounterDenom:            strings.TrimSpace(c.CounterDenom),
		SyntheticSymbol:         strings.TrimSpace(c.SyntheticSymbol),
		LiquidationThresholdBps: c.LiquidationThresholdBps,
		LiquidationPenaltyBps:   c.LiquidationPenaltyBps,
		RedemptionDeadline:      c.RedemptionDeadline,
	}
	if owner := strings.TrimSpace(c.OwnerAddress); owner != "" {
		decoded, err := crypto.DecodeAddress(owner)
		if err != nil {
			return nil, fmt.Errorf("collateral config: invalid owner address: %w", err)
		}
		params.Owner = decoded
	}
	liquidator := strings.TrimSpace(c.LiquidatorAddress)
	if liquidator == "" {
		return nil, fmt.Errorf("collateral config: liquidator address required")
	}
	decoded, err := crypto.DecodeAddress(liquidator)
	if err != nil {
		return nil, fmt.Errorf("collateral config: invalid liquidator address: %w", err)
	}
	params.Liquidator = decoded
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("collateral config: %w", err)
	}
	return params, nil
}
