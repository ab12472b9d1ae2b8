package collateral

import (
	"fmt"
	"math/big"

	"fylend/crypto"
)

// Position maintains the lending position for an individual account. Amount
// values are expressed as big integers to match on-chain precision. A missing
// position reads as zero balances everywhere; positions are created
// implicitly on first deposit and never deleted.
type Position struct {
	// Address is the unique account identifier.
	Address crypto.Address
	// Collateral records the collateral asset amount pledged for borrowing.
	Collateral *big.Int
	// Loan stores the outstanding synthetic token amount borrowed.
	Loan *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.Loan != nil {
		clone.Loan = new(big.Int).Set(p.Loan)
	}
	return clone
}

// Params groups the immutable configuration fixed at genesis. Parameter
// changes are out of scope for this module.
type Params struct {
	// Owner is the account that instantiated the module.
	Owner crypto.Address
	// Liquidator is the only account permitted to trigger liquidations.
	Liquidator crypto.Address
	// CollateralVault is the module address holding pledged collateral.
	CollateralVault crypto.Address
	// CollateralDenom identifies the collateral asset transfer channel.
	CollateralDenom string
	// CounterDenom identifies the counter (stable) asset transfer channel.
	CounterDenom string
	// SyntheticSymbol identifies the synthetic liability token.
	SyntheticSymbol string
	// LiquidationThresholdBps is the minimum collateralization ratio,
	// expressed in basis points of 1.0.
	LiquidationThresholdBps uint64
	// LiquidationPenaltyBps is the fraction of the outstanding loan seized
	// from collateral upon liquidation, expressed in basis points.
	LiquidationPenaltyBps uint64
	// RedemptionDeadline is the unix time after which synthetic tokens may be
	// redeemed against the reserve.
	RedemptionDeadline int64
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Validate checks the ratio bounds and required identities.
func (p *Params) Validate() error {
	if p == nil {
		return errNilParams
	}
	if p.LiquidationThresholdBps == 0 || p.LiquidationThresholdBps > basisPointsDenom {
		return fmt.Errorf("liquidation threshold must be in (0, %d] bps, got %d", basisPointsDenom, p.LiquidationThresholdBps)
	}
	if p.LiquidationPenaltyBps == 0 || p.LiquidationPenaltyBps > basisPointsDenom {
		return fmt.Errorf("liquidation penalty must be in (0, %d] bps, got %d", basisPointsDenom, p.LiquidationPenaltyBps)
	}
	if p.Liquidator.IsZero() {
		return fmt.Errorf("liquidator address required")
	}
	if p.CollateralDenom == "" {
		return fmt.Errorf("collateral denom required")
	}
	if p.CounterDenom == "" {
		return fmt.Errorf("counter denom required")
	}
	if p.SyntheticSymbol == "" {
		return fmt.Errorf("synthetic symbol required")
	}
	return nil
}
