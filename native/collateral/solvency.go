package collateral

import (
	"math/big"

	"fylend/native/oracle"
)

const basisPointsDenom = 10_000

var (
	basisPoints = big.NewInt(basisPointsDenom)
	ratioOne    = big.NewRat(1, 1)
	// maxAmount bounds every stored amount at 2^256 so arithmetic stays well
	// clear of any silent wrap in downstream fixed-width consumers.
	maxAmount = new(big.Int).Lsh(big.NewInt(1), 256)
)

func amountInBounds(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0 && amount.Cmp(maxAmount) <= 0
}

// CollateralValue returns the USD value of the collateral amount at the
// quoted collateral price.
func CollateralValue(collateral *big.Int, price *big.Rat) *big.Rat {
	if collateral == nil || price == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Mul(new(big.Rat).SetInt(collateral), price)
}

// LoanValue returns the USD value of the outstanding loan at the quoted
// counter asset price.
func LoanValue(loan *big.Int, price *big.Rat) *big.Rat {
	if loan == nil || price == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Mul(new(big.Rat).SetInt(loan), price)
}

// Ratio computes the collateralization ratio: USD value of collateral divided
// by USD value of the loan. A zero loan is maximally healthy and reports 1
// regardless of collateral, which also keeps the division total.
func Ratio(collateral, loan *big.Int, quote oracle.PriceQuote) *big.Rat {
	if loan == nil || loan.Sign() == 0 {
		return new(big.Rat).Set(ratioOne)
	}
	loanValue := LoanValue(loan, quote.CounterPrice)
	if loanValue.Sign() == 0 {
		return new(big.Rat).Set(ratioOne)
	}
	return new(big.Rat).Quo(CollateralValue(collateral, quote.CollateralPrice), loanValue)
}

// MaxBorrow returns the largest synthetic token amount that may be
// outstanding against the collateral at current prices, in counter-asset
// units. The result is floored: a fractional unit never rounds up into a
// threshold violation.
func MaxBorrow(collateral *big.Int, quote oracle.PriceQuote, thresholdBps uint64) *big.Int {
	if collateral == nil || collateral.Sign() <= 0 {
		return big.NewInt(0)
	}
	if thresholdBps == 0 || quote.CounterPrice == nil || quote.CounterPrice.Sign() <= 0 {
		return big.NewInt(0)
	}
	threshold := new(big.Rat).SetFrac(new(big.Int).SetUint64(thresholdBps), basisPoints)
	limit := new(big.Rat).Quo(CollateralValue(collateral, quote.CollateralPrice), threshold)
	limit.Quo(limit, quote.CounterPrice)
	return new(big.Int).Quo(limit.Num(), limit.Denom())
}

// Liquidatable reports whether the position's collateralization ratio has
// fallen below the liquidation threshold. This is the single canonical rule:
// it gates both withdraw safety and liquidation eligibility. The redemption
// deadline plays no part here.
func Liquidatable(collateral, loan *big.Int, quote oracle.PriceQuote, thresholdBps uint64) bool {
	threshold := new(big.Rat).SetFrac(new(big.Int).SetUint64(thresholdBps), basisPoints)
	return Ratio(collateral, loan, quote).Cmp(threshold) < 0
}

// SeizeAmount computes the collateral seized during liquidation: the
// outstanding loan scaled by the penalty, truncated, and clamped to the
// available collateral so the balance never goes negative.
func SeizeAmount(loan, collateral *big.Int, penaltyBps uint64) *big.Int {
	if loan == nil || loan.Sign() <= 0 || collateral == nil {
		return big.NewInt(0)
	}
	seize := new(big.Int).Mul(loan, new(big.Int).SetUint64(penaltyBps))
	seize.Quo(seize, basisPoints)
	if seize.Cmp(collateral) > 0 {
		seize = new(big.Int).Set(collateral)
	}
	return seize
}
