package collateral

import (
	"math/big"
	"testing"

	"fylend/native/oracle"
)

func quoteAt(collateralPrice, counterPrice int64) oracle.PriceQuote {
	return oracle.PriceQuote{
		CollateralPrice: big.NewRat(collateralPrice, 1),
		CounterPrice:    big.NewRat(counterPrice, 1),
	}
}

func TestRatioZeroLoanIsHealthy(t *testing.T) {
	quote := quoteAt(10, 1)
	for _, collateral := range []int64{0, 1, 1_000_000} {
		ratio := Ratio(big.NewInt(collateral), big.NewInt(0), quote)
		if ratio.Cmp(big.NewRat(1, 1)) != 0 {
			t.Fatalf("collateral %d: expected ratio 1, got %s", collateral, ratio)
		}
	}
}

func TestRatioComparesUSDValues(t *testing.T) {
	// 90 collateral at price 7 vs 1000 loan at price 1 -> 0.63.
	ratio := Ratio(big.NewInt(90), big.NewInt(1000), quoteAt(7, 1))
	if ratio.Cmp(big.NewRat(63, 100)) != 0 {
		t.Fatalf("expected ratio 63/100, got %s", ratio)
	}
}

func TestMaxBorrowFloors(t *testing.T) {
	// 100 collateral at price 10, threshold 0.8 -> 1250 counter units.
	max := MaxBorrow(big.NewInt(100), quoteAt(10, 1), 8000)
	if max.Cmp(big.NewInt(1250)) != 0 {
		t.Fatalf("expected 1250, got %s", max)
	}

	// 1 collateral at price 1, threshold 0.9 -> 1.111... floors to 1.
	max = MaxBorrow(big.NewInt(1), quoteAt(1, 1), 9000)
	if max.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected floor to 1, got %s", max)
	}

	// Counter price above 1 shrinks the limit in counter units.
	max = MaxBorrow(big.NewInt(100), oracle.PriceQuote{
		CollateralPrice: big.NewRat(10, 1),
		CounterPrice:    big.NewRat(2, 1),
	}, 8000)
	if max.Cmp(big.NewInt(625)) != 0 {
		t.Fatalf("expected 625, got %s", max)
	}

	if max := MaxBorrow(big.NewInt(0), quoteAt(10, 1), 8000); max.Sign() != 0 {
		t.Fatalf("expected zero max borrow without collateral, got %s", max)
	}
}

func TestLiquidatableBoundary(t *testing.T) {
	// 90 collateral at price 10 vs 1000 loan -> ratio 0.9.
	collateral, loan := big.NewInt(90), big.NewInt(1000)
	if Liquidatable(collateral, loan, quoteAt(10, 1), 9000) {
		t.Fatal("ratio equal to threshold must not be liquidatable")
	}
	if !Liquidatable(collateral, loan, quoteAt(10, 1), 9001) {
		t.Fatal("ratio below threshold must be liquidatable")
	}
	if Liquidatable(big.NewInt(0), big.NewInt(0), quoteAt(10, 1), 10_000) {
		t.Fatal("zero loan is never liquidatable")
	}
}

func TestSeizeAmountClampsToCollateral(t *testing.T) {
	seize := SeizeAmount(big.NewInt(1000), big.NewInt(90), 1000)
	if seize.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("expected seize clamped to 90, got %s", seize)
	}
	seize = SeizeAmount(big.NewInt(1000), big.NewInt(500), 1000)
	if seize.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected seize 100, got %s", seize)
	}
	if seize := SeizeAmount(big.NewInt(0), big.NewInt(100), 1000); seize.Sign() != 0 {
		t.Fatalf("expected zero seize for zero loan, got %s", seize)
	}
}
