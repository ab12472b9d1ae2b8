package collateral

import (
	"errors"
	"math/big"
	"testing"
)

func TestRedeemGatedByDeadline(t *testing.T) {
	engine, state, _ := newTestEngine(testParams())
	account := makeAddress(0x10)
	state.reserve = big.NewInt(500)

	// Deadline is 2_000_000; engine clock sits at 1_000_000.
	if _, err := engine.Redeem(account, big.NewInt(100), "fyusdc"); !errors.Is(err, ErrRedemptionNotYetAllowed) {
		t.Fatalf("expected ErrRedemptionNotYetAllowed, got %v", err)
	}
	if state.reserve.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("failed redemption must not touch reserve, got %s", state.reserve)
	}

	engine.SetNowFunc(func() int64 { return 2_000_000 })
	outcome, err := engine.Redeem(account, big.NewInt(100), "fyusdc")
	if err != nil {
		t.Fatalf("redeem at deadline: %v", err)
	}
	if state.reserve.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected reserve: %s", state.reserve)
	}
	if len(outcome.Instructions) != 2 {
		t.Fatalf("expected transfer and burn instructions, got %d", len(outcome.Instructions))
	}
	transfer, ok := outcome.Instructions[0].(TransferInstruction)
	if !ok {
		t.Fatalf("expected TransferInstruction first, got %T", outcome.Instructions[0])
	}
	if transfer.Asset != "uusdc" || transfer.Amount.Cmp(big.NewInt(100)) != 0 || !transfer.To.Equal(account) {
		t.Fatalf("unexpected payout transfer: %+v", transfer)
	}
	burn, ok := outcome.Instructions[1].(BurnInstruction)
	if !ok {
		t.Fatalf("expected BurnInstruction second, got %T", outcome.Instructions[1])
	}
	if burn.Token != "fyusdc" || burn.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected burn: %+v", burn)
	}
}

func TestRedeemBoundedByReserve(t *testing.T) {
	engine, state, _ := newTestEngine(testParams())
	account := makeAddress(0x10)
	state.reserve = big.NewInt(100)
	engine.SetNowFunc(func() int64 { return 3_000_000 })

	if _, err := engine.Redeem(account, big.NewInt(101), "fyusdc"); !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("expected ErrInsufficientReserve, got %v", err)
	}
	if state.reserve.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed redemption must not touch reserve, got %s", state.reserve)
	}

	if _, err := engine.Redeem(account, big.NewInt(100), "fyusdc"); err != nil {
		t.Fatalf("redeem full reserve: %v", err)
	}
	if state.reserve.Sign() != 0 {
		t.Fatalf("expected empty reserve, got %s", state.reserve)
	}
}

func TestRedeemValidation(t *testing.T) {
	engine, state, _ := newTestEngine(testParams())
	account := makeAddress(0x10)
	state.reserve = big.NewInt(100)
	engine.SetNowFunc(func() int64 { return 3_000_000 })

	if _, err := engine.Redeem(account, big.NewInt(0), "fyusdc"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := engine.Redeem(account, big.NewInt(10), "uusdc"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong token, got %v", err)
	}
}
