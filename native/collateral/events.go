package collateral

import (
	"math/big"

	"fylend/core/types"
	"fylend/crypto"
)

const (
	EventTypeDeposited  = "collateral.deposited"
	EventTypeWithdrawn  = "collateral.withdrawn"
	EventTypeBorrowed   = "collateral.borrowed"
	EventTypeRepaid     = "collateral.repaid"
	EventTypeLiquidated = "collateral.liquidated"
	EventTypeRedeemed   = "collateral.redeemed"
)

// Deposited is emitted when an account pledges collateral.
type Deposited struct {
	Account crypto.Address
	Amount  *big.Int
}

func (Deposited) EventType() string { return EventTypeDeposited }

func (e Deposited) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDeposited,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// Withdrawn is emitted when an account releases collateral.
type Withdrawn struct {
	Account crypto.Address
	Amount  *big.Int
}

func (Withdrawn) EventType() string { return EventTypeWithdrawn }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// Borrowed is emitted when synthetic tokens are minted against collateral.
type Borrowed struct {
	Account crypto.Address
	Amount  *big.Int
	Loan    *big.Int
}

func (Borrowed) EventType() string { return EventTypeBorrowed }

func (e Borrowed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeBorrowed,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  formatAmount(e.Amount),
			"loan":    formatAmount(e.Loan),
		},
	}
}

// Repaid is emitted when a loan is paid down. Applied is the portion credited
// against the loan; Captured is the full counter amount added to the reserve.
type Repaid struct {
	Account  crypto.Address
	Applied  *big.Int
	Captured *big.Int
	Loan     *big.Int
}

func (Repaid) EventType() string { return EventTypeRepaid }

func (e Repaid) Event() *types.Event {
	return &types.Event{
		Type: EventTypeRepaid,
		Attributes: map[string]string{
			"account":  e.Account.String(),
			"applied":  formatAmount(e.Applied),
			"captured": formatAmount(e.Captured),
			"loan":     formatAmount(e.Loan),
		},
	}
}

// Liquidated is emitted when an under-collateralized position is closed.
type Liquidated struct {
	Borrower   crypto.Address
	Liquidator crypto.Address
	Seized     *big.Int
	LoanClosed *big.Int
}

func (Liquidated) EventType() string { return EventTypeLiquidated }

func (e Liquidated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLiquidated,
		Attributes: map[string]string{
			"borrower":   e.Borrower.String(),
			"liquidator": e.Liquidator.String(),
			"seized":     formatAmount(e.Seized),
			"loanClosed": formatAmount(e.LoanClosed),
		},
	}
}

// Redeemed is emitted when synthetic tokens are redeemed against the reserve.
type Redeemed struct {
	Account crypto.Address
	Amount  *big.Int
	Reserve *big.Int
}

func (Redeemed) EventType() string { return EventTypeRedeemed }

func (e Redeemed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeRedeemed,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  formatAmount(e.Amount),
			"reserve": formatAmount(e.Reserve),
		},
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
