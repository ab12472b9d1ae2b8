package collateral

import (
	"context"
	"fmt"
	"math/big"

	"fylend/crypto"
)

// Msg is the closed set of state-changing messages accepted by the module.
// Each variant maps to exactly one engine operation; Execute dispatches over
// the set exhaustively.
type Msg interface {
	isCollateralMsg()
}

// MsgDeposit credits collateral delivered by the named transfer channel.
type MsgDeposit struct {
	Account crypto.Address
	Amount  *big.Int
	Denom   string
}

// MsgWithdraw releases collateral back to the account.
type MsgWithdraw struct {
	Account crypto.Address
	Amount  *big.Int
}

// MsgBorrow mints synthetic tokens against the account's collateral.
type MsgBorrow struct {
	Account crypto.Address
	Amount  *big.Int
}

// MsgRepay pays down the account's loan with attached counter asset.
type MsgRepay struct {
	Account crypto.Address
	Amount  *big.Int
	Denom   string
}

// MsgLiquidate closes an under-collateralized borrower position.
type MsgLiquidate struct {
	Caller   crypto.Address
	Borrower crypto.Address
}

// MsgRedeem pays out reserve counter asset against attached synthetic tokens.
type MsgRedeem struct {
	Account crypto.Address
	Amount  *big.Int
	Token   string
}

func (MsgDeposit) isCollateralMsg()   {}
func (MsgWithdraw) isCollateralMsg()  {}
func (MsgBorrow) isCollateralMsg()    {}
func (MsgRepay) isCollateralMsg()     {}
func (MsgLiquidate) isCollateralMsg() {}
func (MsgRedeem) isCollateralMsg()    {}

// Execute routes the message to its engine operation.
func (e *Engine) Execute(ctx context.Context, msg Msg) (*Outcome, error) {
	switch m := msg.(type) {
	case MsgDeposit:
		return e.Deposit(m.Account, m.Amount, m.Denom)
	case MsgWithdraw:
		return e.Withdraw(ctx, m.Account, m.Amount)
	case MsgBorrow:
		return e.Borrow(ctx, m.Account, m.Amount)
	case MsgRepay:
		return e.Repay(m.Account, m.Amount, m.Denom)
	case MsgLiquidate:
		return e.Liquidate(ctx, m.Caller, m.Borrower)
	case MsgRedeem:
		return e.Redeem(m.Account, m.Amount, m.Token)
	default:
		return nil, fmt.Errorf("collateral engine: unknown message type %T", msg)
	}
}
