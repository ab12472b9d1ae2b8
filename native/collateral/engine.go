package collateral

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"fylend/core/events"
	"fylend/crypto"
	"fylend/native/oracle"
)

type engineState interface {
	Params() (*Params, error)
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(pos *Position) error
	Reserve() (*big.Int, error)
	SetReserve(amount *big.Int) error
}

// Outcome is the result of a successful state-changing operation: the
// follow-up asset movements the caller must execute once the mutation is
// committed.
type Outcome struct {
	Instructions []Instruction
}

// Engine orchestrates every state transition for the collateral module. It
// validates preconditions against the solvency calculator before mutating
// the position store, and returns transfer, mint, and burn instructions as
// data rather than calling collaborators mid-operation. The caller is
// responsible for serializing operations and committing or discarding the
// staged state afterwards.
type Engine struct {
	state   engineState
	source  oracle.Source
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a collateral engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPriceSource configures the oracle consulted by ratio-dependent
// operations.
func (e *Engine) SetPriceSource(source oracle.Source) { e.source = source }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for the redemption deadline.
// Primarily intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) ensureParams() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	params, err := e.state.Params()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, errNilParams
	}
	return params, nil
}

func (e *Engine) ensurePosition(addr crypto.Address) (*Position, error) {
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Address: addr}
	}
	if pos.Collateral == nil {
		pos.Collateral = big.NewInt(0)
	}
	if pos.Loan == nil {
		pos.Loan = big.NewInt(0)
	}
	return pos, nil
}

func (e *Engine) fetchPrices(ctx context.Context) (oracle.PriceQuote, error) {
	if e.source == nil {
		return oracle.PriceQuote{}, errNilSource
	}
	quote, err := e.source.FetchPrices(ctx)
	if err != nil {
		return oracle.PriceQuote{}, err
	}
	if !quote.Valid() {
		return oracle.PriceQuote{}, fmt.Errorf("%w: %v", oracle.ErrOracleUnavailable, errInvalidPrice)
	}
	return quote, nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !amountInBounds(amount) {
		return ErrArithmeticOverflow
	}
	return nil
}

// Deposit credits collateral attached by the collateral-asset transfer
// channel. The denom identifies the channel that delivered the funds; only
// the configured collateral asset is accepted.
func (e *Engine) Deposit(account crypto.Address, amount *big.Int, denom string) (*Outcome, error) {
	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if denom != params.CollateralDenom {
		return nil, ErrUnauthorized
	}

	pos, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	updated := new(big.Int).Add(pos.Collateral, amount)
	if !amountInBounds(updated) {
		return nil, ErrArithmeticOverflow
	}
	pos.Collateral = updated
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	e.emit(Deposited{Account: account, Amount: new(big.Int).Set(amount)})
	return &Outcome{}, nil
}

// Withdraw releases collateral back to the account while ensuring the
// remaining position stays at or above the liquidation threshold at current
// prices.
func (e *Engine) Withdraw(ctx context.Context, account crypto.Address, amount *big.Int) (*Outcome, error) {
	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	pos, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	if pos.Collateral.Cmp(amount) < 0 {
		return nil, ErrInsufficientCollateral
	}

	quote, err := e.fetchPrices(ctx)
	if err != nil {
		return nil, err
	}

	remaining := new(big.Int).Sub(pos.Collateral, amount)
	if Liquidatable(remaining, pos.Loan, quote, params.LiquidationThresholdBps) {
		return nil, ErrWithdrawalWouldTriggerLiquidation
	}

	pos.Collateral = remaining
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	e.emit(Withdrawn{Account: account, Amount: new(big.Int).Set(amount)})
	return &Outcome{Instructions: []Instruction{
		newTransfer(params.CollateralDenom, account, amount),
	}}, nil
}

// Borrow mints synthetic tokens to the account provided the resulting loan
// stays within the price-derived borrow limit.
func (e *Engine) Borrow(ctx context.Context, account crypto.Address, amount *big.Int) (*Outcome, error) {
	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	pos, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}

	quote, err := e.fetchPrices(ctx)
	if err != nil {
		return nil, err
	}

	projected := new(big.Int).Add(pos.Loan, amount)
	if !amountInBounds(projected) {
		return nil, ErrArithmeticOverflow
	}
	if projected.Cmp(MaxBorrow(pos.Collateral, quote, params.LiquidationThresholdBps)) > 0 {
		return nil, ErrInsufficientCollateral
	}

	pos.Loan = projected
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	e.emit(Borrowed{Account: account, Amount: new(big.Int).Set(amount), Loan: new(big.Int).Set(pos.Loan)})
	return &Outcome{Instructions: []Instruction{
		newMint(params.SyntheticSymbol, account, amount),
	}}, nil
}

// Repay reduces the outstanding loan by the attached counter-asset amount.
// Any excess beyond the loan is still captured: the reserve grows by the
// full amount transferred in, not the portion applied to the loan.
func (e *Engine) Repay(account crypto.Address, amount *big.Int, denom string) (*Outcome, error) {
	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if denom != params.CounterDenom {
		return nil, ErrUnauthorized
	}

	pos, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	if pos.Loan.Sign() == 0 {
		return nil, ErrNoOutstandingLoan
	}

	applied := new(big.Int).Set(amount)
	if applied.Cmp(pos.Loan) > 0 {
		applied = new(big.Int).Set(pos.Loan)
	}
	pos.Loan = new(big.Int).Sub(pos.Loan, applied)

	reserve, err := e.state.Reserve()
	if err != nil {
		return nil, err
	}
	updatedReserve := new(big.Int).Add(reserve, amount)
	if !amountInBounds(updatedReserve) {
		return nil, ErrArithmeticOverflow
	}

	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.SetReserve(updatedReserve); err != nil {
		return nil, err
	}

	e.emit(Repaid{
		Account:  account,
		Applied:  applied,
		Captured: new(big.Int).Set(amount),
		Loan:     new(big.Int).Set(pos.Loan),
	})
	return &Outcome{}, nil
}

// Liquidate closes an under-collateralized position: the loan is forced to
// zero and the penalty-scaled seize amount, clamped to the available
// collateral, is transferred to the liquidator. Only the configured
// liquidator may call this.
func (e *Engine) Liquidate(ctx context.Context, caller, borrower crypto.Address) (*Outcome, error) {
	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if !caller.Equal(params.Liquidator) {
		return nil, ErrUnauthorized
	}

	pos, err := e.ensurePosition(borrower)
	if err != nil {
		return nil, err
	}

	quote, err := e.fetchPrices(ctx)
	if err != nil {
		return nil, err
	}
	if !Liquidatable(pos.Collateral, pos.Loan, quote, params.LiquidationThresholdBps) {
		return nil, ErrLiquidationThresholdNotReached
	}

	loanClosed := new(big.Int).Set(pos.Loan)
	seize := SeizeAmount(pos.Loan, pos.Collateral, params.LiquidationPenaltyBps)

	// The loan reset and the collateral reduction land in the same staged
	// write: the position is never observed half liquidated.
	pos.Collateral = new(big.Int).Sub(pos.Collateral, seize)
	pos.Loan = big.NewInt(0)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	e.emit(Liquidated{
		Borrower:   borrower,
		Liquidator: caller,
		Seized:     new(big.Int).Set(seize),
		LoanClosed: loanClosed,
	})
	return &Outcome{Instructions: []Instruction{
		newTransfer(params.CollateralDenom, params.Liquidator, seize),
	}}, nil
}

// Redeem pays out counter asset from the reserve against attached synthetic
// tokens. Redemption opens at the configured deadline and may never drive
// the reserve negative.
func (e *Engine) Redeem(account crypto.Address, amount *big.Int, token string) (*Outcome, error) {
	params, err := e.ensureParams()
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if token != params.SyntheticSymbol {
		return nil, ErrUnauthorized
	}
	if e.nowFn() < params.RedemptionDeadline {
		return nil, ErrRedemptionNotYetAllowed
	}

	reserve, err := e.state.Reserve()
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(amount) < 0 {
		return nil, ErrInsufficientReserve
	}
	updated := new(big.Int).Sub(reserve, amount)
	if err := e.state.SetReserve(updated); err != nil {
		return nil, err
	}

	e.emit(Redeemed{Account: account, Amount: new(big.Int).Set(amount), Reserve: updated})
	return &Outcome{Instructions: []Instruction{
		newTransfer(params.CounterDenom, account, amount),
		newBurn(params.SyntheticSymbol, amount),
	}}, nil
}

// Collateral reports the collateral balance for the address. Missing
// positions read as zero.
func (e *Engine) Collateral(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.ensurePosition(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.Collateral), nil
}

// Loan reports the outstanding loan for the address. Missing positions read
// as zero.
func (e *Engine) Loan(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.ensurePosition(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.Loan), nil
}

// Prices returns the current oracle quote without touching state.
func (e *Engine) Prices(ctx context.Context) (oracle.PriceQuote, error) {
	if e == nil {
		return oracle.PriceQuote{}, errNilState
	}
	return e.fetchPrices(ctx)
}
