package collateral

import "errors"

// Closed error taxonomy for the lending engine. Every failure aborts the
// enclosing operation with zero observable state change; callers decide
// whether to resubmit with corrected inputs.
var (
	ErrInvalidAmount                     = errors.New("collateral engine: amount must be positive")
	ErrUnauthorized                      = errors.New("collateral engine: caller not authorized")
	ErrInsufficientCollateral            = errors.New("collateral engine: insufficient collateral")
	ErrWithdrawalWouldTriggerLiquidation = errors.New("collateral engine: withdrawal would trigger liquidation")
	ErrLiquidationThresholdNotReached    = errors.New("collateral engine: liquidation threshold not reached")
	ErrNoOutstandingLoan                 = errors.New("collateral engine: no outstanding loan")
	ErrRedemptionNotYetAllowed           = errors.New("collateral engine: redemption not yet allowed")
	ErrInsufficientReserve               = errors.New("collateral engine: insufficient reserve")
	ErrArithmeticOverflow                = errors.New("collateral engine: arithmetic overflow")
	ErrNotFound                          = errors.New("collateral engine: record not found")

	errNilState     = errors.New("collateral engine: state not configured")
	errNilSource    = errors.New("collateral engine: price source not configured")
	errNilParams    = errors.New("collateral engine: params not initialised")
	errInvalidPrice = errors.New("collateral engine: oracle returned invalid quote")
)
