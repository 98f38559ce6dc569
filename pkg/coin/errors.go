package coin

import "errors"

// Structured errors returned by the dispatch surface. The host converts
// them into transaction failure; OnBlock logs them instead.
var (
	ErrAlreadyInitialized  = errors.New("coin: already initialized")
	ErrNoShareholders      = errors.New("coin: need at least one shareholder")
	ErrCoinSupplyOverflow  = errors.New("coin: coin supply overflow")
	ErrCoinSupplyUnderflow = errors.New("coin: coin supply underflow")
	ErrInsufficientBalance = errors.New("coin: insufficient balance")
	ErrBalanceOverflow     = errors.New("coin: balance overflow")
	ErrZeroPrice           = errors.New("coin: oracle price is zero")
	ErrGenericOverflow     = errors.New("coin: arithmetic overflow")
	ErrGenericUnderflow    = errors.New("coin: arithmetic underflow")
	ErrPriceTooHigh        = errors.New("coin: price cannot be higher than 100%")
	ErrPriceTooLow         = errors.New("coin: price is lower than the minimum bond price")
	ErrQuantityTooLow      = errors.New("coin: quantity is lower than the base unit")

	// ErrRoundingError is reserved for future rounding guards; nothing
	// produces it yet.
	ErrRoundingError = errors.New("coin: rounding error")
)
