package model

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMarketInactive      = errors.New("market inactive")
	ErrNotFound            = errors.New("not found")
	ErrInvalidOrderState   = errors.New("invalid order state")

	// ErrInconsistentLedger reports a hold protocol violation, e.g. a capture for a reference that never reserved
	ErrInconsistentLedger = errors.New("inconsistent ledger")
)
