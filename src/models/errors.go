package models

import "errors"

// Domain-level sentinel errors for business logic
// These errors should not contain HTTP-specific information

var (
	// ErrSessionNotFound indicates that a session with the given ID does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrPartyUnavailable indicates that the counterparty is busy, offline or
	// has the requested service disabled
	ErrPartyUnavailable = errors.New("party unavailable")

	// ErrInsufficientBalance indicates that the payer cannot afford the
	// minimum billable session length
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidTransition indicates that the requested action is not valid
	// for the session's current state
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrSettlementFailure indicates a partial failure while applying a
	// settlement; this must never be silently swallowed
	ErrSettlementFailure = errors.New("settlement failure")
)
