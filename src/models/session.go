package models

import (
	"fmt"
	"time"

	"orchestrator-service/src/schemas"

	"github.com/shopspring/decimal"
)

// SessionKind identifies the medium of a consultation session.
type SessionKind string

const (
	KindChat  SessionKind = "CHAT"
	KindVoice SessionKind = "VOICE"
	KindVideo SessionKind = "VIDEO"
)

// ParseSessionKind validates a wire-level kind string.
func ParseSessionKind(s string) (SessionKind, error) {
	switch SessionKind(s) {
	case KindChat, KindVoice, KindVideo:
		return SessionKind(s), nil
	}
	return "", fmt.Errorf("unknown session kind %q", s)
}

// SessionState represents the lifecycle state of a session.
type SessionState string

const (
	StateRequested  SessionState = "REQUESTED"
	StateActive     SessionState = "ACTIVE"
	StateTerminated SessionState = "TERMINATED"
)

// TerminationReason tags a TERMINATED session with how it got there.
type TerminationReason string

const (
	ReasonEndedByPayer     TerminationReason = "ACCEPTED_THEN_ENDED_BY_PAYER"
	ReasonEndedByProvider  TerminationReason = "ACCEPTED_THEN_ENDED_BY_PROVIDER"
	ReasonRejected         TerminationReason = "REJECTED"
	ReasonNoResponse       TerminationReason = "NO_RESPONSE"
	ReasonBalanceExhausted TerminationReason = "BALANCE_EXHAUSTED"
	ReasonDisconnected     TerminationReason = "DISCONNECTED"
)

// Sender is a live transport handle for one connected party.
type Sender interface {
	Send(event schemas.Event) error
}

// Session holds all state for one in-flight consultation session.
// It is owned by the orchestrator while live; billing terms are fixed
// at creation and never renegotiated.
type Session struct {
	SessionID             string
	PayerID               string
	ProviderID            string
	Kind                  SessionKind
	IsFree                bool
	RatePerMinute         decimal.Decimal
	ProviderCommissionPct decimal.Decimal
	MaxMinutes            int

	State   SessionState
	Reason  TerminationReason
	Settled bool

	RequestedAt time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time

	// Handle snapshots taken at request/accept time. Authoritative for
	// message delivery; the presence registry is not, to avoid races
	// with reconnects.
	PayerHandle    Sender
	ProviderHandle Sender
}
