package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the tariff resolver's answer for one prospective session.
type Quote struct {
	IsFree        bool
	RatePerMinute decimal.Decimal
	CommissionPct decimal.Decimal
	MaxMinutes    int
}

// PlatformPartyID is the synthetic ledger party for platform commission.
const PlatformPartyID = "PLATFORM"

// LedgerDirection is the sign of a ledger entry.
type LedgerDirection string

const (
	DirectionDebit  LedgerDirection = "DEBIT"
	DirectionCredit LedgerDirection = "CREDIT"
)

// LedgerCategory classifies what a ledger entry pays for.
type LedgerCategory string

const (
	CategoryPayerCharge        LedgerCategory = "PAYER_CHARGE"
	CategoryProviderEarning    LedgerCategory = "PROVIDER_EARNING"
	CategoryPlatformCommission LedgerCategory = "PLATFORM_COMMISSION"
)

// LedgerEntry is one immutable financial movement tied to a session.
type LedgerEntry struct {
	SessionID string          `json:"session_id"`
	PartyID   string          `json:"party_id"`
	Direction LedgerDirection `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Category  LedgerCategory  `json:"category"`
	IsFree    bool            `json:"is_free"`
	CreatedAt time.Time       `json:"created_at"`
}

// Settlement is the full financial outcome of one terminated session,
// applied to storage as a single unit.
type Settlement struct {
	SessionID       string
	PayerID         string
	ProviderID      string
	Kind            SessionKind
	Reason          TerminationReason
	IsFree          bool
	RequestedAt     time.Time
	StartedAt       *time.Time
	EndedAt         time.Time
	DurationSeconds int
	BilledMinutes   int
	Cost            decimal.Decimal
	ProviderEarning decimal.Decimal
	PlatformEarning decimal.Decimal
	Entries         []LedgerEntry
}

// SessionRecord is the durable, post-settlement row for a finished session.
type SessionRecord struct {
	SessionID       string            `json:"session_id"`
	PayerID         string            `json:"payer_id"`
	ProviderID      string            `json:"provider_id"`
	Kind            SessionKind       `json:"session_kind"`
	IsFree          bool              `json:"is_free"`
	Reason          TerminationReason `json:"reason"`
	RequestedAt     time.Time         `json:"requested_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	EndedAt         time.Time         `json:"ended_at"`
	DurationSeconds int               `json:"duration_seconds"`
	BilledMinutes   int               `json:"billed_minutes"`
	Cost            decimal.Decimal   `json:"cost"`
	ProviderEarning decimal.Decimal   `json:"provider_earning"`
	PlatformEarning decimal.Decimal   `json:"platform_earning"`
}
