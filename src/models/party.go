package models

import "github.com/shopspring/decimal"

// PartyType distinguishes the two sides of a session at registration time.
type PartyType string

const (
	PartyPayer    PartyType = "PAYER"
	PartyProvider PartyType = "PROVIDER"
)

// Profile is the account-storage view of one party: the only state this
// service shares with the rest of the platform.
type Profile struct {
	PartyID       string          `json:"party_id"`
	DisplayName   string          `json:"display_name"`
	Busy          bool            `json:"busy"`
	Available     bool            `json:"available"`
	Balance       decimal.Decimal `json:"balance"`
	ChatRate      decimal.Decimal `json:"chat_rate"`
	VoiceRate     decimal.Decimal `json:"voice_rate"`
	VideoRate     decimal.Decimal `json:"video_rate"`
	CommissionPct decimal.Decimal `json:"commission_pct"`

	FreeSessionsUsedToday int    `json:"free_sessions_used_today"`
	LastQuotaResetDate    string `json:"last_quota_reset_date"` // YYYY-MM-DD in the platform timezone
}

// RateFor returns the provider's configured per-minute rate for a session kind.
func (p *Profile) RateFor(kind SessionKind) decimal.Decimal {
	switch kind {
	case KindChat:
		return p.ChatRate
	case KindVoice:
		return p.VoiceRate
	case KindVideo:
		return p.VideoRate
	}
	return decimal.Zero
}
