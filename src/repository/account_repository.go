package repository

import (
	"context"
	"database/sql"
	"fmt"

	"orchestrator-service/src/db"
	"orchestrator-service/src/models"

	"github.com/shopspring/decimal"
)

// AccountRepository handles all database operations for party profiles:
// the balance, busy-flag and free-quota state this service shares with the
// rest of the platform.
type AccountRepository struct {
	db *db.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(database *db.DB) *AccountRepository {
	return &AccountRepository{
		db: database,
	}
}

// GetProfile retrieves the profile for a given party ID
func (r *AccountRepository) GetProfile(ctx context.Context, partyID string) (*models.Profile, error) {
	query := `
		SELECT party_id, display_name, busy, available, balance,
		       chat_rate, voice_rate, video_rate, commission_pct,
		       free_sessions_used_today, last_quota_reset_date
		FROM party_profiles
		WHERE party_id = $1
	`

	var profile models.Profile
	err := r.db.GetConnection().QueryRowContext(ctx, query, partyID).Scan(
		&profile.PartyID,
		&profile.DisplayName,
		&profile.Busy,
		&profile.Available,
		&profile.Balance,
		&profile.ChatRate,
		&profile.VoiceRate,
		&profile.VideoRate,
		&profile.CommissionPct,
		&profile.FreeSessionsUsedToday,
		&profile.LastQuotaResetDate,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("party %s: %w", partyID, models.ErrPartyUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

// SetBusy updates the busy flag for a party
func (r *AccountRepository) SetBusy(ctx context.Context, partyID string, busy bool) error {
	query := `
		UPDATE party_profiles
		SET busy = $1
		WHERE party_id = $2
	`

	result, err := r.db.GetConnection().ExecContext(ctx, query, busy, partyID)
	if err != nil {
		return fmt.Errorf("failed to set busy flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("party not found: %s", partyID)
	}

	return nil
}

// AdjustBalance applies a signed delta to a party's balance
func (r *AccountRepository) AdjustBalance(ctx context.Context, partyID string, delta decimal.Decimal) error {
	query := `
		UPDATE party_profiles
		SET balance = balance + $1
		WHERE party_id = $2
	`

	result, err := r.db.GetConnection().ExecContext(ctx, query, delta, partyID)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("party not found: %s", partyID)
	}

	return nil
}

// ResetFreeQuota zeroes the free-session counter and stamps the reset date.
// The date guard makes re-running it on the same day a no-op.
func (r *AccountRepository) ResetFreeQuota(ctx context.Context, partyID, date string) error {
	query := `
		UPDATE party_profiles
		SET free_sessions_used_today = 0, last_quota_reset_date = $1
		WHERE party_id = $2 AND last_quota_reset_date <> $1
	`

	if _, err := r.db.GetConnection().ExecContext(ctx, query, date, partyID); err != nil {
		return fmt.Errorf("failed to reset free quota: %w", err)
	}
	return nil
}

// ConsumeFreeSession increments the free-session counter for the day
func (r *AccountRepository) ConsumeFreeSession(ctx context.Context, partyID string) error {
	query := `
		UPDATE party_profiles
		SET free_sessions_used_today = free_sessions_used_today + 1
		WHERE party_id = $1
	`

	result, err := r.db.GetConnection().ExecContext(ctx, query, partyID)
	if err != nil {
		return fmt.Errorf("failed to consume free session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("party not found: %s", partyID)
	}

	return nil
}
