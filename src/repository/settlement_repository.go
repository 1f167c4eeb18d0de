package repository

import (
	"context"
	"database/sql"
	"fmt"

	"orchestrator-service/src/db"
	"orchestrator-service/src/models"

	"github.com/shopspring/decimal"
)

// SettlementRepository applies a session settlement as one database
// transaction: the payer debit, provider credit, ledger entries, busy-flag
// clears and final session record either all land or none do.
type SettlementRepository struct {
	db *db.DB
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(database *db.DB) *SettlementRepository {
	return &SettlementRepository{
		db: database,
	}
}

// Apply writes the full settlement atomically.
func (r *SettlementRepository) Apply(ctx context.Context, s *models.Settlement) error {
	return r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		// The payer is only debited for paid sessions; a free session
		// moves no payer money.
		if !s.IsFree && s.Cost.IsPositive() {
			if err := adjustBalanceTx(ctx, tx, s.PayerID, s.Cost.Neg()); err != nil {
				return fmt.Errorf("payer debit: %w", err)
			}
		}

		if s.ProviderEarning.IsPositive() {
			if err := adjustBalanceTx(ctx, tx, s.ProviderID, s.ProviderEarning); err != nil {
				return fmt.Errorf("provider credit: %w", err)
			}
		}

		for _, entry := range s.Entries {
			if err := appendLedgerTx(ctx, tx, entry); err != nil {
				return fmt.Errorf("ledger append: %w", err)
			}
		}

		if err := setBusyTx(ctx, tx, s.PayerID, false); err != nil {
			return fmt.Errorf("payer busy clear: %w", err)
		}
		if err := setBusyTx(ctx, tx, s.ProviderID, false); err != nil {
			return fmt.Errorf("provider busy clear: %w", err)
		}

		if err := insertSessionRecordTx(ctx, tx, s); err != nil {
			return fmt.Errorf("session record: %w", err)
		}
		return nil
	})
}

func adjustBalanceTx(ctx context.Context, tx *sql.Tx, partyID string, delta decimal.Decimal) error {
	query := `
		UPDATE party_profiles
		SET balance = balance + $1
		WHERE party_id = $2
	`

	result, err := tx.ExecContext(ctx, query, delta, partyID)
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

func setBusyTx(ctx context.Context, tx *sql.Tx, partyID string, busy bool) error {
	query := `
		UPDATE party_profiles
		SET busy = $1
		WHERE party_id = $2
	`

	if _, err := tx.ExecContext(ctx, query, busy, partyID); err != nil {
		return fmt.Errorf("failed to set busy flag: %w", err)
	}
	return nil
}

func appendLedgerTx(ctx context.Context, tx *sql.Tx, entry models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
		(session_id, party_id, direction, amount, category, is_free, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.ExecContext(ctx, query,
		entry.SessionID,
		entry.PartyID,
		entry.Direction,
		entry.Amount,
		entry.Category,
		entry.IsFree,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func insertSessionRecordTx(ctx context.Context, tx *sql.Tx, s *models.Settlement) error {
	query := `
		INSERT INTO session_records
		(session_id, payer_id, provider_id, session_kind, is_free, reason,
		 requested_at, started_at, ended_at, duration_seconds,
		 billed_minutes, cost, provider_earning, platform_earning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.ExecContext(ctx, query,
		s.SessionID,
		s.PayerID,
		s.ProviderID,
		s.Kind,
		s.IsFree,
		s.Reason,
		s.RequestedAt,
		s.StartedAt,
		s.EndedAt,
		s.DurationSeconds,
		s.BilledMinutes,
		s.Cost,
		s.ProviderEarning,
		s.PlatformEarning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", err)
	}
	return nil
}
