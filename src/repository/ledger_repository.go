package repository

import (
	"context"
	"fmt"

	"orchestrator-service/src/db"
	"orchestrator-service/src/models"
)

// LedgerRepository handles the append-only ledger of financial movements.
// Entries are immutable once written; there is no update or delete path.
type LedgerRepository struct {
	db *db.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(database *db.DB) *LedgerRepository {
	return &LedgerRepository{
		db: database,
	}
}

// Append writes one ledger entry
func (r *LedgerRepository) Append(ctx context.Context, entry models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
		(session_id, party_id, direction, amount, category, is_free, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.GetConnection().ExecContext(ctx, query,
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

// ListBySession retrieves all ledger entries for a session
func (r *LedgerRepository) ListBySession(ctx context.Context, sessionID string) ([]models.LedgerEntry, error) {
	query := `
		SELECT session_id, party_id, direction, amount, category, is_free, created_at
		FROM ledger_entries
		WHERE session_id = $1
		ORDER BY id
	`

	rows, err := r.db.GetConnection().QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(
			&entry.SessionID,
			&entry.PartyID,
			&entry.Direction,
			&entry.Amount,
			&entry.Category,
			&entry.IsFree,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}
