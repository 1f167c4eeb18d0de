package repository

import (
	"context"
	"database/sql"
	"fmt"

	"orchestrator-service/src/db"
	"orchestrator-service/src/models"
)

// SessionRepository handles the durable records of finished sessions.
// Live sessions are owned by the in-memory store; a row appears here only
// at settlement time.
type SessionRepository struct {
	db *db.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(database *db.DB) *SessionRepository {
	return &SessionRepository{
		db: database,
	}
}

// GetRecord retrieves the final record for a session ID
func (r *SessionRepository) GetRecord(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	query := `
		SELECT session_id, payer_id, provider_id, session_kind, is_free, reason,
		       requested_at, started_at, ended_at, duration_seconds,
		       billed_minutes, cost, provider_earning, platform_earning
		FROM session_records
		WHERE session_id = $1
	`

	var record models.SessionRecord
	err := r.db.GetConnection().QueryRowContext(ctx, query, sessionID).Scan(
		&record.SessionID,
		&record.PayerID,
		&record.ProviderID,
		&record.Kind,
		&record.IsFree,
		&record.Reason,
		&record.RequestedAt,
		&record.StartedAt,
		&record.EndedAt,
		&record.DurationSeconds,
		&record.BilledMinutes,
		&record.Cost,
		&record.ProviderEarning,
		&record.PlatformEarning,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}

	return &record, nil
}

// ListRecords retrieves finished sessions, newest first
func (r *SessionRepository) ListRecords(ctx context.Context, limit, offset int) ([]models.SessionRecord, error) {
	query := `
		SELECT session_id, payer_id, provider_id, session_kind, is_free, reason,
		       requested_at, started_at, ended_at, duration_seconds,
		       billed_minutes, cost, provider_earning, platform_earning
		FROM session_records
		ORDER BY ended_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.GetConnection().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var record models.SessionRecord
		if err := rows.Scan(
			&record.SessionID,
			&record.PayerID,
			&record.ProviderID,
			&record.Kind,
			&record.IsFree,
			&record.Reason,
			&record.RequestedAt,
			&record.StartedAt,
			&record.EndedAt,
			&record.DurationSeconds,
			&record.BilledMinutes,
			&record.Cost,
			&record.ProviderEarning,
			&record.PlatformEarning,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session records: %w", err)
	}
	return records, nil
}
