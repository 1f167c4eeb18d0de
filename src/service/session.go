package service

import (
	"context"
	"errors"
	"fmt"

	"orchestrator-service/src/models"
	"orchestrator-service/src/repository"
	"orchestrator-service/src/schemas"
	"orchestrator-service/src/store"
)

// SessionService backs the read-only HTTP surface: live sessions from the
// in-memory store, finished sessions and ledger entries from storage.
type SessionService struct {
	store    *store.SessionStore
	sessions *repository.SessionRepository
	ledger   *repository.LedgerRepository
}

func NewSessionService(sessionStore *store.SessionStore, sessions *repository.SessionRepository, ledger *repository.LedgerRepository) *SessionService {
	return &SessionService{
		store:    sessionStore,
		sessions: sessions,
		ledger:   ledger,
	}
}

// ListActive returns snapshots of all live sessions.
func (s *SessionService) ListActive() []models.Session {
	return s.store.List()
}

// GetHistory returns finished sessions, newest first.
func (s *SessionService) GetHistory(ctx context.Context, limit, offset int) ([]models.SessionRecord, error) {
	records, err := s.sessions.ListRecords(ctx, limit, offset)
	if err != nil {
		return nil, schemas.NewInternalError(
			fmt.Sprintf("failed to list session records: %v", err),
			"/sessions",
		)
	}
	return records, nil
}

// GetRecord returns the final record for one finished session.
func (s *SessionService) GetRecord(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	record, err := s.sessions.GetRecord(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, schemas.NewNotFoundError(
				fmt.Sprintf("session with ID %s not found", sessionID),
				"/sessions/"+sessionID,
			)
		}
		return nil, schemas.NewInternalError(
			fmt.Sprintf("failed to get session record: %v", err),
			"/sessions/"+sessionID,
		)
	}
	return record, nil
}

// GetLedger returns all ledger entries written for a session.
func (s *SessionService) GetLedger(ctx context.Context, sessionID string) ([]models.LedgerEntry, error) {
	entries, err := s.ledger.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, schemas.NewInternalError(
			fmt.Sprintf("failed to list ledger entries: %v", err),
			"/sessions/"+sessionID+"/ledger",
		)
	}
	return entries, nil
}
