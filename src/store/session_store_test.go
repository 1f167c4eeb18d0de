package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"orchestrator-service/src/models"

	"github.com/stretchr/testify/require"
)

func newSession(id, payerID, providerID string) *models.Session {
	return &models.Session{
		SessionID:  id,
		PayerID:    payerID,
		ProviderID: providerID,
		State:      models.StateRequested,
	}
}

func TestPutAndAcquire(t *testing.T) {
	s := NewSessionStore()
	s.Put(newSession("s1", "payer-1", "provider-1"))

	session, release, err := s.Acquire("s1")
	require.NoError(t, err)
	require.Equal(t, "s1", session.SessionID)
	release()

	require.Equal(t, 1, s.Len())
}

func TestAcquireUnknownSession(t *testing.T) {
	s := NewSessionStore()

	_, _, err := s.Acquire("nope")
	require.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestAcquireAfterRemove(t *testing.T) {
	s := NewSessionStore()
	s.Put(newSession("s1", "payer-1", "provider-1"))

	_, release, err := s.Acquire("s1")
	require.NoError(t, err)
	s.Remove("s1")
	release()

	_, _, err = s.Acquire("s1")
	require.ErrorIs(t, err, models.ErrSessionNotFound)
	require.Equal(t, 0, s.Len())
}

func TestAcquireSerializesTransitions(t *testing.T) {
	s := NewSessionStore()
	s.Put(newSession("s1", "payer-1", "provider-1"))

	// Many goroutines race to transition the same session; the entry lock
	// must serialize them so the counter never tears.
	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := s.Acquire("s1")
			if err != nil {
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)
}

func TestRemoveLosesRaceCleanly(t *testing.T) {
	s := NewSessionStore()
	s.Put(newSession("s1", "payer-1", "provider-1"))

	_, release, err := s.Acquire("s1")
	require.NoError(t, err)

	// A second caller blocks on the entry lock while the first terminates.
	errCh := make(chan error, 1)
	go func() {
		_, releaseLate, acquireErr := s.Acquire("s1")
		if acquireErr == nil {
			releaseLate()
		}
		errCh <- acquireErr
	}()

	s.Remove("s1")
	release()

	lateErr := <-errCh
	// Either the late caller saw the removal while waiting, or it never
	// found the entry at all.
	require.True(t, errors.Is(lateErr, models.ErrSessionNotFound))
}

func TestFindByParty(t *testing.T) {
	s := NewSessionStore()
	s.Put(newSession("s1", "payer-1", "provider-1"))
	s.Put(newSession("s2", "payer-2", "provider-2"))

	id, ok := s.FindByParty("payer-2")
	require.True(t, ok)
	require.Equal(t, "s2", id)

	id, ok = s.FindByParty("provider-1")
	require.True(t, ok)
	require.Equal(t, "s1", id)

	_, ok = s.FindByParty("stranger")
	require.False(t, ok)
}

func TestListSnapshotsLiveSessions(t *testing.T) {
	s := NewSessionStore()
	for i := 0; i < 3; i++ {
		s.Put(newSession(fmt.Sprintf("s%d", i), fmt.Sprintf("payer-%d", i), fmt.Sprintf("provider-%d", i)))
	}

	sessions := s.List()
	require.Len(t, sessions, 3)

	// Snapshots are copies; mutating them must not touch the store.
	sessions[0].State = models.StateTerminated
	stored, release, err := s.Acquire(sessions[0].SessionID)
	require.NoError(t, err)
	require.Equal(t, models.StateRequested, stored.State)
	release()
}
