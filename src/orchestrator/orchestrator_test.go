package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orchestrator-service/src/models"
	"orchestrator-service/src/presence"
	"orchestrator-service/src/schemas"
	"orchestrator-service/src/store"
	"orchestrator-service/src/timers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	busyLog  []string // "partyID=true" / "partyID=false"
}

func (f *fakeAccounts) GetProfile(ctx context.Context, partyID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[partyID]
	if !ok {
		return nil, models.ErrPartyUnavailable
	}
	copied := *p
	return &copied, nil
}

func (f *fakeAccounts) SetBusy(ctx context.Context, partyID string, busy bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[partyID]; ok {
		p.Busy = busy
	}
	entry := partyID + "=false"
	if busy {
		entry = partyID + "=true"
	}
	f.busyLog = append(f.busyLog, entry)
	return nil
}

func (f *fakeAccounts) isBusy(partyID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[partyID].Busy
}

type fakeResolver struct {
	quote *models.Quote
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, payer, provider *models.Profile, kind models.SessionKind) (*models.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q := *f.quote
	return &q, nil
}

type settleCall struct {
	sessionID string
	reason    models.TerminationReason
}

type fakeSettler struct {
	mu    sync.Mutex
	calls []settleCall
	err   error
}

func (f *fakeSettler) Settle(ctx context.Context, session *models.Session, reason models.TerminationReason) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, settleCall{sessionID: session.SessionID, reason: reason})
	settlement := &models.Settlement{
		SessionID: session.SessionID,
		Reason:    reason,
		EndedAt:   time.Now(),
		Cost:      decimal.Zero,
	}
	if session.StartedAt != nil {
		settlement.DurationSeconds = int(settlement.EndedAt.Sub(*session.StartedAt).Seconds())
	}
	return settlement, nil
}

func (f *fakeSettler) reasons() []models.TerminationReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TerminationReason, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.reason)
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushed []string // "partyID:eventType"
}

func (f *fakeNotifier) Notify(partyID string, event schemas.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, partyID+":"+event.Type)
}

func (f *fakeNotifier) pushes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushed...)
}

type fakeSender struct {
	mu     sync.Mutex
	events []schemas.Event
	err    error
}

func (f *fakeSender) Send(event schemas.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSender) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	orch     *Orchestrator
	store    *store.SessionStore
	presence *presence.Registry
	timers   *timers.Manager
	accounts *fakeAccounts
	resolver *fakeResolver
	settler  *fakeSettler
	notifier *fakeNotifier
}

func newFixture(cfg Config) *fixture {
	accounts := &fakeAccounts{
		profiles: map[string]*models.Profile{
			"payer-1": {
				PartyID:     "payer-1",
				DisplayName: "Pat",
				Balance:     decimal.NewFromInt(100),
			},
			"provider-1": {
				PartyID:       "provider-1",
				DisplayName:   "Quinn",
				Available:     true,
				ChatRate:      decimal.NewFromInt(10),
				CommissionPct: decimal.NewFromInt(70),
			},
		},
	}
	resolver := &fakeResolver{
		quote: &models.Quote{
			RatePerMinute: decimal.NewFromInt(10),
			CommissionPct: decimal.NewFromInt(70),
			MaxMinutes:    5,
		},
	}
	settler := &fakeSettler{}
	notifier := &fakeNotifier{}
	sessionStore := store.NewSessionStore()
	registry := presence.NewRegistry()
	timerManager := timers.NewManager()

	orch := NewOrchestrator(sessionStore, registry, timerManager, accounts, resolver, settler, notifier, cfg)

	return &fixture{
		orch:     orch,
		store:    sessionStore,
		presence: registry,
		timers:   timerManager,
		accounts: accounts,
		resolver: resolver,
		settler:  settler,
		notifier: notifier,
	}
}

func defaultConfig() Config {
	return Config{ResponseTimeout: time.Hour, NotifyTerminationBoth: true}
}

func (f *fixture) request(t *testing.T, payerHandle *fakeSender) *models.Session {
	t.Helper()
	session, err := f.orch.RequestSession(context.Background(), "payer-1", "provider-1", models.KindChat, payerHandle)
	require.NoError(t, err)
	return session
}

func TestRequestSessionHappyPath(t *testing.T) {
	f := newFixture(defaultConfig())
	payerHandle := &fakeSender{}
	providerHandle := &fakeSender{}
	f.presence.Register("provider-1", providerHandle)

	session := f.request(t, payerHandle)

	require.Equal(t, models.StateRequested, session.State)
	require.Equal(t, 5, session.MaxMinutes)
	require.Equal(t, 1, f.store.Len())
	require.True(t, f.accounts.isBusy("payer-1"))
	require.True(t, f.accounts.isBusy("provider-1"))
	require.True(t, f.timers.Armed(session.SessionID, timers.KindResponse))

	require.Equal(t, []string{schemas.EventSessionRequested}, payerHandle.types())
	require.Equal(t, []string{schemas.EventIncomingRequest}, providerHandle.types())
}

func TestRequestSessionOfflineProviderGetsPush(t *testing.T) {
	f := newFixture(defaultConfig())

	session := f.request(t, &fakeSender{})

	require.NotNil(t, session)
	require.Equal(t, []string{"provider-1:" + schemas.EventIncomingRequest}, f.notifier.pushes())
}

func TestRequestSessionPayerBusy(t *testing.T) {
	f := newFixture(defaultConfig())
	f.accounts.profiles["payer-1"].Busy = true

	_, err := f.orch.RequestSession(context.Background(), "payer-1", "provider-1", models.KindChat, &fakeSender{})
	require.ErrorIs(t, err, models.ErrPartyUnavailable)
	require.Equal(t, 0, f.store.Len())
}

func TestRequestSessionProviderBusy(t *testing.T) {
	f := newFixture(defaultConfig())
	f.accounts.profiles["provider-1"].Busy = true

	_, err := f.orch.RequestSession(context.Background(), "payer-1", "provider-1", models.KindChat, &fakeSender{})
	require.ErrorIs(t, err, models.ErrPartyUnavailable)
}

func TestRequestSessionProviderUnavailable(t *testing.T) {
	f := newFixture(defaultConfig())
	f.accounts.profiles["provider-1"].Available = false

	_, err := f.orch.RequestSession(context.Background(), "payer-1", "provider-1", models.KindChat, &fakeSender{})
	require.ErrorIs(t, err, models.ErrPartyUnavailable)
}

func TestRequestSessionResolverRejection(t *testing.T) {
	f := newFixture(defaultConfig())
	f.resolver.err = models.ErrInsufficientBalance

	_, err := f.orch.RequestSession(context.Background(), "payer-1", "provider-1", models.KindChat, &fakeSender{})
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	// Nobody was marked busy for a session that never existed.
	require.False(t, f.accounts.isBusy("payer-1"))
	require.False(t, f.accounts.isBusy("provider-1"))
	require.Equal(t, 0, f.store.Len())
}

func TestAcceptActivatesSession(t *testing.T) {
	f := newFixture(defaultConfig())
	payerHandle := &fakeSender{}
	providerHandle := &fakeSender{}
	session := f.request(t, payerHandle)

	err := f.orch.Accept(context.Background(), session.SessionID, "provider-1", providerHandle)
	require.NoError(t, err)

	require.Equal(t, models.StateActive, session.State)
	require.NotNil(t, session.StartedAt)
	require.False(t, f.timers.Armed(session.SessionID, timers.KindResponse))
	require.True(t, f.timers.Armed(session.SessionID, timers.KindExhaustion))

	// The exhaustion deadline covers the full affordable duration fixed at
	// creation.
	deadline, ok := f.timers.Deadline(session.SessionID, timers.KindExhaustion)
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(5*time.Minute), deadline, 2*time.Second)

	require.Contains(t, payerHandle.types(), schemas.EventSessionActivated)
	require.Equal(t, []string{schemas.EventSessionActivated}, providerHandle.types())
}

func TestAcceptByWrongProvider(t *testing.T) {
	f := newFixture(defaultConfig())
	session := f.request(t, &fakeSender{})

	err := f.orch.Accept(context.Background(), session.SessionID, "provider-2", &fakeSender{})
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Equal(t, models.StateRequested, session.State)
}

func TestAcceptTwice(t *testing.T) {
	f := newFixture(defaultConfig())
	session := f.request(t, &fakeSender{})

	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{}))
	err := f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{})
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAcceptUnknownSession(t *testing.T) {
	f := newFixture(defaultConfig())

	err := f.orch.Accept(context.Background(), "nope", "provider-1", &fakeSender{})
	require.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRejectTerminatesSession(t *testing.T) {
	f := newFixture(defaultConfig())
	payerHandle := &fakeSender{}
	session := f.request(t, payerHandle)

	err := f.orch.Reject(context.Background(), session.SessionID, "provider-1")
	require.NoError(t, err)

	require.Equal(t, []models.TerminationReason{models.ReasonRejected}, f.settler.reasons())
	require.Equal(t, 0, f.store.Len())
	require.False(t, f.timers.Armed(session.SessionID, timers.KindResponse))
	require.Contains(t, payerHandle.types(), schemas.EventSessionTerminated)
}

func TestEndWhileRequestedIsCancellation(t *testing.T) {
	f := newFixture(defaultConfig())
	session := f.request(t, &fakeSender{})

	err := f.orch.End(context.Background(), session.SessionID, "payer-1")
	require.NoError(t, err)
	require.Equal(t, []models.TerminationReason{models.ReasonRejected}, f.settler.reasons())
}

func TestEndByPayer(t *testing.T) {
	f := newFixture(defaultConfig())
	session := f.request(t, &fakeSender{})
	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{}))

	err := f.orch.End(context.Background(), session.SessionID, "payer-1")
	require.NoError(t, err)
	require.Equal(t, []models.TerminationReason{models.ReasonEndedByPayer}, f.settler.reasons())
	require.Equal(t, 0, f.store.Len())
}

func TestEndByProvider(t *testing.T) {
	f := newFixture(defaultConfig())
	session := f.request(t, &fakeSender{})
	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{}))

	err := f.orch.End(context.Background(), session.SessionID, "provider-1")
	require.NoError(t, err)
	require.Equal(t, []models.TerminationReason{models.ReasonEndedByProvider}, f.settler.reasons())
}

func TestEndByStranger(t *testing.T) {
	f := newFixture(defaultConfig())
	session := f.request(t, &fakeSender{})

	err := f.orch.End(context.Background(), session.SessionID, "party-3")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Equal(t, 1, f.store.Len())
}

func TestResponseTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.ResponseTimeout = 20 * time.Millisecond
	f := newFixture(cfg)
	payerHandle := &fakeSender{}
	session := f.request(t, payerHandle)

	require.Eventually(t, func() bool {
		return f.store.Len() == 0
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []models.TerminationReason{models.ReasonNoResponse}, f.settler.reasons())
	require.Contains(t, payerHandle.types(), schemas.EventSessionTerminated)

	// A late accept finds nothing to act on.
	err := f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{})
	require.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestAcceptDisarmsResponseTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.ResponseTimeout = 30 * time.Millisecond
	f := newFixture(cfg)
	session := f.request(t, &fakeSender{})

	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{}))

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, models.StateActive, session.State)
	require.Empty(t, f.settler.reasons())
}

func TestExhaustionTimeout(t *testing.T) {
	f := newFixture(defaultConfig())
	// A zero affordable duration fires the exhaustion timer immediately on
	// acceptance.
	f.resolver.quote.MaxMinutes = 0
	session := f.request(t, &fakeSender{})

	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{}))

	require.Eventually(t, func() bool {
		return f.store.Len() == 0
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []models.TerminationReason{models.ReasonBalanceExhausted}, f.settler.reasons())
}

func TestDisconnectWhileRequested(t *testing.T) {
	f := newFixture(defaultConfig())
	payerHandle := &fakeSender{}
	f.request(t, payerHandle)

	f.orch.Disconnect("payer-1", payerHandle)

	require.Equal(t, []models.TerminationReason{models.ReasonRejected}, f.settler.reasons())
	require.Equal(t, 0, f.store.Len())
}

func TestDisconnectWhileActive(t *testing.T) {
	f := newFixture(defaultConfig())
	providerHandle := &fakeSender{}
	session := f.request(t, &fakeSender{})
	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", providerHandle))

	f.orch.Disconnect("provider-1", providerHandle)

	require.Equal(t, []models.TerminationReason{models.ReasonDisconnected}, f.settler.reasons())
	require.Equal(t, 0, f.store.Len())
}

func TestDisconnectFromStaleHandle(t *testing.T) {
	f := newFixture(defaultConfig())
	payerHandle := &fakeSender{}
	f.request(t, payerHandle)

	// A connection that was never part of the session closes; nothing
	// happens.
	f.orch.Disconnect("payer-1", &fakeSender{})

	require.Empty(t, f.settler.reasons())
	require.Equal(t, 1, f.store.Len())
}

func TestDisconnectWithNoSession(t *testing.T) {
	f := newFixture(defaultConfig())
	f.orch.Disconnect("payer-1", &fakeSender{})
	require.Empty(t, f.settler.reasons())
}

func TestSettlementFailureClearsBusyFlags(t *testing.T) {
	f := newFixture(defaultConfig())
	session := f.request(t, &fakeSender{})
	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", &fakeSender{}))

	f.settler.err = errors.New("database down")

	err := f.orch.End(context.Background(), session.SessionID, "payer-1")
	require.Error(t, err)

	// The session is gone and both parties are released even though the
	// settlement transaction rolled back.
	require.Equal(t, 0, f.store.Len())
	require.False(t, f.accounts.isBusy("payer-1"))
	require.False(t, f.accounts.isBusy("provider-1"))
}

func TestTerminationNotifiesOnlyCounterparty(t *testing.T) {
	cfg := defaultConfig()
	cfg.NotifyTerminationBoth = false
	f := newFixture(cfg)
	payerHandle := &fakeSender{}
	providerHandle := &fakeSender{}
	session := f.request(t, payerHandle)
	require.NoError(t, f.orch.Accept(context.Background(), session.SessionID, "provider-1", providerHandle))

	require.NoError(t, f.orch.End(context.Background(), session.SessionID, "payer-1"))

	require.NotContains(t, payerHandle.types(), schemas.EventSessionTerminated)
	require.Contains(t, providerHandle.types(), schemas.EventSessionTerminated)
}

func TestDeliveryFallsBackToPush(t *testing.T) {
	f := newFixture(defaultConfig())
	payerHandle := &fakeSender{err: errors.New("broken pipe")}
	session := f.request(t, payerHandle)

	require.NoError(t, f.orch.Reject(context.Background(), session.SessionID, "provider-1"))

	require.Contains(t, f.notifier.pushes(), "payer-1:"+schemas.EventSessionRequested)
	require.Contains(t, f.notifier.pushes(), "payer-1:"+schemas.EventSessionTerminated)
}
