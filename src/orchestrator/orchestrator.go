package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"orchestrator-service/src/models"
	"orchestrator-service/src/presence"
	"orchestrator-service/src/schemas"
	"orchestrator-service/src/store"
	"orchestrator-service/src/timers"

	"github.com/google/uuid"
)

// Accounts is the slice of external account storage the orchestrator needs:
// profile reads and the busy flag check-and-set.
type Accounts interface {
	GetProfile(ctx context.Context, partyID string) (*models.Profile, error)
	SetBusy(ctx context.Context, partyID string, busy bool) error
}

// Resolver computes the fixed billing terms for a prospective session.
type Resolver interface {
	Resolve(ctx context.Context, payer, provider *models.Profile, kind models.SessionKind) (*models.Quote, error)
}

// Settler applies the financial settlement of a terminated session.
type Settler interface {
	Settle(ctx context.Context, session *models.Session, reason models.TerminationReason) (*models.Settlement, error)
}

// Notifier dispatches an event to a party with no live transport handle.
// Fire and forget: failures are logged by the implementation, never block
// session progress.
type Notifier interface {
	Notify(partyID string, event schemas.Event)
}

// Config holds the orchestrator policy knobs.
type Config struct {
	// ResponseTimeout is the window a provider has to accept or reject a
	// request before it auto-cancels with NO_RESPONSE.
	ResponseTimeout time.Duration
	// NotifyTerminationBoth delivers session_terminated to both parties;
	// when false only the non-initiating party is notified.
	NotifyTerminationBoth bool
}

// Orchestrator is the session state machine. It receives party actions,
// validates them against the session store, coordinates timers and
// presence, and invokes the billing engine on terminal transitions.
// Transitions for one session never execute concurrently: the store hands
// out a per-session lock, and session creation is serialized through the
// admission mutex so two requests cannot both pass the busy check.
type Orchestrator struct {
	store    *store.SessionStore
	presence *presence.Registry
	timers   *timers.Manager
	accounts Accounts
	resolver Resolver
	billing  Settler
	notifier Notifier
	cfg      Config

	admission sync.Mutex
	now       func() time.Time
}

// NewOrchestrator wires the session state machine.
func NewOrchestrator(
	sessions *store.SessionStore,
	registry *presence.Registry,
	timerManager *timers.Manager,
	accounts Accounts,
	resolver Resolver,
	billing Settler,
	notifier Notifier,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		store:    sessions,
		presence: registry,
		timers:   timerManager,
		accounts: accounts,
		resolver: resolver,
		billing:  billing,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RequestSession creates a session in REQUESTED on behalf of the payer and
// notifies the provider. payerHandle is snapshotted onto the session for
// the rest of its life; reconnects do not retarget in-flight deliveries.
func (o *Orchestrator) RequestSession(ctx context.Context, payerID, providerID string, kind models.SessionKind, payerHandle models.Sender) (*models.Session, error) {
	o.admission.Lock()
	defer o.admission.Unlock()

	payer, err := o.accounts.GetProfile(ctx, payerID)
	if err != nil {
		return nil, err
	}
	if payer.Busy {
		return nil, fmt.Errorf("you already have a session in progress: %w", models.ErrPartyUnavailable)
	}

	provider, err := o.accounts.GetProfile(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider.Busy {
		return nil, fmt.Errorf("%s is busy on another session: %w", provider.DisplayName, models.ErrPartyUnavailable)
	}
	if !provider.Available {
		return nil, fmt.Errorf("%s is not taking sessions right now: %w", provider.DisplayName, models.ErrPartyUnavailable)
	}

	quote, err := o.resolver.Resolve(ctx, payer, provider, kind)
	if err != nil {
		return nil, err
	}

	if err := o.accounts.SetBusy(ctx, payerID, true); err != nil {
		return nil, fmt.Errorf("failed to mark payer busy: %w", err)
	}
	if err := o.accounts.SetBusy(ctx, providerID, true); err != nil {
		if clearErr := o.accounts.SetBusy(ctx, payerID, false); clearErr != nil {
			slog.Error("Failed to roll back payer busy flag", "payer_id", payerID, "error", clearErr)
		}
		return nil, fmt.Errorf("failed to mark provider busy: %w", err)
	}

	session := &models.Session{
		SessionID:             uuid.New().String(),
		PayerID:               payerID,
		ProviderID:            providerID,
		Kind:                  kind,
		IsFree:                quote.IsFree,
		RatePerMinute:         quote.RatePerMinute,
		ProviderCommissionPct: quote.CommissionPct,
		MaxMinutes:            quote.MaxMinutes,
		State:                 models.StateRequested,
		RequestedAt:           o.now(),
		PayerHandle:           payerHandle,
	}
	o.store.Put(session)

	sessionID := session.SessionID
	o.timers.ArmResponse(sessionID, o.cfg.ResponseTimeout, func() {
		o.handleResponseTimeout(sessionID)
	})

	slog.Info("Session requested",
		"session_id", sessionID,
		"payer_id", payerID,
		"provider_id", providerID,
		"kind", kind,
		"is_free", quote.IsFree,
		"max_minutes", quote.MaxMinutes)

	providerEvent := schemas.NewIncomingRequest(sessionID, string(kind), payerID, payer.DisplayName)
	providerLive, _ := o.presence.Lookup(providerID)
	o.deliver(providerID, providerLive, providerEvent)

	o.deliver(payerID, payerHandle, schemas.NewSessionRequested(sessionID, quote.MaxMinutes, quote.IsFree))

	return session, nil
}

// Accept transitions a REQUESTED session to ACTIVE. providerHandle is
// snapshotted for delivery; the exhaustion timer is armed for the full
// affordable duration fixed at creation.
func (o *Orchestrator) Accept(ctx context.Context, sessionID, providerID string, providerHandle models.Sender) error {
	session, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()

	if session.ProviderID != providerID {
		return fmt.Errorf("session %s does not belong to provider %s: %w", sessionID, providerID, models.ErrInvalidTransition)
	}
	if session.State != models.StateRequested {
		return fmt.Errorf("cannot accept session in state %s: %w", session.State, models.ErrInvalidTransition)
	}

	o.timers.Cancel(sessionID, timers.KindResponse)

	startedAt := o.now()
	session.State = models.StateActive
	session.StartedAt = &startedAt
	session.ProviderHandle = providerHandle

	o.timers.ArmExhaustion(sessionID, time.Duration(session.MaxMinutes)*time.Minute, func() {
		o.handleExhaustionTimeout(sessionID)
	})

	slog.Info("Session activated",
		"session_id", sessionID,
		"payer_id", session.PayerID,
		"provider_id", providerID,
		"max_minutes", session.MaxMinutes)

	activated := schemas.NewSessionActivated(sessionID, session.MaxMinutes)
	o.deliver(session.PayerID, session.PayerHandle, activated)
	o.deliver(session.ProviderID, session.ProviderHandle, activated)

	return nil
}

// Reject terminates a REQUESTED session before acceptance. No billing
// occurs; only busy flags clear and the final record is written.
func (o *Orchestrator) Reject(ctx context.Context, sessionID, providerID string) error {
	session, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()

	if session.ProviderID != providerID {
		return fmt.Errorf("session %s does not belong to provider %s: %w", sessionID, providerID, models.ErrInvalidTransition)
	}
	if session.State != models.StateRequested {
		return fmt.Errorf("cannot reject session in state %s: %w", session.State, models.ErrInvalidTransition)
	}

	return o.terminate(ctx, session, models.ReasonRejected, providerID)
}

// End terminates a session at a party's request. An end while still
// REQUESTED is treated as a cancellation (reject semantics, no billing).
func (o *Orchestrator) End(ctx context.Context, sessionID, partyID string) error {
	session, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()

	if partyID != session.PayerID && partyID != session.ProviderID {
		return fmt.Errorf("party %s is not part of session %s: %w", partyID, sessionID, models.ErrInvalidTransition)
	}

	switch session.State {
	case models.StateRequested:
		return o.terminate(ctx, session, models.ReasonRejected, partyID)
	case models.StateActive:
		reason := models.ReasonEndedByPayer
		if partyID == session.ProviderID {
			reason = models.ReasonEndedByProvider
		}
		return o.terminate(ctx, session, reason, partyID)
	default:
		return fmt.Errorf("cannot end session in state %s: %w", session.State, models.ErrInvalidTransition)
	}
}

// Disconnect handles a transport-level connection loss. A REQUESTED session
// is rejected, an ACTIVE one ends with DISCONNECTED; a disconnect with no
// matching session, or from a stale handle already replaced by a reconnect,
// is a no-op.
func (o *Orchestrator) Disconnect(partyID string, handle models.Sender) {
	sessionID, ok := o.store.FindByParty(partyID)
	if !ok {
		return
	}

	session, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return
	}
	defer release()

	if session.PayerHandle != handle && session.ProviderHandle != handle {
		return
	}

	ctx := context.Background()
	switch session.State {
	case models.StateRequested:
		if err := o.terminate(ctx, session, models.ReasonRejected, partyID); err != nil {
			slog.Error("Failed to terminate session on disconnect", "session_id", sessionID, "error", err)
		}
	case models.StateActive:
		if err := o.terminate(ctx, session, models.ReasonDisconnected, partyID); err != nil {
			slog.Error("Failed to terminate session on disconnect", "session_id", sessionID, "error", err)
		}
	}
}

// handleResponseTimeout fires when the provider never answered. A session
// already gone or already answered is a race-safe no-op.
func (o *Orchestrator) handleResponseTimeout(sessionID string) {
	session, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return
	}
	defer release()

	if session.State != models.StateRequested {
		return
	}

	slog.Info("Session response window expired", "session_id", sessionID)
	if err := o.terminate(context.Background(), session, models.ReasonNoResponse, ""); err != nil {
		slog.Error("Failed to terminate session on response timeout", "session_id", sessionID, "error", err)
	}
}

// handleExhaustionTimeout fires when the prepaid maximum duration is
// reached. Same termination path as a party-initiated end.
func (o *Orchestrator) handleExhaustionTimeout(sessionID string) {
	session, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return
	}
	defer release()

	if session.State != models.StateActive {
		return
	}

	slog.Info("Session balance exhausted", "session_id", sessionID)
	if err := o.terminate(context.Background(), session, models.ReasonBalanceExhausted, ""); err != nil {
		slog.Error("Failed to terminate session on exhaustion", "session_id", sessionID, "error", err)
	}
}

// terminate is the single terminal path for every reason. Caller holds the
// session lock. Order matters: timers are cancelled first so nothing can
// fire against the session mid-settlement, billing runs synchronously, and
// only then is the session removed, so balance mutations and busy-flag
// clears are observed together by subsequent requests.
func (o *Orchestrator) terminate(ctx context.Context, session *models.Session, reason models.TerminationReason, initiatorID string) error {
	sessionID := session.SessionID
	o.timers.CancelAll(sessionID)

	session.State = models.StateTerminated
	session.Reason = reason

	settlement, err := o.billing.Settle(ctx, session, reason)
	if err != nil {
		// The settlement transaction rolled back; clear busy flags
		// best-effort so both parties are not locked out forever.
		if clearErr := o.accounts.SetBusy(ctx, session.PayerID, false); clearErr != nil {
			slog.Error("Failed to clear payer busy flag after settlement failure", "payer_id", session.PayerID, "error", clearErr)
		}
		if clearErr := o.accounts.SetBusy(ctx, session.ProviderID, false); clearErr != nil {
			slog.Error("Failed to clear provider busy flag after settlement failure", "provider_id", session.ProviderID, "error", clearErr)
		}
		o.store.Remove(sessionID)
		return err
	}

	o.store.Remove(sessionID)

	durationSeconds := 0
	cost := "0"
	if settlement != nil {
		session.EndedAt = &settlement.EndedAt
		durationSeconds = settlement.DurationSeconds
		cost = settlement.Cost.String()
	}

	slog.Info("Session terminated",
		"session_id", sessionID,
		"reason", reason,
		"duration_seconds", durationSeconds)

	terminated := schemas.NewSessionTerminated(sessionID, string(reason), durationSeconds, cost)
	if o.cfg.NotifyTerminationBoth || initiatorID != session.PayerID {
		o.deliver(session.PayerID, session.PayerHandle, terminated)
	}
	if o.cfg.NotifyTerminationBoth || initiatorID != session.ProviderID {
		o.deliver(session.ProviderID, session.ProviderHandle, terminated)
	}

	return nil
}

// deliver sends an event over the session's handle snapshot, falling back
// to push dispatch when the party has no live connection.
func (o *Orchestrator) deliver(partyID string, handle models.Sender, event schemas.Event) {
	if handle != nil {
		err := handle.Send(event)
		if err == nil {
			return
		}
		slog.Warn("Failed to deliver event over transport handle",
			"party_id", partyID,
			"event", event.Type,
			"error", err)
	}
	if o.notifier != nil {
		o.notifier.Notify(partyID, event)
	}
}
