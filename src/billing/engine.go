package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orchestrator-service/src/models"

	"github.com/shopspring/decimal"
)

// Store applies a computed settlement to durable storage as a single unit:
// balance mutations, ledger entries, busy-flag clears and the final session
// record must be observed together.
type Store interface {
	Apply(ctx context.Context, settlement *models.Settlement) error
}

// Config holds the billing policy knobs.
type Config struct {
	// FreeSessionCredit is the flat per-session credit a provider earns for
	// a completed free session. Not rate-based.
	FreeSessionCredit decimal.Decimal
}

// Engine performs the financial settlement of terminated sessions. Every
// terminal transition, party-initiated or timer-fired, goes through Settle
// so there is exactly one billing code path.
type Engine struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewEngine creates a billing engine over the given settlement store.
func NewEngine(store Store, cfg Config) *Engine {
	return &Engine{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Settle computes and applies the settlement for a terminated session.
// Idempotent: a session settles at most once; a second call is a no-op that
// returns the nil settlement without touching storage.
func (e *Engine) Settle(ctx context.Context, session *models.Session, reason models.TerminationReason) (*models.Settlement, error) {
	if session.Settled {
		slog.Warn("Ignoring duplicate settlement attempt",
			"session_id", session.SessionID,
			"reason", reason)
		return nil, nil
	}
	session.Settled = true

	endedAt := e.now()
	settlement := &models.Settlement{
		SessionID:       session.SessionID,
		PayerID:         session.PayerID,
		ProviderID:      session.ProviderID,
		Kind:            session.Kind,
		Reason:          reason,
		IsFree:          session.IsFree,
		RequestedAt:     session.RequestedAt,
		StartedAt:       session.StartedAt,
		EndedAt:         endedAt,
		Cost:            decimal.Zero,
		ProviderEarning: decimal.Zero,
		PlatformEarning: decimal.Zero,
	}

	// A session that never left REQUESTED carries no charge: busy flags are
	// cleared and the final record written, but no ledger entries exist.
	if session.StartedAt != nil {
		durationSeconds := int(endedAt.Sub(*session.StartedAt).Seconds())
		if durationSeconds < 0 {
			durationSeconds = 0
		}
		billedMinutes := (durationSeconds + 59) / 60

		settlement.DurationSeconds = durationSeconds
		settlement.BilledMinutes = billedMinutes

		if session.IsFree {
			settlement.ProviderEarning = e.cfg.FreeSessionCredit
			settlement.Entries = []models.LedgerEntry{
				{
					SessionID: session.SessionID,
					PartyID:   session.PayerID,
					Direction: models.DirectionDebit,
					Amount:    decimal.Zero,
					Category:  models.CategoryPayerCharge,
					IsFree:    true,
					CreatedAt: endedAt,
				},
				{
					SessionID: session.SessionID,
					PartyID:   session.ProviderID,
					Direction: models.DirectionCredit,
					Amount:    e.cfg.FreeSessionCredit,
					Category:  models.CategoryProviderEarning,
					IsFree:    true,
					CreatedAt: endedAt,
				},
			}
		} else {
			cost := session.RatePerMinute.Mul(decimal.NewFromInt(int64(billedMinutes)))
			providerEarning := cost.Mul(session.ProviderCommissionPct).Div(decimal.NewFromInt(100))
			platformEarning := cost.Sub(providerEarning)

			settlement.Cost = cost
			settlement.ProviderEarning = providerEarning
			settlement.PlatformEarning = platformEarning
			settlement.Entries = []models.LedgerEntry{
				{
					SessionID: session.SessionID,
					PartyID:   session.PayerID,
					Direction: models.DirectionDebit,
					Amount:    cost,
					Category:  models.CategoryPayerCharge,
					CreatedAt: endedAt,
				},
				{
					SessionID: session.SessionID,
					PartyID:   session.ProviderID,
					Direction: models.DirectionCredit,
					Amount:    providerEarning,
					Category:  models.CategoryProviderEarning,
					CreatedAt: endedAt,
				},
				{
					SessionID: session.SessionID,
					PartyID:   models.PlatformPartyID,
					Direction: models.DirectionCredit,
					Amount:    platformEarning,
					Category:  models.CategoryPlatformCommission,
					CreatedAt: endedAt,
				},
			}
		}
	}

	if err := e.store.Apply(ctx, settlement); err != nil {
		// Balance mutation and ledger write must appear atomic; a partial
		// failure is a reportable inconsistency, never swallowed.
		slog.Error("Settlement failed",
			"session_id", session.SessionID,
			"reason", reason,
			"cost", settlement.Cost,
			"error", err)
		return nil, fmt.Errorf("failed to apply settlement for session %s: %w: %v",
			session.SessionID, models.ErrSettlementFailure, err)
	}

	slog.Info("Session settled",
		"session_id", session.SessionID,
		"reason", reason,
		"is_free", session.IsFree,
		"billed_minutes", settlement.BilledMinutes,
		"cost", settlement.Cost,
		"provider_earning", settlement.ProviderEarning,
		"platform_earning", settlement.PlatformEarning)

	return settlement, nil
}
