package tariff

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orchestrator-service/src/models"

	"github.com/shopspring/decimal"
)

// Accounts is the slice of account storage the resolver needs for the
// daily free-quota bookkeeping.
type Accounts interface {
	// ResetFreeQuota zeroes the payer's free-session counter and stamps the
	// given reset date. Idempotent per day: the stored date guards re-runs.
	ResetFreeQuota(ctx context.Context, partyID, date string) error
	// ConsumeFreeSession increments the payer's free-session counter.
	ConsumeFreeSession(ctx context.Context, partyID string) error
}

// Config holds the platform tariff policy.
type Config struct {
	// DailyFreeLimit is the number of free sessions a payer gets per
	// calendar day in Timezone.
	DailyFreeLimit int
	// FreeMaxMinutes caps the length of a free session, independent of
	// balance.
	FreeMaxMinutes int
	// MinAffordableMinutes rejects sessions whose affordable length falls
	// below it; 0 disables the check.
	MinAffordableMinutes int
	// Timezone is the platform's fixed reference timezone for quota resets.
	Timezone *time.Location
}

// Resolver computes whether a session is free and, if not, its per-minute
// rate and the maximum duration the payer's balance affords.
type Resolver struct {
	accounts Accounts
	cfg      Config
	now      func() time.Time
}

// NewResolver creates a tariff resolver over the given account storage.
func NewResolver(accounts Accounts, cfg Config) *Resolver {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Resolver{
		accounts: accounts,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Resolve produces the fixed billing terms for a prospective session.
// Provider availability is the orchestrator's precondition, not checked here.
func (r *Resolver) Resolve(ctx context.Context, payer, provider *models.Profile, kind models.SessionKind) (*models.Quote, error) {
	today := r.now().In(r.cfg.Timezone).Format("2006-01-02")

	if payer.LastQuotaResetDate != today {
		if err := r.accounts.ResetFreeQuota(ctx, payer.PartyID, today); err != nil {
			return nil, fmt.Errorf("failed to reset free quota: %w", err)
		}
		payer.FreeSessionsUsedToday = 0
		payer.LastQuotaResetDate = today
	}

	if payer.FreeSessionsUsedToday < r.cfg.DailyFreeLimit {
		if err := r.accounts.ConsumeFreeSession(ctx, payer.PartyID); err != nil {
			return nil, fmt.Errorf("failed to consume free session: %w", err)
		}
		payer.FreeSessionsUsedToday++

		slog.Info("Granted free session",
			"payer_id", payer.PartyID,
			"used_today", payer.FreeSessionsUsedToday,
			"daily_limit", r.cfg.DailyFreeLimit)

		return &models.Quote{
			IsFree:        true,
			RatePerMinute: decimal.Zero,
			CommissionPct: provider.CommissionPct,
			MaxMinutes:    r.cfg.FreeMaxMinutes,
		}, nil
	}

	rate := provider.RateFor(kind)
	if !rate.IsPositive() {
		return nil, fmt.Errorf("provider %s has no %s rate configured: %w",
			provider.PartyID, kind, models.ErrPartyUnavailable)
	}

	maxMinutes := int(payer.Balance.Div(rate).IntPart())
	if maxMinutes < r.cfg.MinAffordableMinutes {
		return nil, fmt.Errorf("balance %s affords %d minute(s) at rate %s: %w",
			payer.Balance, maxMinutes, rate, models.ErrInsufficientBalance)
	}

	return &models.Quote{
		IsFree:        false,
		RatePerMinute: rate,
		CommissionPct: provider.CommissionPct,
		MaxMinutes:    maxMinutes,
	}, nil
}
