package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"genstudio/internal/domain"
)

// Reserve holds cost credits for userID. The user's paid balance is used
// when it covers the cost; otherwise the reservation draws on the shared
// daily free allowance. The returned balance is the user's paid balance
// after the hold.
func (l *Ledger) Reserve(ctx context.Context, userID string, cost int) (*domain.Reservation, int, error) {
	if cost <= 0 {
		return nil, 0, domain.NewValidationError("cost", "must be positive")
	}
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("load user: %w", err)
	}

	now := l.now()
	res := &domain.Reservation{
		ID:        l.newID(),
		UserID:    user.ID,
		Credits:   cost,
		Day:       domain.DayKey(now),
		Status:    domain.ReservationPending,
		CreatedAt: now,
	}

	balance := user.CreditsBalance
	if balance >= cost {
		res.Source = domain.FundingPaid
		after, err := l.reservations.ReservePaid(ctx, res)
		switch {
		case err == nil:
			l.logger.Debug().Str("reservation", res.ID).Str("user_id", user.ID).Int("cost", cost).Int("balance", after).Msg("ledger: paid credits reserved")
			return res, after, nil
		case !errors.Is(err, domain.ErrInsufficientFunds):
			return nil, 0, fmt.Errorf("reserve paid credits: %w", err)
		}
		// A concurrent debit drained the balance between the read and the
		// debit; fall through to the free tier with the fresh balance.
		if fresh, err := l.users.GetByID(ctx, userID); err == nil {
			balance = fresh.CreditsBalance
		}
	}

	res.Source = domain.FundingFree
	res.ValueCents = int64(cost) * l.policy.CostPerCreditCents
	if err := l.reservations.ReserveFree(ctx, res, l.policy.DailyFreeCapCents); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("reserve free credits: %w", err)
	}
	l.logger.Debug().Str("reservation", res.ID).Str("user_id", user.ID).Int("cost", cost).Int64("value_cents", res.ValueCents).Msg("ledger: free credits reserved")
	return res, balance, nil
}

// Commit settles res as spent.
func (l *Ledger) Commit(ctx context.Context, res *domain.Reservation) error {
	return l.settle(ctx, res, "commit", l.reservations.Commit)
}

// Release settles res as refunded. Paid credits return to the user's
// balance in full.
func (l *Ledger) Release(ctx context.Context, res *domain.Reservation) error {
	return l.settle(ctx, res, "release", l.reservations.Release)
}

// settle retries transient store failures. A reservation that still cannot
// be settled stays pending and is picked up by SettleStale.
func (l *Ledger) settle(ctx context.Context, res *domain.Reservation, action string, fn func(context.Context, string) (*domain.Reservation, error)) error {
	settled, err := backoff.Retry(ctx, func() (*domain.Reservation, error) {
		out, err := fn(ctx, res.ID)
		if errors.Is(err, domain.ErrReservationSettled) || errors.Is(err, domain.ErrNotFound) {
			return nil, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(l.newBackOff()), backoff.WithMaxTries(l.settleAttempts))
	if err != nil {
		l.logger.Error().Err(err).
			Str("reservation", res.ID).
			Str("user_id", res.UserID).
			Str("source", string(res.Source)).
			Int("credits", res.Credits).
			Msgf("ledger: %s failed, reservation left pending", action)
		return fmt.Errorf("%s reservation %s: %w", action, res.ID, err)
	}
	*res = *settled
	return nil
}

// SettleStale settles pending reservations created before now-olderThan.
// A reservation whose generation was recorded as succeeded is committed,
// since the user already has the images; every other one is released.
// It returns the number of reservations settled.
func (l *Ledger) SettleStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	stale, err := l.reservations.ListStale(ctx, l.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale reservations: %w", err)
	}
	settled := 0
	for _, res := range stale {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		action, settle := "release", l.reservations.Release
		gen, err := l.generations.FindByReservation(ctx, res.ID)
		switch {
		case err == nil && gen.Status == domain.GenerationSucceeded:
			action, settle = "commit", l.reservations.Commit
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			// Unknown outcome; retry on the next sweep rather than guess.
			l.logger.Error().Err(err).Str("reservation", res.ID).Msg("ledger: stale outcome lookup failed")
			continue
		}
		if _, err := settle(ctx, res.ID); err != nil {
			if errors.Is(err, domain.ErrReservationSettled) {
				continue
			}
			l.logger.Error().Err(err).Str("reservation", res.ID).Msgf("ledger: stale %s failed", action)
			continue
		}
		settled++
		l.logger.Warn().
			Str("reservation", res.ID).
			Str("user_id", res.UserID).
			Str("source", string(res.Source)).
			Str("action", action).
			Int("credits", res.Credits).
			Time("created_at", res.CreatedAt).
			Msg("ledger: settled stale reservation")
	}
	return settled, nil
}

// RunSweeper calls SettleStale every interval until ctx is done.
func (l *Ledger) RunSweeper(ctx context.Context, interval, olderThan time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	l.logger.Info().Dur("interval", interval).Dur("stale_after", olderThan).Msg("ledger: sweeper started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		n, err := l.SettleStale(ctx, olderThan, 100)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error().Err(err).Msg("ledger: sweep failed")
			continue
		}
		if n > 0 {
			l.logger.Info().Int("settled", n).Msg("ledger: sweep settled reservations")
		}
	}
}
