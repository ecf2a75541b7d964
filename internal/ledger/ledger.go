// Package ledger gates image generation behind credit accounting. Paid
// credits are held with a reservation before the provider is called and the
// reservation is committed or released once the outcome is known. Users
// without enough credits draw on a shared daily free allowance instead.
package ledger

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/imagegen"
)

// Policy holds the accounting constants.
type Policy struct {
	SignupBonus        int
	ProfileBonus       int
	CostPerCreditCents int64
	DailyFreeCapCents  int64
	MaxLongEdge        int
	MaxOutputs         int
	GenerationTimeout  time.Duration
	HistoryLimit       int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		SignupBonus:        3,
		ProfileBonus:       2,
		CostPerCreditCents: 2,
		DailyFreeCapCents:  2000,
		MaxLongEdge:        1536,
		MaxOutputs:         4,
		GenerationTimeout:  2 * time.Minute,
		HistoryLimit:       50,
	}
}

// Ledger owns every mutation of balances and free-tier usage.
type Ledger struct {
	users        domain.UserRepository
	generations  domain.GenerationRepository
	usage        domain.UsageRepository
	reservations domain.ReservationRepository
	payments     domain.PaymentRepository
	generator    imagegen.Generator
	policy       Policy
	logger       zerolog.Logger

	now            func() time.Time
	newID          func() string
	newBackOff     func() backoff.BackOff
	settleAttempts uint
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithSettleRetry overrides the retry schedule for commit and release.
func WithSettleRetry(attempts uint, newBackOff func() backoff.BackOff) Option {
	return func(l *Ledger) {
		l.settleAttempts = attempts
		l.newBackOff = newBackOff
	}
}

// New builds a Ledger over store. Zero HistoryLimit and GenerationTimeout
// in policy fall back to 50 entries and two minutes.
func New(store domain.Store, generator imagegen.Generator, policy Policy, logger zerolog.Logger, opts ...Option) *Ledger {
	if policy.HistoryLimit <= 0 {
		policy.HistoryLimit = 50
	}
	if policy.GenerationTimeout <= 0 {
		policy.GenerationTimeout = 2 * time.Minute
	}
	l := &Ledger{
		users:          store.Users(),
		generations:    store.Generations(),
		usage:          store.Usage(),
		reservations:   store.Reservations(),
		payments:       store.Payments(),
		generator:      generator,
		policy:         policy,
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
		settleAttempts: 5,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the accounting constants in effect.
func (l *Ledger) Policy() Policy {
	return l.policy
}
