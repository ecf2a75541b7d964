package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// Create registers a user with the given starting balance. When the
	// email already exists the stored user is returned unchanged.
	Create(ctx context.Context, user NewUser, initialBalance int) (*User, error)
	SetBalance(ctx context.Context, userID string, balance int) (*User, error)
	AddCredits(ctx context.Context, userID string, delta int) (*User, error)
	// MarkProfileCompleted flips the profile flag and grants bonus credits.
	// The boolean is false when the profile was already completed.
	MarkProfileCompleted(ctx context.Context, userID string, bonus int) (*User, bool, error)
}

// GenerationRepository persists generation history.
type GenerationRepository interface {
	Append(ctx context.Context, gen *Generation) error
	ListForUser(ctx context.Context, userID string, limit int) ([]Generation, error)
	// FindByReservation returns the record written for a reservation, or
	// ErrNotFound when the attempt never got that far.
	FindByReservation(ctx context.Context, reservationID string) (*Generation, error)
}

// UsageRepository tracks free-tier consumption per calendar day.
type UsageRepository interface {
	GetOrCreate(ctx context.Context, day string) (*DailyUsage, error)
	Increment(ctx context.Context, day string, credits int, valueCents int64, userID string) error
	ListRange(ctx context.Context, from, to string) ([]DailyUsage, error)
}

// ReservationRepository implements the reserve/commit/release protocol.
// Every method is atomic with respect to concurrent calls on the same user
// or the same day.
type ReservationRepository interface {
	// ReservePaid debits the user's balance when it covers the reservation.
	// Returns ErrInsufficientFunds otherwise and leaves the balance alone.
	ReservePaid(ctx context.Context, res *Reservation) (balance int, err error)
	// ReserveFree holds capacity on the day's allowance when consumed plus
	// pending plus the reservation value stays within capCents. Returns
	// ErrDailyLimitReached otherwise.
	ReserveFree(ctx context.Context, res *Reservation, capCents int64) error
	// Commit settles a pending reservation as spent. Free reservations move
	// their held capacity into the day's consumed totals.
	Commit(ctx context.Context, id string) (*Reservation, error)
	// Release settles a pending reservation as refunded. Paid reservations
	// credit the balance back; free reservations drop their held capacity.
	Release(ctx context.Context, id string) (*Reservation, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]Reservation, error)
}

// PaymentRepository records completed payments.
type PaymentRepository interface {
	// Apply stores the payment and credits the user once per ProviderRef.
	// It returns ErrDuplicateOperation when the payment was already applied.
	Apply(ctx context.Context, payment *Payment) (*User, error)
}

// StatsSummary aggregates account and generation counters.
type StatsSummary struct {
	TotalUsers            int
	UsersWithCredits      int
	CompletedProfiles     int
	TotalGenerations      int
	SuccessfulGenerations int
}

// StatsRepository exposes admin counters.
type StatsRepository interface {
	Summary(ctx context.Context) (*StatsSummary, error)
}

// Store bundles every repository backed by one persistence layer.
type Store interface {
	Users() UserRepository
	Generations() GenerationRepository
	Usage() UsageRepository
	Reservations() ReservationRepository
	Payments() PaymentRepository
	Stats() StatsRepository
}
