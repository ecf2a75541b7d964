package domain

import "time"

// FundingSource names where a reservation draws its credits from.
type FundingSource string

const (
	FundingPaid FundingSource = "paid"
	FundingFree FundingSource = "free"
)

// ReservationStatus is the settlement state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// Reservation holds credits against a user (paid) or against the shared
// daily allowance (free) until the outcome of a generation is known.
// A pending reservation settles exactly once.
type Reservation struct {
	ID         string
	UserID     string
	Source     FundingSource
	Credits    int
	ValueCents int64
	Day        string
	Status     ReservationStatus
	CreatedAt  time.Time
	SettledAt  *time.Time
}

// Pending reports whether the reservation has not been settled yet.
func (r Reservation) Pending() bool {
	return r.Status == ReservationPending
}
