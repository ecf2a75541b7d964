package domain

import "time"

// User represents an account that owns a credit balance.
type User struct {
	ID               string
	Email            string
	Name             string
	Image            string
	CreditsBalance   int
	ProfileCompleted bool
	Country          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewUser carries the fields required to register an account.
type NewUser struct {
	Email   string
	Name    string
	Image   string
	Country string
}

// HasCredits reports whether the user holds any paid credits.
func (u User) HasCredits() bool {
	return u.CreditsBalance > 0
}
