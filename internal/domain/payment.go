package domain

import "time"

// CreditPack is a purchasable bundle of credits.
type CreditPack struct {
	ID           string
	Name         string
	Description  string
	PriceCents   int64
	Credits      int
	ValidityDays int
}

// PricingTest is one price point of the pricing experiment.
type PricingTest struct {
	Name       string
	PriceCents int64
	Credits    int
	Active     bool
}

// Payment records a completed checkout. ProviderRef is unique per
// completed payment and guards against duplicate crediting.
type Payment struct {
	ID          string
	ProviderRef string
	UserID      string
	PackID      string
	Credits     int
	AmountCents int64
	ValidUntil  *time.Time
	CreatedAt   time.Time
}
