package domain

import "time"

// GenerationStatus enumerates the outcome of one generation attempt.
type GenerationStatus string

const (
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
)

// Image references one output returned by the image provider.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Generation is the immutable audit entry for one attempted generation.
// ReservationID links it to the credits held for the attempt, so a
// reservation left pending can be settled from the recorded outcome.
type Generation struct {
	ID             string
	UserID         string
	ReservationID  string
	Prompt         string
	Width          int
	Height         int
	NumOutputs     int
	Images         []Image
	CreditsCharged int
	UsedFreeTier   bool
	Status         GenerationStatus
	CreatedAt      time.Time
}
