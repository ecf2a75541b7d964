package ledger

import (
	"context"
	"errors"

	"genstudio/internal/domain"
)

// CompletedPayment is a payment notification from the checkout provider.
type CompletedPayment struct {
	ProviderRef  string
	UserID       string
	PackID       string
	Credits      int
	AmountCents  int64
	ValidityDays int
}

// CreditPayment adds the purchased credits to the user exactly once per
// ProviderRef. Redelivered notifications return ErrDuplicateOperation.
func (l *Ledger) CreditPayment(ctx context.Context, p CompletedPayment) (*domain.User, error) {
	if p.ProviderRef == "" {
		return nil, domain.NewValidationError("providerRef", "is required")
	}
	if p.UserID == "" {
		return nil, domain.NewValidationError("userId", "is required")
	}
	if p.Credits <= 0 {
		return nil, domain.NewValidationError("credits", "must be positive")
	}
	now := l.now()
	payment := &domain.Payment{
		ProviderRef: p.ProviderRef,
		UserID:      p.UserID,
		PackID:      p.PackID,
		Credits:     p.Credits,
		AmountCents: p.AmountCents,
		CreatedAt:   now,
	}
	if p.ValidityDays > 0 {
		until := now.AddDate(0, 0, p.ValidityDays)
		payment.ValidUntil = &until
	}
	user, err := l.payments.Apply(ctx, payment)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) {
			l.logger.Info().Str("provider_ref", p.ProviderRef).Msg("ledger: payment already applied")
		}
		return nil, err
	}
	l.logger.Info().
		Str("provider_ref", p.ProviderRef).
		Str("user_id", p.UserID).
		Int("credits", p.Credits).
		Int("balance", user.CreditsBalance).
		Msg("ledger: payment credited")
	return user, nil
}
