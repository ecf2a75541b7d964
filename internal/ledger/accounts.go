package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"genstudio/internal/domain"
)

// EnsureUser returns the account registered under nu.Email, creating it with
// the signup bonus on first sign-in. The boolean reports whether the account
// was created by this call.
func (l *Ledger) EnsureUser(ctx context.Context, nu domain.NewUser) (*domain.User, bool, error) {
	nu.Email = strings.ToLower(strings.TrimSpace(nu.Email))
	nu.Name = strings.TrimSpace(nu.Name)
	if nu.Email == "" || !strings.Contains(nu.Email, "@") {
		return nil, false, domain.NewValidationError("email", "must be a valid address")
	}
	user, err := l.users.FindByEmail(ctx, nu.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("find user: %w", err)
	}
	user, err = l.users.Create(ctx, nu, l.policy.SignupBonus)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	l.logger.Info().Str("user_id", user.ID).Int("bonus", l.policy.SignupBonus).Msg("ledger: user registered")
	return user, true, nil
}

// User loads an account by id.
func (l *Ledger) User(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return l.users.GetByID(ctx, userID)
}

// CompleteProfile grants the profile bonus the first time it is called for
// a user. Later calls return the user unchanged with granted=false.
func (l *Ledger) CompleteProfile(ctx context.Context, userID string) (user *domain.User, granted bool, err error) {
	if userID == "" {
		return nil, false, domain.ErrUnauthenticated
	}
	user, granted, err = l.users.MarkProfileCompleted(ctx, userID, l.policy.ProfileBonus)
	if err != nil {
		return nil, false, err
	}
	if granted {
		l.logger.Info().Str("user_id", userID).Int("bonus", l.policy.ProfileBonus).Msg("ledger: profile bonus granted")
	}
	return user, granted, nil
}

// SetBalance overwrites a user's balance. It is an operator action.
func (l *Ledger) SetBalance(ctx context.Context, userID string, balance int) (*domain.User, error) {
	if balance < 0 {
		return nil, domain.NewValidationError("balance", "must not be negative")
	}
	user, err := l.users.SetBalance(ctx, userID, balance)
	if err != nil {
		return nil, err
	}
	l.logger.Info().Str("user_id", userID).Int("balance", balance).Msg("ledger: balance set")
	return user, nil
}

// GrantCredits adds delta credits to a user's balance. It is an operator
// action; negative deltas fail with ErrInsufficientFunds when they would
// overdraw the balance.
func (l *Ledger) GrantCredits(ctx context.Context, userID string, delta int) (*domain.User, error) {
	if delta == 0 {
		return nil, domain.NewValidationError("credits", "must not be zero")
	}
	user, err := l.users.AddCredits(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	l.logger.Info().Str("user_id", userID).Int("delta", delta).Int("balance", user.CreditsBalance).Msg("ledger: credits granted")
	return user, nil
}
