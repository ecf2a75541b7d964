package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	db infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(db infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{db: db}
}

func (r *UserRepositoryPG) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, sqlinline.QSelectUserByEmail, email))
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, sqlinline.QSelectUserByID, id))
}

func (r *UserRepositoryPG) Create(ctx context.Context, nu domain.NewUser, initialBalance int) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, sqlinline.QInsertUser, nu.Email, nu.Name, nu.Image, initialBalance, nu.Country))
}

func (r *UserRepositoryPG) SetBalance(ctx context.Context, userID string, balance int) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, sqlinline.QSetUserBalance, userID, balance))
}

// AddCredits applies delta unless it would overdraw the balance.
func (r *UserRepositoryPG) AddCredits(ctx context.Context, userID string, delta int) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, sqlinline.QAddUserCredits, userID, delta))
	if !errors.Is(err, domain.ErrNotFound) {
		return user, err
	}
	// No row matched: either the user is missing or the guard rejected it.
	if _, err := r.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return nil, domain.ErrInsufficientFunds
}

func (r *UserRepositoryPG) MarkProfileCompleted(ctx context.Context, userID string, bonus int) (*domain.User, bool, error) {
	user, err := scanUser(r.db.QueryRow(ctx, sqlinline.QCompleteUserProfile, userID, bonus))
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	user, err = r.GetByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return user, false, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.CreditsBalance, &u.ProfileCompleted, &u.Country, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
