package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// UsageRepositoryPG implements domain.UsageRepository.
type UsageRepositoryPG struct {
	db infra.SQLExecutor
}

func NewUsageRepository(db infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{db: db}
}

func (r *UsageRepositoryPG) GetOrCreate(ctx context.Context, day string) (*domain.DailyUsage, error) {
	return scanUsage(r.db.QueryRow(ctx, sqlinline.QEnsureDailyUsage, day))
}

func (r *UsageRepositoryPG) Increment(ctx context.Context, day string, credits int, valueCents int64, userID string) error {
	_, err := r.db.Exec(ctx, sqlinline.QIncrementDailyUsage, day, credits, valueCents, userID)
	return err
}

func (r *UsageRepositoryPG) ListRange(ctx context.Context, from, to string) ([]domain.DailyUsage, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListDailyUsageRange, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyUsage
	for rows.Next() {
		usage, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *usage)
	}
	return out, rows.Err()
}

func scanUsage(row pgx.Row) (*domain.DailyUsage, error) {
	var u domain.DailyUsage
	if err := row.Scan(&u.Day, &u.CreditsUsed, &u.ValueCents, &u.PendingCents, &u.UniqueUsers, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
