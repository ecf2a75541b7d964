package repo

import (
	"context"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// StatsRepositoryPG implements domain.StatsRepository.
type StatsRepositoryPG struct {
	db infra.SQLExecutor
}

func NewStatsRepository(db infra.SQLExecutor) *StatsRepositoryPG {
	return &StatsRepositoryPG{db: db}
}

func (r *StatsRepositoryPG) Summary(ctx context.Context) (*domain.StatsSummary, error) {
	var s domain.StatsSummary
	err := r.db.QueryRow(ctx, sqlinline.QStatsSummary).Scan(
		&s.TotalUsers,
		&s.UsersWithCredits,
		&s.CompletedProfiles,
		&s.TotalGenerations,
		&s.SuccessfulGenerations,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
