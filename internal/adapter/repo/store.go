package repo

import (
	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Store bundles the PostgreSQL repositories behind one SQL runner.
type Store struct {
	users        *UserRepositoryPG
	generations  *GenerationRepositoryPG
	usage        *UsageRepositoryPG
	reservations *ReservationRepositoryPG
	payments     *PaymentRepositoryPG
	stats        *StatsRepositoryPG
}

func NewStore(db infra.TxExecutor) *Store {
	return &Store{
		users:        NewUserRepository(db),
		generations:  NewGenerationRepository(db),
		usage:        NewUsageRepository(db),
		reservations: NewReservationRepository(db),
		payments:     NewPaymentRepository(db),
		stats:        NewStatsRepository(db),
	}
}

func (s *Store) Users() domain.UserRepository               { return s.users }
func (s *Store) Generations() domain.GenerationRepository   { return s.generations }
func (s *Store) Usage() domain.UsageRepository              { return s.usage }
func (s *Store) Reservations() domain.ReservationRepository { return s.reservations }
func (s *Store) Payments() domain.PaymentRepository         { return s.payments }
func (s *Store) Stats() domain.StatsRepository              { return s.stats }

var _ domain.Store = (*Store)(nil)
