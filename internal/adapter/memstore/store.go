// Package memstore keeps every repository in process memory behind a single
// mutex. It backs local development and tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/domain"
)

type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	users        map[string]*domain.User
	emails       map[string]string
	generations  []domain.Generation
	usage        map[string]*domain.DailyUsage
	reservations map[string]*domain.Reservation
	payments     map[string]*domain.Payment
}

// New returns an empty store using the wall clock.
func New() *Store {
	return &Store{
		now:          time.Now,
		users:        make(map[string]*domain.User),
		emails:       make(map[string]string),
		usage:        make(map[string]*domain.DailyUsage),
		reservations: make(map[string]*domain.Reservation),
		payments:     make(map[string]*domain.Payment),
	}
}

// The repository accessors all return s; one mutex guards every table.
func (s *Store) Users() domain.UserRepository               { return s }
func (s *Store) Generations() domain.GenerationRepository   { return s }
func (s *Store) Usage() domain.UsageRepository              { return s }
func (s *Store) Reservations() domain.ReservationRepository { return s }
func (s *Store) Payments() domain.PaymentRepository         { return s }
func (s *Store) Stats() domain.StatsRepository              { return s }

var _ domain.Store = (*Store)(nil)

// users

// FindByEmail looks a user up by normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

// GetByID returns a copy of the user or domain.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyUser(u), nil
}

// Create inserts a user with initialBalance credits. An existing user with
// the same email is returned unchanged.
func (s *Store) Create(ctx context.Context, nu domain.NewUser, initialBalance int) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(nu.Email)
	if id, ok := s.emails[email]; ok {
		return copyUser(s.users[id]), nil
	}
	now := s.now()
	u := &domain.User{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           nu.Name,
		Image:          nu.Image,
		Country:        nu.Country,
		CreditsBalance: initialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return copyUser(u), nil
}

// SetBalance overwrites the balance.
func (s *Store) SetBalance(ctx context.Context, userID string, balance int) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u.CreditsBalance = balance
	u.UpdatedAt = s.now()
	return copyUser(u), nil
}

// AddCredits applies delta, refusing to drive the balance below zero.
func (s *Store) AddCredits(ctx context.Context, userID string, delta int) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if u.CreditsBalance+delta < 0 {
		return nil, domain.ErrInsufficientFunds
	}
	u.CreditsBalance += delta
	u.UpdatedAt = s.now()
	return copyUser(u), nil
}

// MarkProfileCompleted grants bonus the first time only; the bool reports
// whether it did.
func (s *Store) MarkProfileCompleted(ctx context.Context, userID string, bonus int) (*domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if u.ProfileCompleted {
		return copyUser(u), false, nil
	}
	u.ProfileCompleted = true
	u.CreditsBalance += bonus
	u.UpdatedAt = s.now()
	return copyUser(u), true, nil
}

// generations

// Append records a generation.
func (s *Store) Append(ctx context.Context, gen *domain.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *gen
	stored.Images = append([]domain.Image(nil), gen.Images...)
	s.generations = append(s.generations, stored)
	return nil
}

// ListForUser returns the user's generations, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Generation
	for i := len(s.generations) - 1; i >= 0; i-- {
		if s.generations[i].UserID != userID {
			continue
		}
		gen := s.generations[i]
		gen.Images = append([]domain.Image(nil), gen.Images...)
		out = append(out, gen)
	}
	// Appends are chronological; the stable sort keeps insertion order for
	// equal timestamps.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindByReservation returns the generation recorded for reservationID.
// FindByReservation returns the generation recorded for a reservation.
func (s *Store) FindByReservation(ctx context.Context, reservationID string) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.generations) - 1; i >= 0; i-- {
		if s.generations[i].ReservationID == reservationID {
			gen := s.generations[i]
			gen.Images = append([]domain.Image(nil), gen.Images...)
			return &gen, nil
		}
	}
	return nil, domain.ErrNotFound
}

// usage

// GetOrCreate returns the usage row of day, creating it empty.
func (s *Store) GetOrCreate(ctx context.Context, day string) (*domain.DailyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUsage(s.dayLocked(day)), nil
}

// Increment adds consumed credits and value to day and records userID once.
func (s *Store) Increment(ctx context.Context, day string, credits int, valueCents int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incrementLocked(s.dayLocked(day), credits, valueCents, userID)
	return nil
}

// ListRange returns the usage rows in [from, to], ordered by day.
func (s *Store) ListRange(ctx context.Context, from, to string) ([]domain.DailyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DailyUsage
	for day, u := range s.usage {
		if day >= from && day <= to {
			out = append(out, *copyUsage(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (s *Store) dayLocked(day string) *domain.DailyUsage {
	u, ok := s.usage[day]
	if !ok {
		u = &domain.DailyUsage{Day: day, UpdatedAt: s.now()}
		s.usage[day] = u
	}
	return u
}

func (s *Store) incrementLocked(u *domain.DailyUsage, credits int, valueCents int64, userID string) {
	u.CreditsUsed += credits
	u.ValueCents += valueCents
	if userID != "" && !u.HasUser(userID) {
		u.UniqueUsers = append(u.UniqueUsers, userID)
	}
	u.UpdatedAt = s.now()
}

// reservations

// ReservePaid debits the reservation's credits and returns the new balance.
func (s *Store) ReservePaid(ctx context.Context, res *domain.Reservation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[res.UserID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if u.CreditsBalance < res.Credits {
		return 0, domain.ErrInsufficientFunds
	}
	u.CreditsBalance -= res.Credits
	u.UpdatedAt = s.now()
	s.putReservationLocked(res)
	return u.CreditsBalance, nil
}

// ReserveFree holds ValueCents of the day's free capacity. Consumed and
// pending value together may not exceed capCents.
func (s *Store) ReserveFree(ctx context.Context, res *domain.Reservation, capCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[res.UserID]; !ok {
		return domain.ErrNotFound
	}
	day := s.dayLocked(res.Day)
	if day.ValueCents+day.PendingCents+res.ValueCents > capCents {
		return domain.ErrDailyLimitReached
	}
	day.PendingCents += res.ValueCents
	day.UpdatedAt = s.now()
	s.putReservationLocked(res)
	return nil
}

// Commit finalizes a pending reservation. A free hold becomes consumed
// usage.
func (s *Store) Commit(ctx context.Context, id string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.settleLocked(id, domain.ReservationCommitted)
	if err != nil {
		return nil, err
	}
	if res.Source == domain.FundingFree {
		day := s.dayLocked(res.Day)
		day.PendingCents = max(day.PendingCents-res.ValueCents, 0)
		s.incrementLocked(day, res.Credits, res.ValueCents, res.UserID)
	}
	return copyReservation(res), nil
}

// Release cancels a pending reservation and returns what it held.
func (s *Store) Release(ctx context.Context, id string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.settleLocked(id, domain.ReservationReleased)
	if err != nil {
		return nil, err
	}
	switch res.Source {
	case domain.FundingPaid:
		if u, ok := s.users[res.UserID]; ok {
			u.CreditsBalance += res.Credits
			u.UpdatedAt = s.now()
		}
	case domain.FundingFree:
		day := s.dayLocked(res.Day)
		day.PendingCents = max(day.PendingCents-res.ValueCents, 0)
		day.UpdatedAt = s.now()
	}
	return copyReservation(res), nil
}

// ListStale returns pending reservations created before olderThan, oldest
// first.
func (s *Store) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, res := range s.reservations {
		if res.Pending() && res.CreatedAt.Before(olderThan) {
			out = append(out, *copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) putReservationLocked(res *domain.Reservation) {
	stored := *res
	stored.Status = domain.ReservationPending
	s.reservations[res.ID] = &stored
}

func (s *Store) settleLocked(id string, status domain.ReservationStatus) (*domain.Reservation, error) {
	res, ok := s.reservations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !res.Pending() {
		return nil, domain.ErrReservationSettled
	}
	now := s.now()
	res.Status = status
	res.SettledAt = &now
	return res, nil
}

// payments

// Apply credits a payment once per provider reference.
func (s *Store) Apply(ctx context.Context, p *domain.Payment) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.ProviderRef]; ok {
		return nil, domain.ErrDuplicateOperation
	}
	u, ok := s.users[p.UserID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	stored := *p
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.payments[p.ProviderRef] = &stored
	u.CreditsBalance += p.Credits
	u.UpdatedAt = s.now()
	return copyUser(u), nil
}

// stats

func (s *Store) Summary(ctx context.Context) (*domain.StatsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := &domain.StatsSummary{TotalUsers: len(s.users), TotalGenerations: len(s.generations)}
	for _, u := range s.users {
		if u.HasCredits() {
			sum.UsersWithCredits++
		}
		if u.ProfileCompleted {
			sum.CompletedProfiles++
		}
	}
	for _, g := range s.generations {
		if g.Status == domain.GenerationSucceeded {
			sum.SuccessfulGenerations++
		}
	}
	return sum, nil
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func copyUsage(u *domain.DailyUsage) *domain.DailyUsage {
	c := *u
	c.UniqueUsers = append([]string(nil), u.UniqueUsers...)
	return &c
}

func copyReservation(r *domain.Reservation) *domain.Reservation {
	c := *r
	if r.SettledAt != nil {
		t := *r.SettledAt
		c.SettledAt = &t
	}
	return &c
}
