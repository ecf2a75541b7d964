package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"genstudio/internal/domain"
)

func TestCreateReturnsExistingUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, err := s.Create(ctx, domain.NewUser{Email: "Ada@Example.com"}, 3)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	second, err := s.Create(ctx, domain.NewUser{Email: "ada@example.com"}, 99)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if second.ID != first.ID || second.CreditsBalance != 3 {
		t.Fatalf("expected existing user, got %+v", second)
	}
	if _, err := s.FindByEmail(ctx, "ADA@example.com"); err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
}

func TestReserveFreeHonoursPendingCapacity(t *testing.T) {
	s := New()
	ctx := context.Background()
	user, _ := s.Create(ctx, domain.NewUser{Email: "a@b.c"}, 0)
	day := "2025-01-01"

	hold := func(id string, cents int64) error {
		return s.ReserveFree(ctx, &domain.Reservation{ID: id, UserID: user.ID, Source: domain.FundingFree, Credits: 1, ValueCents: cents, Day: day, CreatedAt: time.Now()}, 10)
	}
	if err := hold("r1", 6); err != nil {
		t.Fatalf("first hold: %v", err)
	}
	if err := hold("r2", 6); !errors.Is(err, domain.ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
	if _, err := s.Commit(ctx, "r1"); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	usage, _ := s.GetOrCreate(ctx, day)
	if usage.ValueCents != 6 || usage.PendingCents != 0 || usage.CreditsUsed != 1 || !usage.HasUser(user.ID) {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if err := hold("r3", 4); err != nil {
		t.Fatalf("hold within cap: %v", err)
	}
	if _, err := s.Release(ctx, "r3"); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if _, err := s.Release(ctx, "r3"); !errors.Is(err, domain.ErrReservationSettled) {
		t.Fatalf("expected ErrReservationSettled, got %v", err)
	}
	usage, _ = s.GetOrCreate(ctx, day)
	if usage.PendingCents != 0 || usage.ValueCents != 6 {
		t.Fatalf("release must drop the hold only: %+v", usage)
	}
}

func TestReservePaidAndStale(t *testing.T) {
	s := New()
	ctx := context.Background()
	user, _ := s.Create(ctx, domain.NewUser{Email: "a@b.c"}, 5)
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	balance, err := s.ReservePaid(ctx, &domain.Reservation{ID: "p1", UserID: user.ID, Source: domain.FundingPaid, Credits: 4, CreatedAt: old})
	if err != nil || balance != 1 {
		t.Fatalf("ReservePaid: balance=%d err=%v", balance, err)
	}
	if _, err := s.ReservePaid(ctx, &domain.Reservation{ID: "p2", UserID: user.ID, Source: domain.FundingPaid, Credits: 4, CreatedAt: old}); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	stale, err := s.ListStale(ctx, old.Add(time.Minute), 10)
	if err != nil || len(stale) != 1 || stale[0].ID != "p1" {
		t.Fatalf("ListStale: %+v err=%v", stale, err)
	}
	if _, err := s.Release(ctx, "p1"); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	got, _ := s.GetByID(ctx, user.ID)
	if got.CreditsBalance != 5 {
		t.Fatalf("balance = %d, want 5", got.CreditsBalance)
	}
	if stale, _ := s.ListStale(ctx, old.Add(time.Minute), 10); len(stale) != 0 {
		t.Fatalf("settled reservations must not be stale: %+v", stale)
	}
}

func TestApplyPaymentOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	user, _ := s.Create(ctx, domain.NewUser{Email: "a@b.c"}, 0)
	p := &domain.Payment{ProviderRef: "cs_1", UserID: user.ID, Credits: 100}
	if _, err := s.Apply(ctx, p); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if _, err := s.Apply(ctx, p); !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("expected ErrDuplicateOperation, got %v", err)
	}
	sum, _ := s.Summary(ctx)
	if sum.TotalUsers != 1 || sum.UsersWithCredits != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestIncrementKeepsUsersDistinct(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := "2025-01-01"

	for _, step := range []struct {
		user  string
		cents int64
	}{{"u1", 4}, {"u1", 4}, {"u2", 2}, {"", 2}} {
		if err := s.Increment(ctx, day, 1, step.cents, step.user); err != nil {
			t.Fatalf("Increment error: %v", err)
		}
	}
	usage, err := s.GetOrCreate(ctx, day)
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if usage.CreditsUsed != 4 || usage.ValueCents != 12 || usage.PendingCents != 0 {
		t.Fatalf("unexpected totals: %+v", usage)
	}
	if len(usage.UniqueUsers) != 2 || !usage.HasUser("u1") || !usage.HasUser("u2") {
		t.Fatalf("unique users = %v, want [u1 u2]", usage.UniqueUsers)
	}

	other, _ := s.ListRange(ctx, "2025-01-02", "2025-01-31")
	if len(other) != 0 {
		t.Fatalf("increment leaked into other days: %+v", other)
	}
}
