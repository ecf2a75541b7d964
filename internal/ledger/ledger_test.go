package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"genstudio/internal/adapter/memstore"
	"genstudio/internal/domain"
	"genstudio/internal/imagegen"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type stubGenerator struct {
	calls atomic.Int32
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, req imagegen.Request) ([]domain.Image, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	images := make([]domain.Image, req.NumOutputs)
	for i := range images {
		images[i] = domain.Image{URL: "https://img.example.com/x.png", Width: req.Width, Height: req.Height}
	}
	return images, nil
}

type countingUsers struct {
	domain.UserRepository
	reads atomic.Int32
}

func (c *countingUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	c.reads.Add(1)
	return c.UserRepository.GetByID(ctx, id)
}

type failingRelease struct {
	domain.ReservationRepository
	attempts atomic.Int32
}

func (f *failingRelease) Release(ctx context.Context, id string) (*domain.Reservation, error) {
	f.attempts.Add(1)
	return nil, errors.New("connection reset")
}

type failingCommit struct {
	domain.ReservationRepository
	attempts atomic.Int32
}

func (f *failingCommit) Commit(ctx context.Context, id string) (*domain.Reservation, error) {
	f.attempts.Add(1)
	return nil, errors.New("connection reset")
}

type failingLookup struct {
	domain.GenerationRepository
}

func (failingLookup) FindByReservation(ctx context.Context, reservationID string) (*domain.Generation, error) {
	return nil, errors.New("connection reset")
}

// testStore lets a test swap single repositories of a memstore.
type testStore struct {
	*memstore.Store
	users        domain.UserRepository
	reservations domain.ReservationRepository
	generations  domain.GenerationRepository
}

func (s *testStore) Generations() domain.GenerationRepository {
	if s.generations != nil {
		return s.generations
	}
	return s.Store
}

func (s *testStore) Users() domain.UserRepository {
	if s.users != nil {
		return s.users
	}
	return s.Store
}

func (s *testStore) Reservations() domain.ReservationRepository {
	if s.reservations != nil {
		return s.reservations
	}
	return s.Store
}

func newTestLedger(t *testing.T, store domain.Store, gen imagegen.Generator, policy Policy) *Ledger {
	t.Helper()
	return New(store, gen, policy, zerolog.Nop(),
		WithClock(func() time.Time { return testNow }),
		WithSettleRetry(3, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func newUser(t *testing.T, l *Ledger, balance int) *domain.User {
	t.Helper()
	user, _, err := l.EnsureUser(context.Background(), domain.NewUser{Email: "Ada@Example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	user, err = l.SetBalance(context.Background(), user.ID, balance)
	if err != nil {
		t.Fatalf("SetBalance error: %v", err)
	}
	return user
}

func balanceOf(t *testing.T, store *memstore.Store, userID string) int {
	t.Helper()
	user, err := store.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	return user.CreditsBalance
}

func TestCost(t *testing.T) {
	tests := []struct {
		ratio   string
		outputs int
		want    int
	}{
		{"1:1", 1, 2},
		{"1:1", 4, 8},
		{"16:9", 1, 2},
		{"3:2", 2, 4},
		{"2:3", 3, 6},
		{"4:3", 1, 2},
		{"9:16", 4, 8},
	}
	for _, tc := range tests {
		size, ok := SizeFor(tc.ratio)
		if !ok {
			t.Fatalf("SizeFor(%q) not found", tc.ratio)
		}
		if got := Cost(size.Width, size.Height, tc.outputs); got != tc.want {
			t.Fatalf("Cost(%s x%d) = %d, want %d", tc.ratio, tc.outputs, got, tc.want)
		}
	}
	if got := Cost(1000, 1000, 1); got != 1 {
		t.Fatalf("exactly one megapixel should cost 1, got %d", got)
	}
	if got := Cost(1000, 1001, 1); got != 2 {
		t.Fatalf("a started megapixel should cost 1 more, got %d", got)
	}
	// 1024x1024 is 1.048576 MP, so the formula rounds it up to 2.
	if got := Cost(1024, 1024, 1); got != 2 {
		t.Fatalf("Cost(1024x1024) = %d, want 2", got)
	}
	if got := Cost(1536, 864, 4); got != 8 {
		t.Fatalf("Cost(1536x864 x4) = %d, want 8", got)
	}
}

func TestQuoteValidation(t *testing.T) {
	policy := DefaultPolicy()
	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"empty prompt", GenerateRequest{Prompt: "   ", AspectRatio: "1:1", NumOutputs: 1}},
		{"unknown ratio", GenerateRequest{Prompt: "cat", AspectRatio: "5:4", NumOutputs: 1}},
		{"zero outputs", GenerateRequest{Prompt: "cat", AspectRatio: "1:1", NumOutputs: 0}},
		{"too many outputs", GenerateRequest{Prompt: "cat", AspectRatio: "1:1", NumOutputs: 5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := policy.Quote(tc.req); !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGenerateRejectsLongEdgeBeforeReadingAccount(t *testing.T) {
	mem := memstore.New()
	users := &countingUsers{UserRepository: mem}
	store := &testStore{Store: mem, users: users}
	gen := &stubGenerator{}
	policy := DefaultPolicy()
	policy.MaxLongEdge = 1024
	l := newTestLedger(t, store, gen, policy)

	_, err := l.Generate(context.Background(), "user-1", GenerateRequest{Prompt: "a lighthouse", AspectRatio: "16:9", NumOutputs: 1})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := users.reads.Load(); n != 0 {
		t.Fatalf("expected no account reads, got %d", n)
	}
	if gen.calls.Load() != 0 {
		t.Fatalf("generator must not be called")
	}
}

func TestGeneratePaidSuccess(t *testing.T) {
	mem := memstore.New()
	gen := &stubGenerator{}
	l := newTestLedger(t, mem, gen, DefaultPolicy())
	user := newUser(t, l, 10)

	res, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "a lighthouse", AspectRatio: "1:1", NumOutputs: 2})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if res.CostCredits != 4 || res.UsedFreeCredits || res.RemainingCredits != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(res.Images))
	}
	if got := balanceOf(t, mem, user.ID); got != 6 {
		t.Fatalf("balance = %d, want 6", got)
	}
	usage, _ := mem.GetOrCreate(context.Background(), domain.DayKey(testNow))
	if usage.ValueCents != 0 || usage.PendingCents != 0 {
		t.Fatalf("paid generation must not touch free usage: %+v", usage)
	}
	history, _ := l.History(context.Background(), user.ID, 0)
	if len(history) != 1 || history[0].Status != domain.GenerationSucceeded || history[0].CreditsCharged != 4 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestGeneratePaidFailureRefunds(t *testing.T) {
	mem := memstore.New()
	gen := &stubGenerator{err: errors.New("upstream 500")}
	l := newTestLedger(t, mem, gen, DefaultPolicy())
	user := newUser(t, l, 10)

	_, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "a lighthouse", AspectRatio: "1:1", NumOutputs: 4})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if got := balanceOf(t, mem, user.ID); got != 10 {
		t.Fatalf("balance = %d, want 10", got)
	}
	history, _ := l.History(context.Background(), user.ID, 0)
	if len(history) != 1 || history[0].Status != domain.GenerationFailed || history[0].CreditsCharged != 0 {
		t.Fatalf("expected one failed record with nothing charged, got %+v", history)
	}
}

func TestGenerateFreeTier(t *testing.T) {
	mem := memstore.New()
	gen := &stubGenerator{}
	l := newTestLedger(t, mem, gen, DefaultPolicy())
	user := newUser(t, l, 1)

	res, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "a lighthouse", AspectRatio: "9:16", NumOutputs: 1})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !res.UsedFreeCredits || res.RemainingCredits != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := balanceOf(t, mem, user.ID); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
	usage, _ := mem.GetOrCreate(context.Background(), domain.DayKey(testNow))
	if usage.CreditsUsed != 2 || usage.ValueCents != 4 || usage.PendingCents != 0 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if !usage.HasUser(user.ID) || len(usage.UniqueUsers) != 1 {
		t.Fatalf("user not recorded once: %+v", usage.UniqueUsers)
	}

	if _, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "again", AspectRatio: "1:1", NumOutputs: 1}); err != nil {
		t.Fatalf("second Generate error: %v", err)
	}
	usage, _ = mem.GetOrCreate(context.Background(), domain.DayKey(testNow))
	if len(usage.UniqueUsers) != 1 || usage.ValueCents != 8 {
		t.Fatalf("unexpected usage after second call: %+v", usage)
	}
}

func TestGenerateFreeFailureDropsHold(t *testing.T) {
	mem := memstore.New()
	gen := &stubGenerator{err: errors.New("boom")}
	l := newTestLedger(t, mem, gen, DefaultPolicy())
	user := newUser(t, l, 0)

	if _, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "x", AspectRatio: "1:1", NumOutputs: 1}); !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	usage, _ := mem.GetOrCreate(context.Background(), domain.DayKey(testNow))
	if usage.ValueCents != 0 || usage.PendingCents != 0 || len(usage.UniqueUsers) != 0 {
		t.Fatalf("failed free generation must not consume the allowance: %+v", usage)
	}
}

func TestGenerateDailyLimitReached(t *testing.T) {
	mem := memstore.New()
	gen := &stubGenerator{}
	policy := DefaultPolicy()
	policy.DailyFreeCapCents = 3
	l := newTestLedger(t, mem, gen, policy)
	user := newUser(t, l, 1)

	_, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "x", AspectRatio: "1:1", NumOutputs: 1})
	if !errors.Is(err, domain.ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("daily limit should also match ErrInsufficientFunds")
	}
	if got := balanceOf(t, mem, user.ID); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
	if gen.calls.Load() != 0 {
		t.Fatalf("generator must not be called")
	}
	history, _ := l.History(context.Background(), user.ID, 0)
	if len(history) != 0 {
		t.Fatalf("rejected request must leave no record, got %d", len(history))
	}
}

func TestGenerateConcurrentNeverOverdraws(t *testing.T) {
	mem := memstore.New()
	gen := &stubGenerator{}
	policy := DefaultPolicy()
	policy.DailyFreeCapCents = 0
	l := newTestLedger(t, mem, gen, policy)
	user := newUser(t, l, 10)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		limited   atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "x", AspectRatio: "1:1", NumOutputs: 1})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrDailyLimitReached):
				limited.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 5 || limited.Load() != 15 {
		t.Fatalf("succeeded=%d limited=%d, want 5/15", succeeded.Load(), limited.Load())
	}
	if got := balanceOf(t, mem, user.ID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestFailedReleaseIsSweptLater(t *testing.T) {
	mem := memstore.New()
	flaky := &failingRelease{ReservationRepository: mem}
	store := &testStore{Store: mem, reservations: flaky}
	gen := &stubGenerator{err: errors.New("boom")}
	l := newTestLedger(t, store, gen, DefaultPolicy())
	user := newUser(t, l, 10)

	if _, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "x", AspectRatio: "1:1", NumOutputs: 1}); !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if n := flaky.attempts.Load(); n != 3 {
		t.Fatalf("release attempts = %d, want 3", n)
	}
	if got := balanceOf(t, mem, user.ID); got != 8 {
		t.Fatalf("balance = %d, want 8 while the hold is pending", got)
	}

	later := testNow.Add(time.Hour)
	sweeper := New(mem, gen, DefaultPolicy(), zerolog.Nop(), WithClock(func() time.Time { return later }))
	released, err := sweeper.SettleStale(context.Background(), 10*time.Minute, 10)
	if err != nil {
		t.Fatalf("SettleStale error: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}
	if got := balanceOf(t, mem, user.ID); got != 10 {
		t.Fatalf("balance = %d, want 10 after sweep", got)
	}
	if released, _ := sweeper.SettleStale(context.Background(), 10*time.Minute, 10); released != 0 {
		t.Fatalf("second sweep released %d", released)
	}
}

func TestReserveSettlesOnce(t *testing.T) {
	mem := memstore.New()
	l := newTestLedger(t, mem, &stubGenerator{}, DefaultPolicy())
	user := newUser(t, l, 5)

	res, balance, err := l.Reserve(context.Background(), user.ID, 2)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if balance != 3 || res.Source != domain.FundingPaid {
		t.Fatalf("unexpected reservation: balance=%d %+v", balance, res)
	}
	if err := l.Commit(context.Background(), res); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if err := l.Release(context.Background(), res); !errors.Is(err, domain.ErrReservationSettled) {
		t.Fatalf("expected ErrReservationSettled, got %v", err)
	}
	if got := balanceOf(t, mem, user.ID); got != 3 {
		t.Fatalf("balance = %d, want 3", got)
	}
}

func TestEnsureUserAndProfileBonus(t *testing.T) {
	mem := memstore.New()
	l := newTestLedger(t, mem, &stubGenerator{}, DefaultPolicy())

	user, created, err := l.EnsureUser(context.Background(), domain.NewUser{Email: " Grace@Example.com ", Name: "Grace"})
	if err != nil || !created {
		t.Fatalf("EnsureUser: created=%v err=%v", created, err)
	}
	if user.Email != "grace@example.com" || user.CreditsBalance != 3 {
		t.Fatalf("unexpected user: %+v", user)
	}
	again, created, err := l.EnsureUser(context.Background(), domain.NewUser{Email: "grace@example.com"})
	if err != nil || created || again.ID != user.ID {
		t.Fatalf("second EnsureUser: created=%v err=%v id=%s", created, err, again.ID)
	}
	if _, _, err := l.EnsureUser(context.Background(), domain.NewUser{Email: "nope"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	updated, granted, err := l.CompleteProfile(context.Background(), user.ID)
	if err != nil || !granted || updated.CreditsBalance != 5 || !updated.ProfileCompleted {
		t.Fatalf("first CompleteProfile: granted=%v err=%v user=%+v", granted, err, updated)
	}
	updated, granted, err = l.CompleteProfile(context.Background(), user.ID)
	if err != nil || granted || updated.CreditsBalance != 5 {
		t.Fatalf("second CompleteProfile: granted=%v err=%v user=%+v", granted, err, updated)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	mem := memstore.New()
	clock := testNow
	l := New(mem, &stubGenerator{}, DefaultPolicy(), zerolog.Nop(), WithClock(func() time.Time { return clock }))
	user := newUser(t, l, 100)

	for _, prompt := range []string{"first", "second", "third"} {
		if _, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: prompt, AspectRatio: "1:1", NumOutputs: 1}); err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		clock = clock.Add(time.Minute)
	}
	history, err := l.History(context.Background(), user.ID, 2)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 2 || history[0].Prompt != "third" || history[1].Prompt != "second" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if _, err := l.History(context.Background(), "", 10); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCreditPaymentIdempotent(t *testing.T) {
	mem := memstore.New()
	l := newTestLedger(t, mem, &stubGenerator{}, DefaultPolicy())
	user := newUser(t, l, 0)
	payment := CompletedPayment{ProviderRef: "cs_test_1", UserID: user.ID, PackID: "credits_100", Credits: 100, AmountCents: 999, ValidityDays: 30}

	updated, err := l.CreditPayment(context.Background(), payment)
	if err != nil {
		t.Fatalf("CreditPayment error: %v", err)
	}
	if updated.CreditsBalance != 100 {
		t.Fatalf("balance = %d, want 100", updated.CreditsBalance)
	}
	if _, err := l.CreditPayment(context.Background(), payment); !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("expected ErrDuplicateOperation, got %v", err)
	}
	if got := balanceOf(t, mem, user.ID); got != 100 {
		t.Fatalf("balance = %d after redelivery, want 100", got)
	}
	if _, err := l.CreditPayment(context.Background(), CompletedPayment{UserID: user.ID, Credits: 1}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGrantAndSetBalance(t *testing.T) {
	mem := memstore.New()
	l := newTestLedger(t, mem, &stubGenerator{}, DefaultPolicy())
	user := newUser(t, l, 4)

	if _, err := l.GrantCredits(context.Background(), user.ID, -5); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	updated, err := l.GrantCredits(context.Background(), user.ID, 6)
	if err != nil || updated.CreditsBalance != 10 {
		t.Fatalf("GrantCredits: err=%v user=%+v", err, updated)
	}
	if _, err := l.SetBalance(context.Background(), user.ID, -1); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := l.SetBalance(context.Background(), "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsageReport(t *testing.T) {
	mem := memstore.New()
	l := newTestLedger(t, mem, &stubGenerator{}, DefaultPolicy())
	user := newUser(t, l, 0)
	if _, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "x", AspectRatio: "1:1", NumOutputs: 1}); err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	report, err := l.UsageReport(context.Background(), 3)
	if err != nil {
		t.Fatalf("UsageReport error: %v", err)
	}
	if len(report) != 3 {
		t.Fatalf("len = %d, want 3", len(report))
	}
	if report[0].Day != "2025-03-12" || report[0].FreeValueCents != 0 || report[0].RemainingFreeCap != 2000 {
		t.Fatalf("unexpected first day: %+v", report[0])
	}
	today := report[2]
	if today.Day != "2025-03-14" || today.FreeCreditsUsed != 2 || today.FreeValueCents != 4 || today.UniqueUsers != 1 || today.RemainingFreeCap != 1996 {
		t.Fatalf("unexpected today: %+v", today)
	}
}

func TestRunSweeperReleasesUntilCancelled(t *testing.T) {
	mem := memstore.New()
	l := newTestLedger(t, mem, &stubGenerator{}, DefaultPolicy())
	user := newUser(t, l, 10)
	if _, _, err := l.Reserve(context.Background(), user.ID, 2); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	later := testNow.Add(time.Hour)
	sweeper := New(mem, &stubGenerator{}, DefaultPolicy(), zerolog.Nop(), WithClock(func() time.Time { return later }))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.RunSweeper(ctx, 5*time.Millisecond, 10*time.Minute) }()

	deadline := time.Now().Add(2 * time.Second)
	for balanceOf(t, mem, user.ID) != 10 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("sweeper did not release the reservation")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("RunSweeper returned %v, want context.Canceled", err)
	}
}

func TestFailedCommitIsCommittedBySweeper(t *testing.T) {
	tests := []struct {
		name        string
		balance     int
		wantBalance int
		wantFree    bool
	}{
		{name: "paid", balance: 10, wantBalance: 8},
		{name: "free", balance: 0, wantBalance: 0, wantFree: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mem := memstore.New()
			flaky := &failingCommit{ReservationRepository: mem}
			l := newTestLedger(t, &testStore{Store: mem, reservations: flaky}, &stubGenerator{}, DefaultPolicy())
			user := newUser(t, l, tc.balance)

			res, err := l.Generate(context.Background(), user.ID, GenerateRequest{Prompt: "x", AspectRatio: "1:1", NumOutputs: 1})
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if len(res.Images) != 1 || res.UsedFreeCredits != tc.wantFree {
				t.Fatalf("unexpected result: %+v", res)
			}
			if n := flaky.attempts.Load(); n != 3 {
				t.Fatalf("commit attempts = %d, want 3", n)
			}

			later := testNow.Add(time.Hour)
			sweeper := New(mem, &stubGenerator{}, DefaultPolicy(), zerolog.Nop(), WithClock(func() time.Time { return later }))
			settled, err := sweeper.SettleStale(context.Background(), 10*time.Minute, 10)
			if err != nil || settled != 1 {
				t.Fatalf("SettleStale: settled=%d err=%v", settled, err)
			}
			if got := balanceOf(t, mem, user.ID); got != tc.wantBalance {
				t.Fatalf("balance = %d, want %d: delivered images must stay charged", got, tc.wantBalance)
			}
			history, _ := l.History(context.Background(), user.ID, 10)
			if len(history) != 1 || history[0].Status != domain.GenerationSucceeded || history[0].CreditsCharged != 2 {
				t.Fatalf("unexpected history: %+v", history)
			}
			usage, _ := mem.GetOrCreate(context.Background(), domain.DayKey(testNow))
			if tc.wantFree {
				if usage.ValueCents != 4 || usage.PendingCents != 0 || usage.CreditsUsed != 2 || !usage.HasUser(user.ID) {
					t.Fatalf("free use not recorded: %+v", usage)
				}
			} else if usage.ValueCents != 0 || usage.PendingCents != 0 {
				t.Fatalf("paid generation touched the free tier: %+v", usage)
			}
		})
	}
}

func TestSettleStaleSkipsUnknownOutcome(t *testing.T) {
	mem := memstore.New()
	l := newTestLedger(t, mem, &stubGenerator{}, DefaultPolicy())
	user := newUser(t, l, 10)
	if _, _, err := l.Reserve(context.Background(), user.ID, 2); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	later := testNow.Add(time.Hour)
	blind := New(&testStore{Store: mem, generations: failingLookup{GenerationRepository: mem}}, &stubGenerator{}, DefaultPolicy(), zerolog.Nop(),
		WithClock(func() time.Time { return later }))
	if settled, err := blind.SettleStale(context.Background(), 10*time.Minute, 10); err != nil || settled != 0 {
		t.Fatalf("SettleStale with failing lookup: settled=%d err=%v", settled, err)
	}
	if got := balanceOf(t, mem, user.ID); got != 8 {
		t.Fatalf("balance = %d, want 8 while the outcome is unknown", got)
	}

	sweeper := New(mem, &stubGenerator{}, DefaultPolicy(), zerolog.Nop(), WithClock(func() time.Time { return later }))
	if settled, _ := sweeper.SettleStale(context.Background(), 10*time.Minute, 10); settled != 1 {
		t.Fatalf("settled = %d, want 1", settled)
	}
	if got := balanceOf(t, mem, user.ID); got != 10 {
		t.Fatalf("balance = %d, want 10 after release", got)
	}
}
