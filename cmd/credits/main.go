package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/domain"
	"genstudio/internal/imagegen"
	"genstudio/internal/infra"
	"genstudio/internal/ledger"
)

func main() {
	var (
		idFlag    string
		emailFlag string
		setFlag   int
		addFlag   int
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.IntVar(&setFlag, "set", -1, "set the balance to this value")
	flag.IntVar(&addFlag, "add", 0, "add (or with a negative value remove) credits")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if (setFlag >= 0) == (addFlag != 0) {
		exitWithError(errors.New("exactly one of -set or -add must be provided"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "credits")
	store := repo.NewStore(infra.NewSQLRunner(pool, logger))
	led := ledger.New(store, imagegen.PlaceholderGenerator{}, ledger.DefaultPolicy(), logger)

	var user *domain.User
	if userID != "" {
		user, err = store.Users().GetByID(ctx, userID)
	} else {
		user, err = store.Users().FindByEmail(ctx, email)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to load user: %w", err))
	}
	before := user.CreditsBalance

	if setFlag >= 0 {
		user, err = led.SetBalance(ctx, user.ID, setFlag)
	} else {
		user, err = led.GrantCredits(ctx, user.ID, addFlag)
	}
	if errors.Is(err, domain.ErrInsufficientFunds) {
		exitWithError(fmt.Errorf("cannot remove %d credits from a balance of %d", -addFlag, before))
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to update credits: %w", err))
	}

	fmt.Printf("User %s (%s) credits %d -> %d\n", user.ID, user.Email, before, user.CreditsBalance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
