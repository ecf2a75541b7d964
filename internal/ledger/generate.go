package ledger

import (
	"context"
	"errors"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/imagegen"
)

// Result is the outcome of a successful generation.
type Result struct {
	Generation       *domain.Generation
	Images           []domain.Image
	CostCredits      int
	UsedFreeCredits  bool
	RemainingCredits int
}

// Generate validates req, reserves its cost, calls the image provider and
// settles the reservation according to the outcome.
//
// Requests rejected before the provider call leave no trace. Once the
// provider has answered exactly one generation record is written: succeeded
// with the images, or failed with nothing charged.
func (l *Ledger) Generate(ctx context.Context, userID string, req GenerateRequest) (*Result, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	quote, err := l.policy.Quote(req)
	if err != nil {
		return nil, err
	}

	res, balance, err := l.Reserve(ctx, userID, quote.Cost)
	if err != nil {
		return nil, err
	}

	images, genErr := l.callGenerator(ctx, quote)

	// Settlement must survive the caller going away.
	settleCtx := context.WithoutCancel(ctx)

	if genErr != nil {
		if err := l.Release(settleCtx, res); err == nil && res.Source == domain.FundingPaid {
			balance += res.Credits
		}
		l.appendGeneration(settleCtx, quote, res, nil, domain.GenerationFailed)
		l.logger.Warn().Err(genErr).Str("user_id", userID).Str("reservation", res.ID).Msg("ledger: generation failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, genErr)
	}

	gen := l.appendGeneration(settleCtx, quote, res, images, domain.GenerationSucceeded)
	if err := l.Commit(settleCtx, res); err != nil {
		l.logger.Error().Err(err).Str("user_id", userID).Str("generation", gen.ID).Msg("ledger: images delivered, commit left to the sweeper")
	}

	return &Result{
		Generation:       gen,
		Images:           images,
		CostCredits:      quote.Cost,
		UsedFreeCredits:  res.Source == domain.FundingFree,
		RemainingCredits: balance,
	}, nil
}

func (l *Ledger) callGenerator(ctx context.Context, quote Quote) ([]domain.Image, error) {
	genCtx, cancel := context.WithTimeout(ctx, l.policy.GenerationTimeout)
	defer cancel()
	images, err := l.generator.Generate(genCtx, imagegen.Request{
		Prompt:     quote.Prompt,
		Width:      quote.Size.Width,
		Height:     quote.Size.Height,
		NumOutputs: quote.NumOutputs,
	})
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("timed out after %s: %w", l.policy.GenerationTimeout, err)
		}
		return nil, err
	}
	if len(images) == 0 {
		return nil, imagegen.ErrNoImages
	}
	return images, nil
}

func (l *Ledger) appendGeneration(ctx context.Context, quote Quote, res *domain.Reservation, images []domain.Image, status domain.GenerationStatus) *domain.Generation {
	gen := &domain.Generation{
		ID:            l.newID(),
		UserID:        res.UserID,
		ReservationID: res.ID,
		Prompt:        quote.Prompt,
		Width:         quote.Size.Width,
		Height:        quote.Size.Height,
		NumOutputs:    quote.NumOutputs,
		Images:        images,
		UsedFreeTier:  res.Source == domain.FundingFree,
		Status:        status,
		CreatedAt:     l.now(),
	}
	if status == domain.GenerationSucceeded {
		gen.CreditsCharged = quote.Cost
	}
	if err := l.generations.Append(ctx, gen); err != nil {
		l.logger.Error().Err(err).Str("user_id", res.UserID).Str("generation", gen.ID).Msg("ledger: append generation failed")
	}
	return gen
}

// History returns the user's generations, newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if limit <= 0 || limit > l.policy.HistoryLimit {
		limit = l.policy.HistoryLimit
	}
	return l.generations.ListForUser(ctx, userID, limit)
}
