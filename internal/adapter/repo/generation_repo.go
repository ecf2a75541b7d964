package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	db infra.SQLExecutor
}

func NewGenerationRepository(db infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{db: db}
}

// Append inserts a generation record.
func (r *GenerationRepositoryPG) Append(ctx context.Context, gen *domain.Generation) error {
	images := gen.Images
	if images == nil {
		images = []domain.Image{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	_, err = r.db.Exec(ctx, sqlinline.QInsertGeneration,
		gen.ID,
		gen.UserID,
		gen.ReservationID,
		gen.Prompt,
		gen.Width,
		gen.Height,
		gen.NumOutputs,
		payload,
		gen.CreditsCharged,
		gen.UsedFreeTier,
		string(gen.Status),
		gen.CreatedAt,
	)
	return err
}

// ListForUser returns the newest generations of a user first.
func (r *GenerationRepositoryPG) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListGenerationsForUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *gen)
	}
	return out, rows.Err()
}

func (r *GenerationRepositoryPG) FindByReservation(ctx context.Context, reservationID string) (*domain.Generation, error) {
	gen, err := scanGeneration(r.db.QueryRow(ctx, sqlinline.QSelectGenerationByReservation, reservationID))
	if infra.IsNoRows(err) {
		return nil, domain.ErrNotFound
	}
	return gen, err
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var (
		gen     domain.Generation
		status  string
		payload []byte
	)
	if err := row.Scan(&gen.ID, &gen.UserID, &gen.ReservationID, &gen.Prompt, &gen.Width, &gen.Height, &gen.NumOutputs, &payload, &gen.CreditsCharged, &gen.UsedFreeTier, &status, &gen.CreatedAt); err != nil {
		return nil, err
	}
	gen.Status = domain.GenerationStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &gen.Images); err != nil {
			return nil, fmt.Errorf("decode images of %s: %w", gen.ID, err)
		}
	}
	return &gen, nil
}
