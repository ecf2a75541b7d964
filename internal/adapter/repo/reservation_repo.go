package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// ReservationRepositoryPG implements domain.ReservationRepository. Every
// state change runs in one transaction together with the reservation row.
type ReservationRepositoryPG struct {
	db infra.TxExecutor
}

func NewReservationRepository(db infra.TxExecutor) *ReservationRepositoryPG {
	return &ReservationRepositoryPG{db: db}
}

func (r *ReservationRepositoryPG) ReservePaid(ctx context.Context, res *domain.Reservation) (int, error) {
	var balance int
	err := r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		if err := tx.QueryRow(ctx, sqlinline.QDebitBalance, res.UserID, res.Credits).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrInsufficientFunds
			}
			return err
		}
		return insertReservation(ctx, tx, res)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *ReservationRepositoryPG) ReserveFree(ctx context.Context, res *domain.Reservation, capCents int64) error {
	return r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		var day string
		if err := tx.QueryRow(ctx, sqlinline.QHoldFreeCapacity, res.Day, res.ValueCents, capCents).Scan(&day); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrDailyLimitReached
			}
			return err
		}
		return insertReservation(ctx, tx, res)
	})
}

func (r *ReservationRepositoryPG) Commit(ctx context.Context, id string) (*domain.Reservation, error) {
	var settled *domain.Reservation
	err := r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		res, err := settleReservation(ctx, tx, id, domain.ReservationCommitted)
		if err != nil {
			return err
		}
		if res.Source == domain.FundingFree {
			if _, err := tx.Exec(ctx, sqlinline.QCommitFreeCapacity, res.Day, res.ValueCents, res.Credits, res.UserID); err != nil {
				return err
			}
		}
		settled = res
		return nil
	})
	return settled, err
}

func (r *ReservationRepositoryPG) Release(ctx context.Context, id string) (*domain.Reservation, error) {
	var settled *domain.Reservation
	err := r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		res, err := settleReservation(ctx, tx, id, domain.ReservationReleased)
		if err != nil {
			return err
		}
		switch res.Source {
		case domain.FundingPaid:
			_, err = tx.Exec(ctx, sqlinline.QRefundBalance, res.UserID, res.Credits)
		case domain.FundingFree:
			_, err = tx.Exec(ctx, sqlinline.QReleaseFreeCapacity, res.Day, res.ValueCents)
		}
		if err != nil {
			return err
		}
		settled = res
		return nil
	})
	return settled, err
}

func (r *ReservationRepositoryPG) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListStaleReservations, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func insertReservation(ctx context.Context, tx infra.SQLExecutor, res *domain.Reservation) error {
	_, err := tx.Exec(ctx, sqlinline.QInsertReservation,
		res.ID,
		res.UserID,
		string(res.Source),
		res.Credits,
		res.ValueCents,
		res.Day,
		res.CreatedAt,
	)
	return err
}

// settleReservation moves a pending reservation to status. It tells a
// missing reservation apart from one that was already settled.
func settleReservation(ctx context.Context, tx infra.SQLExecutor, id string, status domain.ReservationStatus) (*domain.Reservation, error) {
	res, err := scanReservation(tx.QueryRow(ctx, sqlinline.QSettleReservation, id, string(status)))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := scanReservation(tx.QueryRow(ctx, sqlinline.QSelectReservation, id)); err != nil {
		return nil, err
	}
	return nil, domain.ErrReservationSettled
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		res    domain.Reservation
		source string
		status string
	)
	if err := row.Scan(&res.ID, &res.UserID, &source, &res.Credits, &res.ValueCents, &res.Day, &status, &res.CreatedAt, &res.SettledAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	res.Source = domain.FundingSource(source)
	res.Status = domain.ReservationStatus(status)
	return &res, nil
}
