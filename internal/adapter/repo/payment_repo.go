package repo

import (
	"context"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// PaymentRepositoryPG implements domain.PaymentRepository.
type PaymentRepositoryPG struct {
	db infra.TxExecutor
}

func NewPaymentRepository(db infra.TxExecutor) *PaymentRepositoryPG {
	return &PaymentRepositoryPG{db: db}
}

// Apply records the payment and credits the user in one transaction.
func (r *PaymentRepositoryPG) Apply(ctx context.Context, p *domain.Payment) (*domain.User, error) {
	var user *domain.User
	err := r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		row := tx.QueryRow(ctx, sqlinline.QInsertPayment, p.ProviderRef, p.UserID, p.PackID, p.Credits, p.AmountCents, p.ValidUntil)
		if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
			switch {
			case infra.IsNoRows(err), infra.IsUniqueViolation(err):
				return domain.ErrDuplicateOperation
			case infra.IsForeignKeyViolation(err):
				return domain.ErrNotFound
			}
			return err
		}
		var err error
		user, err = scanUser(tx.QueryRow(ctx, sqlinline.QAddUserCredits, p.UserID, p.Credits))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
