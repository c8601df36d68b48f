// File: internal/usecase/status_uc.go
package usecase

import (
	"context"
	"errors"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/repository"
)

var _ StatusUseCase = (*statusUC)(nil)

// StatusView is the polling answer for the editor's "did my payment go
// through" spinner. It deliberately exposes nothing the browser did not
// already know at checkout time.
type StatusView struct {
	TransactionID string              `json:"transactionId"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	PlanID        string              `json:"planId"`
	Amount        int64               `json:"amount"`
	Currency      string              `json:"currency"`

	// OwnerUserID lets callers re-check ownership on cached copies. It is
	// never serialized into a response body.
	OwnerUserID string `json:"-"`
}

type StatusUseCase interface {
	// Status resolves id as a transaction id first, then as a gateway
	// reference, so the front end may poll with whichever it kept.
	Status(ctx context.Context, callerUserID, id string) (*StatusView, error)
}

type statusUC struct {
	transactions repository.TransactionRepository
}

func NewStatusUseCase(transactions repository.TransactionRepository) *statusUC {
	return &statusUC{transactions: transactions}
}

func (u *statusUC) Status(ctx context.Context, callerUserID, id string) (*StatusView, error) {
	t, err := u.transactions.FindByID(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		t, err = u.transactions.FindByReference(ctx, repository.NoTX, id)
	}
	if err != nil {
		return nil, err
	}
	if callerUserID != "" && callerUserID != t.UserID {
		return nil, domain.ErrUnauthorized
	}
	return &StatusView{
		TransactionID: t.ID,
		PaymentStatus: t.Status,
		PlanID:        t.PlanID,
		Amount:        t.Amount,
		Currency:      t.Currency,
		OwnerUserID:   t.UserID,
	}, nil
}
