package repository

import (
	"context"
	"time"

	"cv-builder-payments/internal/domain/model"
)

// -----------------------------
// User accounts
// -----------------------------

type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	// FindByID locks the row (FOR UPDATE) when called inside a transaction so
	// concurrent activations for the same user serialize on the store.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	// UpdateSubscription persists the embedded subscription, the appended
	// history, and the last-transaction back-reference in one statement.
	UpdateSubscription(ctx context.Context, tx Tx, a *model.Account) error
	// ExpireDue flips active paid subscriptions past their expiration to
	// "expired" and returns how many rows changed. Free never expires.
	ExpireDue(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
