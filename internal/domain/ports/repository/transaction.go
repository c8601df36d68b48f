package repository

import (
	"context"
	"time"

	"cv-builder-payments/internal/domain/model"
)

// -----------------------------
// Transaction ledger
// -----------------------------

type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	// FindByReference resolves the gateway reference. References are expected
	// unique; on duplicates the first in deterministic (newest-first) order is
	// returned and the caller logs a data-integrity warning.
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Transaction, error)
	// FindByOrderID tries order_id first, then merchant_order_id: the gateway
	// sometimes echoes a different field than the one issued at checkout.
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Transaction, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Transaction, error)
	LastSuccessfulByUser(ctx context.Context, tx Tx, userID string) (*model.Transaction, error)
	// UpdateStatus unconditionally overwrites payment_status and merges the
	// callback-echoed gateway fields. Idempotency is the reconciler's job.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, fields *model.GatewayFields, completedAt *time.Time) error
	// ListSuccessfulUnactivated returns successful transactions whose owner
	// account does not yet reference them; the sweeper retries activation.
	ListSuccessfulUnactivated(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	SumByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
