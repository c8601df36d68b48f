package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountColumns = `id, email, name, phone, sub_plan, sub_status, sub_start_date, sub_expiration_date, sub_credits_remaining, sub_renewal_date, sub_next_billing_date, sub_last_payment_date, subscription_history, last_transaction_id, created_at, updated_at`

// Save upserts identity fields only. Subscription columns are owned by
// UpdateSubscription; a checkout-time sync must never clobber a grant that
// raced in between.
func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (
  id, email, name, phone, sub_plan, sub_status, subscription_history, last_transaction_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (id) DO UPDATE SET
  email=$2, name=$3, phone=$4, updated_at=$10;`

	history, err := json.Marshal(historyOrEmpty(a.SubscriptionHistory))
	if err != nil {
		return domain.ErrOperationFailed
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		a.ID, a.Email, a.Name, a.Phone,
		a.Subscription.Plan, string(a.Subscription.Status),
		history, a.LastTransactionID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	a := &model.Account{}
	var status, history string
	if err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Phone,
		&a.Subscription.Plan, &status,
		&a.Subscription.StartDate, &a.Subscription.ExpirationDate, &a.Subscription.CreditsRemaining,
		&a.Subscription.RenewalDate, &a.Subscription.NextBillingDate, &a.Subscription.LastPaymentDate,
		&history, &a.LastTransactionID, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	a.Subscription.Status = model.SubscriptionStatus(status)
	if err := json.Unmarshal([]byte(history), &a.SubscriptionHistory); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

// UpdateSubscription writes the embedded subscription, the full history array
// and the back-reference in one statement so the grant commits atomically.
func (r *accountRepo) UpdateSubscription(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
UPDATE accounts SET
  sub_plan=$2, sub_status=$3, sub_start_date=$4, sub_expiration_date=$5,
  sub_credits_remaining=$6, sub_renewal_date=$7, sub_next_billing_date=$8, sub_last_payment_date=$9,
  subscription_history=$10, last_transaction_id=$11, updated_at=$12
WHERE id=$1;`

	history, err := json.Marshal(historyOrEmpty(a.SubscriptionHistory))
	if err != nil {
		return domain.ErrOperationFailed
	}
	cmd, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.Subscription.Plan, string(a.Subscription.Status),
		a.Subscription.StartDate, a.Subscription.ExpirationDate,
		a.Subscription.CreditsRemaining, a.Subscription.RenewalDate,
		a.Subscription.NextBillingDate, a.Subscription.LastPaymentDate,
		history, a.LastTransactionID, a.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpireDue downgrades paid subscriptions whose window has closed. Free never
// expires; cancelled stays cancelled.
func (r *accountRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `
UPDATE accounts SET sub_status='expired', updated_at=NOW()
WHERE sub_status='active'
  AND sub_plan <> 'free'
  AND sub_expiration_date IS NOT NULL
  AND sub_expiration_date < $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}

// historyOrEmpty keeps the JSONB column an array, never SQL null, so the
// containment probe in ListSuccessfulUnactivated stays valid.
func historyOrEmpty(h []model.HistoryEntry) []model.HistoryEntry {
	if h == nil {
		return []model.HistoryEntry{}
	}
	return h
}
