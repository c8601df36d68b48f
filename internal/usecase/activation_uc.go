// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"cv-builder-payments/internal/catalog"
	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/infra/metrics"
)

var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase grants the entitlement for a successful transaction.
// Safe to invoke repeatedly for the same transaction id: once the audit entry
// for the transaction is committed, further calls are no-ops.
type ActivationUseCase interface {
	Activate(ctx context.Context, transactionID string) (*model.Account, error)
}

type activationUC struct {
	transactions repository.TransactionRepository
	accounts     repository.AccountRepository
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewActivationUseCase(
	transactions repository.TransactionRepository,
	accounts repository.AccountRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *activationUC {
	l := logger.With().Str("component", "ActivationUC").Logger()
	return &activationUC{transactions: transactions, accounts: accounts, tm: tm, log: &l}
}

// Activate loads the transaction and its owner account inside one database
// transaction, appends the audit entry (deduplicated by transaction id), merges
// the new entitlement into the embedded subscription, and commits everything
// together with the last-transaction back-reference. Concurrent activations for
// the same user serialize on the account row lock; the loser re-reads committed
// state and no-ops on the existing history entry.
func (u *activationUC) Activate(ctx context.Context, transactionID string) (*model.Account, error) {
	var out *model.Account
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := u.transactions.FindByID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != model.PaymentStatusSuccess {
			// Contract violation: the reconciler only calls this on success.
			u.log.Error().Str("txn_id", t.ID).Str("status", string(t.Status)).Msg("activation requested for non-successful transaction")
			return domain.ErrTransactionNotSuccessful
		}

		a, err := u.accounts.FindByID(ctx, tx, t.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Nowhere to write the entitlement; needs manual intervention.
				u.log.Error().Str("txn_id", t.ID).Str("user_id", t.UserID).Msg("account missing for successful transaction")
				return domain.ErrUserNotFound
			}
			return err
		}

		if a.HasHistoryFor(t.ID) {
			// The audit entry and the subscription merge commit together, so
			// the entry alone proves this grant already landed. A replayed
			// callback for an older transaction must not re-merge its plan
			// over whatever the user activated since.
			out = a
			return nil
		}

		now := time.Now().UTC()
		validUntil := now.Add(entitlementDuration(t))

		a.SubscriptionHistory = append(a.SubscriptionHistory, model.HistoryEntry{
			TransactionID:      t.ID,
			Plan:               t.PlanID,
			ActivatedAt:        now,
			ValidUntil:         validUntil,
			Amount:             t.Amount,
			Currency:           t.Currency,
			TrxReferenceNumber: t.TrxReferenceNumber,
		})

		paidAt := now
		if t.CompletedAt != nil {
			paidAt = *t.CompletedAt
		}

		sub := model.Subscription{
			Plan:            t.PlanID,
			Status:          model.SubscriptionStatusActive,
			StartDate:       a.Subscription.StartDate, // first-ever activation date survives upgrades
			ExpirationDate:  &validUntil,
			LastPaymentDate: &paidAt,
		}
		if sub.StartDate == nil || a.Subscription.Plan == model.PlanFree {
			if a.Subscription.StartDate != nil {
				sub.StartDate = a.Subscription.StartDate
			} else {
				sub.StartDate = &now
			}
		}
		if t.PlanID == model.PlanFlexPack {
			credits := catalog.Credits(t.PlanID)
			sub.CreditsRemaining = &credits
		}
		if t.PlanID == model.PlanAnnualPass {
			sub.RenewalDate = &validUntil
			sub.NextBillingDate = &validUntil
		}

		a.Subscription = sub
		a.LastTransactionID = t.ID
		a.UpdatedAt = now

		if err := u.accounts.UpdateSubscription(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncActivation()
	return out, nil
}

// entitlementDuration converts the transaction's immutable plan snapshot into
// a wall-clock duration. Months and years use the 30/365-day approximations;
// an unrecognized unit falls back to the hard-coded per-plan default rather
// than failing the activation.
func entitlementDuration(t *model.Transaction) time.Duration {
	day := 24 * time.Hour
	switch t.PlanDurationUnit {
	case "days", "day":
		return time.Duration(t.PlanDuration) * day
	case "months", "month":
		return time.Duration(t.PlanDuration) * 30 * day
	case "years", "year":
		return time.Duration(t.PlanDuration) * 365 * day
	default:
		return time.Duration(catalog.FallbackDays(t.PlanID)) * day
	}
}
