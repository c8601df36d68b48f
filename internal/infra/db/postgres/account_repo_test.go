//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/repository"
)

func TestAccountRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewAccountRepo(testPool)

	t.Run("save and find", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewAccount("u-1", "u@example.com", "User One")
		if err := repo.Save(ctx, repository.NoTX, a); err != nil {
			t.Fatalf("save: %v", err)
		}

		found, err := repo.FindByID(ctx, repository.NoTX, "u-1")
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if found.Email != "u@example.com" || found.Subscription.Plan != model.PlanFree {
			t.Fatalf("found = %+v", found)
		}
		if found.SubscriptionHistory == nil || len(found.SubscriptionHistory) != 0 {
			t.Fatalf("history must start as an empty array, got %v", found.SubscriptionHistory)
		}

		if _, err := repo.FindByID(ctx, repository.NoTX, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save upserts identity but never the subscription", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewAccount("u-1", "u@example.com", "User One")
		if err := repo.Save(ctx, repository.NoTX, a); err != nil {
			t.Fatalf("save: %v", err)
		}

		exp := time.Now().Add(24 * time.Hour).UTC()
		a.Subscription = model.Subscription{Plan: model.PlanOneTime, Status: model.SubscriptionStatusActive, ExpirationDate: &exp}
		if err := repo.UpdateSubscription(ctx, repository.NoTX, a); err != nil {
			t.Fatalf("UpdateSubscription: %v", err)
		}

		again, _ := model.NewAccount("u-1", "new@example.com", "Renamed")
		if err := repo.Save(ctx, repository.NoTX, again); err != nil {
			t.Fatalf("re-save: %v", err)
		}

		found, _ := repo.FindByID(ctx, repository.NoTX, "u-1")
		if found.Email != "new@example.com" || found.Name != "Renamed" {
			t.Fatalf("identity not upserted: %+v", found)
		}
		if found.Subscription.Plan != model.PlanOneTime {
			t.Fatalf("re-save clobbered the subscription: %s", found.Subscription.Plan)
		}
	})

	t.Run("subscription and history round-trip", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewAccount("u-1", "u@example.com", "U")
		if err := repo.Save(ctx, repository.NoTX, a); err != nil {
			t.Fatalf("save: %v", err)
		}

		start := time.Now().UTC().Truncate(time.Millisecond)
		exp := start.Add(180 * 24 * time.Hour)
		credits := 5
		a.Subscription = model.Subscription{
			Plan:             model.PlanFlexPack,
			Status:           model.SubscriptionStatusActive,
			StartDate:        &start,
			ExpirationDate:   &exp,
			CreditsRemaining: &credits,
			LastPaymentDate:  &start,
		}
		a.SubscriptionHistory = append(a.SubscriptionHistory, model.HistoryEntry{
			TransactionID:      "t-1",
			Plan:               model.PlanFlexPack,
			ActivatedAt:        start,
			ValidUntil:         exp,
			Amount:             14900,
			Currency:           "EGP",
			TrxReferenceNumber: "ref-t-1",
		})
		a.LastTransactionID = "t-1"
		if err := repo.UpdateSubscription(ctx, repository.NoTX, a); err != nil {
			t.Fatalf("UpdateSubscription: %v", err)
		}

		found, err := repo.FindByID(ctx, repository.NoTX, "u-1")
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if found.Subscription.Plan != model.PlanFlexPack || found.Subscription.CreditsRemaining == nil || *found.Subscription.CreditsRemaining != 5 {
			t.Fatalf("subscription = %+v", found.Subscription)
		}
		if len(found.SubscriptionHistory) != 1 {
			t.Fatalf("history = %d entries", len(found.SubscriptionHistory))
		}
		entry := found.SubscriptionHistory[0]
		if entry.TransactionID != "t-1" || entry.Amount != 14900 || entry.TrxReferenceNumber != "ref-t-1" {
			t.Fatalf("entry = %+v", entry)
		}
		if found.LastTransactionID != "t-1" {
			t.Fatalf("back-reference = %q", found.LastTransactionID)
		}

		ghost, _ := model.NewAccount("ghost", "g@example.com", "G")
		if err := repo.UpdateSubscription(ctx, repository.NoTX, ghost); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for ghost update, got %v", err)
		}
	})

	t.Run("locked read inside a transaction", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewAccount("u-1", "u@example.com", "U")
		if err := repo.Save(ctx, repository.NoTX, a); err != nil {
			t.Fatalf("save: %v", err)
		}

		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			locked, err := repo.FindByID(ctx, tx, "u-1")
			if err != nil {
				return err
			}
			exp := time.Now().Add(7 * 24 * time.Hour).UTC()
			locked.Subscription = model.Subscription{Plan: model.PlanOneTime, Status: model.SubscriptionStatusActive, ExpirationDate: &exp}
			return repo.UpdateSubscription(ctx, tx, locked)
		})
		if err != nil {
			t.Fatalf("WithTx: %v", err)
		}

		found, _ := repo.FindByID(ctx, repository.NoTX, "u-1")
		if found.Subscription.Plan != model.PlanOneTime {
			t.Fatal("committed update not visible")
		}
	})

	t.Run("rollback discards the update", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewAccount("u-1", "u@example.com", "U")
		if err := repo.Save(ctx, repository.NoTX, a); err != nil {
			t.Fatalf("save: %v", err)
		}

		tm := NewTxManager(testPool)
		boom := errors.New("boom")
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			locked, err := repo.FindByID(ctx, tx, "u-1")
			if err != nil {
				return err
			}
			locked.Subscription.Plan = model.PlanAnnualPass
			if err := repo.UpdateSubscription(ctx, tx, locked); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTx = %v, want boom", err)
		}

		found, _ := repo.FindByID(ctx, repository.NoTX, "u-1")
		if found.Subscription.Plan != model.PlanFree {
			t.Fatal("rolled back update leaked")
		}
	})

	t.Run("expire due downgrades only lapsed paid subscriptions", func(t *testing.T) {
		cleanup(t)
		mkAccount := func(id, plan string, exp *time.Time) {
			a, _ := model.NewAccount(id, id+"@example.com", id)
			if err := repo.Save(ctx, repository.NoTX, a); err != nil {
				t.Fatalf("save %s: %v", id, err)
			}
			a.Subscription = model.Subscription{Plan: plan, Status: model.SubscriptionStatusActive, ExpirationDate: exp}
			if err := repo.UpdateSubscription(ctx, repository.NoTX, a); err != nil {
				t.Fatalf("update %s: %v", id, err)
			}
		}
		past := time.Now().Add(-24 * time.Hour).UTC()
		future := time.Now().Add(24 * time.Hour).UTC()
		mkAccount("lapsed", model.PlanFlexPack, &past)
		mkAccount("current", model.PlanAnnualPass, &future)
		mkAccount("free", model.PlanFree, nil)

		n, err := repo.ExpireDue(ctx, repository.NoTX, time.Now().UTC())
		if err != nil {
			t.Fatalf("ExpireDue: %v", err)
		}
		if n != 1 {
			t.Fatalf("expired %d rows, want 1", n)
		}

		lapsed, _ := repo.FindByID(ctx, repository.NoTX, "lapsed")
		if lapsed.Subscription.Status != model.SubscriptionStatusExpired {
			t.Fatalf("lapsed status = %s", lapsed.Subscription.Status)
		}
		current, _ := repo.FindByID(ctx, repository.NoTX, "current")
		if current.Subscription.Status != model.SubscriptionStatusActive {
			t.Fatal("current subscription must stay active")
		}
	})
}
