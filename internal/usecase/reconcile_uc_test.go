//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/adapter"
	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/usecase"
)

func pendingTransaction(id, userID string) *model.Transaction {
	now := time.Now().UTC()
	return &model.Transaction{
		ID:                 id,
		PlanID:             model.PlanOneTime,
		PlanDuration:       7,
		PlanDurationUnit:   "days",
		UserID:             userID,
		Amount:             4900,
		Currency:           "EGP",
		Status:             model.PaymentStatusPending,
		TrxReferenceNumber: "ref-" + id,
		OrderID:            "order-" + id,
		Mode:               model.GatewayModeLive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func newReconciler(txns *MockTransactionRepo, gw *MockGateway, act *MockActivator, tracker adapter.AnalyticsTracker) usecase.ReconcileUseCase {
	return usecase.NewReconcileUseCase(txns, gw, act, tracker, nil, nopLogger())
}

func TestReconcileUC_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("success token settles and activates", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		_ = txns.Save(ctx, repository.NoTX, pendingTransaction("t-1", "u-1"))
		act := &MockActivator{}
		tracker := &MockTracker{}
		uc := newReconciler(txns, &MockGateway{}, act, tracker)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "ref-t-1",
			Params: map[string]string{
				"status":     "PAID",
				"maskedCard": "4242%20****%20****%209999",
				"cardBrand":  "VISA",
				"signature":  "sig",
			},
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Strategy != "reference" {
			t.Fatalf("strategy = %s", res.Strategy)
		}
		if res.Transaction.Status != model.PaymentStatusSuccess {
			t.Fatalf("status = %s", res.Transaction.Status)
		}
		if res.Transaction.MaskedCard != "4242 **** **** 9999" {
			t.Fatalf("masked card not decoded: %q", res.Transaction.MaskedCard)
		}
		if len(act.Activated) != 1 || act.Activated[0] != "t-1" {
			t.Fatalf("activations = %v", act.Activated)
		}
		if len(tracker.Tracked) != 1 {
			t.Fatalf("analytics events = %d", len(tracker.Tracked))
		}

		stored, _ := txns.FindByID(ctx, nil, "t-1")
		if stored.Status != model.PaymentStatusSuccess || stored.CompletedAt == nil {
			t.Fatal("ledger not settled")
		}
	})

	t.Run("absent status counts as success", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		_ = txns.Save(ctx, repository.NoTX, pendingTransaction("t-2", "u-1"))
		act := &MockActivator{}
		uc := newReconciler(txns, &MockGateway{}, act, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{PathReference: "ref-t-2", Params: map[string]string{"signature": "sig"}})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Transaction.Status != model.PaymentStatusSuccess {
			t.Fatalf("status = %s", res.Transaction.Status)
		}
	})

	t.Run("unknown status token fails without activation", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		_ = txns.Save(ctx, repository.NoTX, pendingTransaction("t-3", "u-1"))
		act := &MockActivator{}
		uc := newReconciler(txns, &MockGateway{}, act, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "ref-t-3",
			Params:        map[string]string{"status": "WEIRD_BANK_CODE_999", "signature": "sig"},
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Transaction.Status != model.PaymentStatusFailed {
			t.Fatalf("status = %s, want failed", res.Transaction.Status)
		}
		if len(act.Activated) != 0 {
			t.Fatal("failed payment must not activate")
		}
	})

	t.Run("invalid signature forces failure", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		_ = txns.Save(ctx, repository.NoTX, pendingTransaction("t-4", "u-1"))
		act := &MockActivator{}
		gw := &MockGateway{VerifySignatureFunc: func(map[string]string, string, model.GatewayMode) bool { return false }}
		uc := newReconciler(txns, gw, act, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "ref-t-4",
			Params:        map[string]string{"status": "PAID", "signature": "forged"},
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Transaction.Status != model.PaymentStatusFailed {
			t.Fatal("forged callback must never succeed")
		}
		if len(act.Activated) != 0 {
			t.Fatal("forged callback must not activate")
		}
	})

	t.Run("resolves by merchantOrderId when reference misses", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		txn := pendingTransaction("t-5", "u-1")
		txn.MerchantOrderID = "mo-55"
		_ = txns.Save(ctx, repository.NoTX, txn)
		uc := newReconciler(txns, &MockGateway{}, &MockActivator{}, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "unknown-ref",
			Params:        map[string]string{"merchantOrderId": "mo-55", "status": "SUCCESS", "signature": "sig"},
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Strategy != "merchant_order_id" {
			t.Fatalf("strategy = %s", res.Strategy)
		}
	})

	t.Run("resolves by orderId as the last resort", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		_ = txns.Save(ctx, repository.NoTX, pendingTransaction("t-6", "u-1"))
		uc := newReconciler(txns, &MockGateway{}, &MockActivator{}, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			Params: map[string]string{"orderId": "order-t-6", "status": "SUCCESS", "signature": "sig"},
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Strategy != "order_id" {
			t.Fatalf("strategy = %s", res.Strategy)
		}
	})

	t.Run("unmatched callback returns ErrNotFound", func(t *testing.T) {
		uc := newReconciler(NewMockTransactionRepo(), &MockGateway{}, &MockActivator{}, nil)
		_, err := uc.Reconcile(ctx, usecase.CallbackInput{PathReference: "nope", Params: map[string]string{}})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("foreign caller is rejected", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		_ = txns.Save(ctx, repository.NoTX, pendingTransaction("t-7", "owner"))
		uc := newReconciler(txns, &MockGateway{}, &MockActivator{}, nil)

		_, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "ref-t-7",
			Params:        map[string]string{"status": "PAID", "signature": "sig"},
			CallerUserID:  "intruder",
		})
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("replay on settled success rewrites nothing but re-activates", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		txn := pendingTransaction("t-8", "u-1")
		txn.Status = model.PaymentStatusSuccess
		now := time.Now().UTC()
		txn.CompletedAt = &now
		_ = txns.Save(ctx, repository.NoTX, txn)
		act := &MockActivator{}
		uc := newReconciler(txns, &MockGateway{}, act, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "ref-t-8",
			Params:        map[string]string{"status": "PAID", "signature": "sig"},
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if txns.UpdateStatusCalls != 0 {
			t.Fatalf("replay wrote to the ledger %d times", txns.UpdateStatusCalls)
		}
		if len(act.Activated) != 1 {
			t.Fatal("replay on success must still retry activation")
		}
		if res.Transaction.Status != model.PaymentStatusSuccess {
			t.Fatalf("status = %s", res.Transaction.Status)
		}
	})

	t.Run("replay on settled failure stays failed and never activates", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		txn := pendingTransaction("t-9", "u-1")
		txn.Status = model.PaymentStatusFailed
		_ = txns.Save(ctx, repository.NoTX, txn)
		act := &MockActivator{}
		uc := newReconciler(txns, &MockGateway{}, act, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "ref-t-9",
			Params:        map[string]string{"status": "PAID", "signature": "sig"},
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Transaction.Status != model.PaymentStatusFailed {
			t.Fatal("terminal failure must not be overwritten")
		}
		if len(act.Activated) != 0 {
			t.Fatal("failed transaction must not activate")
		}
	})

	t.Run("activation failure does not fail the callback", func(t *testing.T) {
		txns := NewMockTransactionRepo()
		_ = txns.Save(ctx, repository.NoTX, pendingTransaction("t-10", "u-1"))
		act := &MockActivator{ActivateFunc: func(context.Context, string) (*model.Account, error) {
			return nil, domain.ErrOperationFailed
		}}
		uc := newReconciler(txns, &MockGateway{}, act, nil)

		res, err := uc.Reconcile(ctx, usecase.CallbackInput{
			PathReference: "ref-t-10",
			Params:        map[string]string{"status": "PAID", "signature": "sig"},
		})
		if err != nil {
			t.Fatalf("reconcile must not propagate activation errors, got %v", err)
		}
		if res.Activated {
			t.Fatal("result must report the grant as pending")
		}
		if res.Transaction.Status != model.PaymentStatusSuccess {
			t.Fatal("ledger still records the success")
		}
	})
}

// TestReconcileUC_DuplicateCallbacks wires the real activator behind the
// reconciler: two deliveries of the same success must leave exactly one audit
// entry and one credit grant.
func TestReconcileUC_DuplicateCallbacks(t *testing.T) {
	ctx := context.Background()
	txns := NewMockTransactionRepo()
	accounts := NewMockAccountRepo()
	a, _ := model.NewAccount("u-1", "u@example.com", "U")
	accounts.Put(a)

	txn := pendingTransaction("t-dup", "u-1")
	txn.PlanID = model.PlanFlexPack
	txn.PlanDuration = 6
	txn.PlanDurationUnit = "months"
	_ = txns.Save(ctx, repository.NoTX, txn)

	activator := usecase.NewActivationUseCase(txns, accounts, fakeTxManager{}, nopLogger())
	uc := usecase.NewReconcileUseCase(txns, &MockGateway{}, activator, nil, nil, nopLogger())

	in := usecase.CallbackInput{
		PathReference: "ref-t-dup",
		Params:        map[string]string{"status": "SUCCESS", "signature": "sig"},
	}
	for i := 0; i < 2; i++ {
		if _, err := uc.Reconcile(ctx, in); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	final, _ := accounts.FindByID(ctx, nil, "u-1")
	if len(final.SubscriptionHistory) != 1 {
		t.Fatalf("history = %d entries, want 1", len(final.SubscriptionHistory))
	}
	if final.Subscription.CreditsRemaining == nil || *final.Subscription.CreditsRemaining != 5 {
		t.Fatalf("credits = %v, want 5", final.Subscription.CreditsRemaining)
	}
	if final.Subscription.Plan != model.PlanFlexPack {
		t.Fatalf("plan = %s", final.Subscription.Plan)
	}
}
