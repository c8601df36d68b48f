// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"cv-builder-payments/internal/catalog"
	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/adapter"
	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// CheckoutInput is the checkout request handed over by the web front end.
type CheckoutInput struct {
	UserID    string
	UserEmail string
	UserName  string
	UserPhone string // optional
	PlanID    string
	Mode      model.GatewayMode
	Language  string
}

type PaymentUseCase interface {
	// Checkout creates a pending ledger entry with a plan snapshot and returns
	// it together with the signed gateway redirect URL.
	Checkout(ctx context.Context, in CheckoutInput) (*model.Transaction, string, error)
	// ListUserTransactions returns the user's payment attempts newest-first.
	ListUserTransactions(ctx context.Context, userID string) ([]*model.Transaction, error)
	// LastSuccessful returns the user's most recent successful transaction.
	LastSuccessful(ctx context.Context, userID string) (*model.Transaction, error)
	// Revenue totals per period (used by the admin panel)
	SumByPeriod(ctx context.Context, period string) (int64, error)
}

type paymentUC struct {
	transactions repository.TransactionRepository
	accounts     repository.AccountRepository
	plans        *catalog.Catalog
	gateway      adapter.PaymentGateway
	log          *zerolog.Logger
}

func NewPaymentUseCase(
	transactions repository.TransactionRepository,
	accounts repository.AccountRepository,
	plans *catalog.Catalog,
	gateway adapter.PaymentGateway,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{transactions: transactions, accounts: accounts, plans: plans, gateway: gateway, log: &l}
}

func (u *paymentUC) Checkout(ctx context.Context, in CheckoutInput) (*model.Transaction, string, error) {
	plan, err := u.plans.Config(in.PlanID, in.Language)
	if err != nil {
		return nil, "", err
	}

	// First purchase may arrive before the account sync from the identity
	// provider; make sure there is a row to activate against later.
	if err := u.ensureAccount(ctx, in); err != nil {
		return nil, "", err
	}

	mode := in.Mode
	if mode == "" {
		mode = model.GatewayModeLive
	}

	now := time.Now().UTC()
	t := &model.Transaction{
		ID:                 ulid.Make().String(),
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		PlanPrice:          plan.Price,
		PlanCurrency:       plan.Currency,
		PlanDuration:       plan.Duration,
		PlanDurationUnit:   plan.DurationUnit,
		PlanDescription:    plan.Description,
		UserID:             in.UserID,
		UserEmail:          in.UserEmail,
		UserName:           in.UserName,
		UserPhone:          in.UserPhone,
		Amount:             plan.Price,
		Currency:           plan.Currency,
		Status:             model.PaymentStatusPending,
		TrxReferenceNumber: ulid.Make().String(),
		OrderID:            uuid.NewString(),
		Mode:               mode,
		Language:           in.Language,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := u.transactions.Save(ctx, repository.NoTX, t); err != nil {
		return nil, "", err
	}

	redirectURL, err := u.gateway.CheckoutURL(t)
	if err != nil {
		return nil, "", err
	}

	metrics.IncTransaction(string(model.PaymentStatusPending))
	u.log.Info().
		Str("txn_id", t.ID).
		Str("plan", t.PlanID).
		Str("order_id", t.OrderID).
		Msg("checkout created")
	return t, redirectURL, nil
}

func (u *paymentUC) ensureAccount(ctx context.Context, in CheckoutInput) error {
	_, err := u.accounts.FindByID(ctx, repository.NoTX, in.UserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		// A transient read failure must not turn into an identity overwrite.
		return err
	}
	a, err := model.NewAccount(in.UserID, in.UserEmail, in.UserName)
	if err != nil {
		return err
	}
	a.Phone = in.UserPhone
	return u.accounts.Save(ctx, repository.NoTX, a)
}

func (u *paymentUC) ListUserTransactions(ctx context.Context, userID string) ([]*model.Transaction, error) {
	return u.transactions.ListByUser(ctx, repository.NoTX, userID)
}

func (u *paymentUC) LastSuccessful(ctx context.Context, userID string) (*model.Transaction, error) {
	return u.transactions.LastSuccessfulByUser(ctx, repository.NoTX, userID)
}

func (u *paymentUC) SumByPeriod(ctx context.Context, period string) (int64, error) {
	return u.transactions.SumByPeriod(ctx, repository.NoTX, period)
}
